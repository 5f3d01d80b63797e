package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/grumming/grumming-app-sub004/config"
	"github.com/grumming/grumming-app-sub004/errors"
	"github.com/grumming/grumming-app-sub004/logger"
	"github.com/grumming/grumming-app-sub004/utils"
)

const (
	CodeInvalidToken  = "invalid_token"
	CodePhoneMismatch = "phone_mismatch"

	sessionIssuer = "salon-booking-service"
)

type SessionClaims struct {
	Phone string `json:"phone,omitempty"`
	jwt.RegisteredClaims
}

// SessionManager issues and checks HS256 session tokens.
type SessionManager struct {
	secret []byte
	ttl    time.Duration
	appURL string
	now    func() time.Time
}

// NewSessionManager returns nil when no JWT secret is configured.
func NewSessionManager(cfg config.SessionConfig) *SessionManager {
	if cfg.JWTSecret == "" {
		return nil
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionManager{secret: []byte(cfg.JWTSecret), ttl: ttl, appURL: cfg.AppURL, now: time.Now}
}

func (m *SessionManager) Issue(userID uuid.UUID) (string, error) {
	now := m.now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    sessionIssuer,
			Subject:   userID.String(),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", errors.E(errors.Internal, "failed to sign session token", err)
	}
	return token, nil
}

// Parse validates token and returns the user id it was issued for.
func (m *SessionManager) Parse(token string) (uuid.UUID, error) {
	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return uuid.Nil, errors.E(errors.Unauthorized, errors.Code(CodeInvalidToken), "invalid session token", err)
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, errors.E(errors.Unauthorized, errors.Code(CodeInvalidToken), "invalid session subject", err)
	}
	return id, nil
}

// VerificationURL is the link the client opens to complete sign-in with token.
func (m *SessionManager) VerificationURL(token string) string {
	return m.appURL + "/auth/verify?token=" + url.QueryEscape(token)
}

type FirebaseUser struct {
	LocalID     string `json:"localId"`
	PhoneNumber string `json:"phoneNumber"`
}

// IDTokenVerifier resolves a Firebase ID token into the account it belongs to.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*FirebaseUser, error)
}

// FirebaseVerifier checks ID tokens with the Identity Toolkit accounts:lookup endpoint.
type FirebaseVerifier struct {
	client *resty.Client
	apiKey string
}

// NewFirebaseVerifier returns nil when no API key is configured.
func NewFirebaseVerifier(cfg config.FirebaseConfig) *FirebaseVerifier {
	if cfg.APIKey == "" {
		return nil
	}
	return &FirebaseVerifier{
		client: resty.New().SetBaseURL(cfg.BaseURL).SetTimeout(10 * time.Second),
		apiKey: cfg.APIKey,
	}
}

type firebaseLookupResponse struct {
	Users []FirebaseUser `json:"users"`
}

type firebaseError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (f *FirebaseVerifier) VerifyIDToken(ctx context.Context, idToken string) (*FirebaseUser, error) {
	var out firebaseLookupResponse
	var apiErr firebaseError
	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParam("key", f.apiKey).
		SetBody(map[string]string{"idToken": idToken}).
		ForceContentType("application/json").
		SetResult(&out).
		SetError(&apiErr).
		Post("/v1/accounts:lookup")
	if err != nil {
		return nil, errors.E(errors.Upstream, errors.Code(CodeProviderError), "could not reach identity provider", err)
	}
	if resp.StatusCode() == 400 || resp.StatusCode() == 401 {
		return nil, errors.E(errors.Unauthorized, errors.Code(CodeInvalidToken), "Invalid Firebase token",
			fmt.Errorf("identity toolkit: %s", apiErr.Error.Message))
	}
	if resp.IsError() {
		return nil, errors.E(errors.Upstream, errors.Code(CodeProviderError), "identity provider error",
			fmt.Errorf("identity toolkit: status %s: %s", resp.Status(), apiErr.Error.Message))
	}
	if len(out.Users) == 0 {
		return nil, errors.E(errors.Unauthorized, errors.Code(CodeInvalidToken), "Invalid Firebase token")
	}
	return &out.Users[0], nil
}

type ProfileStore interface {
	FindOrCreateProfileByPhone(ctx context.Context, phone string, firebaseUID *string) (uuid.UUID, bool, error)
}

type FirebaseLoginResult struct {
	IsNewUser       bool
	UserID          uuid.UUID
	VerificationURL string
}

// AuthService exchanges Firebase phone logins for local users and sessions.
type AuthService struct {
	store    ProfileStore
	verifier IDTokenVerifier
	sessions *SessionManager
	log      *logger.Logger
}

func NewAuthService(store ProfileStore, verifier IDTokenVerifier, sessions *SessionManager, log *logger.Logger) *AuthService {
	return &AuthService{store: store, verifier: verifier, sessions: sessions, log: orDefault(log)}
}

func (s *AuthService) FirebaseLogin(ctx context.Context, idToken, phone string) (*FirebaseLoginResult, error) {
	idToken, phone = strings.TrimSpace(idToken), strings.TrimSpace(phone)
	if idToken == "" || phone == "" {
		return nil, errors.E(errors.Invalid, errors.Code(CodeMissingFields), "firebaseIdToken and phone are required")
	}
	if err := utils.ValidatePhone(phone); err != nil {
		return nil, errors.E(errors.Invalid, errors.Code(CodeInvalidFormat), "Invalid phone number format. Use +91XXXXXXXXXX", err)
	}
	if s.verifier == nil || s.sessions == nil {
		return nil, errors.E(errors.Config, errors.Code(CodeNotConfigured), "Authentication service not configured")
	}

	user, err := s.verifier.VerifyIDToken(ctx, idToken)
	if err != nil {
		s.log.Warn("Firebase token rejected: %v", err)
		return nil, err
	}
	if user.PhoneNumber != phone {
		s.log.Warn("Firebase phone %s does not match request phone %s", maskContact(user.PhoneNumber), maskContact(phone))
		return nil, errors.E(errors.Unauthorized, errors.Code(CodePhoneMismatch), "Phone number does not match token")
	}

	uid := user.LocalID
	userID, created, err := s.store.FindOrCreateProfileByPhone(ctx, phone, &uid)
	if err != nil {
		s.log.Error("Failed to find or create profile for %s: %v", maskContact(phone), err)
		return nil, errors.E(errors.Internal, errors.Code(CodeStorageError), "Failed to create user", err)
	}
	token, err := s.sessions.Issue(userID)
	if err != nil {
		return nil, err
	}

	s.log.Info("Firebase login for user %s (new=%v)", userID, created)
	return &FirebaseLoginResult{
		IsNewUser:       created,
		UserID:          userID,
		VerificationURL: s.sessions.VerificationURL(token),
	}, nil
}
