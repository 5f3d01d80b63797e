package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/grumming/grumming-app-sub004/errors"
	"github.com/grumming/grumming-app-sub004/logger"
	"github.com/grumming/grumming-app-sub004/models"
	"github.com/grumming/grumming-app-sub004/utils"
	"golang.org/x/crypto/bcrypt"
)

const (
	SMSOTPExpiry   = 5 * time.Minute
	EmailOTPExpiry = 10 * time.Minute

	SMSRateWindow   = 60 * time.Second
	SMSRateLimit    = 3
	AttemptLogTTL   = time.Hour
	MaxOTPGuesses   = 5
	CodeRateLimited = "rate_limited"
	CodeNotFound    = "not_found"
	CodeExpired     = "expired"
	CodeMismatch    = "mismatch"
	CodeTooMany     = "too_many_attempts"
)

type OTPStore interface {
	SaveOTP(ctx context.Context, otp *models.OTP) error
	LatestOTP(ctx context.Context, channel models.OTPChannel, contact string) (*models.OTP, error)
	IncrementOTPAttempts(ctx context.Context, id int64) (int, error)
	ConsumeOTP(ctx context.Context, id int64) error
	DeleteOTP(ctx context.Context, id int64) error
	CountOTPAttempts(ctx context.Context, phone string, since time.Time) (int, error)
	RecordOTPAttempt(ctx context.Context, a models.OTPAttempt) error
	CleanupOTP(ctx context.Context, attemptsBefore, now time.Time) (int64, int64, error)
	FindOrCreateProfileByPhone(ctx context.Context, phone string, firebaseUID *string) (uuid.UUID, bool, error)
	MarkEmailVerified(ctx context.Context, userID uuid.UUID, email string) error
}

// OTPService issues and checks one-time codes sent by SMS and email.
type OTPService struct {
	store    OTPStore
	sms      SMSSender
	mailer   Mailer
	sessions *SessionManager
	log      *logger.Logger

	now      func() time.Time
	generate func() (string, error)
	hashCost int
}

// NewOTPService wires the service. sms, mailer and sessions may be nil when not configured.
func NewOTPService(store OTPStore, sms SMSSender, mailer Mailer, sessions *SessionManager, log *logger.Logger) *OTPService {
	return &OTPService{
		store:    store,
		sms:      sms,
		mailer:   mailer,
		sessions: sessions,
		log:      orDefault(log),
		now:      time.Now,
		generate: generateOTP,
		hashCost: bcrypt.DefaultCost,
	}
}

// generateOTP creates a secure 6-digit code (100000 to 999999).
func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("crypto rand failed: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// SendSMSOTP sends a login code to phone. At most SMSRateLimit sends per phone are allowed
// within SMSRateWindow.
func (s *OTPService) SendSMSOTP(ctx context.Context, phone, ip string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return errors.E(errors.Invalid, errors.Code(CodeMissingFields), "Phone number is required")
	}
	if err := utils.ValidatePhone(phone); err != nil {
		return errors.E(errors.Invalid, errors.Code(CodeInvalidFormat), "Invalid phone number format. Use +91XXXXXXXXXX", err)
	}
	if s.sms == nil {
		return errors.E(errors.Config, errors.Code(CodeNotConfigured), "SMS service not configured")
	}

	now := s.now()
	sent, err := s.store.CountOTPAttempts(ctx, phone, now.Add(-SMSRateWindow))
	if err != nil {
		return err
	}
	if sent >= SMSRateLimit {
		s.log.Warn("OTP rate limit hit for %s from %s", maskContact(phone), ip)
		return errors.E(errors.RateLimited, errors.Code(CodeRateLimited), "Too many OTP requests. Please wait a minute and try again")
	}
	if err := s.store.RecordOTPAttempt(ctx, models.OTPAttempt{Phone: phone, IP: ip, AttemptedAt: now}); err != nil {
		return err
	}

	code, err := s.issue(ctx, models.OTPChannelSMS, phone, now.Add(SMSOTPExpiry))
	if err != nil {
		return err
	}

	body := fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", code, int(SMSOTPExpiry.Minutes()))
	if err := s.sms.SendSMS(ctx, phone, body); err != nil {
		return errors.E(errors.Upstream, errors.Code(CodeProviderError), "Failed to send OTP", err)
	}
	s.log.Info("SMS OTP sent to %s", maskContact(phone))
	return nil
}

type PhoneLoginResult struct {
	IsNewUser bool
	UserID    uuid.UUID
	Token     string
}

// VerifySMSOTP checks the code and signs the phone's owner in, creating the user on first login.
func (s *OTPService) VerifySMSOTP(ctx context.Context, phone, code string) (*PhoneLoginResult, error) {
	phone, code = strings.TrimSpace(phone), strings.TrimSpace(code)
	if phone == "" || code == "" {
		return nil, errors.E(errors.Invalid, errors.Code(CodeMissingFields), "Phone and OTP are required")
	}
	if err := utils.ValidatePhone(phone); err != nil {
		return nil, errors.E(errors.Invalid, errors.Code(CodeInvalidFormat), "Invalid phone number format. Use +91XXXXXXXXXX", err)
	}
	if err := s.verify(ctx, models.OTPChannelSMS, phone, code); err != nil {
		return nil, err
	}

	userID, created, err := s.store.FindOrCreateProfileByPhone(ctx, phone, nil)
	if err != nil {
		return nil, err
	}
	res := &PhoneLoginResult{IsNewUser: created, UserID: userID}
	if s.sessions != nil {
		if res.Token, err = s.sessions.Issue(userID); err != nil {
			return nil, err
		}
	}
	s.log.Info("Phone %s verified (user %s, new=%v)", maskContact(phone), userID, created)
	return res, nil
}

// SendEmailOTP sends an email verification code for the user's address.
func (s *OTPService) SendEmailOTP(ctx context.Context, userID, email string) error {
	email = utils.NormalizeEmail(email)
	if userID == "" || email == "" {
		return errors.E(errors.Invalid, errors.Code(CodeMissingFields), "user_id and email are required")
	}
	if _, err := uuid.Parse(userID); err != nil {
		return errors.E(errors.Invalid, errors.Code(CodeInvalidFormat), "Invalid user_id", err)
	}
	if err := utils.ValidateEmail(email); err != nil {
		return errors.E(errors.Invalid, errors.Code(CodeInvalidFormat), "Invalid email format", err)
	}
	if s.mailer == nil {
		return errors.E(errors.Config, errors.Code(CodeNotConfigured), "Email service not configured")
	}

	code, err := s.issue(ctx, models.OTPChannelEmail, email, s.now().Add(EmailOTPExpiry))
	if err != nil {
		return err
	}

	err = s.mailer.Send(ctx, EmailMessage{
		To:      email,
		Subject: "Your verification code",
		HTML:    otpEmailBody(code, int(EmailOTPExpiry.Minutes())),
	})
	if err != nil {
		return errors.E(errors.Upstream, errors.Code(CodeProviderError), "Failed to send verification email", err)
	}
	s.log.Info("Email OTP sent to %s", maskContact(email))
	return nil
}

// VerifyEmailOTP checks the code and records the address as verified on the user's profile.
func (s *OTPService) VerifyEmailOTP(ctx context.Context, userID, email, code string) error {
	email, code = utils.NormalizeEmail(email), strings.TrimSpace(code)
	if userID == "" || email == "" || code == "" {
		return errors.E(errors.Invalid, errors.Code(CodeMissingFields), "user_id, email and otp are required")
	}
	uid, err := uuid.Parse(userID)
	if err != nil {
		return errors.E(errors.Invalid, errors.Code(CodeInvalidFormat), "Invalid user_id", err)
	}
	if err := s.verify(ctx, models.OTPChannelEmail, email, code); err != nil {
		return err
	}
	if err := s.store.MarkEmailVerified(ctx, uid, email); err != nil {
		return err
	}
	s.log.Info("Email %s verified for user %s", maskContact(email), uid)
	return nil
}

// Cleanup removes send attempts older than AttemptLogTTL and expired codes.
func (s *OTPService) Cleanup(ctx context.Context) error {
	now := s.now()
	attempts, codes, err := s.store.CleanupOTP(ctx, now.Add(-AttemptLogTTL), now)
	if err != nil {
		return err
	}
	if attempts > 0 || codes > 0 {
		s.log.Debug("OTP cleanup removed %d attempts and %d expired codes", attempts, codes)
	}
	return nil
}

func (s *OTPService) issue(ctx context.Context, channel models.OTPChannel, contact string, expiresAt time.Time) (string, error) {
	code, err := s.generate()
	if err != nil {
		return "", errors.E(errors.Internal, "failed to generate OTP", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.hashCost)
	if err != nil {
		return "", errors.E(errors.Internal, "failed to hash OTP", err)
	}
	if err := s.store.SaveOTP(ctx, &models.OTP{
		Contact:   contact,
		Channel:   channel,
		CodeHash:  string(hash),
		ExpiresAt: expiresAt,
	}); err != nil {
		return "", err
	}
	return code, nil
}

// verify consumes the latest code for contact if it matches. Expired codes are deleted, and a
// code is deleted after MaxOTPGuesses wrong guesses.
func (s *OTPService) verify(ctx context.Context, channel models.OTPChannel, contact, code string) error {
	if err := utils.ValidateOTP(code); err != nil {
		return errors.E(errors.Invalid, errors.Code(CodeInvalidFormat), "OTP must be 6 digits", err)
	}

	otp, err := s.store.LatestOTP(ctx, channel, contact)
	if err != nil {
		if errors.KindOf(err) == errors.NotFound {
			return errors.E(errors.NotFound, errors.Code(CodeNotFound), "No OTP found. Please request a new one")
		}
		return err
	}

	if otp.Expired(s.now()) {
		if err := s.store.DeleteOTP(ctx, otp.ID); err != nil {
			s.log.Warn("Failed to delete expired OTP %d: %v", otp.ID, err)
		}
		return errors.E(errors.Invalid, errors.Code(CodeExpired), "OTP has expired. Please request a new one")
	}

	if bcrypt.CompareHashAndPassword([]byte(otp.CodeHash), []byte(code)) != nil {
		attempts, err := s.store.IncrementOTPAttempts(ctx, otp.ID)
		if err != nil {
			return err
		}
		if attempts >= MaxOTPGuesses {
			if err := s.store.DeleteOTP(ctx, otp.ID); err != nil {
				s.log.Warn("Failed to delete exhausted OTP %d: %v", otp.ID, err)
			}
			return errors.E(errors.RateLimited, errors.Code(CodeTooMany), "Too many incorrect attempts. Please request a new OTP")
		}
		return errors.E(errors.Invalid, errors.Code(CodeMismatch), "Invalid OTP")
	}

	return s.store.ConsumeOTP(ctx, otp.ID)
}

// maskContact keeps the last four characters of a phone or the domain of an email for logs.
func maskContact(contact string) string {
	if at := strings.LastIndex(contact, "@"); at > 0 {
		return "***" + contact[at:]
	}
	if len(contact) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(contact)-4) + contact[len(contact)-4:]
}
