package handlers

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/grumming/grumming-app-sub004/http/response"
	"github.com/grumming/grumming-app-sub004/logger"
	"github.com/grumming/grumming-app-sub004/models"
	"github.com/grumming/grumming-app-sub004/services"
	"github.com/grumming/grumming-app-sub004/services/kafka"
	"github.com/grumming/grumming-app-sub004/utils"
	"github.com/shopspring/decimal"
)

type PaymentAPI interface {
	CreateBookingOrder(ctx context.Context, req services.CreateOrderRequest) (*models.RazorpayOrder, error)
	VerifyBookingPayment(ctx context.Context, req services.VerifyPaymentRequest) (*services.VerifyPaymentResult, error)
	RecordPayment(ctx context.Context, req services.RecordPaymentRequest) (*models.Payment, error)
	HandleWebhook(ctx context.Context, body []byte, signature string) (*services.WebhookResult, error)
}

type WalletAPI interface {
	CreateTopupOrder(ctx context.Context, amount decimal.Decimal, userID string) (*models.RazorpayOrder, error)
	VerifyTopup(ctx context.Context, req services.VerifyTopupRequest) (*services.TopupResult, error)
}

type OTPAPI interface {
	SendSMSOTP(ctx context.Context, phone, ip string) error
	VerifySMSOTP(ctx context.Context, phone, code string) (*services.PhoneLoginResult, error)
	SendEmailOTP(ctx context.Context, userID, email string) error
	VerifyEmailOTP(ctx context.Context, userID, email, code string) error
}

type GeoAPI interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) (*services.ReverseGeocodeResult, error)
	Autocomplete(ctx context.Context, query, country string, limit int) (*services.AutocompleteResult, error)
}

type SettlementAPI interface {
	Sync(ctx context.Context) (*services.SyncResult, error)
}

type ReportAPI interface {
	SettlementReport(ctx context.Context, limit int) ([]byte, error)
}

type AuthAPI interface {
	FirebaseLogin(ctx context.Context, idToken, phone string) (*services.FirebaseLoginResult, error)
}

type DLQAPI interface {
	Unresolved(ctx context.Context, limit int) ([]models.DLQMessage, error)
	Stats(ctx context.Context) (models.DLQStats, error)
	Resolve(ctx context.Context, messageID, notes string) error
	RetryOne(ctx context.Context, messageID string, retry kafka.RetryFunc) (bool, error)
}

// HealthChecker reports whether a backing dependency is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Handler serves the HTTP API. Every field is required except DLQRetry.
type Handler struct {
	Payments    PaymentAPI
	Wallets     WalletAPI
	OTP         OTPAPI
	Geo         GeoAPI
	Settlements SettlementAPI
	Reports     ReportAPI
	Auth        AuthAPI
	DLQ         DLQAPI
	DLQRetry    kafka.RetryFunc
	Health      HealthChecker
	Log         *logger.Logger
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	response.FromError(w, h.Log, err)
}

// decode reads the JSON body into v and answers 400 on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := utils.DecodeJSONRequest(r, v); err != nil {
		h.Log.Warn("Invalid request body on %s: %v", r.URL.Path, err)
		response.ErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// clientIP prefers the first X-Forwarded-For hop, then the connection address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
