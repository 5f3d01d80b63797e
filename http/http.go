package http

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/grumming/grumming-app-sub004/http/handlers"
	"github.com/grumming/grumming-app-sub004/http/middleware"
	"github.com/grumming/grumming-app-sub004/logger"
)

// NewRouter configures all HTTP routes and middleware
func NewRouter(h *handlers.Handler, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	post := func(path string, fn http.HandlerFunc) {
		r.HandleFunc(path, fn).Methods(http.MethodPost, http.MethodOptions)
	}
	get := func(path string, fn http.HandlerFunc) {
		r.HandleFunc(path, fn).Methods(http.MethodGet, http.MethodOptions)
	}

	// Booking payments
	post("/create-razorpay-order", h.CreateRazorpayOrder)
	post("/verify-razorpay-payment", h.VerifyRazorpayPayment)
	post("/process-payment", h.ProcessPayment)
	post("/razorpay-webhook", h.RazorpayWebhook)

	// Wallet
	post("/create-wallet-topup-order", h.CreateWalletTopupOrder)
	post("/verify-wallet-topup", h.VerifyWalletTopup)

	// OTP and sign-in
	post("/send-sms-otp", h.SendSMSOTP)
	post("/verify-sms-otp", h.VerifySMSOTP)
	post("/send-email-otp", h.SendEmailOTP)
	post("/verify-email-otp", h.VerifyEmailOTP)
	post("/firebase-auth", h.FirebaseAuth)

	// Maps
	post("/reverse-geocode", h.ReverseGeocode)
	post("/places-autocomplete", h.PlacesAutocomplete)

	// Settlements
	post("/sync-settlements", h.SyncSettlements)
	get("/settlements/report.xlsx", h.SettlementReport)

	// DLQ Management APIs
	get("/api/dlq/messages", h.GetDLQMessages)
	post("/api/dlq/messages/{id}/retry", h.RetryDLQMessage)
	post("/api/dlq/messages/{id}/resolve", h.ResolveDLQMessage)
	get("/api/dlq/stats", h.GetDLQStats)

	get("/healthz", h.Healthz)

	r.Use(middleware.RequestLogger(log), middleware.EnableCORS)
	return r
}
