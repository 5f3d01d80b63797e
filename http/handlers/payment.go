package handlers

import (
	"io"
	"net/http"

	"github.com/grumming/grumming-app-sub004/http/response"
	"github.com/grumming/grumming-app-sub004/services"
	"github.com/shopspring/decimal"
)

// CreateRazorpayOrder creates a gateway order for a booking.
// POST /create-razorpay-order
func (h *Handler) CreateRazorpayOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount        decimal.Decimal        `json:"amount"`
		Currency      string                 `json:"currency"`
		Receipt       string                 `json:"receipt"`
		Notes         map[string]interface{} `json:"notes"`
		BookingID     string                 `json:"booking_id"`
		PenaltyAmount decimal.Decimal        `json:"penalty_amount"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	order, err := h.Payments.CreateBookingOrder(r.Context(), services.CreateOrderRequest{
		Amount:        req.Amount,
		Currency:      req.Currency,
		Receipt:       req.Receipt,
		Notes:         req.Notes,
		BookingID:     req.BookingID,
		PenaltyAmount: req.PenaltyAmount,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	response.SendJSON(w, http.StatusOK, order)
}

// VerifyRazorpayPayment checks the checkout signature and confirms the booking.
// POST /verify-razorpay-payment
func (h *Handler) VerifyRazorpayPayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderID   string `json:"razorpay_order_id"`
		PaymentID string `json:"razorpay_payment_id"`
		Signature string `json:"razorpay_signature"`
		BookingID string `json:"booking_id"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.Payments.VerifyBookingPayment(r.Context(), services.VerifyPaymentRequest{
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		Signature: req.Signature,
		BookingID: req.BookingID,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	response.SendJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"message":    "Payment verified successfully",
		"payment_id": res.PaymentID,
	})
}

// ProcessPayment records a payment with its platform fee split.
// POST /process-payment
func (h *Handler) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BookingID       string           `json:"booking_id"`
		UserID          string           `json:"user_id"`
		SalonID         string           `json:"salon_id"`
		Amount          decimal.Decimal  `json:"amount"`
		RazorpayOrderID string           `json:"razorpay_order_id"`
		PaymentID       string           `json:"razorpay_payment_id"`
		FeePercentage   *decimal.Decimal `json:"fee_percentage"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	p, err := h.Payments.RecordPayment(r.Context(), services.RecordPaymentRequest{
		BookingID:       req.BookingID,
		UserID:          req.UserID,
		SalonID:         req.SalonID,
		Amount:          req.Amount,
		RazorpayOrderID: req.RazorpayOrderID,
		PaymentID:       req.PaymentID,
		FeePercentage:   req.FeePercentage,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	response.SendJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"payment_id":   p.ID,
		"platform_fee": p.PlatformFee,
		"salon_amount": p.SalonAmount,
	})
}

// RazorpayWebhook applies signed gateway webhooks.
// POST /razorpay-webhook
func (h *Handler) RazorpayWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		response.ErrorResponse(w, http.StatusBadRequest, "Cannot read request body")
		return
	}

	res, err := h.Payments.HandleWebhook(r.Context(), body, r.Header.Get("X-Razorpay-Signature"))
	if err != nil {
		h.fail(w, err)
		return
	}
	response.SendJSON(w, http.StatusOK, res)
}
