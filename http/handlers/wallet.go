package handlers

import (
	"net/http"

	"github.com/grumming/grumming-app-sub004/http/response"
	"github.com/grumming/grumming-app-sub004/services"
	"github.com/shopspring/decimal"
)

// CreateWalletTopupOrder
// POST /create-wallet-topup-order
func (h *Handler) CreateWalletTopupOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount decimal.Decimal `json:"amount"`
		UserID string          `json:"user_id"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	order, err := h.Wallets.CreateTopupOrder(r.Context(), req.Amount, req.UserID)
	if err != nil {
		h.fail(w, err)
		return
	}
	response.SendJSON(w, http.StatusOK, order)
}

// VerifyWalletTopup
// POST /verify-wallet-topup
func (h *Handler) VerifyWalletTopup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderID   string          `json:"razorpay_order_id"`
		PaymentID string          `json:"razorpay_payment_id"`
		Signature string          `json:"razorpay_signature"`
		UserID    string          `json:"user_id"`
		Amount    decimal.Decimal `json:"amount"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.Wallets.VerifyTopup(r.Context(), services.VerifyTopupRequest{
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		Signature: req.Signature,
		UserID:    req.UserID,
		Amount:    req.Amount,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	response.SendJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"new_balance": res.NewBalance,
		"payment_id":  res.PaymentID,
	})
}
