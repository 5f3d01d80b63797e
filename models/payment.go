package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentCaptured PaymentStatus = "captured"
	PaymentSettled  PaymentStatus = "settled"
)

// Stage orders statuses along the payment lifecycle. A stored status never moves to a lower stage.
func (s PaymentStatus) Stage() int {
	switch s {
	case PaymentCaptured:
		return 1
	case PaymentSettled:
		return 2
	default:
		return 0
	}
}

// Payment is the local record of a gateway order and its capture.
type Payment struct {
	ID                uuid.UUID       `json:"id"`
	BookingID         uuid.UUID       `json:"booking_id"`
	UserID            uuid.UUID       `json:"user_id"`
	SalonID           uuid.UUID       `json:"salon_id"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	RazorpayOrderID   string          `json:"razorpay_order_id"`
	RazorpayPaymentID *string         `json:"razorpay_payment_id,omitempty"`
	Status            PaymentStatus   `json:"status"`
	PlatformFee       decimal.Decimal `json:"platform_fee"`
	SalonAmount       decimal.Decimal `json:"salon_amount"`
	SettlementID      *string         `json:"settlement_id,omitempty"`
	SettledAt         *time.Time      `json:"settled_at,omitempty"`
	ReceiptURL        *string         `json:"receipt_url,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// RazorpayOrder is the gateway order as returned to the checkout client.
type RazorpayOrder struct {
	OrderID  string `json:"orderId"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	KeyID    string `json:"keyId"`
}
