package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventPaymentOrderCreated = "payment.order_created"
	EventPaymentVerified     = "payment.verified"
	EventWalletCredited      = "wallet.credited"
	EventReceiptRequested    = "receipt.requested"
)

const (
	TopicPayments = "payments"
	TopicReceipts = "receipts"
)

// Event is the envelope published to Kafka.
type Event struct {
	Event string      `json:"event"`
	Key   string      `json:"-"`
	Data  interface{} `json:"data"`
	TS    time.Time   `json:"ts"`
}

// ReceiptRequest carries everything needed to render and email a booking receipt.
type ReceiptRequest struct {
	BookingID         uuid.UUID       `json:"booking_id"`
	UserID            uuid.UUID       `json:"user_id"`
	Email             string          `json:"email"`
	ServiceName       string          `json:"service_name"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	RazorpayOrderID   string          `json:"razorpay_order_id"`
	RazorpayPaymentID string          `json:"razorpay_payment_id"`
	PaidAt            time.Time       `json:"paid_at"`
}
