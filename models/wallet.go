package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Wallet struct {
	UserID      uuid.UUID       `json:"user_id"`
	Balance     decimal.Decimal `json:"balance"`
	TotalEarned decimal.Decimal `json:"total_earned"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type WalletTransactionType string

const (
	WalletCredit WalletTransactionType = "credit"
	WalletDebit  WalletTransactionType = "debit"
)

const WalletSourceManual = "manual"

// WalletTransaction is an immutable ledger entry. ReferenceID is unique, so a gateway payment credits a wallet at most once.
type WalletTransaction struct {
	ID           uuid.UUID             `json:"id"`
	UserID       uuid.UUID             `json:"user_id"`
	Amount       decimal.Decimal       `json:"amount"`
	Type         WalletTransactionType `json:"type"`
	Source       string                `json:"source"`
	ReferenceID  string                `json:"reference_id"`
	Description  string                `json:"description"`
	BalanceAfter decimal.Decimal       `json:"balance_after"`
	CreatedAt    time.Time             `json:"created_at"`
}

type TopupStatus string

const (
	TopupPending TopupStatus = "pending"
	TopupPaid    TopupStatus = "paid"
)

// WalletTopup remembers what a top-up order was created for.
type WalletTopup struct {
	RazorpayOrderID   string          `json:"razorpay_order_id"`
	UserID            uuid.UUID       `json:"user_id"`
	Amount            decimal.Decimal `json:"amount"`
	Status            TopupStatus     `json:"status"`
	RazorpayPaymentID *string         `json:"razorpay_payment_id,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}
