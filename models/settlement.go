package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Settlement mirrors a gateway settlement batch. Amounts are in currency units.
type Settlement struct {
	RazorpaySettlementID string          `json:"razorpay_settlement_id"`
	Amount               decimal.Decimal `json:"amount"`
	Fees                 decimal.Decimal `json:"fees"`
	Tax                  decimal.Decimal `json:"tax"`
	UTR                  string          `json:"utr"`
	Status               string          `json:"status"`
	SettledAt            *time.Time      `json:"settled_at,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
}

// SettlementTransaction is one entry of a settlement's recon report.
type SettlementTransaction struct {
	EntityID     string
	Type         string
	SettlementID string
	Amount       decimal.Decimal
	SettledAt    *time.Time
}
