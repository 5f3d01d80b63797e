package services

import (
	"context"
	"time"

	"github.com/grumming/grumming-app-sub004/errors"
	"github.com/grumming/grumming-app-sub004/logger"
	"github.com/grumming/grumming-app-sub004/models"
)

const (
	settlementPageSize  = 50
	settlementTxnsLimit = 100
)

type SettlementStore interface {
	UpsertSettlement(ctx context.Context, st models.Settlement) error
	SettlePayment(ctx context.Context, paymentID, settlementID string, settledAt time.Time) (int64, error)
}

type SyncResult struct {
	SyncedSettlements int   `json:"synced_settlements"`
	UpdatedPayments   int64 `json:"updated_payments"`
}

// SettlementService mirrors gateway settlements and marks their payments settled.
type SettlementService struct {
	store   SettlementStore
	gateway Gateway
	log     *logger.Logger
}

func NewSettlementService(store SettlementStore, gateway Gateway, log *logger.Logger) *SettlementService {
	return &SettlementService{store: store, gateway: gateway, log: orDefault(log)}
}

// Sync pulls recent settlements and reconciles local payments. Running it again on the same
// gateway data changes nothing.
func (s *SettlementService) Sync(ctx context.Context) (*SyncResult, error) {
	if s.gateway == nil {
		return nil, errors.E(errors.Config, errors.Code(CodeNotConfigured), "Payment gateway not configured")
	}

	settlements, err := s.gateway.ListSettlements(ctx, settlementPageSize)
	if err != nil {
		return nil, errors.E(errors.Upstream, errors.Code(CodeGatewayError), "Failed to fetch settlements", err)
	}

	result := &SyncResult{}
	for _, st := range settlements {
		if err := s.store.UpsertSettlement(ctx, st); err != nil {
			return result, err
		}
		result.SyncedSettlements++

		txns, err := s.gateway.SettlementTransactions(ctx, st, settlementTxnsLimit)
		if err != nil {
			s.log.Warn("Skipping transactions of settlement %s: %v", st.RazorpaySettlementID, err)
			continue
		}
		for _, tx := range txns {
			if tx.Type != "payment" || tx.EntityID == "" {
				continue
			}
			settledAt := nowUTC()
			switch {
			case tx.SettledAt != nil:
				settledAt = *tx.SettledAt
			case st.SettledAt != nil:
				settledAt = *st.SettledAt
			}
			n, err := s.store.SettlePayment(ctx, tx.EntityID, st.RazorpaySettlementID, settledAt)
			if err != nil {
				return result, err
			}
			result.UpdatedPayments += n
		}
	}

	s.log.Info("Settlement sync: %d settlements, %d payments updated", result.SyncedSettlements, result.UpdatedPayments)
	return result, nil
}
