package db

import (
	"context"
	"database/sql"

	"github.com/grumming/grumming-app-sub004/errors"
	"github.com/grumming/grumming-app-sub004/models"
)

// UpsertSettlement inserts or refreshes a settlement keyed by the gateway settlement id.
func (s *Store) UpsertSettlement(ctx context.Context, st models.Settlement) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settlements (razorpay_settlement_id, amount, fees, tax, utr, status, settled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (razorpay_settlement_id) DO UPDATE SET
			amount = EXCLUDED.amount,
			fees = EXCLUDED.fees,
			tax = EXCLUDED.tax,
			utr = EXCLUDED.utr,
			status = EXCLUDED.status,
			settled_at = EXCLUDED.settled_at,
			updated_at = NOW()`,
		st.RazorpaySettlementID, st.Amount, st.Fees, st.Tax, st.UTR, st.Status, st.SettledAt)
	if err != nil {
		return errors.E(errors.Internal, "error saving settlement", err)
	}
	return nil
}

func (s *Store) ListSettlements(ctx context.Context, limit int) ([]models.Settlement, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT razorpay_settlement_id, amount, fees, tax, COALESCE(utr, ''), COALESCE(status, ''), settled_at, created_at
		FROM settlements
		ORDER BY COALESCE(settled_at, created_at) DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, errors.E(errors.Internal, "error listing settlements", err)
	}
	defer rows.Close()

	var out []models.Settlement
	for rows.Next() {
		var st models.Settlement
		var settledAt sql.NullTime
		if err := rows.Scan(&st.RazorpaySettlementID, &st.Amount, &st.Fees, &st.Tax, &st.UTR, &st.Status, &settledAt, &st.CreatedAt); err != nil {
			return nil, errors.E(errors.Internal, "error scanning settlement", err)
		}
		if settledAt.Valid {
			st.SettledAt = &settledAt.Time
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
