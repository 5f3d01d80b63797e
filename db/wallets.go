package db

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/grumming/grumming-app-sub004/errors"
	"github.com/grumming/grumming-app-sub004/models"
	"github.com/shopspring/decimal"
)

func (s *Store) CreateTopup(ctx context.Context, t *models.WalletTopup) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO wallet_topups (razorpay_order_id, user_id, amount, status)
		VALUES ($1, $2, $3, $4)`, t.RazorpayOrderID, t.UserID, t.Amount, string(models.TopupPending))
	if err != nil {
		return errors.E(errors.Internal, errors.Code("storage_error"), "error saving top-up order", err)
	}
	return nil
}

func (s *Store) GetTopup(ctx context.Context, orderID string) (*models.WalletTopup, error) {
	var t models.WalletTopup
	var status string
	var paymentID sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT razorpay_order_id, user_id, amount, status, razorpay_payment_id, created_at
		FROM wallet_topups WHERE razorpay_order_id = $1`, orderID).
		Scan(&t.RazorpayOrderID, &t.UserID, &t.Amount, &status, &paymentID, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.E(errors.NotFound, errors.Code("not_found"), "top-up order not found", err)
	}
	if err != nil {
		return nil, errors.E(errors.Internal, "error fetching top-up order", err)
	}
	t.Status = models.TopupStatus(status)
	t.RazorpayPaymentID = nullString(paymentID)
	return &t, nil
}

// CreditWallet credits amount to the user's wallet for a gateway payment in one transaction.
// The ledger row is written first and is unique on the payment id, so a repeated credit for the
// same payment changes nothing and reports credited=false with the current balance.
func (s *Store) CreditWallet(ctx context.Context, tx models.WalletTransaction, orderID string) (balance decimal.Decimal, credited bool, err error) {
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	err = s.withTx(ctx, func(t *sql.Tx) error {
		var ledgerID uuid.UUID
		err := t.QueryRowContext(ctx, `
			INSERT INTO wallet_transactions (id, user_id, amount, type, source, reference_id, description, balance_after)
			VALUES ($1, $2, $3, $4, $5, $6, $7, 0)
			ON CONFLICT (reference_id) DO NOTHING
			RETURNING id`,
			tx.ID, tx.UserID, tx.Amount, string(tx.Type), tx.Source, tx.ReferenceID, tx.Description).Scan(&ledgerID)
		if err == sql.ErrNoRows {
			return t.QueryRowContext(ctx, `SELECT balance FROM wallets WHERE user_id = $1`, tx.UserID).Scan(&balance)
		}
		if err != nil {
			return err
		}

		if err := t.QueryRowContext(ctx, `
			INSERT INTO wallets (user_id, balance, total_earned) VALUES ($1, $2, $2)
			ON CONFLICT (user_id) DO UPDATE SET
				balance = wallets.balance + EXCLUDED.balance,
				total_earned = wallets.total_earned + EXCLUDED.total_earned,
				updated_at = NOW()
			RETURNING balance`, tx.UserID, tx.Amount).Scan(&balance); err != nil {
			return err
		}

		if _, err := t.ExecContext(ctx, `
			UPDATE wallet_transactions SET balance_after = $2 WHERE id = $1`, ledgerID, balance); err != nil {
			return err
		}
		if _, err := t.ExecContext(ctx, `
			UPDATE wallet_topups SET status = $2, razorpay_payment_id = $3, updated_at = NOW()
			WHERE razorpay_order_id = $1`, orderID, string(models.TopupPaid), tx.ReferenceID); err != nil {
			return err
		}
		credited = true
		return nil
	})
	if err != nil {
		return decimal.Zero, false, errors.E(errors.Internal, errors.Code("storage_error"), "error crediting wallet", err)
	}
	return balance, credited, nil
}

func (s *Store) GetWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	var w models.Wallet
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, balance, total_earned, created_at, updated_at FROM wallets WHERE user_id = $1`, userID).
		Scan(&w.UserID, &w.Balance, &w.TotalEarned, &w.CreatedAt, &w.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.E(errors.NotFound, "wallet not found", err)
	}
	if err != nil {
		return nil, errors.E(errors.Internal, "error fetching wallet", err)
	}
	return &w, nil
}
