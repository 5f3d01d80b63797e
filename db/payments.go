package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/grumming/grumming-app-sub004/errors"
	"github.com/grumming/grumming-app-sub004/models"
	"github.com/lib/pq"
)

const paymentColumns = `id, booking_id, user_id, salon_id, amount, currency, razorpay_order_id, razorpay_payment_id,
	status, platform_fee, salon_amount, settlement_id, settled_at, receipt_url, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPayment(row rowScanner) (*models.Payment, error) {
	var p models.Payment
	var bookingID, userID, salonID uuid.NullUUID
	var paymentID, settlementID, receiptURL sql.NullString
	var settledAt sql.NullTime
	var status string
	err := row.Scan(&p.ID, &bookingID, &userID, &salonID, &p.Amount, &p.Currency, &p.RazorpayOrderID, &paymentID,
		&status, &p.PlatformFee, &p.SalonAmount, &settlementID, &settledAt, &receiptURL, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.BookingID, p.UserID, p.SalonID = bookingID.UUID, userID.UUID, salonID.UUID
	p.Status = models.PaymentStatus(status)
	p.RazorpayPaymentID = nullString(paymentID)
	p.SettlementID = nullString(settlementID)
	p.ReceiptURL = nullString(receiptURL)
	if settledAt.Valid {
		p.SettledAt = &settledAt.Time
	}
	return &p, nil
}

// paymentStageSQL mirrors models.PaymentStatus.Stage for the given column.
func paymentStageSQL(col string) string {
	return `(CASE ` + col + ` WHEN 'settled' THEN 2 WHEN 'captured' THEN 1 ELSE 0 END)`
}

// UpsertPayment records a payment keyed by its gateway order id. A second call for the same
// order updates the amounts, split and payment id instead of inserting a duplicate. The status only
// moves forward: a late pending record never downgrades a captured or settled payment.
func (s *Store) UpsertPayment(ctx context.Context, p *models.Payment) (*models.Payment, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO payments (id, booking_id, user_id, salon_id, amount, currency, razorpay_order_id,
			razorpay_payment_id, status, platform_fee, salon_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (razorpay_order_id) DO UPDATE SET
			amount = EXCLUDED.amount,
			razorpay_payment_id = COALESCE(EXCLUDED.razorpay_payment_id, payments.razorpay_payment_id),
			status = CASE WHEN `+paymentStageSQL("payments.status")+` > `+paymentStageSQL("EXCLUDED.status")+`
				THEN payments.status ELSE EXCLUDED.status END,
			platform_fee = EXCLUDED.platform_fee,
			salon_amount = EXCLUDED.salon_amount,
			updated_at = NOW()
		RETURNING `+paymentColumns,
		p.ID, nullUUID(p.BookingID), nullUUID(p.UserID), nullUUID(p.SalonID), p.Amount, p.Currency,
		p.RazorpayOrderID, p.RazorpayPaymentID, string(p.Status), p.PlatformFee, p.SalonAmount)
	saved, err := scanPayment(row)
	if err != nil {
		return nil, errors.E(errors.Internal, errors.Code("storage_error"), "error saving payment", err)
	}
	return saved, nil
}

// CapturePayment stamps the gateway payment id on the order's payment row.
func (s *Store) CapturePayment(ctx context.Context, orderID, paymentID string) (*models.Payment, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE payments SET razorpay_payment_id = $2, status = $3, updated_at = NOW()
		WHERE razorpay_order_id = $1 AND status <> 'settled'
		RETURNING `+paymentColumns, orderID, paymentID, string(models.PaymentCaptured))
	p, err := scanPayment(row)
	if err == sql.ErrNoRows {
		return nil, errors.E(errors.NotFound, "payment not found for order", err)
	}
	if err != nil {
		return nil, errors.E(errors.Internal, "error capturing payment", err)
	}
	return p, nil
}

// SettlePayment marks the payment with the given gateway payment id as settled. It returns the
// number of rows that changed, so re-running a sync does not count the same payment twice.
func (s *Store) SettlePayment(ctx context.Context, paymentID, settlementID string, settledAt time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE payments SET status = $2, settlement_id = $3, settled_at = $4, updated_at = NOW()
		WHERE razorpay_payment_id = $1
		  AND (status <> $2 OR settlement_id IS DISTINCT FROM $3)`,
		paymentID, string(models.PaymentSettled), settlementID, settledAt)
	if err != nil {
		return 0, errors.E(errors.Internal, "error settling payment", err)
	}
	return res.RowsAffected()
}

func (s *Store) SetReceiptURL(ctx context.Context, orderID, url string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE payments SET receipt_url = $2, updated_at = NOW() WHERE razorpay_order_id = $1`, orderID, url)
	if err != nil {
		return errors.E(errors.Internal, "error saving receipt url", err)
	}
	return nil
}

// PaymentsForSettlements lists the payments that belong to any of the given settlement ids.
func (s *Store) PaymentsForSettlements(ctx context.Context, settlementIDs []string) ([]models.Payment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE settlement_id = ANY($1)
		ORDER BY settled_at DESC, created_at DESC`, pq.Array(settlementIDs))
	if err != nil {
		return nil, errors.E(errors.Internal, "error listing settled payments", err)
	}
	defer rows.Close()

	var out []models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, errors.E(errors.Internal, "error scanning payment", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func nullUUID(id uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: id, Valid: id != uuid.Nil}
}
