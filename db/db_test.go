package db

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/grumming/grumming-app-sub004/errors"
	"github.com/grumming/grumming-app-sub004/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return New(conn), mock
}

func creditTx(userID uuid.UUID) models.WalletTransaction {
	return models.WalletTransaction{
		UserID:      userID,
		Amount:      decimal.NewFromInt(500),
		Type:        models.WalletCredit,
		Source:      models.WalletSourceManual,
		ReferenceID: "pay_topup_1",
		Description: "Wallet top-up",
	}
}

func TestCreditWalletFirstCredit(t *testing.T) {
	store, mock := newMockStore(t)
	userID := uuid.New()
	ledgerID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (reference_id) DO NOTHING")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(ledgerID.String()))
	mock.ExpectQuery(regexp.QuoteMeta("balance = wallets.balance + EXCLUDED.balance")).
		WithArgs(userID.String(), "500").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("525"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE wallet_transactions SET balance_after")).
		WithArgs(ledgerID.String(), "525").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE wallet_topups SET status")).
		WithArgs("order_topup_1", string(models.TopupPaid), "pay_topup_1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	balance, credited, err := store.CreditWallet(context.Background(), creditTx(userID), "order_topup_1")

	require.NoError(t, err)
	assert.True(t, credited)
	assert.Equal(t, "525", balance.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreditWalletRepeatSkipsBalanceUpdate(t *testing.T) {
	store, mock := newMockStore(t)
	userID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (reference_id) DO NOTHING")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT balance FROM wallets WHERE user_id = $1")).
		WithArgs(userID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("525"))
	mock.ExpectCommit()

	balance, credited, err := store.CreditWallet(context.Background(), creditTx(userID), "order_topup_1")

	require.NoError(t, err)
	assert.False(t, credited)
	assert.Equal(t, "525", balance.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreditWalletRollsBackOnFailure(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (reference_id) DO NOTHING")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.NewString()))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO wallets")).
		WillReturnError(errors.NewError("deadlock detected"))
	mock.ExpectRollback()

	_, credited, err := store.CreditWallet(context.Background(), creditTx(uuid.New()), "order_topup_1")

	assert.False(t, credited)
	assert.Equal(t, errors.Internal, errors.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmBookingIsConditional(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()
	stmt := regexp.QuoteMeta("WHERE id = $1 AND status <> $2")

	mock.ExpectExec(stmt).WithArgs(id.String(), string(models.BookingConfirmed)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(stmt).WithArgs(id.String(), string(models.BookingConfirmed)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err := store.ConfirmBooking(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = store.ConfirmBooking(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func paymentRow(status models.PaymentStatus, paymentID interface{}) *sqlmock.Rows {
	now := time.Date(2026, 10, 1, 10, 0, 0, 0, time.UTC)
	return sqlmock.NewRows([]string{"id", "booking_id", "user_id", "salon_id", "amount", "currency",
		"razorpay_order_id", "razorpay_payment_id", "status", "platform_fee", "salon_amount",
		"settlement_id", "settled_at", "receipt_url", "created_at", "updated_at"}).
		AddRow(uuid.NewString(), uuid.NewString(), uuid.NewString(), nil, "500", "INR",
			"order_1", paymentID, string(status), "50", "450", nil, nil, nil, now, now)
}

func TestUpsertPaymentKeepsLaterStatus(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (razorpay_order_id) DO UPDATE SET")+
		"(?s).*"+regexp.QuoteMeta("CASE WHEN (CASE payments.status WHEN 'settled' THEN 2 WHEN 'captured' THEN 1 ELSE 0 END) > (CASE EXCLUDED.status")).
		WillReturnRows(paymentRow(models.PaymentCaptured, "pay_1"))

	p, err := store.UpsertPayment(context.Background(), &models.Payment{
		BookingID:       uuid.New(),
		Amount:          decimal.NewFromInt(500),
		Currency:        "INR",
		RazorpayOrderID: "order_1",
		Status:          models.PaymentPending,
		PlatformFee:     decimal.NewFromInt(50),
		SalonAmount:     decimal.NewFromInt(450),
	})

	require.NoError(t, err)
	assert.Equal(t, models.PaymentCaptured, p.Status)
	require.NotNil(t, p.RazorpayPaymentID)
	assert.Equal(t, "pay_1", *p.RazorpayPaymentID)
	assert.Equal(t, uuid.Nil, p.SalonID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettlePaymentCountsOnlyChanges(t *testing.T) {
	store, mock := newMockStore(t)
	settledAt := time.Date(2026, 10, 2, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("settlement_id IS DISTINCT FROM $3")).
		WithArgs("pay_1", string(models.PaymentSettled), "setl_A", settledAt).
		WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := store.SettlePayment(context.Background(), "pay_1", "setl_A", settledAt)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSettlementByGatewayID(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (razorpay_settlement_id) DO UPDATE SET")).
		WithArgs("setl_A", "99.5", "1.2", "0.18", "UTR123", "processed", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.UpsertSettlement(context.Background(), models.Settlement{
		RazorpaySettlementID: "setl_A",
		Amount:               decimal.RequireFromString("99.5"),
		Fees:                 decimal.RequireFromString("1.2"),
		Tax:                  decimal.RequireFromString("0.18"),
		UTR:                  "UTR123",
		Status:               "processed",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
