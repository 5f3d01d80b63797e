package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/grumming/grumming-app-sub004/errors"
	"github.com/grumming/grumming-app-sub004/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTopupOrderBounds(t *testing.T) {
	store := newMemStore()
	gw := &fakeGateway{}
	svc := NewWalletService(store, gw, nil, testSecret, "INR", quietLog)
	user := store.addProfile("")

	for _, amount := range []int64{20, 15000, 49, 10001} {
		_, err := svc.CreateTopupOrder(context.Background(), decimal.NewFromInt(amount), user.String())
		assert.Equal(t, "amount_out_of_range", errors.CodeOf(err), "amount %d", amount)
	}
	assert.Zero(t, gw.orderCount())

	for _, amount := range []int64{50, 10000} {
		order, err := svc.CreateTopupOrder(context.Background(), decimal.NewFromInt(amount), user.String())
		require.NoError(t, err)
		assert.Equal(t, amount*100, order.Amount)
	}
}

func TestCreateTopupOrderUnknownUser(t *testing.T) {
	svc := NewWalletService(newMemStore(), &fakeGateway{}, nil, testSecret, "INR", quietLog)

	_, err := svc.CreateTopupOrder(context.Background(), decimal.NewFromInt(100), uuid.NewString())

	assert.Equal(t, errors.NotFound, errors.KindOf(err))
	assert.Equal(t, "unknown_user", errors.CodeOf(err))
}

func TestVerifyTopupCreditsExactlyOnce(t *testing.T) {
	store := newMemStore()
	svc := NewWalletService(store, &fakeGateway{}, nil, testSecret, "INR", quietLog)
	user := store.addProfile("")
	store.wallets[user] = decimal.NewFromInt(25)

	order, err := svc.CreateTopupOrder(context.Background(), decimal.NewFromInt(500), user.String())
	require.NoError(t, err)

	req := VerifyTopupRequest{
		OrderID:   order.OrderID,
		PaymentID: "pay_topup",
		Signature: SignPayment(order.OrderID, "pay_topup", testSecret),
		UserID:    user.String(),
		Amount:    decimal.NewFromInt(500),
	}
	res, err := svc.VerifyTopup(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "525", res.NewBalance.String())
	assert.Equal(t, "pay_topup", res.PaymentID)

	res, err = svc.VerifyTopup(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "525", res.NewBalance.String())

	require.Len(t, store.ledger, 1)
	tx := store.ledger[0]
	assert.Equal(t, "pay_topup", tx.ReferenceID)
	assert.Equal(t, models.WalletCredit, tx.Type)
	assert.Equal(t, models.WalletSourceManual, tx.Source)
	assert.Equal(t, models.TopupPaid, store.topups[order.OrderID].Status)
}

func TestVerifyTopupRejections(t *testing.T) {
	store := newMemStore()
	svc := NewWalletService(store, &fakeGateway{}, nil, testSecret, "INR", quietLog)
	user := store.addProfile("")
	order, err := svc.CreateTopupOrder(context.Background(), decimal.NewFromInt(100), user.String())
	require.NoError(t, err)
	sig := SignPayment(order.OrderID, "pay_1", testSecret)
	ctx := context.Background()

	_, err = svc.VerifyTopup(ctx, VerifyTopupRequest{OrderID: order.OrderID, PaymentID: "pay_1", Signature: "bad", UserID: user.String()})
	assert.Equal(t, CodeSignatureMismatch, errors.CodeOf(err))

	_, err = svc.VerifyTopup(ctx, VerifyTopupRequest{OrderID: order.OrderID, PaymentID: "pay_1", Signature: sig, UserID: uuid.NewString()})
	assert.Equal(t, "user_mismatch", errors.CodeOf(err))

	_, err = svc.VerifyTopup(ctx, VerifyTopupRequest{OrderID: order.OrderID, PaymentID: "pay_1", Signature: sig, UserID: user.String(), Amount: decimal.NewFromInt(1000)})
	assert.Equal(t, "amount_mismatch", errors.CodeOf(err))

	assert.Empty(t, store.ledger)
	assert.True(t, store.wallets[user].IsZero())
}
