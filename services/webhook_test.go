package services

import (
	"context"
	"testing"

	"github.com/grumming/grumming-app-sub004/errors"
	"github.com/grumming/grumming-app-sub004/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func webhookBody(event, orderID, paymentID string) []byte {
	return []byte(`{"entity":"event","event":"` + event + `","contains":["payment"],"payload":{"payment":{"entity":{"id":"` +
		paymentID + `","order_id":"` + orderID + `","amount":60000,"status":"captured"}}}}`)
}

func TestWebhookCaptureConfirmsBooking(t *testing.T) {
	store := newMemStore()
	receipts := &recordingDispatcher{}
	svc := newTestPaymentService(store, &fakeGateway{}, receipts)
	b := store.addBooking("600", models.BookingPendingPayment)
	email := "w@example.com"
	store.profiles[b.UserID] = &models.Profile{ID: b.UserID, Email: &email}

	order, err := svc.CreateBookingOrder(context.Background(), CreateOrderRequest{BookingID: b.ID.String()})
	require.NoError(t, err)

	body := webhookBody("payment.captured", order.OrderID, "pay_w1")
	res, err := svc.HandleWebhook(context.Background(), body, sign(body, "whsec"))
	require.NoError(t, err)
	assert.Equal(t, "processed", res.Status)
	assert.Equal(t, models.BookingConfirmed, store.bookings[b.ID].Status)
	assert.Equal(t, 1, receipts.count())

	// A client-side verification arriving later does not send a second receipt.
	vr, err := svc.VerifyBookingPayment(context.Background(), VerifyPaymentRequest{
		OrderID: order.OrderID, PaymentID: "pay_w1", Signature: SignPayment(order.OrderID, "pay_w1", testSecret),
	})
	require.NoError(t, err)
	assert.False(t, vr.Confirmed)
	assert.Equal(t, 1, receipts.count())
}

func TestWebhookPaymentFailed(t *testing.T) {
	store := newMemStore()
	svc := newTestPaymentService(store, &fakeGateway{}, nil)
	b := store.addBooking("600", models.BookingPendingPayment)
	order, err := svc.CreateBookingOrder(context.Background(), CreateOrderRequest{BookingID: b.ID.String()})
	require.NoError(t, err)

	body := webhookBody("payment.failed", order.OrderID, "pay_f")
	_, err = svc.HandleWebhook(context.Background(), body, sign(body, "whsec"))
	require.NoError(t, err)
	assert.Equal(t, models.BookingPaymentFailed, store.bookings[b.ID].Status)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	svc := newTestPaymentService(newMemStore(), nil, nil)
	body := webhookBody("payment.captured", "order_1", "pay_1")

	_, err := svc.HandleWebhook(context.Background(), body, sign(body, "wrong"))
	assert.Equal(t, CodeSignatureMismatch, errors.CodeOf(err))
}

func TestWebhookUnknownOrderIsAcknowledged(t *testing.T) {
	svc := newTestPaymentService(newMemStore(), nil, nil)
	body := webhookBody("payment.captured", "order_missing", "pay_1")

	res, err := svc.HandleWebhook(context.Background(), body, sign(body, "whsec"))
	require.NoError(t, err)
	assert.Equal(t, "acknowledged", res.Status)
}
