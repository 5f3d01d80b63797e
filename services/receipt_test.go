package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/grumming/grumming-app-sub004/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUploader struct {
	names []string
	err   error
}

func (u *fakeUploader) Upload(_ context.Context, name string, data []byte) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	u.names = append(u.names, name)
	return "https://cdn.test/" + name + ".pdf", nil
}

func sampleReceipt() models.ReceiptRequest {
	return models.ReceiptRequest{
		BookingID:         uuid.MustParse("5f0c3a9e-1111-4222-8333-444455556666"),
		Email:             "guest@example.com",
		ServiceName:       "Beard trim",
		Amount:            decimal.RequireFromString("600"),
		Currency:          "INR",
		RazorpayOrderID:   "order_1",
		RazorpayPaymentID: "pay_1",
		PaidAt:            time.Date(2026, 4, 2, 12, 0, 0, 0, time.UTC),
	}
}

func TestRenderReceiptPDF(t *testing.T) {
	svc := NewReceiptService(nil, nil, nil, quietLog)

	pdf, err := svc.Render(sampleReceipt())

	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-")))
	assert.Equal(t, "INR 600.00", formatAmount(sampleReceipt()))
	assert.Equal(t, "5f0c3a9e", bookingRef(sampleReceipt()))
}

func TestSendReceiptUploadsAndEmails(t *testing.T) {
	store := newMemStore()
	mailer := &recordingMailer{}
	up := &fakeUploader{}
	svc := NewReceiptService(mailer, up, store, quietLog)

	require.NoError(t, svc.Send(context.Background(), sampleReceipt()))

	require.Len(t, mailer.sent, 1)
	msg := mailer.sent[0]
	assert.Equal(t, "guest@example.com", msg.To)
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "receipt_5f0c3a9e.pdf", msg.Attachments[0].Filename)
	assert.Contains(t, msg.HTML, "https://cdn.test/receipt_5f0c3a9e.pdf")
	assert.Equal(t, "https://cdn.test/receipt_5f0c3a9e.pdf", store.receiptURLs["order_1"])
}

func TestSendReceiptSurvivesUploadFailure(t *testing.T) {
	mailer := &recordingMailer{}
	svc := NewReceiptService(mailer, &fakeUploader{err: fmt.Errorf("cloud down")}, nil, quietLog)

	require.NoError(t, svc.Send(context.Background(), sampleReceipt()))
	assert.Len(t, mailer.sent, 1)
}

func TestSendReceiptWithoutMailer(t *testing.T) {
	svc := NewReceiptService(nil, nil, nil, quietLog)
	assert.Error(t, svc.Send(context.Background(), sampleReceipt()))
}

func TestHandleReceiptEvent(t *testing.T) {
	mailer := &recordingMailer{}
	svc := NewReceiptService(mailer, nil, nil, quietLog)

	data, err := json.Marshal(sampleReceipt())
	require.NoError(t, err)
	require.NoError(t, svc.HandleReceiptEvent(context.Background(), data))
	assert.Len(t, mailer.sent, 1)

	assert.Error(t, svc.HandleReceiptEvent(context.Background(), json.RawMessage(`{"booking_id":"`+uuid.NewString()+`"}`)))
	assert.Error(t, svc.HandleReceiptEvent(context.Background(), json.RawMessage(`not json`)))
}
