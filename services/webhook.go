package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/grumming/grumming-app-sub004/errors"
	"github.com/grumming/grumming-app-sub004/models"
)

var nowUTC = func() time.Time { return time.Now().UTC() }

// RazorpayWebhookPayload is the envelope Razorpay posts to the webhook URL.
type RazorpayWebhookPayload struct {
	ID        string   `json:"id"`
	Event     string   `json:"event"`
	CreatedAt int64    `json:"created_at"`
	Contains  []string `json:"contains"`
	Payload   struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
				Amount  int64  `json:"amount"`
				Status  string `json:"status"`
				Error   struct {
					Code        string `json:"code"`
					Description string `json:"description"`
				} `json:"error"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

type WebhookResult struct {
	Event     string `json:"event"`
	Status    string `json:"status"`
	OrderID   string `json:"order_id,omitempty"`
	PaymentID string `json:"payment_id,omitempty"`
}

// HandleWebhook applies a signed gateway webhook. Captures confirm the booking the same way a
// client-side verification does, so whichever arrives second is a no-op.
func (s *PaymentService) HandleWebhook(ctx context.Context, body []byte, signature string) (*WebhookResult, error) {
	if s.cfg.WebhookSecret == "" {
		return nil, errors.E(errors.Config, errors.Code(CodeNotConfigured), "Webhook secret not configured")
	}
	if !VerifyWebhookSignature(body, signature, s.cfg.WebhookSecret) {
		return nil, errors.E(errors.Unauthorized, errors.Code(CodeSignatureMismatch), "Invalid webhook signature")
	}

	var payload RazorpayWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, errors.E(errors.Invalid, errors.Code(CodeInvalidFormat), "Invalid payload format", err)
	}

	entity := payload.Payload.Payment.Entity
	result := &WebhookResult{Event: payload.Event, Status: "acknowledged", OrderID: entity.OrderID, PaymentID: entity.ID}
	s.log.Info("[WEBHOOK] Received: %s", payload.Event)

	switch payload.Event {
	case "payment.captured", "order.paid":
		if entity.ID == "" || entity.OrderID == "" {
			return nil, errors.E(errors.Invalid, errors.Code(CodeMissingFields), "Missing payment_id or order_id")
		}
		payment, err := s.store.CapturePayment(ctx, entity.OrderID, entity.ID)
		if errors.KindOf(err) == errors.NotFound {
			s.log.Warn("[WEBHOOK] No local payment for order %s", entity.OrderID)
			return result, nil
		}
		if err != nil {
			return nil, err
		}
		if payment.BookingID != uuid.Nil {
			if _, err := s.confirm(ctx, payment.BookingID, payment, entity.OrderID, entity.ID); err != nil {
				return nil, err
			}
		}
		result.Status = "processed"

	case "payment.failed":
		if entity.OrderID == "" {
			return nil, errors.E(errors.Invalid, errors.Code(CodeMissingFields), "Missing order_id")
		}
		if err := s.store.FailBookingPayment(ctx, entity.OrderID); err != nil {
			return nil, err
		}
		s.log.Info("[WEBHOOK] Payment failed for order %s: %s %s", entity.OrderID, entity.Error.Code, entity.Error.Description)
		result.Status = "processed"

	default:
		s.log.Debug("[WEBHOOK] Unhandled event type: %s", payload.Event)
	}

	publishEvent(ctx, s.events, s.log, models.TopicPayments, "order-"+entity.OrderID, "webhook."+payload.Event, result)
	return result, nil
}
