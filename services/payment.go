package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/grumming/grumming-app-sub004/errors"
	"github.com/grumming/grumming-app-sub004/logger"
	"github.com/grumming/grumming-app-sub004/models"
	"github.com/shopspring/decimal"
)

// Reason codes returned to clients alongside the error message.
const (
	CodeMissingFields     = "missing_fields"
	CodeInvalidFormat     = "invalid_format"
	CodeInvalidBooking    = "invalid_booking"
	CodeNotPayable        = "not_payable"
	CodeNotConfigured     = "not_configured"
	CodeSignatureMismatch = "signature_mismatch"
	CodeProviderError     = "provider_error"
	CodeStorageError      = "storage_error"
	CodeGatewayError      = "gateway_error"
	CodeBookingMismatch   = "booking_mismatch"
)

// PaymentStore is the persistence PaymentService needs.
type PaymentStore interface {
	GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	ConfirmBooking(ctx context.Context, id uuid.UUID) (bool, error)
	FailBookingPayment(ctx context.Context, orderID string) error
	UpsertPayment(ctx context.Context, p *models.Payment) (*models.Payment, error)
	CapturePayment(ctx context.Context, orderID, paymentID string) (*models.Payment, error)
	GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error)
}

type PaymentConfig struct {
	KeySecret     string
	WebhookSecret string
	Currency      string
	FeePercentage decimal.Decimal
}

// PaymentService creates and verifies booking checkouts.
type PaymentService struct {
	store    PaymentStore
	gateway  Gateway
	events   EventPublisher
	receipts ReceiptDispatcher
	cfg      PaymentConfig
	log      *logger.Logger
}

// NewPaymentService wires the service. gateway may be nil when the gateway is not configured.
func NewPaymentService(store PaymentStore, gateway Gateway, events EventPublisher, receipts ReceiptDispatcher, cfg PaymentConfig, log *logger.Logger) *PaymentService {
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}
	if events == nil {
		events = NopPublisher{}
	}
	return &PaymentService{store: store, gateway: gateway, events: events, receipts: receipts, cfg: cfg, log: orDefault(log)}
}

type CreateOrderRequest struct {
	// Amount is the client's hint and is never charged.
	Amount        decimal.Decimal
	Currency      string
	Receipt       string
	Notes         map[string]interface{}
	BookingID     string
	PenaltyAmount decimal.Decimal
}

// CreateBookingOrder mints a gateway order for a payable booking. The charge is always the
// stored service price plus the penalty.
func (s *PaymentService) CreateBookingOrder(ctx context.Context, req CreateOrderRequest) (*models.RazorpayOrder, error) {
	if strings.TrimSpace(req.BookingID) == "" {
		return nil, errors.E(errors.Invalid, errors.Code(CodeMissingFields), "booking_id is required")
	}
	bookingID, err := uuid.Parse(req.BookingID)
	if err != nil {
		return nil, errors.E(errors.Invalid, errors.Code(CodeInvalidBooking), "Invalid booking", err)
	}
	if req.PenaltyAmount.IsNegative() {
		return nil, errors.E(errors.Invalid, errors.Code(CodeInvalidFormat), "penalty_amount cannot be negative")
	}

	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		if errors.KindOf(err) == errors.NotFound {
			return nil, errors.E(errors.NotFound, errors.Code(CodeInvalidBooking), "Invalid booking", err)
		}
		return nil, err
	}
	if !booking.Status.Payable() {
		return nil, errors.E(errors.Admission, errors.Code(CodeNotPayable),
			fmt.Sprintf("Booking cannot be paid in status %s", booking.Status))
	}

	if s.gateway == nil {
		return nil, errors.E(errors.Config, errors.Code(CodeNotConfigured), "Payment gateway not configured")
	}

	total := booking.ServicePrice.Add(req.PenaltyAmount)
	if !total.IsPositive() {
		return nil, errors.E(errors.Admission, errors.Code(CodeNotPayable), "Booking has nothing to pay")
	}
	if !req.Amount.IsZero() && !req.Amount.Equal(total) {
		s.log.Warn("Client amount %s differs from computed total %s for booking %s", req.Amount, total, bookingID)
	}

	currency := req.Currency
	if currency == "" {
		currency = s.cfg.Currency
	}
	receipt := req.Receipt
	if receipt == "" {
		receipt = "booking_" + bookingID.String()[:8]
	}
	notes := make(map[string]interface{}, len(req.Notes)+1)
	for k, v := range req.Notes {
		notes[k] = v
	}
	notes["booking_id"] = bookingID.String()

	order, err := s.gateway.CreateOrder(ctx, OrderRequest{
		Amount:   models.ToMinorUnits(total),
		Currency: currency,
		Receipt:  receipt,
		Notes:    notes,
	})
	if err != nil {
		return nil, errors.E(errors.Upstream, errors.Code(CodeGatewayError), "Payment processing failed", err)
	}

	fee, salonAmount := models.SplitFee(total, s.cfg.FeePercentage)
	if _, err := s.store.UpsertPayment(ctx, &models.Payment{
		BookingID:       booking.ID,
		UserID:          booking.UserID,
		SalonID:         booking.SalonID,
		Amount:          total,
		Currency:        order.Currency,
		RazorpayOrderID: order.ID,
		Status:          models.PaymentPending,
		PlatformFee:     fee,
		SalonAmount:     salonAmount,
	}); err != nil {
		s.log.Error("Order %s created but payment row not saved: %v", order.ID, err)
	}

	publishEvent(ctx, s.events, s.log, models.TopicPayments, "booking-"+bookingID.String(), models.EventPaymentOrderCreated,
		map[string]interface{}{
			"booking_id": bookingID,
			"order_id":   order.ID,
			"amount":     total,
			"currency":   order.Currency,
		})

	s.log.Info("Razorpay order %s created for booking %s (%d minor units)", order.ID, bookingID, order.Amount)
	return &models.RazorpayOrder{
		OrderID:  order.ID,
		Amount:   order.Amount,
		Currency: order.Currency,
		KeyID:    s.gateway.KeyID(),
	}, nil
}

type VerifyPaymentRequest struct {
	OrderID   string
	PaymentID string
	Signature string
	BookingID string
}

type VerifyPaymentResult struct {
	PaymentID string
	// Confirmed is false when the booking was already confirmed by an earlier call.
	Confirmed bool
}

// VerifyBookingPayment checks the gateway signature and confirms the booking.
func (s *PaymentService) VerifyBookingPayment(ctx context.Context, req VerifyPaymentRequest) (*VerifyPaymentResult, error) {
	if req.OrderID == "" || req.PaymentID == "" || req.Signature == "" {
		return nil, errors.E(errors.Invalid, errors.Code(CodeMissingFields), "Missing required payment verification fields")
	}
	if s.cfg.KeySecret == "" {
		return nil, errors.E(errors.Invalid, errors.Code(CodeNotConfigured), "Payment verification not configured")
	}
	if !VerifyPaymentSignature(req.OrderID, req.PaymentID, req.Signature, s.cfg.KeySecret) {
		s.log.Warn("Signature mismatch for order %s", req.OrderID)
		return nil, errors.E(errors.Unauthorized, errors.Code(CodeSignatureMismatch), "Invalid payment signature")
	}

	payment, err := s.store.CapturePayment(ctx, req.OrderID, req.PaymentID)
	if err != nil && errors.KindOf(err) != errors.NotFound {
		s.log.Error("Error recording capture for order %s: %v", req.OrderID, err)
	}

	result := &VerifyPaymentResult{PaymentID: req.PaymentID}

	var bookingID uuid.UUID
	if req.BookingID != "" {
		if bookingID, err = uuid.Parse(req.BookingID); err != nil {
			return nil, errors.E(errors.Invalid, errors.Code(CodeInvalidBooking), "Invalid booking", err)
		}
	}
	// The order's own booking wins; the client id is only used for orders without a local row.
	if payment != nil && payment.BookingID != uuid.Nil {
		if bookingID != uuid.Nil && bookingID != payment.BookingID {
			s.log.Warn("Order %s belongs to booking %s, not %s", req.OrderID, payment.BookingID, bookingID)
			return nil, errors.E(errors.Admission, errors.Code(CodeBookingMismatch), "Payment does not belong to this booking")
		}
		bookingID = payment.BookingID
	}

	publishEvent(ctx, s.events, s.log, models.TopicPayments, "order-"+req.OrderID, models.EventPaymentVerified,
		map[string]interface{}{
			"order_id":   req.OrderID,
			"payment_id": req.PaymentID,
			"booking_id": bookingID,
		})

	if bookingID == uuid.Nil {
		return result, nil
	}

	result.Confirmed, err = s.confirm(ctx, bookingID, payment, req.OrderID, req.PaymentID)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// confirm moves the booking to confirmed and, only when that changed the booking, dispatches the receipt.
func (s *PaymentService) confirm(ctx context.Context, bookingID uuid.UUID, payment *models.Payment, orderID, paymentID string) (bool, error) {
	changed, err := s.store.ConfirmBooking(ctx, bookingID)
	if err != nil {
		return false, errors.E(errors.Internal, errors.Code(CodeStorageError), "Failed to update booking", err)
	}
	if !changed {
		s.log.Info("Booking %s already confirmed; receipt not resent", bookingID)
		return false, nil
	}
	s.log.Info("Booking %s confirmed by payment %s", bookingID, paymentID)

	s.sendReceipt(ctx, bookingID, payment, orderID, paymentID)
	return true, nil
}

func (s *PaymentService) sendReceipt(ctx context.Context, bookingID uuid.UUID, payment *models.Payment, orderID, paymentID string) {
	if s.receipts == nil {
		return
	}
	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		s.log.Warn("Receipt skipped for booking %s: %v", bookingID, err)
		return
	}
	profile, err := s.store.GetProfile(ctx, booking.UserID)
	if err != nil || profile.Email == nil || *profile.Email == "" {
		s.log.Warn("Receipt skipped for booking %s: no email on file", bookingID)
		return
	}

	req := models.ReceiptRequest{
		BookingID:         bookingID,
		UserID:            booking.UserID,
		Email:             *profile.Email,
		ServiceName:       booking.ServiceName,
		Amount:            booking.ServicePrice,
		Currency:          s.cfg.Currency,
		RazorpayOrderID:   orderID,
		RazorpayPaymentID: paymentID,
		PaidAt:            nowUTC(),
	}
	if payment != nil {
		req.Amount, req.Currency = payment.Amount, payment.Currency
	}
	if err := s.receipts.Dispatch(ctx, req); err != nil {
		s.log.Error("Receipt dispatch failed for booking %s: %v", bookingID, err)
	}
}

type RecordPaymentRequest struct {
	BookingID       string
	UserID          string
	SalonID         string
	Amount          decimal.Decimal
	RazorpayOrderID string
	PaymentID       string
	FeePercentage   *decimal.Decimal
}

// RecordPayment stores a payment with its platform fee and salon share.
func (s *PaymentService) RecordPayment(ctx context.Context, req RecordPaymentRequest) (*models.Payment, error) {
	if req.BookingID == "" || req.UserID == "" || req.SalonID == "" || req.RazorpayOrderID == "" {
		return nil, errors.E(errors.Invalid, errors.Code(CodeMissingFields), "Missing required fields")
	}
	ids := make([]uuid.UUID, 3)
	for i, raw := range []string{req.BookingID, req.UserID, req.SalonID} {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, errors.E(errors.Invalid, errors.Code(CodeInvalidFormat), "Invalid id: "+raw, err)
		}
		ids[i] = id
	}
	if !req.Amount.IsPositive() {
		return nil, errors.E(errors.Invalid, errors.Code(CodeInvalidFormat), "amount must be greater than 0")
	}

	pct := s.cfg.FeePercentage
	if req.FeePercentage != nil {
		pct = *req.FeePercentage
	}
	if pct.IsNegative() || pct.GreaterThan(decimal.NewFromInt(100)) {
		return nil, errors.E(errors.Invalid, errors.Code(CodeInvalidFormat), "fee_percentage must be between 0 and 100")
	}

	fee, salonAmount := models.SplitFee(req.Amount, pct)
	p := &models.Payment{
		BookingID:       ids[0],
		UserID:          ids[1],
		SalonID:         ids[2],
		Amount:          req.Amount,
		Currency:        s.cfg.Currency,
		RazorpayOrderID: req.RazorpayOrderID,
		Status:          models.PaymentPending,
		PlatformFee:     fee,
		SalonAmount:     salonAmount,
	}
	if req.PaymentID != "" {
		p.RazorpayPaymentID = &req.PaymentID
		p.Status = models.PaymentCaptured
	}

	saved, err := s.store.UpsertPayment(ctx, p)
	if err != nil {
		return nil, errors.E(errors.Internal, errors.Code(CodeStorageError), "Failed to record payment", err)
	}
	s.log.Info("Payment %s recorded for booking %s: fee=%s salon=%s", saved.ID, saved.BookingID, saved.PlatformFee, saved.SalonAmount)
	return saved, nil
}
