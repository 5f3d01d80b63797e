package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/grumming/grumming-app-sub004/errors"
	"github.com/grumming/grumming-app-sub004/logger"
	"github.com/grumming/grumming-app-sub004/models"
	"github.com/shopspring/decimal"
)

var (
	MinTopupAmount = decimal.NewFromInt(50)
	MaxTopupAmount = decimal.NewFromInt(10000)
)

type WalletStore interface {
	ProfileExists(ctx context.Context, id uuid.UUID) (bool, error)
	CreateTopup(ctx context.Context, t *models.WalletTopup) error
	GetTopup(ctx context.Context, orderID string) (*models.WalletTopup, error)
	CreditWallet(ctx context.Context, tx models.WalletTransaction, orderID string) (decimal.Decimal, bool, error)
}

// WalletService tops up user wallets through the payment gateway.
type WalletService struct {
	store     WalletStore
	gateway   Gateway
	events    EventPublisher
	keySecret string
	currency  string
	log       *logger.Logger
}

func NewWalletService(store WalletStore, gateway Gateway, events EventPublisher, keySecret, currency string, log *logger.Logger) *WalletService {
	if currency == "" {
		currency = "INR"
	}
	if events == nil {
		events = NopPublisher{}
	}
	return &WalletService{store: store, gateway: gateway, events: events, keySecret: keySecret, currency: currency, log: orDefault(log)}
}

// CreateTopupOrder mints a gateway order for a wallet top-up of amount currency units.
func (s *WalletService) CreateTopupOrder(ctx context.Context, amount decimal.Decimal, userID string) (*models.RazorpayOrder, error) {
	if amount.IsZero() || userID == "" {
		return nil, errors.E(errors.Invalid, errors.Code(CodeMissingFields), "amount and user_id are required")
	}
	if amount.LessThan(MinTopupAmount) || amount.GreaterThan(MaxTopupAmount) {
		return nil, errors.E(errors.Invalid, errors.Code("amount_out_of_range"),
			fmt.Sprintf("Amount must be between %s and %s", MinTopupAmount, MaxTopupAmount))
	}
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, errors.E(errors.Invalid, errors.Code("unknown_user"), "Invalid user", err)
	}
	exists, err := s.store.ProfileExists(ctx, uid)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errors.E(errors.NotFound, errors.Code("unknown_user"), "User not found")
	}
	if s.gateway == nil {
		return nil, errors.E(errors.Config, errors.Code(CodeNotConfigured), "Payment gateway not configured")
	}

	order, err := s.gateway.CreateOrder(ctx, OrderRequest{
		Amount:   models.ToMinorUnits(amount),
		Currency: s.currency,
		Receipt:  fmt.Sprintf("wallet_%s_%d", uid.String()[:8], time.Now().Unix()),
		Notes: map[string]interface{}{
			"user_id": uid.String(),
			"purpose": "wallet_topup",
		},
	})
	if err != nil {
		return nil, errors.E(errors.Upstream, errors.Code(CodeGatewayError), "Payment processing failed", err)
	}

	if err := s.store.CreateTopup(ctx, &models.WalletTopup{
		RazorpayOrderID: order.ID,
		UserID:          uid,
		Amount:          amount,
	}); err != nil {
		return nil, err
	}

	s.log.Info("Wallet top-up order %s created for user %s (%s)", order.ID, uid, amount)
	return &models.RazorpayOrder{OrderID: order.ID, Amount: order.Amount, Currency: order.Currency, KeyID: s.gateway.KeyID()}, nil
}

type VerifyTopupRequest struct {
	OrderID   string
	PaymentID string
	Signature string
	UserID    string
	// Amount is optional; when set it must match the amount the order was created for.
	Amount decimal.Decimal
}

type TopupResult struct {
	NewBalance decimal.Decimal
	PaymentID  string
}

// VerifyTopup checks the signature and credits the wallet with the amount the order was created for.
// A payment credits the wallet at most once.
func (s *WalletService) VerifyTopup(ctx context.Context, req VerifyTopupRequest) (*TopupResult, error) {
	if req.OrderID == "" || req.PaymentID == "" || req.Signature == "" || req.UserID == "" {
		return nil, errors.E(errors.Invalid, errors.Code(CodeMissingFields), "Missing required fields")
	}
	if s.keySecret == "" {
		return nil, errors.E(errors.Invalid, errors.Code(CodeNotConfigured), "Payment verification not configured")
	}
	if !VerifyPaymentSignature(req.OrderID, req.PaymentID, req.Signature, s.keySecret) {
		s.log.Warn("Top-up signature mismatch for order %s", req.OrderID)
		return nil, errors.E(errors.Unauthorized, errors.Code(CodeSignatureMismatch), "Invalid payment signature")
	}

	uid, err := uuid.Parse(req.UserID)
	if err != nil {
		return nil, errors.E(errors.Invalid, errors.Code("unknown_user"), "Invalid user", err)
	}
	topup, err := s.store.GetTopup(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if topup.UserID != uid {
		return nil, errors.E(errors.Invalid, errors.Code("user_mismatch"), "Order does not belong to this user")
	}
	if !req.Amount.IsZero() && !req.Amount.Equal(topup.Amount) {
		return nil, errors.E(errors.Invalid, errors.Code("amount_mismatch"), "Amount does not match the top-up order")
	}

	balance, credited, err := s.store.CreditWallet(ctx, models.WalletTransaction{
		UserID:      uid,
		Amount:      topup.Amount,
		Type:        models.WalletCredit,
		Source:      models.WalletSourceManual,
		ReferenceID: req.PaymentID,
		Description: "Wallet top-up via Razorpay",
	}, req.OrderID)
	if err != nil {
		return nil, err
	}

	if credited {
		s.log.Info("Wallet of user %s credited %s (payment %s), balance %s", uid, topup.Amount, req.PaymentID, balance)
		publishEvent(ctx, s.events, s.log, models.TopicPayments, "user-"+uid.String(), models.EventWalletCredited,
			map[string]interface{}{
				"user_id":    uid,
				"amount":     topup.Amount,
				"payment_id": req.PaymentID,
				"balance":    balance,
			})
	} else {
		s.log.Info("Payment %s already credited to user %s", req.PaymentID, uid)
	}
	return &TopupResult{NewBalance: balance, PaymentID: req.PaymentID}, nil
}
