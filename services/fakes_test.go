package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/grumming/grumming-app-sub004/errors"
	"github.com/grumming/grumming-app-sub004/logger"
	"github.com/grumming/grumming-app-sub004/models"
	"github.com/shopspring/decimal"
)

var quietLog = logger.New(logger.Config{Level: logger.FATAL, Output: discard{}})

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// memStore is an in-memory implementation of every store interface the services use.
type memStore struct {
	mu sync.Mutex

	bookings    map[uuid.UUID]*models.Booking
	profiles    map[uuid.UUID]*models.Profile
	payments    map[string]*models.Payment
	otps        []*models.OTP
	nextOTP     int64
	attempts    []models.OTPAttempt
	wallets     map[uuid.UUID]decimal.Decimal
	ledger      []models.WalletTransaction
	topups      map[string]*models.WalletTopup
	settlements map[string]models.Settlement
	receiptURLs map[string]string
}

func newMemStore() *memStore {
	return &memStore{
		bookings:    map[uuid.UUID]*models.Booking{},
		profiles:    map[uuid.UUID]*models.Profile{},
		payments:    map[string]*models.Payment{},
		wallets:     map[uuid.UUID]decimal.Decimal{},
		topups:      map[string]*models.WalletTopup{},
		settlements: map[string]models.Settlement{},
		receiptURLs: map[string]string{},
	}
}

func (m *memStore) addBooking(price string, status models.BookingStatus) *models.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := &models.Booking{
		ID:           uuid.New(),
		UserID:       uuid.New(),
		SalonID:      uuid.New(),
		ServiceName:  "Haircut",
		ServicePrice: decimal.RequireFromString(price),
		Status:       status,
	}
	m.bookings[b.ID] = b
	return b
}

func (m *memStore) addProfile(email string) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	p := &models.Profile{ID: id}
	if email != "" {
		p.Email = &email
	}
	m.profiles[id] = p
	return id
}

func (m *memStore) GetBooking(_ context.Context, id uuid.UUID) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, errors.E(errors.NotFound, errors.Code("invalid_booking"), "booking not found")
	}
	cp := *b
	return &cp, nil
}

func (m *memStore) ConfirmBooking(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok || b.Status == models.BookingConfirmed {
		return false, nil
	}
	b.Status = models.BookingConfirmed
	return true, nil
}

func (m *memStore) FailBookingPayment(_ context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[orderID]
	if !ok {
		return nil
	}
	if b, ok := m.bookings[p.BookingID]; ok && b.Status == models.BookingPendingPayment {
		b.Status = models.BookingPaymentFailed
	}
	return nil
}

func (m *memStore) UpsertPayment(_ context.Context, p *models.Payment) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	if existing, ok := m.payments[p.RazorpayOrderID]; ok {
		cp.ID = existing.ID
		if existing.Status.Stage() > cp.Status.Stage() {
			cp.Status = existing.Status
		}
		if cp.RazorpayPaymentID == nil {
			cp.RazorpayPaymentID = existing.RazorpayPaymentID
		}
	} else {
		cp.ID = uuid.New()
	}
	m.payments[p.RazorpayOrderID] = &cp
	out := cp
	return &out, nil
}

func (m *memStore) CapturePayment(_ context.Context, orderID, paymentID string) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[orderID]
	if !ok {
		return nil, errors.E(errors.NotFound, "payment not found")
	}
	p.RazorpayPaymentID = &paymentID
	if p.Status == models.PaymentPending {
		p.Status = models.PaymentCaptured
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) SettlePayment(_ context.Context, paymentID, settlementID string, settledAt time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, p := range m.payments {
		if p.RazorpayPaymentID == nil || *p.RazorpayPaymentID != paymentID {
			continue
		}
		if p.Status == models.PaymentSettled && p.SettlementID != nil && *p.SettlementID == settlementID {
			continue
		}
		sid, at := settlementID, settledAt
		p.Status, p.SettlementID, p.SettledAt = models.PaymentSettled, &sid, &at
		n++
	}
	return n, nil
}

func (m *memStore) SetReceiptURL(_ context.Context, orderID, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receiptURLs[orderID] = url
	return nil
}

func (m *memStore) GetProfile(_ context.Context, id uuid.UUID) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, errors.E(errors.NotFound, "profile not found")
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) ProfileExists(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.profiles[id]
	return ok, nil
}

func (m *memStore) FindOrCreateProfileByPhone(_ context.Context, phone string, firebaseUID *string) (uuid.UUID, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.profiles {
		if p.Phone != nil && *p.Phone == phone {
			if firebaseUID != nil {
				p.FirebaseUID = firebaseUID
			}
			return p.ID, false, nil
		}
	}
	id := uuid.New()
	ph := phone
	m.profiles[id] = &models.Profile{ID: id, Phone: &ph, FirebaseUID: firebaseUID}
	return id, true, nil
}

func (m *memStore) MarkEmailVerified(_ context.Context, userID uuid.UUID, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return errors.E(errors.NotFound, "profile not found")
	}
	e := email
	p.Email, p.EmailVerified = &e, true
	return nil
}

func (m *memStore) SaveOTP(_ context.Context, otp *models.OTP) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.otps[:0]
	for _, o := range m.otps {
		if o.Verified || o.Channel != otp.Channel || o.Contact != otp.Contact {
			kept = append(kept, o)
		}
	}
	m.nextOTP++
	cp := *otp
	cp.ID = m.nextOTP
	otp.ID = cp.ID
	m.otps = append(kept, &cp)
	return nil
}

func (m *memStore) LatestOTP(_ context.Context, channel models.OTPChannel, contact string) (*models.OTP, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.otps) - 1; i >= 0; i-- {
		o := m.otps[i]
		if o.Channel == channel && o.Contact == contact && !o.Verified {
			cp := *o
			return &cp, nil
		}
	}
	return nil, errors.E(errors.NotFound, errors.Code("not_found"), "otp not found")
}

func (m *memStore) findOTP(id int64) (int, *models.OTP) {
	for i, o := range m.otps {
		if o.ID == id {
			return i, o
		}
	}
	return -1, nil
}

func (m *memStore) IncrementOTPAttempts(_ context.Context, id int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, o := m.findOTP(id)
	if o == nil {
		return 0, errors.E(errors.NotFound, "otp not found")
	}
	o.Attempts++
	return o.Attempts, nil
}

func (m *memStore) ConsumeOTP(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, o := m.findOTP(id)
	if o == nil {
		return errors.E(errors.NotFound, errors.Code("not_found"), "otp already used")
	}
	m.otps = append(m.otps[:i], m.otps[i+1:]...)
	return nil
}

func (m *memStore) DeleteOTP(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i, o := m.findOTP(id); o != nil {
		m.otps = append(m.otps[:i], m.otps[i+1:]...)
	}
	return nil
}

func (m *memStore) CountOTPAttempts(_ context.Context, phone string, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.attempts {
		if a.Phone == phone && a.AttemptedAt.After(since) {
			n++
		}
	}
	return n, nil
}

func (m *memStore) RecordOTPAttempt(_ context.Context, a models.OTPAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, a)
	return nil
}

func (m *memStore) CleanupOTP(_ context.Context, attemptsBefore, now time.Time) (int64, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var a, c int64
	keptA := m.attempts[:0]
	for _, at := range m.attempts {
		if at.AttemptedAt.Before(attemptsBefore) {
			a++
			continue
		}
		keptA = append(keptA, at)
	}
	m.attempts = keptA
	keptC := m.otps[:0]
	for _, o := range m.otps {
		if o.ExpiresAt.Before(now) {
			c++
			continue
		}
		keptC = append(keptC, o)
	}
	m.otps = keptC
	return a, c, nil
}

func (m *memStore) CreateTopup(_ context.Context, t *models.WalletTopup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	cp.Status = models.TopupPending
	m.topups[t.RazorpayOrderID] = &cp
	return nil
}

func (m *memStore) GetTopup(_ context.Context, orderID string) (*models.WalletTopup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.topups[orderID]
	if !ok {
		return nil, errors.E(errors.NotFound, errors.Code("invalid_order"), "top-up order not found")
	}
	cp := *t
	return &cp, nil
}

func (m *memStore) CreditWallet(_ context.Context, tx models.WalletTransaction, orderID string) (decimal.Decimal, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.ledger {
		if l.ReferenceID == tx.ReferenceID {
			return m.wallets[tx.UserID], false, nil
		}
	}
	balance := m.wallets[tx.UserID].Add(tx.Amount)
	m.wallets[tx.UserID] = balance
	tx.BalanceAfter = balance
	m.ledger = append(m.ledger, tx)
	if t, ok := m.topups[orderID]; ok {
		t.Status = models.TopupPaid
	}
	return balance, true, nil
}

func (m *memStore) UpsertSettlement(_ context.Context, st models.Settlement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settlements[st.RazorpaySettlementID] = st
	return nil
}

func (m *memStore) ListSettlements(_ context.Context, limit int) ([]models.Settlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Settlement, 0, len(m.settlements))
	for _, st := range m.settlements {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RazorpaySettlementID < out[j].RazorpaySettlementID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) PaymentsForSettlements(_ context.Context, ids []string) ([]models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []models.Payment
	for _, p := range m.payments {
		if p.SettlementID != nil && want[*p.SettlementID] {
			out = append(out, *p)
		}
	}
	return out, nil
}

// fakeGateway records orders and serves canned settlements.
type fakeGateway struct {
	mu          sync.Mutex
	orders      []OrderRequest
	settlements []models.Settlement
	txns        map[string][]models.SettlementTransaction
	err         error
}

func (g *fakeGateway) KeyID() string { return "rzp_test_key" }

func (g *fakeGateway) CreateOrder(_ context.Context, req OrderRequest) (*GatewayOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.orders = append(g.orders, req)
	return &GatewayOrder{ID: "order_" + uuid.NewString()[:8], Amount: req.Amount, Currency: req.Currency}, nil
}

func (g *fakeGateway) ListSettlements(context.Context, int) ([]models.Settlement, error) {
	return g.settlements, g.err
}

func (g *fakeGateway) SettlementTransactions(_ context.Context, st models.Settlement, _ int) ([]models.SettlementTransaction, error) {
	return g.txns[st.RazorpaySettlementID], nil
}

func (g *fakeGateway) orderCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.orders)
}

type recordingDispatcher struct {
	mu   sync.Mutex
	reqs []models.ReceiptRequest
}

func (d *recordingDispatcher) Dispatch(_ context.Context, req models.ReceiptRequest) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reqs = append(d.reqs, req)
	return nil
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.reqs)
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []EmailMessage
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg EmailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type recordingSMS struct {
	mu   sync.Mutex
	sent []string
}

func (s *recordingSMS) SendSMS(_ context.Context, to, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, to+": "+body)
	return nil
}
