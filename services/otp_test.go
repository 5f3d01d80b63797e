package services

import (
	"context"
	"testing"
	"time"

	"github.com/grumming/grumming-app-sub004/config"
	"github.com/grumming/grumming-app-sub004/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testPhone = "+919876543210"

type otpFixture struct {
	svc    *OTPService
	store  *memStore
	sms    *recordingSMS
	mailer *recordingMailer
	now    time.Time
}

func newOTPFixture(t *testing.T) *otpFixture {
	t.Helper()
	f := &otpFixture{
		store:  newMemStore(),
		sms:    &recordingSMS{},
		mailer: &recordingMailer{},
		now:    time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	sessions := NewSessionManager(config.SessionConfig{JWTSecret: "jwt", TTL: time.Hour, AppURL: "https://app.test"})
	f.svc = NewOTPService(f.store, f.sms, f.mailer, sessions, quietLog)
	f.svc.now = func() time.Time { return f.now }
	f.svc.generate = func() (string, error) { return "482913", nil }
	f.svc.hashCost = bcrypt.MinCost
	sessions.now = f.svc.now
	return f
}

func TestGenerateOTPIsSixDigits(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := generateOTP()
		require.NoError(t, err)
		assert.Regexp(t, `^[1-9]\d{5}$`, code)
	}
}

func TestSendSMSOTPStoresHashOnly(t *testing.T) {
	f := newOTPFixture(t)

	require.NoError(t, f.svc.SendSMSOTP(context.Background(), testPhone, "10.0.0.1"))

	require.Len(t, f.sms.sent, 1)
	assert.Contains(t, f.sms.sent[0], "482913")
	require.Len(t, f.store.otps, 1)
	assert.NotEqual(t, "482913", f.store.otps[0].CodeHash)
	assert.Equal(t, f.now.Add(SMSOTPExpiry), f.store.otps[0].ExpiresAt)
}

func TestSendSMSOTPValidatesPhone(t *testing.T) {
	f := newOTPFixture(t)

	for _, phone := range []string{"9876543210", "+91987654321", "+4412345678901", "+91abcdefghij"} {
		err := f.svc.SendSMSOTP(context.Background(), phone, "")
		assert.Equal(t, CodeInvalidFormat, errors.CodeOf(err), phone)
	}
	assert.Equal(t, CodeMissingFields, errors.CodeOf(f.svc.SendSMSOTP(context.Background(), "", "")))
	assert.Empty(t, f.sms.sent)
}

func TestSendSMSOTPRateLimit(t *testing.T) {
	f := newOTPFixture(t)
	ctx := context.Background()

	for i := 0; i < SMSRateLimit; i++ {
		require.NoError(t, f.svc.SendSMSOTP(ctx, testPhone, "1.1.1.1"))
		f.now = f.now.Add(10 * time.Second)
	}

	err := f.svc.SendSMSOTP(ctx, testPhone, "1.1.1.1")
	assert.Equal(t, errors.RateLimited, errors.KindOf(err))
	assert.Equal(t, CodeRateLimited, errors.CodeOf(err))
	assert.Len(t, f.sms.sent, SMSRateLimit)

	// Another number is unaffected.
	require.NoError(t, f.svc.SendSMSOTP(ctx, "+919999999999", "1.1.1.1"))

	f.now = f.now.Add(SMSRateWindow)
	require.NoError(t, f.svc.SendSMSOTP(ctx, testPhone, "1.1.1.1"))
}

func TestSendSMSOTPWithoutProvider(t *testing.T) {
	f := newOTPFixture(t)
	f.svc.sms = nil

	err := f.svc.SendSMSOTP(context.Background(), testPhone, "")
	assert.Equal(t, errors.Config, errors.KindOf(err))
}

func TestVerifySMSOTPCreatesUserOnce(t *testing.T) {
	f := newOTPFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.SendSMSOTP(ctx, testPhone, ""))
	res, err := f.svc.VerifySMSOTP(ctx, testPhone, "482913")
	require.NoError(t, err)
	assert.True(t, res.IsNewUser)
	assert.NotEmpty(t, res.Token)

	uid, err := f.svc.sessions.Parse(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.UserID, uid)

	// The code is single use.
	_, err = f.svc.VerifySMSOTP(ctx, testPhone, "482913")
	assert.Equal(t, CodeNotFound, errors.CodeOf(err))

	f.now = f.now.Add(2 * time.Minute)
	require.NoError(t, f.svc.SendSMSOTP(ctx, testPhone, ""))
	again, err := f.svc.VerifySMSOTP(ctx, testPhone, "482913")
	require.NoError(t, err)
	assert.False(t, again.IsNewUser)
	assert.Equal(t, res.UserID, again.UserID)
}

func TestVerifySMSOTPRejectsExpiredCode(t *testing.T) {
	f := newOTPFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.SendSMSOTP(ctx, testPhone, ""))

	f.now = f.now.Add(SMSOTPExpiry + time.Second)
	_, err := f.svc.VerifySMSOTP(ctx, testPhone, "482913")

	assert.Equal(t, errors.Invalid, errors.KindOf(err))
	assert.Equal(t, CodeExpired, errors.CodeOf(err))
	assert.Empty(t, f.store.otps)
}

func TestVerifySMSOTPCapsWrongGuesses(t *testing.T) {
	f := newOTPFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.SendSMSOTP(ctx, testPhone, ""))

	for i := 1; i < MaxOTPGuesses; i++ {
		_, err := f.svc.VerifySMSOTP(ctx, testPhone, "000000")
		assert.Equal(t, CodeMismatch, errors.CodeOf(err), "guess %d", i)
	}
	_, err := f.svc.VerifySMSOTP(ctx, testPhone, "000000")
	assert.Equal(t, errors.RateLimited, errors.KindOf(err))
	assert.Equal(t, CodeTooMany, errors.CodeOf(err))

	// The right code no longer works once the record is gone.
	_, err = f.svc.VerifySMSOTP(ctx, testPhone, "482913")
	assert.Equal(t, CodeNotFound, errors.CodeOf(err))
}

func TestEmailOTPFlow(t *testing.T) {
	f := newOTPFixture(t)
	ctx := context.Background()
	user := f.store.addProfile("")

	require.NoError(t, f.svc.SendEmailOTP(ctx, user.String(), " Guest@Example.com "))
	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, "guest@example.com", f.mailer.sent[0].To)
	assert.Contains(t, f.mailer.sent[0].HTML, "482913")

	err := f.svc.VerifyEmailOTP(ctx, user.String(), "guest@example.com", "111111")
	assert.Equal(t, CodeMismatch, errors.CodeOf(err))

	require.NoError(t, f.svc.VerifyEmailOTP(ctx, user.String(), "GUEST@example.com", "482913"))
	p := f.store.profiles[user]
	assert.True(t, p.EmailVerified)
	assert.Equal(t, "guest@example.com", *p.Email)
}

func TestEmailOTPExpiresAfterTenMinutes(t *testing.T) {
	f := newOTPFixture(t)
	ctx := context.Background()
	user := f.store.addProfile("")
	require.NoError(t, f.svc.SendEmailOTP(ctx, user.String(), "a@b.co"))

	f.now = f.now.Add(9 * time.Minute)
	require.NoError(t, f.svc.VerifyEmailOTP(ctx, user.String(), "a@b.co", "482913"))

	require.NoError(t, f.svc.SendEmailOTP(ctx, user.String(), "a@b.co"))
	f.now = f.now.Add(EmailOTPExpiry + time.Second)
	err := f.svc.VerifyEmailOTP(ctx, user.String(), "a@b.co", "482913")
	assert.Equal(t, CodeExpired, errors.CodeOf(err))
}

func TestSendEmailOTPValidation(t *testing.T) {
	f := newOTPFixture(t)
	ctx := context.Background()

	assert.Equal(t, CodeMissingFields, errors.CodeOf(f.svc.SendEmailOTP(ctx, "", "a@b.co")))
	assert.Equal(t, CodeInvalidFormat, errors.CodeOf(f.svc.SendEmailOTP(ctx, "nope", "a@b.co")))
	assert.Equal(t, CodeInvalidFormat, errors.CodeOf(f.svc.SendEmailOTP(ctx, f.store.addProfile("").String(), "not-an-email")))

	f.svc.mailer = nil
	assert.Equal(t, errors.Config, errors.KindOf(f.svc.SendEmailOTP(ctx, f.store.addProfile("").String(), "a@b.co")))
}

func TestOTPCleanup(t *testing.T) {
	f := newOTPFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.SendSMSOTP(ctx, testPhone, ""))

	f.now = f.now.Add(AttemptLogTTL + time.Minute)
	require.NoError(t, f.svc.Cleanup(ctx))

	assert.Empty(t, f.store.attempts)
	assert.Empty(t, f.store.otps)
}

func TestMaskContact(t *testing.T) {
	assert.Equal(t, "*********3210", maskContact(testPhone))
	assert.Equal(t, "***@example.com", maskContact("guest@example.com"))
	assert.Equal(t, "****", maskContact("12"))
}
