package models

import "time"

type OTPChannel string

const (
	OTPChannelSMS   OTPChannel = "sms"
	OTPChannelEmail OTPChannel = "email"
)

// OTP is a one-time code issued to a phone number or email address. Only the bcrypt hash of the code is stored.
type OTP struct {
	ID        int64
	Contact   string
	Channel   OTPChannel
	CodeHash  string
	ExpiresAt time.Time
	Verified  bool
	Attempts  int
	CreatedAt time.Time
}

// Expired reports whether the code is past its expiry at now.
func (o *OTP) Expired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}

// OTPAttempt is one send request, kept for rate limiting.
type OTPAttempt struct {
	Phone       string
	IP          string
	AttemptedAt time.Time
}
