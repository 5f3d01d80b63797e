package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(envOf(nil))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "INR", cfg.Payments.Currency)
	assert.Equal(t, "10", cfg.Payments.PlatformFeePercentage.String())
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL)
	assert.Equal(t, 6*time.Hour, cfg.Jobs.SettlementSyncInterval)
	assert.False(t, cfg.Kafka.Enabled())
	assert.False(t, cfg.Razorpay.Configured())
	assert.Equal(t, "resend", cfg.Email.Provider)
	assert.Equal(t, "host=localhost port=5432 user=postgres password= dbname=postgres sslmode=disable", cfg.Database.DSN())
}

func TestFromEnvOverrides(t *testing.T) {
	cfg, err := FromEnv(envOf(map[string]string{
		"KAFKA_BROKERS":           "k1:9092, k2:9092,",
		"PLATFORM_FEE_PERCENTAGE": "12.5",
		"APP_URL":                 "https://app.example.com/",
		"DATABASE_URL":            "postgres://u@db/x",
		"EMAIL_PROVIDER":          "SMTP",
		"RAZORPAY_KEY_ID":         "rzp_test",
		"RAZORPAY_KEY_SECRET":     "secret",
	}))
	require.NoError(t, err)

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "12.5", cfg.Payments.PlatformFeePercentage.String())
	assert.Equal(t, "https://app.example.com", cfg.Session.AppURL)
	assert.Equal(t, "postgres://u@db/x", cfg.Database.DSN())
	assert.Equal(t, "smtp", cfg.Email.Provider)
	assert.True(t, cfg.Razorpay.Configured())
}

func TestFromEnvRejectsInvalidValues(t *testing.T) {
	for key, value := range map[string]string{
		"SMTP_PORT":               "abc",
		"SESSION_TTL":             "forever",
		"PLATFORM_FEE_PERCENTAGE": "120",
		"EMAIL_PROVIDER":          "pigeon",
	} {
		_, err := FromEnv(envOf(map[string]string{key: value}))
		assert.Error(t, err, key)
	}
}
