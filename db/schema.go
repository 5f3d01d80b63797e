package db

import (
	"context"
	"fmt"
)

var schema = []struct {
	name string
	ddl  string
}{
	{"profiles", `
	CREATE TABLE IF NOT EXISTS profiles (
		id UUID PRIMARY KEY,
		phone TEXT UNIQUE,
		email TEXT,
		email_verified BOOLEAN NOT NULL DEFAULT FALSE,
		firebase_uid TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`},
	{"bookings", `
	CREATE TABLE IF NOT EXISTS bookings (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL,
		salon_id UUID NOT NULL,
		service_name TEXT NOT NULL DEFAULT '',
		service_price NUMERIC(12,2) NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending_payment',
		booking_date TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`},
	{"payments", `
	CREATE TABLE IF NOT EXISTS payments (
		id UUID PRIMARY KEY,
		booking_id UUID,
		user_id UUID,
		salon_id UUID,
		amount NUMERIC(12,2) NOT NULL,
		currency TEXT NOT NULL DEFAULT 'INR',
		razorpay_order_id TEXT NOT NULL UNIQUE,
		razorpay_payment_id TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		platform_fee NUMERIC(12,2) NOT NULL DEFAULT 0,
		salon_amount NUMERIC(12,2) NOT NULL DEFAULT 0,
		settlement_id TEXT,
		settled_at TIMESTAMPTZ,
		receipt_url TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_payments_razorpay_payment_id ON payments (razorpay_payment_id);`},
	{"otp_codes", `
	CREATE TABLE IF NOT EXISTS otp_codes (
		id BIGSERIAL PRIMARY KEY,
		contact TEXT NOT NULL,
		channel TEXT NOT NULL,
		code_hash TEXT NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		verified BOOLEAN NOT NULL DEFAULT FALSE,
		attempts INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_otp_codes_contact ON otp_codes (channel, contact, created_at DESC);`},
	{"otp_attempts", `
	CREATE TABLE IF NOT EXISTS otp_attempts (
		id BIGSERIAL PRIMARY KEY,
		phone TEXT NOT NULL,
		ip TEXT,
		attempted_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_otp_attempts_phone ON otp_attempts (phone, attempted_at);`},
	{"wallets", `
	CREATE TABLE IF NOT EXISTS wallets (
		user_id UUID PRIMARY KEY,
		balance NUMERIC(12,2) NOT NULL DEFAULT 0,
		total_earned NUMERIC(12,2) NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`},
	{"wallet_transactions", `
	CREATE TABLE IF NOT EXISTS wallet_transactions (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL,
		amount NUMERIC(12,2) NOT NULL,
		type TEXT NOT NULL,
		source TEXT NOT NULL,
		reference_id TEXT NOT NULL UNIQUE,
		description TEXT,
		balance_after NUMERIC(12,2) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`},
	{"wallet_topups", `
	CREATE TABLE IF NOT EXISTS wallet_topups (
		razorpay_order_id TEXT PRIMARY KEY,
		user_id UUID NOT NULL,
		amount NUMERIC(12,2) NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		razorpay_payment_id TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`},
	{"settlements", `
	CREATE TABLE IF NOT EXISTS settlements (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		razorpay_settlement_id TEXT NOT NULL UNIQUE,
		amount NUMERIC(14,2) NOT NULL,
		fees NUMERIC(12,2) NOT NULL DEFAULT 0,
		tax NUMERIC(12,2) NOT NULL DEFAULT 0,
		utr TEXT,
		status TEXT,
		settled_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`},
	{"dlq_messages", `
	CREATE TABLE IF NOT EXISTS dlq_messages (
		id BIGSERIAL PRIMARY KEY,
		message_id UUID NOT NULL UNIQUE DEFAULT gen_random_uuid(),
		topic TEXT NOT NULL,
		key TEXT,
		value JSONB NOT NULL,
		error_message TEXT,
		retry_count INTEGER NOT NULL DEFAULT 0,
		max_retries INTEGER NOT NULL DEFAULT 5,
		last_retry_at TIMESTAMPTZ,
		resolved BOOLEAN NOT NULL DEFAULT FALSE,
		resolved_at TIMESTAMPTZ,
		notes TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`},
}

// Migrate creates any missing tables and indexes. It is safe to run on every start.
func (s *Store) Migrate(ctx context.Context) error {
	for _, t := range schema {
		if _, err := s.db.ExecContext(ctx, t.ddl); err != nil {
			return fmt.Errorf("error creating %s table: %w", t.name, err)
		}
	}
	return nil
}
