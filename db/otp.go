package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/grumming/grumming-app-sub004/errors"
	"github.com/grumming/grumming-app-sub004/models"
)

// SaveOTP stores a new code for the contact, dropping any earlier unverified code for it.
func (s *Store) SaveOTP(ctx context.Context, otp *models.OTP) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM otp_codes WHERE channel = $1 AND contact = $2 AND verified = FALSE`,
			string(otp.Channel), otp.Contact); err != nil {
			return err
		}
		return tx.QueryRowContext(ctx, `
			INSERT INTO otp_codes (contact, channel, code_hash, expires_at)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at`,
			otp.Contact, string(otp.Channel), otp.CodeHash, otp.ExpiresAt).Scan(&otp.ID, &otp.CreatedAt)
	})
	if err != nil {
		return errors.E(errors.Internal, errors.Code("storage_error"), "error storing otp", err)
	}
	return nil
}

// LatestOTP returns the most recent unverified code issued to contact.
func (s *Store) LatestOTP(ctx context.Context, channel models.OTPChannel, contact string) (*models.OTP, error) {
	o := models.OTP{Channel: channel, Contact: contact}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, code_hash, expires_at, verified, attempts, created_at
		FROM otp_codes
		WHERE channel = $1 AND contact = $2 AND verified = FALSE
		ORDER BY created_at DESC LIMIT 1`, string(channel), contact).
		Scan(&o.ID, &o.CodeHash, &o.ExpiresAt, &o.Verified, &o.Attempts, &o.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.E(errors.NotFound, errors.Code("not_found"), "otp not found", err)
	}
	if err != nil {
		return nil, errors.E(errors.Internal, errors.Code("storage_error"), "error fetching otp", err)
	}
	return &o, nil
}

// IncrementOTPAttempts records a wrong guess and returns the new count.
func (s *Store) IncrementOTPAttempts(ctx context.Context, id int64) (int, error) {
	var attempts int
	err := s.db.QueryRowContext(ctx, `
		UPDATE otp_codes SET attempts = attempts + 1 WHERE id = $1 RETURNING attempts`, id).Scan(&attempts)
	if err != nil {
		return 0, errors.E(errors.Internal, errors.Code("storage_error"), "error updating otp", err)
	}
	return attempts, nil
}

// ConsumeOTP marks the code verified and removes it. A code can be consumed once.
func (s *Store) ConsumeOTP(ctx context.Context, id int64) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE otp_codes SET verified = TRUE WHERE id = $1 AND verified = FALSE`, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return sql.ErrNoRows
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM otp_codes WHERE id = $1`, id)
		return err
	})
	if err == sql.ErrNoRows {
		return errors.E(errors.NotFound, errors.Code("not_found"), "otp already used", err)
	}
	if err != nil {
		return errors.E(errors.Internal, errors.Code("storage_error"), "error consuming otp", err)
	}
	return nil
}

func (s *Store) DeleteOTP(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM otp_codes WHERE id = $1`, id); err != nil {
		return errors.E(errors.Internal, errors.Code("storage_error"), "error deleting otp", err)
	}
	return nil
}

// CountOTPAttempts counts send attempts for phone at or after since.
func (s *Store) CountOTPAttempts(ctx context.Context, phone string, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM otp_attempts WHERE phone = $1 AND attempted_at >= $2`, phone, since).Scan(&n)
	if err != nil {
		return 0, errors.E(errors.Internal, errors.Code("storage_error"), "error checking rate limit", err)
	}
	return n, nil
}

func (s *Store) RecordOTPAttempt(ctx context.Context, a models.OTPAttempt) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO otp_attempts (phone, ip, attempted_at) VALUES ($1, $2, $3)`, a.Phone, a.IP, a.AttemptedAt)
	if err != nil {
		return errors.E(errors.Internal, errors.Code("storage_error"), "error recording otp attempt", err)
	}
	return nil
}

// CleanupOTP deletes send attempts older than attemptsBefore and codes that expired before now.
func (s *Store) CleanupOTP(ctx context.Context, attemptsBefore, now time.Time) (attempts, codes int64, err error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM otp_attempts WHERE attempted_at < $1`, attemptsBefore)
	if err != nil {
		return 0, 0, errors.E(errors.Internal, "error cleaning otp attempts", err)
	}
	attempts, _ = res.RowsAffected()

	res, err = s.db.ExecContext(ctx, `DELETE FROM otp_codes WHERE expires_at < $1`, now)
	if err != nil {
		return attempts, 0, errors.E(errors.Internal, "error cleaning otp codes", err)
	}
	codes, _ = res.RowsAffected()
	return attempts, codes, nil
}
