package db

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/grumming/grumming-app-sub004/errors"
	"github.com/grumming/grumming-app-sub004/models"
)

func (s *Store) GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	var p models.Profile
	var phone, email, firebaseUID sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, phone, email, email_verified, firebase_uid, created_at, updated_at
		FROM profiles WHERE id = $1`, id).
		Scan(&p.ID, &phone, &email, &p.EmailVerified, &firebaseUID, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.E(errors.NotFound, errors.Code("not_found"), "user not found", err)
	}
	if err != nil {
		return nil, errors.E(errors.Internal, "error fetching profile", err)
	}
	p.Phone, p.Email, p.FirebaseUID = nullString(phone), nullString(email), nullString(firebaseUID)
	return &p, nil
}

// FindOrCreateProfileByPhone returns the profile owning phone, creating it when absent.
// created is true only for the call that inserted the row.
func (s *Store) FindOrCreateProfileByPhone(ctx context.Context, phone string, firebaseUID *string) (uuid.UUID, bool, error) {
	id := uuid.New()
	var inserted uuid.UUID
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO profiles (id, phone, firebase_uid) VALUES ($1, $2, $3)
		ON CONFLICT (phone) DO NOTHING
		RETURNING id`, id, phone, firebaseUID).Scan(&inserted)
	if err == nil {
		return inserted, true, nil
	}
	if err != sql.ErrNoRows {
		return uuid.Nil, false, errors.E(errors.Internal, errors.Code("storage_error"), "error creating profile", err)
	}

	var existing uuid.UUID
	err = s.db.QueryRowContext(ctx, `
		UPDATE profiles SET firebase_uid = COALESCE($2, firebase_uid), updated_at = NOW()
		WHERE phone = $1 RETURNING id`, phone, firebaseUID).Scan(&existing)
	if err != nil {
		return uuid.Nil, false, errors.E(errors.Internal, errors.Code("storage_error"), "error loading profile", err)
	}
	return existing, false, nil
}

// MarkEmailVerified stores a verified email on the user's profile.
func (s *Store) MarkEmailVerified(ctx context.Context, userID uuid.UUID, email string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE profiles SET email = $2, email_verified = TRUE, updated_at = NOW() WHERE id = $1`, userID, email)
	if err != nil {
		return errors.E(errors.Internal, errors.Code("storage_error"), "error updating profile", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.E(errors.NotFound, errors.Code("not_found"), "user not found")
	}
	return nil
}

func (s *Store) ProfileExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM profiles WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, errors.E(errors.Internal, "error checking user", err)
	}
	return exists, nil
}
