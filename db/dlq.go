package db

import (
	"context"
	"database/sql"

	"github.com/grumming/grumming-app-sub004/errors"
	"github.com/grumming/grumming-app-sub004/models"
)

// StoreDLQMessage parks a failed message for later retry.
func (s *Store) StoreDLQMessage(ctx context.Context, topic, key string, value []byte, errorMsg string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dlq_messages (topic, key, value, error_message)
		VALUES ($1, $2, $3::jsonb, $4)`, topic, key, string(value), errorMsg)
	if err != nil {
		return errors.E(errors.Internal, "error storing dlq message", err)
	}
	return nil
}

// RetryableDLQMessages returns the oldest unresolved messages that still have retries left.
func (s *Store) RetryableDLQMessages(ctx context.Context, limit int) ([]models.DLQMessage, error) {
	return s.queryDLQ(ctx, `
		SELECT id, message_id, topic, COALESCE(key, ''), value, COALESCE(error_message, ''), retry_count, max_retries,
			last_retry_at, resolved, created_at
		FROM dlq_messages
		WHERE resolved = FALSE AND retry_count < max_retries
		ORDER BY created_at ASC
		LIMIT $1`, limit)
}

// UnresolvedDLQMessages returns the newest unresolved messages.
func (s *Store) UnresolvedDLQMessages(ctx context.Context, limit int) ([]models.DLQMessage, error) {
	return s.queryDLQ(ctx, `
		SELECT id, message_id, topic, COALESCE(key, ''), value, COALESCE(error_message, ''), retry_count, max_retries,
			last_retry_at, resolved, created_at
		FROM dlq_messages
		WHERE resolved = FALSE
		ORDER BY created_at DESC
		LIMIT $1`, limit)
}

func (s *Store) queryDLQ(ctx context.Context, query string, limit int) ([]models.DLQMessage, error) {
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, errors.E(errors.Internal, "error querying dlq messages", err)
	}
	defer rows.Close()

	var out []models.DLQMessage
	for rows.Next() {
		var m models.DLQMessage
		var lastRetry sql.NullTime
		if err := rows.Scan(&m.ID, &m.MessageID, &m.Topic, &m.Key, &m.Value, &m.ErrorMessage, &m.RetryCount,
			&m.MaxRetries, &lastRetry, &m.Resolved, &m.CreatedAt); err != nil {
			return nil, errors.E(errors.Internal, "error scanning dlq message", err)
		}
		if lastRetry.Valid {
			m.LastRetryAt = &lastRetry.Time
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// MarkDLQRetried bumps the retry counter and resolves the message when the retry succeeded.
func (s *Store) MarkDLQRetried(ctx context.Context, messageID string, succeeded bool) error {
	query := `UPDATE dlq_messages SET retry_count = retry_count + 1, last_retry_at = NOW() WHERE message_id = $1`
	if succeeded {
		query = `
			UPDATE dlq_messages
			SET retry_count = retry_count + 1, last_retry_at = NOW(), resolved = TRUE, resolved_at = NOW(),
				notes = 'Auto-retried successfully'
			WHERE message_id = $1`
	}
	if _, err := s.db.ExecContext(ctx, query, messageID); err != nil {
		return errors.E(errors.Internal, "error updating dlq message", err)
	}
	return nil
}

func (s *Store) ResolveDLQMessage(ctx context.Context, messageID, notes string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE dlq_messages SET resolved = TRUE, resolved_at = NOW(), notes = $2 WHERE message_id = $1`,
		messageID, notes)
	if err != nil {
		return errors.E(errors.Internal, "error resolving dlq message", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.E(errors.NotFound, "dlq message not found")
	}
	return nil
}

func (s *Store) DLQStats(ctx context.Context) (models.DLQStats, error) {
	var st models.DLQStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE resolved = FALSE),
			COUNT(*) FILTER (WHERE resolved = TRUE)
		FROM dlq_messages`).Scan(&st.Total, &st.Unresolved, &st.Resolved)
	if err != nil {
		return st, errors.E(errors.Internal, "error reading dlq stats", err)
	}
	return st, nil
}

func (s *Store) GetDLQMessage(ctx context.Context, messageID string) (*models.DLQMessage, error) {
	var m models.DLQMessage
	var lastRetry sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, message_id, topic, COALESCE(key, ''), value, COALESCE(error_message, ''), retry_count, max_retries,
			last_retry_at, resolved, created_at
		FROM dlq_messages WHERE message_id = $1`, messageID).
		Scan(&m.ID, &m.MessageID, &m.Topic, &m.Key, &m.Value, &m.ErrorMessage, &m.RetryCount,
			&m.MaxRetries, &lastRetry, &m.Resolved, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.E(errors.NotFound, "dlq message not found", err)
	}
	if err != nil {
		return nil, errors.E(errors.Internal, "error fetching dlq message", err)
	}
	if lastRetry.Valid {
		m.LastRetryAt = &lastRetry.Time
	}
	return &m, nil
}
