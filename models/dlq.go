package models

import "time"

// DLQMessage is a Kafka message whose processing failed and is parked for retry.
type DLQMessage struct {
	ID           int64      `json:"id"`
	MessageID    string     `json:"message_id"`
	Topic        string     `json:"topic"`
	Key          string     `json:"key"`
	Value        []byte     `json:"value"`
	ErrorMessage string     `json:"error_message"`
	RetryCount   int        `json:"retry_count"`
	MaxRetries   int        `json:"max_retries"`
	LastRetryAt  *time.Time `json:"last_retry_at,omitempty"`
	Resolved     bool       `json:"resolved"`
	CreatedAt    time.Time  `json:"created_at"`
}

type DLQStats struct {
	Total      int `json:"total_dlq_messages"`
	Unresolved int `json:"unresolved_messages"`
	Resolved   int `json:"resolved_messages"`
}
