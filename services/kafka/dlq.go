package kafka

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/grumming/grumming-app-sub004/config"
	"github.com/grumming/grumming-app-sub004/logger"
	"github.com/grumming/grumming-app-sub004/models"
	"github.com/segmentio/kafka-go"
)

// DLQTopic receives a copy of every parked message when Kafka is enabled.
const DLQTopic = "salon-dlq"

// DLQStore persists dead-lettered messages.
type DLQStore interface {
	StoreDLQMessage(ctx context.Context, topic, key string, value []byte, errorMsg string) error
	RetryableDLQMessages(ctx context.Context, limit int) ([]models.DLQMessage, error)
	UnresolvedDLQMessages(ctx context.Context, limit int) ([]models.DLQMessage, error)
	GetDLQMessage(ctx context.Context, messageID string) (*models.DLQMessage, error)
	MarkDLQRetried(ctx context.Context, messageID string, succeeded bool) error
	ResolveDLQMessage(ctx context.Context, messageID, notes string) error
	DLQStats(ctx context.Context) (models.DLQStats, error)
}

// RetryFunc reprocesses a parked message and reports whether it succeeded.
type RetryFunc func(ctx context.Context, msg kafka.Message) bool

// DLQ parks failed messages in the database and, when Kafka is available, mirrors them to DLQTopic.
type DLQ struct {
	store DLQStore
	log   *logger.Logger

	mu     sync.Mutex
	writer messageWriter
}

func NewDLQ(cfg config.KafkaConfig, store DLQStore, log *logger.Logger) *DLQ {
	d := &DLQ{store: store, log: log}
	if cfg.Enabled() {
		d.writer = newWriter(cfg.Brokers, DLQTopic)
		log.Info("Kafka DLQ producer initialized. Brokers=%v, DLQ Topic=%s", cfg.Brokers, DLQTopic)
	}
	return d
}

// Send mirrors the message to the DLQ topic (best effort) and stores it for retry.
func (d *DLQ) Send(ctx context.Context, topic, key string, value []byte, errorMsg string) error {
	d.mu.Lock()
	writer := d.writer
	d.mu.Unlock()

	if writer != nil {
		payload, err := json.Marshal(map[string]interface{}{
			"original_topic": topic,
			"original_key":   key,
			"original_value": string(value),
			"error_message":  errorMsg,
			"timestamp":      time.Now().Unix(),
		})
		if err == nil {
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = writer.WriteMessages(writeCtx, kafka.Message{Key: []byte(key), Value: payload})
			cancel()
		}
		if err != nil && strings.Contains(strings.ToLower(err.Error()), "unknown topic") {
			d.log.Warn("DLQ topic missing on broker; disabling DLQ producer: %v", err)
			d.mu.Lock()
			d.writer = nil
			d.mu.Unlock()
		} else if err != nil {
			d.log.Warn("DLQ publish failed, storing to DB only: %v", err)
		}
	}

	return d.Store(ctx, topic, key, value, errorMsg)
}

// Store writes the message to the dlq_messages table only.
func (d *DLQ) Store(ctx context.Context, topic, key string, value []byte, errorMsg string) error {
	if !json.Valid(value) {
		value, _ = json.Marshal(string(value))
	}
	if err := d.store.StoreDLQMessage(ctx, topic, key, value, errorMsg); err != nil {
		d.log.Error("Error storing DLQ message in database: %v", err)
		return err
	}
	d.log.Info("DLQ message stored. Topic: %s, Key: %s", topic, key)
	return nil
}

// RetryPending reprocesses up to limit unresolved messages that still have retries left.
func (d *DLQ) RetryPending(ctx context.Context, limit int, retry RetryFunc) (processed, resolved int) {
	messages, err := d.store.RetryableDLQMessages(ctx, limit)
	if err != nil {
		d.log.Error("Error querying unresolved DLQ messages for retry: %v", err)
		return 0, 0
	}

	for _, m := range messages {
		ok := retry(ctx, toKafkaMessage(m))
		if err := d.store.MarkDLQRetried(ctx, m.MessageID, ok); err != nil {
			d.log.Error("Error updating DLQ message %s: %v", m.MessageID, err)
			continue
		}
		processed++
		if ok {
			resolved++
		}
		d.log.Debug("DLQ message %s retried (attempt %d/%d): success=%v", m.MessageID, m.RetryCount+1, m.MaxRetries, ok)
	}

	if processed > 0 {
		d.log.Info("DLQ auto-retry completed: processed %d messages, %d resolved", processed, resolved)
	}
	return processed, resolved
}

// RetryOne reprocesses a single message regardless of its retry budget.
func (d *DLQ) RetryOne(ctx context.Context, messageID string, retry RetryFunc) (bool, error) {
	m, err := d.store.GetDLQMessage(ctx, messageID)
	if err != nil {
		return false, err
	}
	ok := retry(ctx, toKafkaMessage(*m))
	if err := d.store.MarkDLQRetried(ctx, messageID, ok); err != nil {
		return ok, err
	}
	return ok, nil
}

func (d *DLQ) Unresolved(ctx context.Context, limit int) ([]models.DLQMessage, error) {
	return d.store.UnresolvedDLQMessages(ctx, limit)
}

func (d *DLQ) Resolve(ctx context.Context, messageID, notes string) error {
	return d.store.ResolveDLQMessage(ctx, messageID, notes)
}

func (d *DLQ) Stats(ctx context.Context) (models.DLQStats, error) {
	return d.store.DLQStats(ctx)
}

// RunAutoRetry retries parked messages every interval until ctx is cancelled.
func (d *DLQ) RunAutoRetry(ctx context.Context, interval time.Duration, retry RetryFunc) {
	if interval <= 0 {
		d.log.Info("DLQ auto-retry disabled")
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	d.log.Info("DLQ auto-retry started (every %s)", interval)
	for {
		select {
		case <-ticker.C:
			d.RetryPending(ctx, 10, retry)
		case <-ctx.Done():
			d.log.Info("DLQ auto-retry stopped")
			return
		}
	}
}

func (d *DLQ) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.writer != nil {
		return d.writer.Close()
	}
	return nil
}

func toKafkaMessage(m models.DLQMessage) kafka.Message {
	return kafka.Message{Topic: m.Topic, Key: []byte(m.Key), Value: m.Value}
}
