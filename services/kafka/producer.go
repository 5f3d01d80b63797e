package kafka

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/grumming/grumming-app-sub004/config"
	"github.com/grumming/grumming-app-sub004/logger"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes JSON events. Messages that still fail after the retries are parked in the DLQ.
type Producer struct {
	mu      sync.Mutex
	writer  messageWriter
	brokers []string
	dlq     *DLQ
	log     *logger.Logger

	attempts int
	backoff  time.Duration
}

// NewProducer returns nil when no brokers are configured.
func NewProducer(cfg config.KafkaConfig, dlq *DLQ, log *logger.Logger) *Producer {
	if !cfg.Enabled() {
		log.Info("Kafka is disabled (KAFKA_BROKERS is empty)")
		return nil
	}

	p := &Producer{
		writer:   newWriter(cfg.Brokers, ""),
		brokers:  cfg.Brokers,
		dlq:      dlq,
		log:      log,
		attempts: 3,
		backoff:  time.Second,
	}
	log.Info("Kafka producer initialized. Brokers=%v", cfg.Brokers)
	return p
}

func newWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireAll,
	}
}

// EnsureTopics creates the given topics in the background, retrying with exponential backoff
// while the brokers come up.
func (p *Producer) EnsureTopics(topics ...string) {
	go func() {
		const maxRetries = 5
		for attempt := 0; attempt < maxRetries; attempt++ {
			time.Sleep(time.Duration(math.Pow(2, float64(attempt))) * time.Second)

			conn, err := kafka.Dial("tcp", p.brokers[0])
			if err != nil {
				if attempt == maxRetries-1 {
					p.log.Warn("Could not connect to Kafka broker for topic creation after %d attempts: %v", maxRetries, err)
				}
				continue
			}

			ok := 0
			for _, topic := range topics {
				err := conn.CreateTopics(kafka.TopicConfig{Topic: topic, NumPartitions: 1, ReplicationFactor: 1})
				if err == nil || strings.Contains(err.Error(), "already exists") {
					ok++
				}
			}
			conn.Close()

			if ok == len(topics) {
				p.log.Debug("Kafka topics ready: %v", topics)
				return
			}
		}
	}()
}

// Publish marshals value to JSON and writes it to topic.
func (p *Producer) Publish(ctx context.Context, topic, key string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		p.log.Error("Error marshaling Kafka message: %v", err)
		return err
	}
	return p.PublishRaw(ctx, kafka.Message{Topic: topic, Key: []byte(key), Value: payload})
}

// PublishRaw writes an already encoded message, retrying with exponential backoff.
func (p *Producer) PublishRaw(ctx context.Context, msg kafka.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt < p.attempts; attempt++ {
		writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := p.writer.WriteMessages(writeCtx, msg)
		cancel()
		if err == nil {
			return nil
		}

		lastErr = err
		p.log.Warn("Kafka publish attempt %d failed: %v", attempt+1, err)

		if attempt < p.attempts-1 {
			select {
			case <-time.After(time.Duration(math.Pow(2, float64(attempt))) * p.backoff):
			case <-ctx.Done():
				lastErr = ctx.Err()
				attempt = p.attempts
			}
		}
	}

	if p.dlq != nil {
		p.log.Info("Sending failed message to DLQ. Topic: %s, Key: %s", msg.Topic, string(msg.Key))
		if dlqErr := p.dlq.Store(context.WithoutCancel(ctx), msg.Topic, string(msg.Key), msg.Value, lastErr.Error()); dlqErr != nil {
			p.log.Error("Failed to send message to DLQ: %v", dlqErr)
		}
	}
	return lastErr
}

func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writer.Close()
}

// writeOnce publishes without retries or DLQ parking; the DLQ retrier owns those.
func (p *Producer) writeOnce(ctx context.Context, msg kafka.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return p.writer.WriteMessages(writeCtx, msg)
}
