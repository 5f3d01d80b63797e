package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/grumming/grumming-app-sub004/config"
	"github.com/grumming/grumming-app-sub004/logger"
	"github.com/segmentio/kafka-go"
)

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// HandlerFunc handles the data of one event type.
type HandlerFunc func(ctx context.Context, data json.RawMessage) error

// Consumer reads one topic in a consumer group and routes events by their "event" field.
type Consumer struct {
	reader messageReader
	topic  string
	dlq    *DLQ
	log    *logger.Logger

	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// NewConsumer returns nil when no brokers are configured.
func NewConsumer(cfg config.KafkaConfig, topic string, dlq *DLQ, log *logger.Logger) *Consumer {
	if !cfg.Enabled() {
		log.Info("Kafka consumer is disabled (KAFKA_BROKERS is empty)")
		return nil
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:          cfg.Brokers,
		Topic:            topic,
		GroupID:          cfg.GroupID,
		StartOffset:      kafka.LastOffset,
		CommitInterval:   time.Second,
		MaxBytes:         10e6,
		SessionTimeout:   20 * time.Second,
		ReadBackoffMin:   100 * time.Millisecond,
		ReadBackoffMax:   time.Second,
		QueueCapacity:    100,
		RebalanceTimeout: 60 * time.Second,
	})
	log.Info("Kafka consumer initialized. Brokers=%v, Topic=%s, ConsumerGroup=%s", cfg.Brokers, topic, cfg.GroupID)
	return newConsumer(reader, topic, dlq, log)
}

// NewLocalConsumer returns a consumer without a reader. It routes DLQ reprocessing to the
// registered handlers when Kafka is disabled.
func NewLocalConsumer(topic string, dlq *DLQ, log *logger.Logger) *Consumer {
	return newConsumer(nil, topic, dlq, log)
}

func newConsumer(reader messageReader, topic string, dlq *DLQ, log *logger.Logger) *Consumer {
	return &Consumer{reader: reader, topic: topic, dlq: dlq, log: log, handlers: make(map[string]HandlerFunc)}
}

// Handle registers fn for events of the given type.
func (c *Consumer) Handle(eventType string, fn HandlerFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[eventType] = fn
}

// Run reads messages until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	if c.reader == nil {
		return
	}
	c.log.Info("Kafka consumer started on topic %s", c.topic)
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.log.Info("Kafka consumer on %s stopped", c.topic)
				return
			}
			if strings.Contains(err.Error(), "Group Coordinator Not Available") {
				time.Sleep(500 * time.Millisecond)
			} else {
				c.log.Debug("Kafka read error on %s: %v", c.topic, err)
				time.Sleep(time.Second)
			}
			continue
		}
		c.Process(ctx, msg)
	}
}

// Process handles one message and parks it in the DLQ on failure.
func (c *Consumer) Process(ctx context.Context, msg kafka.Message) bool {
	if err := c.dispatch(ctx, msg); err != nil {
		c.log.Error("Error handling message on %s: %v", msg.Topic, err)
		if c.dlq != nil {
			_ = c.dlq.Send(ctx, msg.Topic, string(msg.Key), msg.Value, err.Error())
		}
		return false
	}
	return true
}

// Reprocess handles a message taken from the DLQ without parking it again.
func (c *Consumer) Reprocess(ctx context.Context, msg kafka.Message) bool {
	if err := c.dispatch(ctx, msg); err != nil {
		c.log.Warn("DLQ reprocess failed: %v", err)
		return false
	}
	return true
}

// Handles reports whether the message carries an event this consumer has a handler for.
func (c *Consumer) Handles(msg kafka.Message) bool {
	eventType, _, err := decodeEnvelope(msg.Value)
	if err != nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.handlers[eventType]
	return ok
}

func (c *Consumer) dispatch(ctx context.Context, msg kafka.Message) error {
	eventType, data, err := decodeEnvelope(msg.Value)
	if err != nil {
		return err
	}

	c.mu.RLock()
	fn, ok := c.handlers[eventType]
	c.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	c.log.Debug("Handling event %s", eventType)
	return fn(ctx, data)
}

func decodeEnvelope(value []byte) (string, json.RawMessage, error) {
	var env struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(value, &env); err != nil {
		return "", nil, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	if env.Event == "" {
		return "", nil, fmt.Errorf("message does not contain valid event type")
	}
	return env.Event, env.Data, nil
}

func (c *Consumer) Close() error {
	if c.reader == nil {
		return nil
	}
	return c.reader.Close()
}

// Retrier routes a parked message to its handler when the consumer knows the event, and
// republishes it otherwise.
func Retrier(consumer *Consumer, producer *Producer) RetryFunc {
	return func(ctx context.Context, msg kafka.Message) bool {
		if consumer != nil && consumer.Handles(msg) {
			return consumer.Reprocess(ctx, msg)
		}
		if producer == nil {
			return false
		}
		return producer.writeOnce(ctx, msg) == nil
	}
}
