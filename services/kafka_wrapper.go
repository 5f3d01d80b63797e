package services

import (
	"context"
	"time"

	"github.com/grumming/grumming-app-sub004/logger"
	"github.com/grumming/grumming-app-sub004/models"
)

// EventPublisher writes an event to a topic. The Kafka producer implements it.
type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

// NopPublisher drops events; used when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, string, interface{}) error { return nil }

// publishEvent sends the event in the background. Event delivery never blocks or fails the caller.
func publishEvent(ctx context.Context, pub EventPublisher, log *logger.Logger, topic, key, event string, data interface{}) {
	if pub == nil {
		return
	}
	evt := models.Event{Event: event, Data: data, TS: time.Now().UTC()}
	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := pub.Publish(ctx, topic, key, evt); err != nil {
			log.Warn("Failed to publish %s event: %v", event, err)
		}
	}()
}

func orDefault(log *logger.Logger) *logger.Logger {
	if log == nil {
		return logger.Default()
	}
	return log
}
