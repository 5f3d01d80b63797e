package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/grumming/grumming-app-sub004/logger"
	"github.com/grumming/grumming-app-sub004/models"
)

// ReceiptDispatcher hands a receipt off for asynchronous delivery. A nil error means the
// task was accepted, not that the email went out.
type ReceiptDispatcher interface {
	Dispatch(ctx context.Context, req models.ReceiptRequest) error
}

// KafkaReceiptDispatcher publishes receipt.requested events on background goroutines; the receipts
// consumer delivers them. A publish that keeps failing is parked in the DLQ by the producer.
type KafkaReceiptDispatcher struct {
	pub EventPublisher
	log *logger.Logger
	wg  sync.WaitGroup
}

func NewKafkaReceiptDispatcher(pub EventPublisher, log *logger.Logger) *KafkaReceiptDispatcher {
	return &KafkaReceiptDispatcher{pub: pub, log: orDefault(log)}
}

func (d *KafkaReceiptDispatcher) Dispatch(ctx context.Context, req models.ReceiptRequest) error {
	evt := models.Event{Event: models.EventReceiptRequested, Data: req, TS: time.Now().UTC()}
	ctx = context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.pub.Publish(ctx, models.TopicReceipts, "booking-"+req.BookingID.String(), evt); err != nil {
			d.log.Error("Receipt event for booking %s not published: %v", req.BookingID, err)
		}
	}()
	return nil
}

// Wait blocks until in-flight publishes finish.
func (d *KafkaReceiptDispatcher) Wait() {
	d.wg.Wait()
}

// ReceiptSender delivers a receipt synchronously.
type ReceiptSender interface {
	Send(ctx context.Context, req models.ReceiptRequest) error
}

// DeadLetterSink parks a message that could not be processed.
type DeadLetterSink interface {
	Store(ctx context.Context, topic, key string, value []byte, errorMsg string) error
}

// AsyncReceiptDispatcher delivers receipts on background goroutines when Kafka is disabled.
// Failed deliveries are parked in the dead letter sink as receipt.requested events.
type AsyncReceiptDispatcher struct {
	sender  ReceiptSender
	dlq     DeadLetterSink
	timeout time.Duration
	log     *logger.Logger
	wg      sync.WaitGroup
}

// NewAsyncReceiptDispatcher wires the dispatcher; dlq may be nil, in which case failures are only logged.
func NewAsyncReceiptDispatcher(sender ReceiptSender, dlq DeadLetterSink, log *logger.Logger) *AsyncReceiptDispatcher {
	return &AsyncReceiptDispatcher{sender: sender, dlq: dlq, timeout: 30 * time.Second, log: orDefault(log)}
}

func (d *AsyncReceiptDispatcher) Dispatch(ctx context.Context, req models.ReceiptRequest) error {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()
		if err := d.sender.Send(sendCtx, req); err != nil {
			d.log.Error("Receipt delivery failed for booking %s: %v", req.BookingID, err)
			d.park(context.WithoutCancel(ctx), req, err)
		}
	}()
	return nil
}

func (d *AsyncReceiptDispatcher) park(ctx context.Context, req models.ReceiptRequest, cause error) {
	if d.dlq == nil {
		return
	}
	value, err := json.Marshal(models.Event{Event: models.EventReceiptRequested, Data: req, TS: time.Now().UTC()})
	if err != nil {
		d.log.Error("Error marshaling receipt event: %v", err)
		return
	}
	if err := d.dlq.Store(ctx, models.TopicReceipts, "booking-"+req.BookingID.String(), value, cause.Error()); err != nil {
		d.log.Error("Failed to park receipt for booking %s: %v", req.BookingID, err)
	}
}

// Wait blocks until in-flight deliveries finish.
func (d *AsyncReceiptDispatcher) Wait() {
	d.wg.Wait()
}
