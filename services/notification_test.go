package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/grumming/grumming-app-sub004/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	keys   []string
	values []interface{}
}

func (p *recordingPublisher) Publish(_ context.Context, topic, key string, value interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.keys = append(p.keys, key)
	p.values = append(p.values, value)
	return nil
}

type failingSender struct{ err error }

func (s failingSender) Send(context.Context, models.ReceiptRequest) error { return s.err }

type memSink struct {
	mu     sync.Mutex
	topics []string
	values [][]byte
	errs   []string
}

func (s *memSink) Store(_ context.Context, topic, _ string, value []byte, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topics = append(s.topics, topic)
	s.values = append(s.values, value)
	s.errs = append(s.errs, errorMsg)
	return nil
}

func TestKafkaReceiptDispatcherPublishesEvent(t *testing.T) {
	pub := &recordingPublisher{}
	req := sampleReceipt()

	d := NewKafkaReceiptDispatcher(pub, quietLog)
	require.NoError(t, d.Dispatch(context.Background(), req))
	d.Wait()

	require.Len(t, pub.topics, 1)
	assert.Equal(t, models.TopicReceipts, pub.topics[0])
	assert.Equal(t, "booking-"+req.BookingID.String(), pub.keys[0])
	evt, ok := pub.values[0].(models.Event)
	require.True(t, ok)
	assert.Equal(t, models.EventReceiptRequested, evt.Event)
}

type slowPublisher struct {
	release chan struct{}
	done    chan struct{}
}

func (p *slowPublisher) Publish(context.Context, string, string, interface{}) error {
	<-p.release
	close(p.done)
	return fmt.Errorf("broker unavailable")
}

func TestKafkaReceiptDispatcherDoesNotWaitForBroker(t *testing.T) {
	pub := &slowPublisher{release: make(chan struct{}), done: make(chan struct{})}
	d := NewKafkaReceiptDispatcher(pub, quietLog)

	returned := make(chan error, 1)
	go func() { returned <- d.Dispatch(context.Background(), sampleReceipt()) }()

	select {
	case err := <-returned:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Dispatch blocked on the publisher")
	}

	close(pub.release)
	d.Wait()
	<-pub.done
}

func TestAsyncReceiptDispatcherParksFailures(t *testing.T) {
	sink := &memSink{}
	d := NewAsyncReceiptDispatcher(failingSender{err: fmt.Errorf("smtp down")}, sink, quietLog)

	require.NoError(t, d.Dispatch(context.Background(), sampleReceipt()))
	d.Wait()

	require.Len(t, sink.values, 1)
	assert.Equal(t, models.TopicReceipts, sink.topics[0])
	assert.Equal(t, "smtp down", sink.errs[0])

	var env struct {
		Event string                `json:"event"`
		Data  models.ReceiptRequest `json:"data"`
	}
	require.NoError(t, json.Unmarshal(sink.values[0], &env))
	assert.Equal(t, models.EventReceiptRequested, env.Event)
	assert.Equal(t, "guest@example.com", env.Data.Email)
}

func TestAsyncReceiptDispatcherDelivers(t *testing.T) {
	mailer := &recordingMailer{}
	sink := &memSink{}
	d := NewAsyncReceiptDispatcher(NewReceiptService(mailer, nil, nil, quietLog), sink, quietLog)

	require.NoError(t, d.Dispatch(context.Background(), sampleReceipt()))
	d.Wait()

	assert.Len(t, mailer.sent, 1)
	assert.Empty(t, sink.values)
}
