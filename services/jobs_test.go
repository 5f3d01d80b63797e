package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestJobsRunUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	jobs := NewJobs(quietLog)
	var runs int32

	jobs.Every(ctx, "tick", 5*time.Millisecond, func(context.Context) error {
		atomic.AddInt32(&runs, 1)
		return nil
	})
	jobs.Every(ctx, "disabled", 0, func(context.Context) error {
		t.Error("disabled job ran")
		return nil
	})

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&runs) >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	jobs.Wait()
}
