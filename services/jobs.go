package services

import (
	"context"
	"sync"
	"time"

	"github.com/grumming/grumming-app-sub004/logger"
)

// Jobs runs named periodic tasks until the context is cancelled.
type Jobs struct {
	wg  sync.WaitGroup
	log *logger.Logger
}

func NewJobs(log *logger.Logger) *Jobs {
	return &Jobs{log: orDefault(log)}
}

// Every runs fn every interval. A non-positive interval disables the job.
func (j *Jobs) Every(ctx context.Context, name string, interval time.Duration, fn func(context.Context) error) {
	if interval <= 0 {
		j.log.Info("Job %s disabled", name)
		return
	}
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		j.log.Info("Job %s started (every %s)", name, interval)
		for {
			select {
			case <-ctx.Done():
				j.log.Info("Job %s stopped", name)
				return
			case <-ticker.C:
				start := time.Now()
				if err := fn(ctx); err != nil {
					j.log.Error("Job %s failed: %v", name, err)
					continue
				}
				j.log.Debug("Job %s finished in %s", name, time.Since(start))
			}
		}
	}()
}

// Wait blocks until every started job has returned.
func (j *Jobs) Wait() {
	j.wg.Wait()
}
