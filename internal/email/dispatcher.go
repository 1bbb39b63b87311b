package email

import (
	"context"
	"sync"
	"time"

	"milltownabc/internal/logger"
	"milltownabc/internal/metrics"
)

// Dispatcher runs best-effort work detached from the request that triggered it.
// The caller never waits for the result and never sees the error.
type Dispatcher struct {
	wg      sync.WaitGroup
	timeout time.Duration
}

func NewDispatcher(timeout time.Duration) *Dispatcher {
	return &Dispatcher{timeout: timeout}
}

func (d *Dispatcher) Go(task string, fn func(ctx context.Context) error) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("Background task panicked", "task", task, "panic", r)
				metrics.RecordBackgroundTask(task, "panic")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			logger.Warn("Background task failed", "task", task, "error", err)
			metrics.RecordBackgroundTask(task, "failed")
			return
		}
		metrics.RecordBackgroundTask(task, "ok")
	}()
}

// Wait blocks until in-flight tasks finish or ctx expires.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
