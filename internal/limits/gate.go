package limits

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrQueueTimeout is returned when a gate acquisition exceeds the configured
// queue timeout. With no timeout configured, callers wait indefinitely.
var ErrQueueTimeout = errors.New("timed out waiting for inference slot")

// Gate bounds the number of concurrently admitted inference calls for one
// model kind. Gates are independent: serializing alignment does not block
// recognition or synthesis.
type Gate struct {
	name         string
	sem          *semaphore.Weighted
	queueTimeout time.Duration
}

// NewGate returns a gate admitting at most bound concurrent holders.
// A bound below 1 is treated as 1. queueTimeout of zero means wait forever.
func NewGate(name string, bound int, queueTimeout time.Duration) *Gate {
	if bound < 1 {
		bound = 1
	}
	return &Gate{
		name:         name,
		sem:          semaphore.NewWeighted(int64(bound)),
		queueTimeout: queueTimeout,
	}
}

// Name identifies the gate in logs and metrics.
func (g *Gate) Name() string { return g.name }

// Acquire blocks until a slot is free, the context is canceled, or the
// queue timeout elapses.
func (g *Gate) Acquire(ctx context.Context) error {
	if g.queueTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.queueTimeout)
		defer cancel()
	}
	if err := g.sem.Acquire(ctx, 1); err != nil {
		if g.queueTimeout > 0 && errors.Is(err, context.DeadlineExceeded) {
			return ErrQueueTimeout
		}
		return err
	}
	return nil
}

// Release frees a previously acquired slot. Callers must pair every
// successful Acquire with exactly one Release.
func (g *Gate) Release() {
	g.sem.Release(1)
}
