// Package retry provides delayed re-invocation for the connect and
// group-info polling loops.
package retry

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
)

// Scheduler is a generic "wait then resume" primitive: it runs a continuation
// after a delay without blocking the caller. It carries no per-peer state;
// attempt counting and bookkeeping live in the caller.
//
// The clock is injectable so tests can drive time with clock.NewMock().
type Scheduler struct {
	clock clock.Clock
}

// NewScheduler creates a Scheduler. A nil clk uses the wall clock.
func NewScheduler(clk clock.Clock) *Scheduler {
	if clk == nil {
		clk = clock.New()
	}
	return &Scheduler{clock: clk}
}

// Clock returns the scheduler's clock so callers that need inline waits
// (settle delays, retry spacing) share the same time source.
func (s *Scheduler) Clock() clock.Clock {
	return s.clock
}

// Schedule runs fn on its own goroutine, exactly once: with a nil error once
// delay elapses, or with ctx.Err() when ctx is cancelled first. Delivering
// the cancellation instead of dropping the continuation lets callers settle
// whatever the continuation was going to settle (callbacks, in-flight
// bookkeeping) rather than leaving it pending forever.
func (s *Scheduler) Schedule(ctx context.Context, delay time.Duration, fn func(err error)) {
	timer := s.clock.Timer(delay)
	go func() {
		defer timer.Stop()
		select {
		case <-ctx.Done():
			fn(ctx.Err())
		case <-timer.C:
			fn(nil)
		}
	}()
}

// Sleep blocks until delay elapses or ctx is cancelled. It returns ctx.Err()
// when cancelled early, nil otherwise.
func (s *Scheduler) Sleep(ctx context.Context, delay time.Duration) error {
	timer := s.clock.Timer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
