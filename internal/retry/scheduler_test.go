package retry

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

// waitForTimer gives the scheduler goroutine time to register its timer with
// the mock clock, so a subsequent Add is guaranteed to cover it.
func waitForTimer(t *testing.T, mock *clock.Mock) {
	t.Helper()
	time.Sleep(10 * time.Millisecond)
	mock.Add(0)
}

func TestScheduleRunsAfterDelay(t *testing.T) {
	mock := clock.NewMock()
	scheduler := NewScheduler(mock)

	fired := make(chan error, 1)
	scheduler.Schedule(context.Background(), 3500*time.Millisecond, func(err error) {
		fired <- err
	})
	waitForTimer(t, mock)

	// Not yet due
	mock.Add(3499 * time.Millisecond)
	select {
	case <-fired:
		t.Fatal("continuation ran before the delay elapsed")
	case <-time.After(20 * time.Millisecond):
	}

	mock.Add(time.Millisecond)
	select {
	case err := <-fired:
		if err != nil {
			t.Errorf("continuation error = %v, want nil after the delay elapsed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("continuation did not run after the delay elapsed")
	}
}

// Cancellation does not drop the continuation: it still runs, once, carrying
// the context error so the caller can settle its pending state.
func TestScheduleCancelled(t *testing.T) {
	mock := clock.NewMock()
	scheduler := NewScheduler(mock)

	ctx, cancel := context.WithCancel(context.Background())

	fired := make(chan error, 1)
	scheduler.Schedule(ctx, time.Second, func(err error) {
		fired <- err
	})
	waitForTimer(t, mock)

	cancel()

	select {
	case err := <-fired:
		if err != context.Canceled {
			t.Errorf("continuation error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("continuation did not run after cancellation")
	}

	// Exactly once: the timer firing later must not run it again.
	mock.Add(2 * time.Second)
	select {
	case <-fired:
		t.Fatal("continuation ran a second time after the timer fired")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSleep(t *testing.T) {
	mock := clock.NewMock()
	scheduler := NewScheduler(mock)

	done := make(chan error, 1)
	go func() {
		done <- scheduler.Sleep(context.Background(), 2*time.Second)
	}()
	waitForTimer(t, mock)

	mock.Add(2 * time.Second)

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Sleep() error = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Sleep() did not return after the delay elapsed")
	}
}

func TestSleepCancelled(t *testing.T) {
	mock := clock.NewMock()
	scheduler := NewScheduler(mock)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- scheduler.Sleep(ctx, time.Hour)
	}()
	waitForTimer(t, mock)

	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Sleep() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Sleep() did not return after cancellation")
	}
}

func TestNewSchedulerDefaultsToWallClock(t *testing.T) {
	scheduler := NewScheduler(nil)
	if scheduler.Clock() == nil {
		t.Fatal("NewScheduler(nil) should fall back to the wall clock")
	}

	fired := make(chan struct{})
	scheduler.Schedule(context.Background(), time.Millisecond, func(err error) {
		close(fired)
	})

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("continuation did not run on the wall clock")
	}
}
