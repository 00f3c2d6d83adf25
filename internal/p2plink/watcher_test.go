package p2plink

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/wfdtools/wfdlink/internal/retry"
)

func TestAwaitClientRetriesWhilePending(t *testing.T) {
	mock := clock.NewMock()
	settings := testSettings()
	api := &fakeAPI{
		// Two empty polls, then the formed group.
		groupInfos: []*GroupInfo{nil, nil, groupWithClient(testPeer)},
	}
	w := NewGroupWatcher(api, retry.NewScheduler(mock), settings)

	var got atomic.Value
	w.AwaitClient(context.Background(), testPeer, func(client *ConnectedClient, err error) {
		if err != nil {
			t.Errorf("AwaitClient() error = %v", err)
			return
		}
		got.Store(client.DeviceAddress)
	})

	// First poll runs inline and comes back empty.
	if _, _, group, _ := api.counts(); group != 1 {
		t.Fatalf("group polls = %d, want 1", group)
	}

	// The second poll waits out the retry delay.
	time.Sleep(10 * time.Millisecond)
	mock.Add(settings.GroupInfoRetryDelay - time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	if _, _, group, _ := api.counts(); group != 1 {
		t.Fatalf("second poll ran before the retry delay elapsed")
	}
	mock.Add(time.Millisecond)
	waitFor(t, "second poll", func() bool {
		_, _, group, _ := api.counts()
		return group == 2
	})

	time.Sleep(10 * time.Millisecond)
	mock.Add(settings.GroupInfoRetryDelay)
	waitFor(t, "client located", func() bool { return got.Load() != nil })

	if got.Load() != testPeer {
		t.Errorf("located client = %v, want %s", got.Load(), testPeer)
	}
}

func TestAwaitClientPollBudget(t *testing.T) {
	mock := clock.NewMock()
	settings := testSettings()
	api := &fakeAPI{} // group never forms
	w := NewGroupWatcher(api, retry.NewScheduler(mock), settings)

	var failures atomic.Int32
	w.AwaitClient(context.Background(), testPeer, func(client *ConnectedClient, err error) {
		if client != nil {
			t.Error("AwaitClient() produced a client from a never-formed group")
		}
		var lerr *LinkError
		if !errors.As(err, &lerr) || lerr.Kind != KindGroupInfoUnavailable {
			t.Errorf("AwaitClient() error = %v, want KindGroupInfoUnavailable", err)
		}
		failures.Add(1)
	})

	stop := autoAdvance(mock)
	defer stop()
	waitFor(t, "terminal failure", func() bool { return failures.Load() == 1 })
	stop()

	if _, _, group, _ := api.counts(); group != settings.MaxGroupInfoAttempts {
		t.Errorf("group polls = %d, want %d", group, settings.MaxGroupInfoAttempts)
	}

	// Budget is spent: no further polls regardless of time.
	mock.Add(time.Minute)
	time.Sleep(20 * time.Millisecond)
	if _, _, group, _ := api.counts(); group != settings.MaxGroupInfoAttempts {
		t.Errorf("group polled after terminal failure: %d calls", group)
	}
}

// A transport error from the group-info fetch is transient, retried on the
// same budget as a not-yet-formed group.
func TestAwaitClientRetriesAfterFetchError(t *testing.T) {
	mock := clock.NewMock()
	api := &fakeAPI{
		groupErrs:  []error{errors.New("control socket closed")},
		groupInfos: []*GroupInfo{groupWithClient(testPeer)},
	}
	w := NewGroupWatcher(api, retry.NewScheduler(mock), testSettings())

	var got atomic.Value
	w.AwaitClient(context.Background(), testPeer, func(client *ConnectedClient, err error) {
		if err != nil {
			t.Errorf("AwaitClient() error = %v", err)
			return
		}
		got.Store(client.DeviceAddress)
	})

	time.Sleep(10 * time.Millisecond)
	mock.Add(testSettings().GroupInfoRetryDelay)
	waitFor(t, "client located after fetch error", func() bool { return got.Load() != nil })

	if _, _, group, _ := api.counts(); group != 2 {
		t.Errorf("group polls = %d, want 2 (errored poll plus retry)", group)
	}
}

// Cancellation between polls still settles the flow: done fires once with
// the context error instead of the poll silently evaporating.
func TestAwaitClientCancelledBetweenPolls(t *testing.T) {
	mock := clock.NewMock()
	api := &fakeAPI{} // group never forms
	w := NewGroupWatcher(api, retry.NewScheduler(mock), testSettings())

	ctx, cancel := context.WithCancel(context.Background())
	outcome := make(chan error, 1)
	w.AwaitClient(ctx, testPeer, func(client *ConnectedClient, err error) {
		if client != nil {
			t.Error("AwaitClient() produced a client from a never-formed group")
		}
		outcome <- err
	})

	// First poll ran inline and the retry is pending.
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-outcome:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("AwaitClient() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("done never fired after cancellation")
	}

	mock.Add(time.Minute)
	time.Sleep(20 * time.Millisecond)
	if _, _, group, _ := api.counts(); group != 1 {
		t.Errorf("group polls = %d, want 1 (no poll on a dead context)", group)
	}
}

func TestAwaitClientNotFoundIsImmediate(t *testing.T) {
	mock := clock.NewMock()
	api := &fakeAPI{groupInfos: []*GroupInfo{groupWithClient("11:22:33:44:55:66")}}
	w := NewGroupWatcher(api, retry.NewScheduler(mock), testSettings())

	var failures atomic.Int32
	w.AwaitClient(context.Background(), testPeer, func(client *ConnectedClient, err error) {
		if !IsClientNotFound(err) {
			t.Errorf("AwaitClient() error = %v, want client-not-found", err)
		}
		failures.Add(1)
	})

	if failures.Load() != 1 {
		t.Fatalf("done fired %d times, want 1 (inline)", failures.Load())
	}
	if _, _, group, _ := api.counts(); group != 1 {
		t.Errorf("group polls = %d, want 1 (no retry on missing client)", group)
	}
}

func TestFindClientIsCaseInsensitive(t *testing.T) {
	info := groupWithClient("AA:BB:CC:DD:EE:FF")
	if info.FindClient("aa:bb:cc:dd:ee:ff") == nil {
		t.Error("FindClient() should match device addresses case-insensitively")
	}
	if info.FindClient("aa:bb:cc:dd:ee:00") != nil {
		t.Error("FindClient() matched a different device address")
	}
}
