package p2plink

import (
	"context"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/wfdtools/wfdlink/internal/arp"
	"github.com/wfdtools/wfdlink/internal/config"
	"github.com/wfdtools/wfdlink/internal/retry"
	"github.com/wfdtools/wfdlink/internal/scan"
)

// fakeAPI is an in-memory PeerConnectionAPI scripted per call.
type fakeAPI struct {
	mu sync.Mutex

	// connectErrs is consumed one per Connect call; nil entries mean
	// success. Calls beyond the script succeed.
	connectErrs []error

	// groupInfos is consumed one per RequestGroupInfo call; nil entries mean
	// "group not formed yet". Calls beyond the script repeat the last entry.
	groupInfos []*GroupInfo

	// groupErrs is consumed one per RequestGroupInfo call, ahead of
	// groupInfos; a non-nil entry makes the fetch fail. Nil entries and calls
	// beyond the script fall through to groupInfos.
	groupErrs []error

	removeErr error

	connectCalls  int
	discoverCalls int
	groupCalls    int
	removeCalls   int
}

func (f *fakeAPI) Connect(ctx context.Context, peerAddress string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectCalls++
	if len(f.connectErrs) > 0 {
		err := f.connectErrs[0]
		f.connectErrs = f.connectErrs[1:]
		return err
	}
	return nil
}

func (f *fakeAPI) DiscoverPeers(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.discoverCalls++
	return nil
}

func (f *fakeAPI) RequestGroupInfo(ctx context.Context) (*GroupInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groupCalls++
	if len(f.groupErrs) > 0 {
		err := f.groupErrs[0]
		f.groupErrs = f.groupErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	if len(f.groupInfos) == 0 {
		return nil, nil
	}
	info := f.groupInfos[0]
	if len(f.groupInfos) > 1 {
		f.groupInfos = f.groupInfos[1:]
	}
	return info, nil
}

func (f *fakeAPI) RemoveGroup(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeCalls++
	return f.removeErr
}

func (f *fakeAPI) counts() (connect, discover, group, remove int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connectCalls, f.discoverCalls, f.groupCalls, f.removeCalls
}

// stringSource feeds a fixed ARP snapshot to the reader.
type stringSource string

func (s stringSource) ReadTable() (string, error) {
	return string(s), nil
}

// seqSource feeds a different ARP snapshot per read, repeating the last one.
type seqSource struct {
	mu        sync.Mutex
	snapshots []string
}

func (s *seqSource) ReadTable() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.snapshots) == 0 {
		return "", nil
	}
	snap := s.snapshots[0]
	if len(s.snapshots) > 1 {
		s.snapshots = s.snapshots[1:]
	}
	return snap, nil
}

// noneReachable is a prober with no live hosts.
type noneReachable struct{}

func (noneReachable) Probe(ctx context.Context, ip netip.Addr, timeout time.Duration) bool {
	return false
}

// testSettings shrinks nothing: the mock clock makes the real delays free,
// and keeping them verifies the configured values are actually honored.
func testSettings() config.Settings {
	return config.DefaultSettings()
}

// autoAdvance drives a mock clock forward in small steps from a background
// goroutine until the returned stop function is called. Used for flows whose
// intermediate waits (DHCP settle, ARP retry spacing) are not themselves
// under test.
func autoAdvance(mock *clock.Mock) (stop func()) {
	done := make(chan struct{})
	var once sync.Once
	go func() {
		for {
			select {
			case <-done:
				return
			default:
				mock.Add(500 * time.Millisecond)
				time.Sleep(time.Millisecond)
			}
		}
	}()
	return func() { once.Do(func() { close(done) }) }
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// newTestResolver wires a resolver over fakes.
func newTestResolver(src arp.Source, prober scan.Prober, scheduler *retry.Scheduler, settings config.Settings) *Resolver {
	return NewResolver(
		arp.NewReader(src),
		scan.NewScanner(prober, settings.ScanBatchSize, settings.ProbeTimeout),
		scheduler,
		settings,
	)
}
