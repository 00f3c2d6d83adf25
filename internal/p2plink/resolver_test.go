package p2plink

import (
	"context"
	"net/netip"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/wfdtools/wfdlink/internal/arp"
	"github.com/wfdtools/wfdlink/internal/retry"
	"github.com/wfdtools/wfdlink/internal/scan"
)

// Snapshot where the client's device address matches the cache entry (no MAC
// randomization) and a second neighbor is also present.
const matchingMACTable = `IP address       HW type     Flags       HW address            Mask     Device
192.168.49.50    0x1         0x2         12:34:56:78:9a:bc     *        p2p-wlan0-0
192.168.49.7     0x1         0x2         aa:bb:cc:dd:ee:ff     *        p2p-wlan0-0
`

// countingSource wraps a source and counts reads.
type countingSource struct {
	inner arp.Source
	reads atomic.Int32
}

func (s *countingSource) ReadTable() (string, error) {
	s.reads.Add(1)
	return s.inner.ReadTable()
}

func resolveWith(t *testing.T, src arp.Source, prober scan.Prober, client *ConnectedClient) (netip.Addr, error) {
	t.Helper()
	mock := clock.NewMock()
	scheduler := retry.NewScheduler(mock)
	r := newTestResolver(src, prober, scheduler, testSettings())

	stop := autoAdvance(mock)
	defer stop()
	return r.Resolve(context.Background(), client)
}

// The MAC-based lookup outranks the MAC-free one: with both possible, the
// entry matching the device address wins even when another neighbor sorts
// first.
func TestResolveStagePrecedence(t *testing.T) {
	client := NewConnectedClient(testPeer)

	ip, err := resolveWith(t, stringSource(matchingMACTable), noneReachable{}, client)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if ip.String() != "192.168.49.7" {
		t.Errorf("Resolve() = %s, want the MAC-matched 192.168.49.7", ip)
	}
}

func TestResolveMACFreeFallback(t *testing.T) {
	client := NewConnectedClient(testPeer)

	ip, err := resolveWith(t, stringSource(randomizedMACTable), noneReachable{}, client)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if ip.String() != "192.168.49.12" {
		t.Errorf("Resolve() = %s, want 192.168.49.12", ip)
	}
}

// An initially empty cache that fills up while the retry stage is spacing
// out its lookups resolves without reaching the scan.
func TestResolveARPRetryStage(t *testing.T) {
	src := &seqSource{snapshots: []string{emptyTable, emptyTable, randomizedMACTable}}
	client := NewConnectedClient(testPeer)

	ip, err := resolveWith(t, src, noneReachable{}, client)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if ip.String() != "192.168.49.12" {
		t.Errorf("Resolve() = %s, want 192.168.49.12", ip)
	}
}

func TestResolveScanLastResort(t *testing.T) {
	target := netip.MustParseAddr("192.168.49.40")
	prober := scan.ProbeFunc(func(ctx context.Context, ip netip.Addr, timeout time.Duration) bool {
		return ip == target
	})
	client := NewConnectedClient(testPeer)

	ip, err := resolveWith(t, stringSource(emptyTable), prober, client)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if ip != target {
		t.Errorf("Resolve() = %s, want %s", ip, target)
	}
}

func TestResolveExhaustion(t *testing.T) {
	client := NewConnectedClient(testPeer)

	_, err := resolveWith(t, stringSource(emptyTable), noneReachable{}, client)
	if !IsAddressResolution(err) {
		t.Fatalf("Resolve() error = %v, want address-resolution failure", err)
	}
	if _, ok := client.ResolvedIP(); ok {
		t.Error("client marked resolved after exhaustion")
	}
}

// A second resolution for an already-resolved client returns the stored IP
// without touching the ARP cache or the network again.
func TestResolveWriteOnce(t *testing.T) {
	src := &countingSource{inner: stringSource(randomizedMACTable)}
	client := NewConnectedClient(testPeer)

	mock := clock.NewMock()
	scheduler := retry.NewScheduler(mock)
	r := newTestResolver(src, noneReachable{}, scheduler, testSettings())

	stop := autoAdvance(mock)
	defer stop()

	first, err := r.Resolve(context.Background(), client)
	if err != nil {
		t.Fatalf("first Resolve() error = %v", err)
	}
	readsAfterFirst := src.reads.Load()

	second, err := r.Resolve(context.Background(), client)
	if err != nil {
		t.Fatalf("second Resolve() error = %v", err)
	}
	if second != first {
		t.Errorf("second Resolve() = %s, want stored %s", second, first)
	}
	if src.reads.Load() != readsAfterFirst {
		t.Errorf("second Resolve() re-read the ARP cache (%d -> %d reads)",
			readsAfterFirst, src.reads.Load())
	}
}

func TestResolveCancelledDuringSettle(t *testing.T) {
	client := NewConnectedClient(testPeer)

	mock := clock.NewMock()
	scheduler := retry.NewScheduler(mock)
	r := newTestResolver(stringSource(randomizedMACTable), noneReachable{}, scheduler, testSettings())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := r.Resolve(ctx, client)
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err == nil || IsAddressResolution(err) {
			t.Errorf("Resolve() error = %v, want a cancellation error", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Resolve() did not return after cancellation")
	}
}

// Cancellation during the scan stage is a cancellation, not exhaustion: the
// caller must not treat it as a resolution failure (and tear the group down).
func TestResolveCancelledDuringScan(t *testing.T) {
	client := NewConnectedClient(testPeer)
	ctx, cancel := context.WithCancel(context.Background())

	// The first probe kills the context, so the scan comes back empty with
	// the range unexplored.
	prober := scan.ProbeFunc(func(ctx context.Context, ip netip.Addr, timeout time.Duration) bool {
		cancel()
		return false
	})

	mock := clock.NewMock()
	scheduler := retry.NewScheduler(mock)
	r := newTestResolver(stringSource(emptyTable), prober, scheduler, testSettings())

	stop := autoAdvance(mock)
	defer stop()

	_, err := r.Resolve(ctx, client)
	if err == nil {
		t.Fatal("Resolve() succeeded on a cancelled context")
	}
	if IsAddressResolution(err) {
		t.Errorf("Resolve() error = %v, want a cancellation error, not exhaustion", err)
	}
}

// The stored IP is never overwritten, even by a later direct mark.
func TestConnectedClientWriteOnce(t *testing.T) {
	client := NewConnectedClient(testPeer)

	first := client.markResolved(netip.MustParseAddr("192.168.49.12"))
	second := client.markResolved(netip.MustParseAddr("192.168.49.40"))

	if first.String() != "192.168.49.12" {
		t.Errorf("first mark = %s, want 192.168.49.12", first)
	}
	if second != first {
		t.Errorf("second mark = %s, want the original %s", second, first)
	}
	if ip, ok := client.ResolvedIP(); !ok || ip != first {
		t.Errorf("ResolvedIP() = %s, %v; want %s, true", ip, ok, first)
	}
}
