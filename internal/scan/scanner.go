package scan

import (
	"context"
	"net/netip"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wfdtools/wfdlink/internal/logging"
)

const (
	// DefaultBatchSize is the number of concurrent probes per batch.
	DefaultBatchSize = 25

	// DefaultProbeTimeout is the per-host reachability timeout.
	DefaultProbeTimeout = 500 * time.Millisecond
)

// Result records the outcome of probing one candidate address.
// Results are never mutated after creation; the coordinator goroutine is the
// only reader once a batch has been awaited.
type Result struct {
	IP        netip.Addr
	Reachable bool
}

// Scanner probes a host range in fixed-size batches. Probes within one batch
// run concurrently and are jointly awaited; batches advance strictly in
// ascending order. This caps concurrent socket use while bounding worst-case
// latency across the full range.
type Scanner struct {
	prober       Prober
	batchSize    int
	probeTimeout time.Duration
}

// NewScanner creates a Scanner over the given prober.
// batchSize and probeTimeout fall back to the defaults when non-positive.
func NewScanner(prober Prober, batchSize int, probeTimeout time.Duration) *Scanner {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if probeTimeout <= 0 {
		probeTimeout = DefaultProbeTimeout
	}
	return &Scanner{
		prober:       prober,
		batchSize:    batchSize,
		probeTimeout: probeTimeout,
	}
}

// FindReachable scans subnet host octets [hostMin, hostMax] and returns the
// first reachable address, preferring lower addresses: scanning halts at the
// first batch containing a reachable host, and within a batch the lowest
// reachable address wins.
//
// The second return is false when the whole range was exhausted without a
// hit, or when ctx was cancelled mid-scan.
func (s *Scanner) FindReachable(ctx context.Context, subnet netip.Prefix, hostMin, hostMax int) (netip.Addr, bool) {
	base := subnet.Addr().As4()

	logging.Debug("Starting subnet scan",
		zap.String("subnet", subnet.String()),
		zap.Int("host_min", hostMin),
		zap.Int("host_max", hostMax),
		zap.Int("batch_size", s.batchSize),
	)

	for batchStart := hostMin; batchStart <= hostMax; batchStart += s.batchSize {
		if ctx.Err() != nil {
			return netip.Addr{}, false
		}

		batchEnd := batchStart + s.batchSize - 1
		if batchEnd > hostMax {
			batchEnd = hostMax
		}

		results := s.probeBatch(ctx, base, batchStart, batchEnd)

		for _, r := range results {
			if r.Reachable {
				logging.Info("Reachable host found",
					zap.String("ip", r.IP.String()),
					zap.Int("batch_start", batchStart),
					zap.Int("batch_end", batchEnd),
				)
				return r.IP, true
			}
		}
	}

	logging.Warn("No reachable host in scanned range",
		zap.Int("host_min", hostMin),
		zap.Int("host_max", hostMax),
	)
	return netip.Addr{}, false
}

// probeBatch probes [batchStart, batchEnd] concurrently and returns the
// results in ascending address order after all probes have finished.
func (s *Scanner) probeBatch(ctx context.Context, base [4]byte, batchStart, batchEnd int) []Result {
	results := make([]Result, batchEnd-batchStart+1)

	var wg sync.WaitGroup
	for i := range results {
		octets := base
		octets[3] = byte(batchStart + i)
		ip := netip.AddrFrom4(octets)

		wg.Add(1)
		go func(i int, ip netip.Addr) {
			defer wg.Done()
			results[i] = Result{
				IP:        ip,
				Reachable: s.prober.Probe(ctx, ip, s.probeTimeout),
			}
		}(i, ip)
	}
	wg.Wait()

	return results
}
