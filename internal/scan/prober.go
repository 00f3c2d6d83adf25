package scan

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"strconv"
	"syscall"
	"time"
)

// Prober answers whether a single address responds within a timeout.
type Prober interface {
	Probe(ctx context.Context, ip netip.Addr, timeout time.Duration) bool
}

// ProbeFunc adapts a function to the Prober interface.
type ProbeFunc func(ctx context.Context, ip netip.Addr, timeout time.Duration) bool

// Probe implements Prober.
func (f ProbeFunc) Probe(ctx context.Context, ip netip.Addr, timeout time.Duration) bool {
	return f(ctx, ip, timeout)
}

// DefaultProbePort is the TCP port probed by TCPProber when none is set.
// Port 7 (echo) matches the platform isReachable fallback when ICMP is not
// permitted for unprivileged processes.
const DefaultProbePort = 7

// TCPProber probes reachability with a TCP connection attempt.
//
// A completed handshake proves the host is up; so does an immediate
// connection refusal, since a RST can only come from a live host. Only
// timeouts and unreachable errors count as a miss.
type TCPProber struct {
	// Port to dial. Zero means DefaultProbePort.
	Port int
}

// Probe implements Prober.
func (p TCPProber) Probe(ctx context.Context, ip netip.Addr, timeout time.Duration) bool {
	port := p.Port
	if port == 0 {
		port = DefaultProbePort
	}

	dialer := net.Dialer{Timeout: timeout}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := dialer.DialContext(dialCtx, "tcp", net.JoinHostPort(ip.String(), strconv.Itoa(port)))
	if err == nil {
		conn.Close()
		return true
	}
	// Refused means something answered.
	return errors.Is(err, syscall.ECONNREFUSED)
}
