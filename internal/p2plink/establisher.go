package p2plink

import (
	"context"
	"net/netip"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wfdtools/wfdlink/internal/config"
	"github.com/wfdtools/wfdlink/internal/logging"
	"github.com/wfdtools/wfdlink/internal/retry"
)

// Callbacks receives the terminal outcome of a connect flow. Exactly one of
// the two fires, exactly once, on a goroutine owned by the establisher.
type Callbacks struct {
	// OnConnected receives the peer's resolved IP on the group subnet.
	OnConnected func(ip string)

	// OnFailure receives a human-readable failure message.
	OnFailure func(message string)
}

// notifier enforces the single-fire contract and releases the per-peer
// in-flight slot on the terminal outcome.
type notifier struct {
	once    sync.Once
	cb      Callbacks
	release func()
}

func (n *notifier) connected(ip netip.Addr) {
	n.once.Do(func() {
		n.release()
		if n.cb.OnConnected != nil {
			n.cb.OnConnected(ip.String())
		}
	})
}

func (n *notifier) failed(message string) {
	n.once.Do(func() {
		n.release()
		if n.cb.OnFailure != nil {
			n.cb.OnFailure(message)
		}
	})
}

// Establisher drives the connect handshake to a named peer: bounded retries
// with peer rediscovery between attempts, group-formation watching, and
// client address resolution on success.
//
// At most one flow runs per peer at a time; a second Connect for a peer with
// a flow in flight is rejected immediately with a KindInFlight error.
type Establisher struct {
	api       PeerConnectionAPI
	watcher   *GroupWatcher
	resolver  *Resolver
	scheduler *retry.Scheduler
	settings  config.Settings

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewEstablisher creates an Establisher. The watcher is built internally
// over the same API and scheduler.
func NewEstablisher(api PeerConnectionAPI, resolver *Resolver, scheduler *retry.Scheduler, settings config.Settings) *Establisher {
	return &Establisher{
		api:       api,
		watcher:   NewGroupWatcher(api, scheduler, settings),
		resolver:  resolver,
		scheduler: scheduler,
		settings:  settings,
		inFlight:  make(map[string]struct{}),
	}
}

// Connect starts the asynchronous connect flow to peerAddress. It returns
// immediately; the outcome arrives through cb. The only synchronous error is
// the in-flight rejection for a duplicate concurrent connect to the same peer.
func (e *Establisher) Connect(ctx context.Context, peerAddress string, cb Callbacks) error {
	e.mu.Lock()
	if _, busy := e.inFlight[peerAddress]; busy {
		e.mu.Unlock()
		return NewInFlightError(peerAddress)
	}
	e.inFlight[peerAddress] = struct{}{}
	e.mu.Unlock()

	n := &notifier{
		cb: cb,
		release: func() {
			e.mu.Lock()
			delete(e.inFlight, peerAddress)
			e.mu.Unlock()
		},
	}

	go e.attempt(ctx, peerAddress, 1, n)
	return nil
}

// Establish is the blocking convenience form of Connect: it waits for the
// terminal outcome and returns the resolved IP or an error carrying the
// failure message.
func (e *Establisher) Establish(ctx context.Context, peerAddress string) (netip.Addr, error) {
	type outcome struct {
		ip  netip.Addr
		err error
	}
	done := make(chan outcome, 1)

	err := e.Connect(ctx, peerAddress, Callbacks{
		OnConnected: func(ip string) {
			addr, perr := netip.ParseAddr(ip)
			done <- outcome{ip: addr, err: perr}
		},
		OnFailure: func(message string) {
			done <- outcome{err: &LinkError{Kind: KindConnect, Message: message, Peer: peerAddress}}
		},
	})
	if err != nil {
		return netip.Addr{}, err
	}

	select {
	case <-ctx.Done():
		return netip.Addr{}, ctx.Err()
	case o := <-done:
		return o.ip, o.err
	}
}

// attempt runs one connect attempt and decides between resolution, retry,
// and terminal failure.
func (e *Establisher) attempt(ctx context.Context, peerAddress string, attempt int, n *notifier) {
	logging.LogConnectAttempt(peerAddress, attempt, e.settings.MaxConnectRetries, "connecting")

	if err := e.api.Connect(ctx, peerAddress); err != nil {
		e.handleConnectError(ctx, peerAddress, attempt, err, n)
		return
	}

	logging.LogConnectAttempt(peerAddress, attempt, e.settings.MaxConnectRetries, "connected")

	e.watcher.AwaitClient(ctx, peerAddress, func(client *ConnectedClient, err error) {
		if err != nil {
			n.failed(failureMessage(err))
			return
		}
		e.resolveClient(ctx, client, n)
	})
}

// handleConnectError applies the retry policy: while budget remains, refresh
// peer discovery and schedule the next attempt; otherwise fail terminally.
func (e *Establisher) handleConnectError(ctx context.Context, peerAddress string, attempt int, err error, n *notifier) {
	if attempt >= e.settings.MaxConnectRetries {
		logging.Error("Connect retry budget exhausted",
			zap.String("peer", peerAddress),
			zap.Int("attempts", attempt),
			zap.Error(err),
		)
		n.failed(failureMessage(NewConnectExhaustedError(peerAddress, attempt, err)))
		return
	}

	logging.Warn("Connect attempt failed, will retry",
		zap.String("peer", peerAddress),
		zap.Int("attempt", attempt),
		zap.Int("max_attempts", e.settings.MaxConnectRetries),
		zap.Error(err),
	)

	// A connect error usually means the peer fell out of the platform's
	// discovered-peer cache (cleared on a prior disconnect). Reconnecting
	// without refreshing the cache would hit the same error again, so a
	// discovery round is triggered first. Its own outcome is logged only;
	// it never blocks or aborts the retry.
	go func() {
		if derr := e.api.DiscoverPeers(ctx); derr != nil {
			logging.Warn("Peer discovery refresh failed", zap.Error(derr))
		} else {
			logging.Debug("Peer discovery refresh triggered")
		}
	}()

	e.scheduler.Schedule(ctx, e.settings.PeerRediscoveryDelay, func(serr error) {
		if serr != nil {
			// Cancelled while waiting out the rediscovery delay. The flow
			// still owes its terminal callback and the in-flight slot.
			n.failed("connect aborted: " + serr.Error())
			return
		}
		e.attempt(ctx, peerAddress, attempt+1, n)
	})
}

// resolveClient runs address resolution and, on exhaustion, tears down the
// group before surfacing failure: a formed group nobody can talk to would
// otherwise leak until the platform times it out.
func (e *Establisher) resolveClient(ctx context.Context, client *ConnectedClient, n *notifier) {
	ip, err := e.resolver.Resolve(ctx, client)
	if err == nil {
		logging.Info("Link established",
			zap.String("peer", client.DeviceAddress),
			zap.String("ip", ip.String()),
		)
		n.connected(ip)
		return
	}

	if !IsAddressResolution(err) {
		// Cancellation mid-resolution; no group state decision to make here.
		n.failed(failureMessage(err))
		return
	}

	message := "Could not resolve client IP"
	if terr := e.api.RemoveGroup(ctx); terr != nil {
		logging.Error("Group teardown failed after resolution failure",
			zap.String("peer", client.DeviceAddress),
			zap.Error(terr),
		)
		err = multierr.Append(err, terr)
		message += ", cleanup failed"
	}
	logging.Error("Address resolution exhausted",
		zap.String("peer", client.DeviceAddress),
		zap.Error(err),
	)
	n.failed(message)
}

// failureMessage extracts the callback message from a flow error.
func failureMessage(err error) string {
	if lerr, ok := err.(*LinkError); ok {
		return lerr.Message
	}
	return err.Error()
}
