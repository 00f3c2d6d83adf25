package p2plink

import (
	"context"
	"net/netip"
	"strings"
	"sync"
)

// PeerConnectionAPI is the platform surface the link flow drives. It is
// consumed, not implemented here (WpaCtl is the stock Linux implementation);
// tests substitute fakes.
type PeerConnectionAPI interface {
	// Connect issues a connect request to the peer with the given device
	// address. A non-nil error normally carries a *ConnectError.
	Connect(ctx context.Context, peerAddress string) error

	// DiscoverPeers triggers a peer discovery round to repopulate the
	// platform's discovered-peer cache.
	DiscoverPeers(ctx context.Context) error

	// RequestGroupInfo fetches the current group state. (nil, nil) means the
	// group has not formed yet.
	RequestGroupInfo(ctx context.Context) (*GroupInfo, error)

	// RemoveGroup tears down the formed group.
	RemoveGroup(ctx context.Context) error
}

// GroupInfo is a snapshot of a formed P2P group, fetched once per resolution
// flow and discarded when the flow completes.
type GroupInfo struct {
	// IsOwner reports whether this device is the group owner.
	IsOwner bool

	// Clients are the connected clients, in the order the platform lists them.
	Clients []*ConnectedClient
}

// FindClient locates a client by device address (case-insensitive).
// Returns nil when no client matches.
func (g *GroupInfo) FindClient(deviceAddress string) *ConnectedClient {
	for _, c := range g.Clients {
		if strings.EqualFold(c.DeviceAddress, deviceAddress) {
			return c
		}
	}
	return nil
}

// ConnectedClient is one client of the group. Its resolved IP is write-once:
// the first successful resolution sticks for the life of the connection and
// later resolution calls return it without re-running any stage.
type ConnectedClient struct {
	// DeviceAddress is the client's device-level identity. Under MAC
	// randomization this differs from the link-layer address its interface
	// uses on the group subnet.
	DeviceAddress string

	mu         sync.Mutex
	resolvedIP netip.Addr
}

// NewConnectedClient creates a client record for the given device address.
func NewConnectedClient(deviceAddress string) *ConnectedClient {
	return &ConnectedClient{DeviceAddress: deviceAddress}
}

// ResolvedIP returns the stored IP and whether one has been resolved.
func (c *ConnectedClient) ResolvedIP() (netip.Addr, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resolvedIP, c.resolvedIP.IsValid()
}

// markResolved stores ip on first call. Later calls keep the original value
// and return it, preserving the write-once invariant.
func (c *ConnectedClient) markResolved(ip netip.Addr) netip.Addr {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resolvedIP.IsValid() {
		return c.resolvedIP
	}
	c.resolvedIP = ip
	return ip
}
