package p2plink

import (
	"context"
	"fmt"
	"net/netip"

	"go.uber.org/zap"

	"github.com/wfdtools/wfdlink/internal/arp"
	"github.com/wfdtools/wfdlink/internal/config"
	"github.com/wfdtools/wfdlink/internal/logging"
	"github.com/wfdtools/wfdlink/internal/retry"
	"github.com/wfdtools/wfdlink/internal/scan"
)

// Resolver determines the IP address a connected client was assigned on the
// group subnet. There is no trustworthy DHCP/ARP authority to ask, so it runs
// cheap strategies first and escalates:
//
//  1. wait for the client's DHCP lease to settle
//  2. ARP cache lookup by the client's device address
//  3. MAC-free ARP: any in-subnet neighbor that is not the owner. The
//     client's interface MAC rarely matches its device address (the platform
//     randomizes P2P interface MACs), which is why stage 2 alone is not
//     enough.
//  4. stage 3 repeated with spacing, for a not-yet-populated cache
//  5. batch-parallel subnet scan as last resort
//
// The first stage to produce an address wins.
type Resolver struct {
	reader    *arp.Reader
	scanner   *scan.Scanner
	scheduler *retry.Scheduler
	settings  config.Settings
}

// NewResolver creates a Resolver.
func NewResolver(reader *arp.Reader, scanner *scan.Scanner, scheduler *retry.Scheduler, settings config.Settings) *Resolver {
	return &Resolver{
		reader:    reader,
		scanner:   scanner,
		scheduler: scheduler,
		settings:  settings,
	}
}

// Resolve returns the client's IP on the group subnet, running the stages
// above until one succeeds. A client that has been resolved before returns
// its stored IP immediately without re-running any stage.
//
// On exhaustion it returns a KindAddressResolution error; teardown of the
// now-unusable group is the caller's decision, not the resolver's.
func (r *Resolver) Resolve(ctx context.Context, client *ConnectedClient) (netip.Addr, error) {
	if ip, ok := client.ResolvedIP(); ok {
		logging.Debug("Client already resolved",
			zap.String("peer", client.DeviceAddress),
			zap.String("ip", ip.String()),
		)
		return ip, nil
	}

	logging.Debug("Waiting for client DHCP lease to settle",
		zap.String("peer", client.DeviceAddress),
		zap.Duration("delay", r.settings.DHCPSettleDelay),
	)
	if err := r.scheduler.Sleep(ctx, r.settings.DHCPSettleDelay); err != nil {
		return netip.Addr{}, fmt.Errorf("resolution aborted: %w", err)
	}

	table := r.reader.Read()

	// Stage: MAC-based ARP. Works only when the interface MAC is not randomized.
	if ip, ok := table.LookupByMAC(client.DeviceAddress); ok {
		return r.resolved(client, "arp_mac", ip), nil
	}
	logging.LogResolutionStage(client.DeviceAddress, "arp_mac", "")

	// Stage: MAC-free ARP. As group owner, any other in-subnet address is a client.
	if ip, ok := table.FirstInPrefix(r.settings.Subnet, r.settings.OwnerAddress); ok {
		return r.resolved(client, "arp_mac_free", ip), nil
	}
	logging.LogResolutionStage(client.DeviceAddress, "arp_mac_free", "")

	// Stage: ARP retry. The cache may simply not be populated yet.
	for i := 1; i <= r.settings.ARPRetryCount; i++ {
		logging.Warn("ARP miss, retrying",
			zap.String("peer", client.DeviceAddress),
			zap.Int("attempt", i),
			zap.Int("max_attempts", r.settings.ARPRetryCount),
			zap.Duration("delay", r.settings.ARPRetryDelay),
		)
		if err := r.scheduler.Sleep(ctx, r.settings.ARPRetryDelay); err != nil {
			return netip.Addr{}, fmt.Errorf("resolution aborted: %w", err)
		}
		if ip, ok := r.reader.Read().FirstInPrefix(r.settings.Subnet, r.settings.OwnerAddress); ok {
			return r.resolved(client, "arp_retry", ip), nil
		}
	}
	logging.LogResolutionStage(client.DeviceAddress, "arp_retry", "")

	// Stage: subnet scan, last resort.
	if ip, ok := r.scanner.FindReachable(ctx, r.settings.Subnet, r.settings.ScanHostMin, r.settings.ScanHostMax); ok {
		return r.resolved(client, "subnet_scan", ip), nil
	}
	// An empty scan on a dead context says nothing about the subnet; only a
	// completed one counts as exhaustion.
	if err := ctx.Err(); err != nil {
		return netip.Addr{}, fmt.Errorf("resolution aborted: %w", err)
	}
	logging.LogResolutionStage(client.DeviceAddress, "subnet_scan", "")

	return netip.Addr{}, NewAddressResolutionError(client.DeviceAddress, nil)
}

func (r *Resolver) resolved(client *ConnectedClient, stage string, ip netip.Addr) netip.Addr {
	stored := client.markResolved(ip)
	logging.LogResolutionStage(client.DeviceAddress, stage, stored.String())
	return stored
}
