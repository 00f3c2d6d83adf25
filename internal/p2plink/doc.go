// Package p2plink establishes a link to a named peer when this device acts
// as group owner of an ad-hoc wireless group, and determines the IP address
// the peer was assigned on the group subnet.
//
// # Flow
//
// Establisher drives the whole flow:
//
//	INIT -> CONNECTING -> {SUCCESS, ERROR}
//	ERROR, budget left  -> REDISCOVERING -> CONNECTING(attempt+1)
//	ERROR, budget spent -> FAILED (terminal)
//
// A connect error triggers a fire-and-forget peer-discovery refresh before
// the retry: the usual cause of the error is the peer having fallen out of
// the platform's discovered-peer cache, and reconnecting without refreshing
// the cache just repeats the error. On connect success, GroupWatcher polls
// for group formation (bounded), locates the requested client, and Resolver
// produces its IP by escalating through ARP-cache strategies and finally a
// batch-parallel subnet scan.
//
// # Callback contract
//
// Exactly one of OnConnected/OnFailure fires, exactly once, regardless of
// how many retries ran. Failure of the group teardown performed after an
// exhausted resolution is folded into the failure message, never raised on
// its own. Cancelling the supplied context settles the flow the same way:
// OnFailure fires with the cancellation and the peer's slot frees. At most
// one flow runs per peer; concurrent duplicates are rejected synchronously
// with a KindInFlight error.
//
// # Platform surface
//
// All platform interaction goes through the PeerConnectionAPI interface.
// WpaCtl is the stock implementation over wpa_cli for Linux hosts running
// wpa_supplicant; tests use in-memory fakes.
//
// # Usage Example
//
//	api := p2plink.NewWpaCtl("wpa_cli", "wlan0")
//	settings := config.DefaultSettings()
//	scheduler := retry.NewScheduler(nil)
//	resolver := p2plink.NewResolver(
//	    arp.NewReader(nil),
//	    scan.NewScanner(scan.TCPProber{}, settings.ScanBatchSize, settings.ProbeTimeout),
//	    scheduler, settings,
//	)
//	establisher := p2plink.NewEstablisher(api, resolver, scheduler, settings)
//
//	ip, err := establisher.Establish(ctx, "aa:bb:cc:dd:ee:ff")
package p2plink
