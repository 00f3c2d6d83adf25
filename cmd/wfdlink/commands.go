package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wfdtools/wfdlink/internal/arp"
	"github.com/wfdtools/wfdlink/internal/config"
	"github.com/wfdtools/wfdlink/internal/logging"
	"github.com/wfdtools/wfdlink/internal/p2plink"
	"github.com/wfdtools/wfdlink/internal/retry"
	"github.com/wfdtools/wfdlink/internal/scan"
)

// Command flags
var (
	ifaceName      string
	wpaCliPath     string
	logLevel       string
	connectTimeout int
	proberKind     string
	subnetOnly     bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&ifaceName, "interface", "", "P2P device interface (default from config file, else wlan0)")
	rootCmd.PersistentFlags().StringVar(&wpaCliPath, "wpa-cli", "", "Path to the wpa_cli binary (default from config file, else PATH)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); silent when unset")

	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(arpCmd)
	rootCmd.AddCommand(scanCmd)
}

// connectCmd runs the full link flow: connect, await group formation,
// resolve the client IP.
var connectCmd = &cobra.Command{
	Use:   "connect <peer-device-address>",
	Short: "Establish a link to a peer and resolve its IP",
	Long: `Establish a Wi-Fi Direct link to a peer and resolve its IP address.

The connect request is retried with peer rediscovery in between when the
framework rejects it. Once the group forms and the peer shows up as a
client, its IP is resolved through the ARP cache, falling back to a
subnet scan.`,
	Example: `  # Connect to a peer by its P2P device address
  wfdlink connect aa:bb:cc:dd:ee:ff

  # Use a specific interface and a longer deadline
  wfdlink connect aa:bb:cc:dd:ee:ff --interface p2p-dev-wlan0 --timeout 120`,
	Args: cobra.ExactArgs(1),
	RunE: runConnect,
}

func init() {
	connectCmd.Flags().IntVar(&connectTimeout, "timeout", 90, "Overall deadline in seconds")
	connectCmd.Flags().StringVar(&proberKind, "prober", "tcp", "Subnet scan prober (tcp, arp)")
}

func runConnect(cmd *cobra.Command, args []string) error {
	peer := args[0]
	settings := config.DefaultSettings()

	establisher, err := buildEstablisher(settings)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(connectTimeout)*time.Second)
	defer cancel()

	fmt.Printf("Connecting to %s...\n", peer)

	ip, err := establisher.Establish(ctx, peer)
	if err != nil {
		return fmt.Errorf("link failed: %w", err)
	}

	fmt.Printf("Peer %s reachable at %s\n", peer, ip)
	recordConnection(peer, ip.String())
	return nil
}

// resolveCmd runs the resolution stages against an already-formed group.
var resolveCmd = &cobra.Command{
	Use:   "resolve <peer-device-address>",
	Short: "Resolve the IP of a client in an existing group",
	Long: `Resolve the IP address of a client already connected to this group owner.

This skips connection setup and runs only the resolution stages: ARP
lookup by the peer's device address, any-client ARP fallback, bounded
ARP retries, then the subnet scan.`,
	Example: `  # Resolve a client of the current group
  wfdlink resolve aa:bb:cc:dd:ee:ff`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().StringVar(&proberKind, "prober", "tcp", "Subnet scan prober (tcp, arp)")
}

func runResolve(cmd *cobra.Command, args []string) error {
	peer := args[0]
	settings := config.DefaultSettings()
	api := newWpaCtl()

	ctx := context.Background()

	info, err := api.RequestGroupInfo(ctx)
	if err != nil {
		return fmt.Errorf("group info query failed: %w", err)
	}
	if info == nil {
		return fmt.Errorf("no P2P group is formed on this interface")
	}

	client := info.FindClient(peer)
	if client == nil {
		return fmt.Errorf("peer %s is not a client of the current group", peer)
	}

	resolver, err := buildResolver(settings)
	if err != nil {
		return err
	}

	ip, err := resolver.Resolve(ctx, client)
	if err != nil {
		return fmt.Errorf("resolution failed: %w", err)
	}

	fmt.Printf("%s\n", ip)
	recordConnection(peer, ip.String())
	return nil
}

// arpCmd dumps the parsed ARP cache.
var arpCmd = &cobra.Command{
	Use:   "arp",
	Short: "Show the parsed ARP cache",
	Long: `Parse and display the OS ARP cache (/proc/net/arp).

Incomplete entries (flags 0x0) are shown but marked; the resolution flow
ignores them.`,
	Example: `  # Dump the full ARP cache
  wfdlink arp

  # Only entries inside the Wi-Fi Direct subnet
  wfdlink arp --subnet-only`,
	RunE: runArp,
}

func init() {
	arpCmd.Flags().BoolVar(&subnetOnly, "subnet-only", false, "Only show entries inside the group subnet (192.168.49.0/24)")
}

func runArp(cmd *cobra.Command, args []string) error {
	settings := config.DefaultSettings()
	table := arp.NewReader(nil).Read()

	shown := 0
	for _, entry := range table.Entries {
		if subnetOnly && !settings.Subnet.Contains(entry.IP) {
			continue
		}
		state := ""
		if !entry.Complete() {
			state = "  (incomplete)"
		}
		fmt.Printf("%-16s %-18s %s%s\n", entry.IP, entry.HardwareAddr, entry.Interface, state)
		shown++
	}

	if shown == 0 {
		fmt.Println("No ARP entries found.")
	}
	return nil
}

// scanCmd runs the batch subnet scan on its own.
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the group subnet for a reachable host",
	Long: `Probe the Wi-Fi Direct subnet (192.168.49.2-254) in parallel batches
and print the first reachable host.

The default prober attempts a TCP connection to the echo port; a refused
connection still proves the host is up. The arp prober sends raw ARP
requests instead and requires pcap privileges.`,
	Example: `  # TCP-probe the subnet
  wfdlink scan

  # ARP-probe (needs root / CAP_NET_RAW)
  wfdlink scan --prober arp --interface p2p-wlan0-0`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVar(&proberKind, "prober", "tcp", "Prober to use (tcp, arp)")
}

func runScan(cmd *cobra.Command, args []string) error {
	settings := config.DefaultSettings()

	prober, err := newProber()
	if err != nil {
		return err
	}
	scanner := scan.NewScanner(prober, settings.ScanBatchSize, settings.ProbeTimeout)

	fmt.Printf("Scanning %s hosts .%d-.%d...\n", settings.Subnet, settings.ScanHostMin, settings.ScanHostMax)

	ip, found := scanner.FindReachable(context.Background(), settings.Subnet, settings.ScanHostMin, settings.ScanHostMax)
	if !found {
		fmt.Println("No reachable host found.")
		return nil
	}

	fmt.Printf("First reachable host: %s\n", ip)
	return nil
}

// buildEstablisher wires the full link flow against the wpa_cli backend.
func buildEstablisher(settings config.Settings) (*p2plink.Establisher, error) {
	resolver, err := buildResolver(settings)
	if err != nil {
		return nil, err
	}
	scheduler := retry.NewScheduler(nil)
	return p2plink.NewEstablisher(newWpaCtl(), resolver, scheduler, settings), nil
}

func buildResolver(settings config.Settings) (*p2plink.Resolver, error) {
	prober, err := newProber()
	if err != nil {
		return nil, err
	}
	reader := arp.NewReader(nil)
	scanner := scan.NewScanner(prober, settings.ScanBatchSize, settings.ProbeTimeout)
	scheduler := retry.NewScheduler(nil)
	return p2plink.NewResolver(reader, scanner, scheduler, settings), nil
}

func newWpaCtl() *p2plink.WpaCtl {
	path := wpaCliPath
	iface := ifaceName
	if prefs := loadPreferences(); prefs != nil {
		if path == "" {
			path = prefs.WpaCliPath
		}
		if iface == "" {
			iface = prefs.Interface
		}
	}
	if iface == "" {
		iface = "wlan0"
	}
	return p2plink.NewWpaCtl(path, iface)
}

func newProber() (scan.Prober, error) {
	switch proberKind {
	case "tcp", "":
		return scan.TCPProber{}, nil
	case "arp":
		iface := ifaceName
		if iface == "" {
			iface = "wlan0"
		}
		return scan.ARPProber{InterfaceName: iface}, nil
	default:
		return nil, fmt.Errorf("unknown prober %q (use tcp or arp)", proberKind)
	}
}

// loadPreferences returns the registry preferences, or nil when the config
// file cannot be read. Commands work fine without one.
func loadPreferences() *config.Preferences {
	registry, err := config.LoadRegistry()
	if err != nil {
		return nil
	}
	return registry.Preferences
}

// recordConnection remembers the peer's resolved IP in the registry.
// Best-effort: a read-only config dir should not fail the command.
func recordConnection(peer, ip string) {
	registry, err := config.LoadRegistry()
	if err != nil {
		return
	}
	registry.UpdatePeerLastConnected(peer, ip)
	if err := registry.Save(); err != nil {
		logging.Warn("could not save peer registry: " + err.Error())
	}
}
