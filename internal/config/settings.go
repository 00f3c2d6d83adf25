package config

import (
	"net/netip"
	"time"
)

// Settings holds the fixed tuning parameters of the link-establishment and
// address-resolution flow. A single immutable value is created at process
// start (DefaultSettings) and passed down; nothing mutates it afterwards.
type Settings struct {
	// MaxConnectRetries is the total connect attempt budget per peer.
	MaxConnectRetries int

	// ConnectRetryDelay is the generic delay between connect retries when no
	// peer rediscovery is required.
	ConnectRetryDelay time.Duration

	// PeerRediscoveryDelay is the wait after triggering peer rediscovery
	// before the next connect attempt. Rediscovery needs a few seconds to
	// repopulate the platform's peer cache.
	PeerRediscoveryDelay time.Duration

	// DHCPSettleDelay is the wait after group formation before the first ARP
	// lookup, allowing the client's DHCP lease to be assigned.
	DHCPSettleDelay time.Duration

	// GroupInfoRetryDelay is the delay between group-info polls while the
	// group is still forming.
	GroupInfoRetryDelay time.Duration

	// MaxGroupInfoAttempts bounds the group-info poll loop.
	MaxGroupInfoAttempts int

	// ARPRetryCount is how many times the MAC-free ARP lookup is repeated
	// when the cache has not been populated yet.
	ARPRetryCount int

	// ARPRetryDelay is the spacing between ARP lookup retries.
	ARPRetryDelay time.Duration

	// ScanBatchSize is the number of concurrent probes per subnet-scan batch.
	ScanBatchSize int

	// ProbeTimeout is the per-host reachability probe timeout.
	ProbeTimeout time.Duration

	// Subnet is the group-owner subnet clients receive their leases from.
	Subnet netip.Prefix

	// OwnerAddress is this device's own address on the group subnet.
	OwnerAddress netip.Addr

	// ScanHostMin and ScanHostMax delimit the host octet range covered by
	// the subnet scan.
	ScanHostMin int
	ScanHostMax int
}

// DefaultSettings returns the standard Wi-Fi Direct group-owner settings.
// The 192.168.49.0/24 subnet and the .1 owner address are fixed by the
// platform; the delays match observed DHCP and peer-cache behavior.
func DefaultSettings() Settings {
	return Settings{
		MaxConnectRetries:    3,
		ConnectRetryDelay:    2000 * time.Millisecond,
		PeerRediscoveryDelay: 3500 * time.Millisecond,
		DHCPSettleDelay:      2000 * time.Millisecond,
		GroupInfoRetryDelay:  1000 * time.Millisecond,
		MaxGroupInfoAttempts: 10,
		ARPRetryCount:        3,
		ARPRetryDelay:        2000 * time.Millisecond,
		ScanBatchSize:        25,
		ProbeTimeout:         500 * time.Millisecond,
		Subnet:               netip.MustParsePrefix("192.168.49.0/24"),
		OwnerAddress:         netip.MustParseAddr("192.168.49.1"),
		ScanHostMin:          2,
		ScanHostMax:          254,
	}
}

// Validate checks the settings for internally inconsistent values.
// DefaultSettings always validates; this guards hand-built test settings.
func (s Settings) Validate() error {
	if s.MaxConnectRetries < 1 {
		return newSettingsError("MaxConnectRetries must be at least 1")
	}
	if s.MaxGroupInfoAttempts < 1 {
		return newSettingsError("MaxGroupInfoAttempts must be at least 1")
	}
	if s.ScanBatchSize < 1 {
		return newSettingsError("ScanBatchSize must be at least 1")
	}
	if s.ScanHostMin < 1 || s.ScanHostMax > 254 || s.ScanHostMin > s.ScanHostMax {
		return newSettingsError("scan host range must fall within [1, 254]")
	}
	if !s.Subnet.IsValid() || !s.Subnet.Addr().Is4() {
		return newSettingsError("Subnet must be a valid IPv4 prefix")
	}
	if !s.Subnet.Contains(s.OwnerAddress) {
		return newSettingsError("OwnerAddress must lie inside Subnet")
	}
	return nil
}

type settingsError struct {
	msg string
}

func newSettingsError(msg string) error {
	return &settingsError{msg: msg}
}

func (e *settingsError) Error() string {
	return "invalid settings: " + e.msg
}
