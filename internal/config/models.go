package config

import "time"

// Registry represents the entire user configuration file.
// This stores user-defined metadata for known peers and application preferences.
type Registry struct {
	Version     int              `yaml:"version"`
	Peers       map[string]*Peer `yaml:"peers,omitempty"` // Keyed by peer device address
	Preferences *Preferences     `yaml:"preferences,omitempty"`
}

// Peer represents user-defined metadata for a single peer device.
// This is keyed by the peer's device address in the Registry.
type Peer struct {
	Nickname      string    `yaml:"nickname,omitempty"`       // User-friendly name
	LastIP        string    `yaml:"last_ip,omitempty"`        // Last resolved IP address
	LastConnected time.Time `yaml:"last_connected,omitempty"` // Last successful link time
}

// Preferences represents application-wide user preferences.
type Preferences struct {
	Interface  string `yaml:"interface,omitempty"`    // P2P group interface name (e.g., "p2p-wlan0-0")
	WpaCliPath string `yaml:"wpa_cli_path,omitempty"` // Path to the wpa_cli binary
	LogLevel   string `yaml:"log_level,omitempty"`    // Default log level when env var unset
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version: 1,
		Peers:   make(map[string]*Peer),
		Preferences: &Preferences{
			WpaCliPath: "wpa_cli",
		},
	}
}

// GetPeer retrieves peer metadata by device address.
// Returns nil if the peer doesn't exist in the registry.
func (r *Registry) GetPeer(deviceAddress string) *Peer {
	return r.Peers[deviceAddress]
}

// EnsurePeer ensures a peer entry exists in the registry.
// If the peer doesn't exist, creates a new entry with default values.
// Returns the peer entry (existing or newly created).
func (r *Registry) EnsurePeer(deviceAddress string) *Peer {
	if r.Peers == nil {
		r.Peers = make(map[string]*Peer)
	}

	if peer, exists := r.Peers[deviceAddress]; exists {
		return peer
	}

	peer := &Peer{}
	r.Peers[deviceAddress] = peer
	return peer
}

// UpdatePeerLastConnected records a successful link to a peer along with the
// IP address the resolution flow produced for it.
func (r *Registry) UpdatePeerLastConnected(deviceAddress, ip string) {
	peer := r.EnsurePeer(deviceAddress)
	peer.LastConnected = time.Now()
	peer.LastIP = ip
}
