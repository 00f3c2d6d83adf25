package p2plink

import (
	"context"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/wfdtools/wfdlink/internal/logging"
)

// WpaCtl is the stock Linux PeerConnectionAPI, driving wpa_supplicant
// through the wpa_cli control utility.
//
// Connect and discovery run against the P2P device interface; group-scoped
// queries run against the group interface wpa_supplicant spawns once a group
// forms (named "p2p-<iface>-<n>").
type WpaCtl struct {
	// Path is the wpa_cli binary. Empty means "wpa_cli" on PATH.
	Path string

	// Interface is the P2P device interface (e.g. "wlan0" or "p2p-dev-wlan0").
	Interface string

	// run is swappable for tests.
	run func(ctx context.Context, args ...string) (string, error)
}

// NewWpaCtl creates a WpaCtl for the given device interface.
func NewWpaCtl(path, iface string) *WpaCtl {
	w := &WpaCtl{Path: path, Interface: iface}
	w.run = w.execWpaCli
	return w
}

func (w *WpaCtl) execWpaCli(ctx context.Context, args ...string) (string, error) {
	path := w.Path
	if path == "" {
		path = "wpa_cli"
	}
	out, err := exec.CommandContext(ctx, path, args...).Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// Connect implements PeerConnectionAPI via "p2p_connect <peer> pbc".
func (w *WpaCtl) Connect(ctx context.Context, peerAddress string) error {
	out, err := w.run(ctx, "-i", w.Interface, "p2p_connect", peerAddress, "pbc")
	if err != nil {
		logging.Warn("wpa_cli p2p_connect failed", zap.Error(err))
		return NewConnectError(CodeInternal)
	}
	return classifyWpaResult(out)
}

// DiscoverPeers implements PeerConnectionAPI via "p2p_find".
func (w *WpaCtl) DiscoverPeers(ctx context.Context) error {
	out, err := w.run(ctx, "-i", w.Interface, "p2p_find")
	if err != nil {
		return NewConnectError(CodeInternal)
	}
	return classifyWpaResult(out)
}

// RequestGroupInfo implements PeerConnectionAPI. It returns (nil, nil) while
// no group interface exists yet.
func (w *WpaCtl) RequestGroupInfo(ctx context.Context) (*GroupInfo, error) {
	groupIface, ok, err := w.findGroupInterface(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	status, err := w.run(ctx, "-i", groupIface, "status")
	if err != nil {
		return nil, err
	}
	info := &GroupInfo{
		IsOwner: strings.Contains(status, "mode=P2P GO"),
	}

	stas, err := w.run(ctx, "-i", groupIface, "all_sta")
	if err != nil {
		// A GO with no stations yet answers with empty output; a transport
		// error just means the client list is unknown for this poll.
		return info, nil
	}
	for _, sta := range parseStationAddresses(stas) {
		info.Clients = append(info.Clients, NewConnectedClient(w.deviceAddressOf(ctx, groupIface, sta)))
	}
	return info, nil
}

// RemoveGroup implements PeerConnectionAPI via "p2p_group_remove".
func (w *WpaCtl) RemoveGroup(ctx context.Context) error {
	groupIface, ok, err := w.findGroupInterface(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return nil // nothing to tear down
	}
	out, err := w.run(ctx, "-i", w.Interface, "p2p_group_remove", groupIface)
	if err != nil {
		return NewConnectError(CodeInternal)
	}
	return classifyWpaResult(out)
}

// findGroupInterface scans "wpa_cli interface" output for the group
// interface wpa_supplicant creates on formation.
func (w *WpaCtl) findGroupInterface(ctx context.Context) (string, bool, error) {
	out, err := w.run(ctx, "interface")
	if err != nil {
		return "", false, err
	}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "p2p-") && !strings.HasPrefix(line, "p2p-dev-") {
			return line, true, nil
		}
	}
	return "", false, nil
}

// deviceAddressOf maps a station's interface MAC to its P2P device address
// via "sta <mac>". Falls back to the interface MAC when the mapping is not
// reported.
func (w *WpaCtl) deviceAddressOf(ctx context.Context, groupIface, staMAC string) string {
	out, err := w.run(ctx, "-i", groupIface, "sta", staMAC)
	if err == nil {
		for _, line := range strings.Split(out, "\n") {
			if addr, found := strings.CutPrefix(strings.TrimSpace(line), "p2p_dev_addr="); found {
				return addr
			}
		}
	}
	return staMAC
}

// parseStationAddresses extracts the station MAC lines from "all_sta"
// output, skipping the key=value detail lines that follow each one.
func parseStationAddresses(out string) []string {
	var stas []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.Contains(line, "=") {
			continue
		}
		if len(strings.Split(line, ":")) == 6 {
			stas = append(stas, strings.ToLower(line))
		}
	}
	return stas
}

// classifyWpaResult maps wpa_cli textual results onto connect error codes.
func classifyWpaResult(out string) error {
	switch {
	case strings.Contains(out, "OK") || strings.HasPrefix(out, "p2p-"):
		return nil
	case strings.Contains(out, "FAIL-BUSY"):
		return NewConnectError(CodeBusy)
	default:
		return NewConnectError(CodeInternal)
	}
}
