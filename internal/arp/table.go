package arp

import (
	"net/netip"
	"strconv"
	"strings"
)

// Entry is a read-only snapshot of one row of the OS ARP cache.
type Entry struct {
	// IP is the IPv4 address of the neighbor.
	IP netip.Addr

	// HardwareAddr is the link-layer address, lower-cased ("aa:bb:cc:dd:ee:ff").
	HardwareAddr string

	// Interface is the network interface the entry was learned on.
	Interface string

	// Flags is the kernel entry state (0x0 = incomplete, 0x2 = complete).
	Flags int
}

// Complete reports whether the entry carries a resolved hardware address.
func (e Entry) Complete() bool {
	return e.Flags != 0x0
}

// Table is a parsed ARP cache snapshot.
type Table struct {
	Entries []Entry
}

// Parse parses a /proc/net/arp style text snapshot into a Table.
//
// The expected layout is a header line followed by whitespace-separated rows:
//
//	IP address       HW type     Flags       HW address            Mask     Device
//	192.168.49.134   0x1         0x2         aa:bb:cc:dd:ee:ff     *        p2p-wlan0-0
//
// Malformed rows are skipped. Parse never fails: garbage input yields an
// empty table, matching the contract that an unreadable cache is treated as
// empty rather than as an error.
func Parse(text string) Table {
	var table Table

	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if i == 0 && strings.HasPrefix(line, "IP address") {
			continue // header
		}

		fields := strings.Fields(line)
		if len(fields) < 6 {
			continue
		}

		ip, err := netip.ParseAddr(fields[0])
		if err != nil || !ip.Is4() {
			continue
		}

		flags, err := strconv.ParseInt(strings.TrimPrefix(fields[2], "0x"), 16, 32)
		if err != nil {
			continue
		}

		table.Entries = append(table.Entries, Entry{
			IP:           ip,
			HardwareAddr: strings.ToLower(fields[3]),
			Interface:    fields[5],
			Flags:        int(flags),
		})
	}

	return table
}

// LookupByMAC returns the IP of the complete entry whose hardware address
// matches mac (case-insensitive). The second return is false when no entry
// matches.
func (t Table) LookupByMAC(mac string) (netip.Addr, bool) {
	want := strings.ToLower(mac)
	for _, e := range t.Entries {
		if !e.Complete() {
			continue
		}
		if e.HardwareAddr == want {
			return e.IP, true
		}
	}
	return netip.Addr{}, false
}

// FirstInPrefix returns the IP of the first complete entry inside prefix
// that is not exclude. On a group-owner subnet every such address belongs
// to a connected client, so no MAC match is needed.
func (t Table) FirstInPrefix(prefix netip.Prefix, exclude netip.Addr) (netip.Addr, bool) {
	for _, e := range t.Entries {
		if !e.Complete() {
			continue
		}
		if prefix.Contains(e.IP) && e.IP != exclude {
			return e.IP, true
		}
	}
	return netip.Addr{}, false
}
