package scan

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
)

// ARPProber probes reachability with a broadcast ARP request on a specific
// interface. Unlike TCP probing this needs no open port on the target, but it
// requires packet-capture privileges on the interface.
type ARPProber struct {
	// InterfaceName is the interface the probe is sent on (e.g. "p2p-wlan0-0").
	InterfaceName string
}

// Probe implements Prober. It returns false on any setup error; the scanner
// treats a failed probe the same as an unreachable host.
func (p ARPProber) Probe(ctx context.Context, ip netip.Addr, timeout time.Duration) bool {
	reachable, err := p.probe(ctx, ip, timeout)
	if err != nil {
		return false
	}
	return reachable
}

func (p ARPProber) probe(ctx context.Context, target netip.Addr, timeout time.Duration) (bool, error) {
	iface, err := net.InterfaceByName(p.InterfaceName)
	if err != nil {
		return false, fmt.Errorf("failed to get interface %s: %w", p.InterfaceName, err)
	}

	srcIP, err := interfaceIPv4(iface)
	if err != nil {
		return false, err
	}

	handle, err := pcap.OpenLive(p.InterfaceName, 65536, true, pcap.BlockForever)
	if err != nil {
		return false, fmt.Errorf("failed to open handle: %w", err)
	}
	defer handle.Close()

	// Only ARP replies are interesting.
	if err := handle.SetBPFFilter("arp"); err != nil {
		return false, fmt.Errorf("failed to set BPF filter: %w", err)
	}

	if err := sendARPRequest(handle, iface, srcIP, target); err != nil {
		return false, err
	}

	deadline := time.Now().Add(timeout)
	src := gopacket.NewPacketSource(handle, handle.LinkType())
	packets := src.Packets()

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false, nil
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(remaining):
			return false, nil
		case packet, ok := <-packets:
			if !ok {
				return false, nil
			}
			arpLayer := packet.Layer(layers.LayerTypeARP)
			if arpLayer == nil {
				continue
			}
			reply := arpLayer.(*layers.ARP)
			if reply.Operation != layers.ARPReply {
				continue
			}
			if addr, ok := netip.AddrFromSlice(reply.SourceProtAddress); ok && addr == target {
				return true, nil
			}
		}
	}
}

func interfaceIPv4(iface *net.Interface) (net.IP, error) {
	addrs, err := iface.Addrs()
	if err != nil {
		return nil, fmt.Errorf("failed to get interface addresses: %w", err)
	}
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok {
			if ip4 := ipnet.IP.To4(); ip4 != nil {
				return ip4, nil
			}
		}
	}
	return nil, errors.New("no IPv4 address on interface")
}

func sendARPRequest(handle *pcap.Handle, iface *net.Interface, srcIP net.IP, target netip.Addr) error {
	eth := layers.Ethernet{
		SrcMAC:       iface.HardwareAddr,
		DstMAC:       net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		EthernetType: layers.EthernetTypeARP,
	}
	targetIP := target.As4()
	arp := layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   []byte(iface.HardwareAddr),
		SourceProtAddress: []byte(srcIP.To4()),
		DstHwAddress:      []byte{0, 0, 0, 0, 0, 0},
		DstProtAddress:    targetIP[:],
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{
		FixLengths:       true,
		ComputeChecksums: true,
	}
	if err := gopacket.SerializeLayers(buf, opts, &eth, &arp); err != nil {
		return fmt.Errorf("failed to serialize packet: %w", err)
	}
	return handle.WritePacketData(buf.Bytes())
}
