// Package scan provides bounded-parallel reachability scanning of an address
// range.
//
// The scanner partitions the target host range into fixed-size batches
// (25 addresses by default). Probes inside one batch run concurrently with a
// fixed per-probe timeout and are jointly awaited; the coordinator inspects
// the batch only after every probe has finished. Batches advance strictly in
// ascending order and scanning halts at the first batch containing a
// reachable address. This trades exhaustive parallelism for a predictable
// upper bound on both batch latency and concurrent socket use.
//
// # Probers
//
// Reachability itself is pluggable through the Prober interface:
//   - TCPProber dials a TCP port and treats both a completed handshake and a
//     connection refusal as proof of life. Works unprivileged.
//   - ARPProber broadcasts an ARP request on a named interface and waits for
//     the reply. Needs no open port on the target but requires capture
//     privileges.
//
// # Usage Example
//
//	scanner := scan.NewScanner(scan.TCPProber{}, 25, 500*time.Millisecond)
//	ip, ok := scanner.FindReachable(ctx, subnet, 2, 254)
//	if ok {
//	    fmt.Println("client at", ip)
//	}
package scan
