// Package arp reads and parses the OS address-resolution cache.
//
// The kernel exposes the ARP cache as a text table (/proc/net/arp on Linux).
// This package splits the work into a pure parser over a captured text
// snapshot (Parse) and a pluggable read step (Source / Reader), so the parser
// can be unit-tested deterministically and the read can be faked.
//
// # Failure behavior
//
// An unreadable or malformed cache is never an error to the caller: Read
// returns an empty Table and the address-resolution flow falls through to its
// next stage. The only effect is a warn-level log line.
//
// # Lookups
//
// Two lookup strategies are provided:
//   - LookupByMAC matches a specific hardware address. This fails under MAC
//     randomization, where a peer's device-level identity differs from the
//     link-layer address its interface actually uses.
//   - FirstInPrefix returns any in-subnet neighbor other than a named own
//     address. On a group-owner subnet every other address belongs to a
//     connected client, so elimination is sufficient.
package arp
