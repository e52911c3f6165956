// Copyright 2026 The Wifi Adapter Authors
// SPDX-License-Identifier: Apache-2.0

package netif

import (
	"fmt"
	"net/netip"
)

// DefaultNetmask is the /24 netmask assumed when an upstream
// assignment carries no netmask.
var DefaultNetmask = netip.AddrFrom4([4]byte{255, 255, 255, 0})

// Assignment is an IPv4 address configuration for one interface.
type Assignment struct {
	Addr    netip.Addr
	Netmask netip.Addr
	Gateway netip.Addr
}

// Valid reports whether the assignment carries a usable IPv4 address.
func (a Assignment) Valid() bool {
	return a.Addr.IsValid() && a.Addr.Is4()
}

// Network returns the assignment's network address (address masked by
// netmask). Returns the zero Addr for invalid assignments.
func (a Assignment) Network() netip.Addr {
	if !a.Valid() || !a.Netmask.Is4() {
		return netip.Addr{}
	}
	addr := a.Addr.As4()
	mask := a.Netmask.As4()
	var network [4]byte
	for i := range network {
		network[i] = addr[i] & mask[i]
	}
	return netip.AddrFrom4(network)
}

// String renders the assignment for logs.
func (a Assignment) String() string {
	if !a.Valid() {
		return "(unassigned)"
	}
	return fmt.Sprintf("%s mask %s gw %s", a.Addr, a.Netmask, a.Gateway)
}

// HostAssignment builds an assignment inside prefix with the given
// host byte as the final address octet, gateway pointing at itself.
// The adapter's default local addressing is HostAssignment(base, 1).
func HostAssignment(prefix netip.Prefix, hostByte byte) Assignment {
	network := prefix.Masked().Addr().As4()
	network[3] = hostByte
	addr := netip.AddrFrom4(network)
	return Assignment{
		Addr:    addr,
		Netmask: NetmaskFromBits(prefix.Bits()),
		Gateway: addr,
	}
}

// NetmaskFromBits converts a prefix length to a dotted netmask.
func NetmaskFromBits(bits int) netip.Addr {
	if bits < 0 || bits > 32 {
		return DefaultNetmask
	}
	var mask [4]byte
	for i := 0; i < bits; i++ {
		mask[i/8] |= 1 << (7 - i%8)
	}
	return netip.AddrFrom4(mask)
}
