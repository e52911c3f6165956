// Copyright 2026 The Wifi Adapter Authors
// SPDX-License-Identifier: Apache-2.0

package netif

import (
	"net/netip"
	"testing"
)

func TestHostAssignment(t *testing.T) {
	prefix := netip.MustParsePrefix("192.168.42.0/24")
	assignment := HostAssignment(prefix, 1)

	if want := netip.MustParseAddr("192.168.42.1"); assignment.Addr != want {
		t.Fatalf("Addr = %s, want %s", assignment.Addr, want)
	}
	if assignment.Netmask != DefaultNetmask {
		t.Fatalf("Netmask = %s, want %s", assignment.Netmask, DefaultNetmask)
	}
	if assignment.Gateway != assignment.Addr {
		t.Fatalf("Gateway = %s, want self", assignment.Gateway)
	}
}

func TestHostAssignment_MasksHostBits(t *testing.T) {
	// A prefix given with host bits set still derives from the
	// network address.
	prefix := netip.MustParsePrefix("10.0.5.42/24")
	assignment := HostAssignment(prefix, 253)

	if want := netip.MustParseAddr("10.0.5.253"); assignment.Addr != want {
		t.Fatalf("Addr = %s, want %s", assignment.Addr, want)
	}
}

func TestNetwork(t *testing.T) {
	assignment := Assignment{
		Addr:    netip.MustParseAddr("10.0.5.253"),
		Netmask: DefaultNetmask,
	}
	if want := netip.MustParseAddr("10.0.5.0"); assignment.Network() != want {
		t.Fatalf("Network() = %s, want %s", assignment.Network(), want)
	}

	var unset Assignment
	if unset.Network().IsValid() {
		t.Fatal("unset assignment must have no network")
	}
}

func TestNetmaskFromBits(t *testing.T) {
	cases := []struct {
		bits int
		want string
	}{
		{24, "255.255.255.0"},
		{16, "255.255.0.0"},
		{25, "255.255.255.128"},
		{32, "255.255.255.255"},
		{0, "0.0.0.0"},
	}
	for _, c := range cases {
		if got := NetmaskFromBits(c.bits); got != netip.MustParseAddr(c.want) {
			t.Errorf("NetmaskFromBits(%d) = %s, want %s", c.bits, got, c.want)
		}
	}
	if NetmaskFromBits(40) != DefaultNetmask {
		t.Error("out-of-range bits must fall back to the default netmask")
	}
}

func TestAssignmentString(t *testing.T) {
	var unset Assignment
	if unset.String() != "(unassigned)" {
		t.Fatalf("zero assignment renders as %q", unset.String())
	}
}
