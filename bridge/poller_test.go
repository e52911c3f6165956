// Copyright 2026 The Wifi Adapter Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/FajarEnjoyneer/wifi-adapter/lib/testutil"
)

// scriptedAddrs lets the test set the interface's visible addresses.
type scriptedAddrs struct {
	mu    sync.Mutex
	addrs []net.Addr
	err   error
}

func (s *scriptedAddrs) read(name string) ([]net.Addr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.addrs, nil
}

func (s *scriptedAddrs) set(cidrs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = nil
	s.addrs = nil
	for _, cidr := range cidrs {
		ip, ipnet, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(err)
		}
		ipnet.IP = ip
		s.addrs = append(s.addrs, ipnet)
	}
}

func (s *scriptedAddrs) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func startPoller(t *testing.T, addrs *scriptedAddrs) *InterfacePoller {
	t.Helper()
	poller := &InterfacePoller{
		Interface: "wlan0",
		Interval:  time.Millisecond,
		Addrs:     addrs.read,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if err := poller.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(poller.Stop)
	return poller
}

func TestInterfacePoller_AddressAppears(t *testing.T) {
	addrs := &scriptedAddrs{}
	addrs.fail(errors.New("interface down"))
	poller := startPoller(t, addrs)

	addrs.set("10.0.5.42/24")

	event := testutil.RequireReceive(t, poller.Events(), 5*time.Second, "waiting for connect")
	if event.Kind != StationConnected {
		t.Fatalf("first event %s, want connected", event.Kind)
	}
	event = testutil.RequireReceive(t, poller.Events(), 5*time.Second, "waiting for acquisition")
	if event.Kind != StationAddressAcquired {
		t.Fatalf("second event %s, want address_acquired", event.Kind)
	}
	if want := netip.MustParseAddr("10.0.5.42"); event.Assignment.Addr != want {
		t.Fatalf("assignment %s, want %s", event.Assignment.Addr, want)
	}
	if want := netip.MustParseAddr("255.255.255.0"); event.Assignment.Netmask != want {
		t.Fatalf("netmask %s, want %s", event.Assignment.Netmask, want)
	}
}

func TestInterfacePoller_AddressChangeReacquires(t *testing.T) {
	addrs := &scriptedAddrs{}
	addrs.set("10.0.5.42/24")
	poller := startPoller(t, addrs)

	testutil.RequireReceive(t, poller.Events(), 5*time.Second, "connect")
	testutil.RequireReceive(t, poller.Events(), 5*time.Second, "first acquisition")

	addrs.set("10.0.6.17/24")

	event := testutil.RequireReceive(t, poller.Events(), 5*time.Second, "second acquisition")
	if event.Kind != StationAddressAcquired {
		t.Fatalf("event %s, want address_acquired", event.Kind)
	}
	if want := netip.MustParseAddr("10.0.6.17"); event.Assignment.Addr != want {
		t.Fatalf("assignment %s, want %s", event.Assignment.Addr, want)
	}
}

func TestInterfacePoller_AddressLossDisconnects(t *testing.T) {
	addrs := &scriptedAddrs{}
	addrs.set("10.0.5.42/24")
	poller := startPoller(t, addrs)

	testutil.RequireReceive(t, poller.Events(), 5*time.Second, "connect")
	testutil.RequireReceive(t, poller.Events(), 5*time.Second, "acquisition")

	addrs.fail(errors.New("interface down"))

	event := testutil.RequireReceive(t, poller.Events(), 5*time.Second, "disconnect")
	if event.Kind != StationDisconnected {
		t.Fatalf("event %s, want disconnected", event.Kind)
	}
}

// Link-local and IPv6 addresses never count as the station address.
func TestInterfacePoller_IgnoresNonGlobalAddresses(t *testing.T) {
	addrs := &scriptedAddrs{}
	addrs.set("169.254.1.5/16", "fe80::1/64")
	poller := startPoller(t, addrs)

	select {
	case event := <-poller.Events():
		t.Fatalf("unexpected event %s", event.Kind)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestInterfacePoller_StableAddressEmitsOnce(t *testing.T) {
	addrs := &scriptedAddrs{}
	addrs.set("10.0.5.42/24")
	poller := startPoller(t, addrs)

	testutil.RequireReceive(t, poller.Events(), 5*time.Second, "connect")
	testutil.RequireReceive(t, poller.Events(), 5*time.Second, "acquisition")

	select {
	case event := <-poller.Events():
		t.Fatalf("unexpected repeat event %s", event.Kind)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestInterfacePoller_StopClosesEvents(t *testing.T) {
	addrs := &scriptedAddrs{}
	poller := startPoller(t, addrs)

	poller.Stop()

	testutil.Eventually(t, func() bool {
		select {
		case _, ok := <-poller.Events():
			return !ok
		default:
			return false
		}
	}, 2*time.Second, time.Millisecond, "events channel never closed")
}
