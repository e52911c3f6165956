// Copyright 2026 The Wifi Adapter Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"log/slog"
	"net"
	"net/netip"
	"time"

	"github.com/FajarEnjoyneer/wifi-adapter/netif"
)

// DefaultPollInterval is how often the interface poller re-reads the
// station interface's addresses.
const DefaultPollInterval = 2 * time.Second

// InterfaceAddrs reads the station interface's current addresses.
// Matches net.Interface.Addrs via interfaceAddrs; tests substitute a
// scripted reader.
type InterfaceAddrs func(name string) ([]net.Addr, error)

// InterfacePoller watches an OS network interface for IPv4 address
// changes and translates them into station link events. It is the
// production StationLink for platforms where the wireless supervisor
// (wpa_supplicant, NetworkManager) owns association and the daemon only
// observes the resulting addressing.
type InterfacePoller struct {
	// Interface is the OS interface name to watch (e.g. "wlan0").
	Interface string

	// Interval between polls. Zero means DefaultPollInterval.
	Interval time.Duration

	// Addrs reads the interface's addresses. If nil, the OS is asked.
	Addrs InterfaceAddrs

	// Logger receives structured log output. If nil, slog.Default()
	// is used.
	Logger *slog.Logger

	events chan StationEvent
	cancel context.CancelFunc
	done   chan struct{}
}

var _ StationLink = (*InterfacePoller)(nil)

func (p *InterfacePoller) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

func (p *InterfacePoller) interval() time.Duration {
	if p.Interval > 0 {
		return p.Interval
	}
	return DefaultPollInterval
}

func (p *InterfacePoller) addrs(name string) ([]net.Addr, error) {
	if p.Addrs != nil {
		return p.Addrs(name)
	}
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil, err
	}
	return iface.Addrs()
}

// Events implements StationLink. The channel is closed after Stop.
func (p *InterfacePoller) Events() <-chan StationEvent {
	return p.events
}

// Start begins polling in the background.
func (p *InterfacePoller) Start(ctx context.Context) error {
	p.events = make(chan StationEvent, 8)
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})

	go func() {
		defer close(p.done)
		defer close(p.events)
		p.pollLoop(ctx)
	}()

	p.logger().Info("station interface poller started",
		"interface", p.Interface,
		"interval", p.interval().String(),
	)
	return nil
}

// Stop halts polling and closes the event channel.
func (p *InterfacePoller) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	if p.done != nil {
		<-p.done
	}
}

// pollLoop diffs the interface's first IPv4 address across polls. A
// transition from none to some is a connect plus an acquisition; a
// change of address is a fresh acquisition; a transition to none is a
// disconnect.
func (p *InterfacePoller) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(p.interval())
	defer ticker.Stop()

	var current netip.Prefix
	for {
		observed, ok := p.currentAddress()
		switch {
		case ok && observed != current:
			if !current.IsValid() {
				p.emit(ctx, StationEvent{Kind: StationConnected})
			}
			current = observed
			p.emit(ctx, StationEvent{
				Kind:       StationAddressAcquired,
				Assignment: assignmentFromPrefix(observed),
			})
		case !ok && current.IsValid():
			current = netip.Prefix{}
			p.emit(ctx, StationEvent{Kind: StationDisconnected})
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// currentAddress returns the interface's first global IPv4 address.
func (p *InterfacePoller) currentAddress() (netip.Prefix, bool) {
	addrs, err := p.addrs(p.Interface)
	if err != nil {
		p.logger().Debug("station interface not readable",
			"interface", p.Interface,
			"error", err,
		)
		return netip.Prefix{}, false
	}
	for _, addr := range addrs {
		ipnet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		ip4 := ipnet.IP.To4()
		if ip4 == nil || ipnet.IP.IsLinkLocalUnicast() || ipnet.IP.IsLoopback() {
			continue
		}
		bits, _ := ipnet.Mask.Size()
		return netip.PrefixFrom(netip.AddrFrom4([4]byte(ip4)), bits), true
	}
	return netip.Prefix{}, false
}

func (p *InterfacePoller) emit(ctx context.Context, event StationEvent) {
	select {
	case p.events <- event:
	case <-ctx.Done():
	}
}

// assignmentFromPrefix builds the station assignment for an observed
// interface prefix. The gateway is not observable from the address
// alone and is left at the address itself; nothing downstream routes
// through it.
func assignmentFromPrefix(prefix netip.Prefix) netif.Assignment {
	addr := prefix.Addr()
	return netif.Assignment{
		Addr:    addr,
		Netmask: netif.NetmaskFromBits(prefix.Bits()),
		Gateway: addr,
	}
}
