// Copyright 2026 The Wifi Adapter Authors
// SPDX-License-Identifier: Apache-2.0

// Package watcher reacts to the station link learning an upstream
// address by re-deriving the exposed interface's subnet and requesting
// reconciliation. This is the single place re-addressing happens after
// initial bring-up.
package watcher

import (
	"log/slog"
	"net/netip"

	"github.com/FajarEnjoyneer/wifi-adapter/netif"
)

// ExposedHostByte is the host suffix the exposed interface takes
// inside the station's network. .253 stays clear of the usual router
// (.1) and broadcast (.255) addresses and of DHCP pools that start low.
const ExposedHostByte = 253

// Reconciler is the subset of the address reconciler the watcher
// needs. The adapter wires in a serializing adapter so re-addressing
// queues behind any in-flight reconciliation instead of racing it.
type Reconciler interface {
	Reconcile(handle *netif.Handle, desired netif.Assignment) (netif.Outcome, error)
}

// UpstreamWatcher derives the exposed interface's assignment from the
// station's and requests reconciliation.
type UpstreamWatcher struct {
	// Exposed is the interface to re-address. May be nil if the
	// watcher races process bring-up; events are then dropped with a
	// warning.
	Exposed *netif.Handle

	// Reconciler applies derived assignments.
	Reconciler Reconciler

	// Logger receives structured log output. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

func (w *UpstreamWatcher) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}

// OnStationAddressAcquired handles the station link learning an
// address: the exposed interface moves into a sibling subnet so the
// two never collide once translation is enabled.
func (w *UpstreamWatcher) OnStationAddressAcquired(station netif.Assignment) {
	if !station.Valid() {
		w.logger().Warn("station reported an invalid assignment, ignoring",
			"assignment", station.String(),
		)
		return
	}
	if w.Exposed == nil {
		// The exposed interface may not have been created yet if this
		// event races process bring-up.
		w.logger().Warn("station address acquired before exposed interface exists, ignoring",
			"station", station.String(),
		)
		return
	}

	derived := DeriveExposedAssignment(station)
	w.logger().Info("re-addressing exposed interface to follow station",
		"station", station.String(),
		"derived", derived.String(),
	)

	outcome, err := w.Reconciler.Reconcile(w.Exposed, derived)
	if err != nil {
		w.logger().Error("re-addressing failed",
			"derived", derived.String(),
			"error", err,
		)
		return
	}
	w.logger().Info("exposed interface re-addressed",
		"derived", derived.String(),
		"outcome", outcome.String(),
	)
}

// DeriveExposedAssignment maps a station assignment to the exposed
// interface's: same /24 network byte pattern with the reserved host
// suffix, netmask copied from the station (defaulting to /24 when the
// station carries none), gateway pointing at the exposed address
// itself.
func DeriveExposedAssignment(station netif.Assignment) netif.Assignment {
	addr := station.Addr.As4()
	addr[3] = ExposedHostByte

	netmask := station.Netmask
	if !netmask.IsValid() || !netmask.Is4() {
		netmask = netif.DefaultNetmask
	}

	exposedAddr := netip.AddrFrom4(addr)
	return netif.Assignment{
		Addr:    exposedAddr,
		Netmask: netmask,
		Gateway: exposedAddr,
	}
}
