// Copyright 2026 The Wifi Adapter Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"github.com/FajarEnjoyneer/wifi-adapter/netif"
)

// StationEventKind classifies station link events.
type StationEventKind int

const (
	// StationConnected means the link associated with the upstream
	// network.
	StationConnected StationEventKind = iota

	// StationDisconnected means the link lost the upstream network.
	// Reconnection policy belongs to the link, not the bridge.
	StationDisconnected

	// StationAddressAcquired means the link learned an upstream
	// address; the event carries the assignment.
	StationAddressAcquired
)

// String returns the event name for logs.
func (k StationEventKind) String() string {
	switch k {
	case StationConnected:
		return "connected"
	case StationDisconnected:
		return "disconnected"
	case StationAddressAcquired:
		return "address_acquired"
	default:
		return "unknown"
	}
}

// StationEvent is one station link notification.
type StationEvent struct {
	Kind StationEventKind

	// Reason carries the link's disconnect reason code, for
	// StationDisconnected only.
	Reason int

	// Assignment carries the learned address, for
	// StationAddressAcquired only.
	Assignment netif.Assignment
}

// StationLink is the upstream wireless collaborator. It owns
// association, authentication, and reconnection; the bridge only
// consumes its events.
type StationLink interface {
	// Events returns the link's event channel. The channel is closed
	// when the link shuts down.
	Events() <-chan StationEvent
}

// NATController enables address translation between the two
// interfaces. Platform-specific; a failure to enable is logged and
// never fatal.
type NATController interface {
	Enable(station, exposed *netif.Handle) error
}
