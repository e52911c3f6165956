// Copyright 2026 The Wifi Adapter Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport defines the endpoint contract for the USB-side
// frame transport and provides two implementations: an in-memory
// endpoint for tests and development, and a Linux TAP endpoint for
// running against a real host-facing device.
//
// An endpoint delivers raw Ethernet frames from the host into the
// adapter and consumes frames the adapter sends toward the host. Frame
// bytes are opaque; the transport introduces no wire protocol of its
// own. Attachment is asynchronous: the host may wire the backend
// seconds after the endpoint is created, or never.
package transport

import (
	"errors"
	"net"
)

// Sentinel errors for Send.
var (
	// ErrNotReady means the transport backend is not attached; the
	// frame should be dropped, not retried. The network stack's
	// output path must never stall on a transport that may never
	// become ready.
	ErrNotReady = errors.New("transport not ready")

	// ErrBusy means the transport accepted no data right now. The
	// relay drops the frame; inbound and outbound paths are lossy by
	// design.
	ErrBusy = errors.New("transport busy")
)

// EventKind classifies endpoint lifecycle events.
type EventKind int

const (
	// Attached means the host wired the endpoint; frames can flow.
	Attached EventKind = iota

	// Detached means the host went away; Send returns ErrNotReady
	// until the next Attached.
	Detached
)

// String returns the event name for logs.
func (k EventKind) String() string {
	switch k {
	case Attached:
		return "attached"
	case Detached:
		return "detached"
	default:
		return "unknown"
	}
}

// Event is one endpoint lifecycle notification.
type Event struct {
	Kind EventKind
}

// InboundHandler receives one inbound frame per call, on the
// endpoint's own delivery goroutine. It returns true if the frame was
// accepted and false if it was dropped. The handler must not block:
// hand the frame off to a serialized queue instead of calling into the
// network stack directly.
type InboundHandler func(frame []byte) bool

// Endpoint is the transport the adapter bridges toward the host.
type Endpoint interface {
	// Events returns the endpoint's lifecycle event channel. The
	// channel is closed when the endpoint closes.
	Events() <-chan Event

	// SetInboundHandler installs the inbound frame callback. Must be
	// called before the endpoint attaches; frames delivered with no
	// handler installed are dropped by the endpoint.
	SetInboundHandler(handler InboundHandler)

	// Send writes one complete frame toward the host. The relay
	// drains a frame buffer's segments in order into the frame passed
	// here. Returns nil if the frame was accepted, ErrNotReady if the
	// backend is not attached, or ErrBusy if the transport cannot
	// take data now.
	Send(frame []byte) error

	// HardwareAddr returns the MAC the endpoint presents to the host.
	HardwareAddr() net.HardwareAddr

	// MTU returns the endpoint's maximum frame size.
	MTU() int

	// Close releases the endpoint. Events is closed; further Sends
	// return ErrNotReady.
	Close() error
}
