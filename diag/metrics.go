// Copyright 2026 The Wifi Adapter Authors
// SPDX-License-Identifier: Apache-2.0

package diag

import "sync/atomic"

// Metrics holds the adapter's diagnostic counters. All fields are
// updated atomically and may be shared across every goroutine in the
// relay and reconciliation paths.
type Metrics struct {
	// Inbound path: transport toward the exposed interface.
	InboundAccepted   atomic.Uint64
	InboundBytes      atomic.Uint64
	DropNoBackend     atomic.Uint64
	DropAllocFailed   atomic.Uint64
	DropQueueFull     atomic.Uint64
	DropStackRejected atomic.Uint64

	// Outbound path: exposed interface toward the transport.
	OutboundSent      atomic.Uint64
	OutboundBytes     atomic.Uint64
	DropNotReady      atomic.Uint64
	DropTransportBusy atomic.Uint64

	// Reconciliation results.
	ReconcileApplied  atomic.Uint64
	ReconcileFallback atomic.Uint64
	ReconcileFailed   atomic.Uint64
}

// Snapshot is a point-in-time copy of the counters, shaped for the
// telemetry wire format.
type Snapshot struct {
	InboundAccepted   uint64 `cbor:"inbound_accepted"`
	InboundBytes      uint64 `cbor:"inbound_bytes"`
	DropNoBackend     uint64 `cbor:"drop_no_backend"`
	DropAllocFailed   uint64 `cbor:"drop_alloc_failed"`
	DropQueueFull     uint64 `cbor:"drop_queue_full"`
	DropStackRejected uint64 `cbor:"drop_stack_rejected"`

	OutboundSent      uint64 `cbor:"outbound_sent"`
	OutboundBytes     uint64 `cbor:"outbound_bytes"`
	DropNotReady      uint64 `cbor:"drop_not_ready"`
	DropTransportBusy uint64 `cbor:"drop_transport_busy"`

	ReconcileApplied  uint64 `cbor:"reconcile_applied"`
	ReconcileFallback uint64 `cbor:"reconcile_fallback"`
	ReconcileFailed   uint64 `cbor:"reconcile_failed"`
}

// Snapshot copies the current counter values.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		InboundAccepted:   m.InboundAccepted.Load(),
		InboundBytes:      m.InboundBytes.Load(),
		DropNoBackend:     m.DropNoBackend.Load(),
		DropAllocFailed:   m.DropAllocFailed.Load(),
		DropQueueFull:     m.DropQueueFull.Load(),
		DropStackRejected: m.DropStackRejected.Load(),
		OutboundSent:      m.OutboundSent.Load(),
		OutboundBytes:     m.OutboundBytes.Load(),
		DropNotReady:      m.DropNotReady.Load(),
		DropTransportBusy: m.DropTransportBusy.Load(),
		ReconcileApplied:  m.ReconcileApplied.Load(),
		ReconcileFallback: m.ReconcileFallback.Load(),
		ReconcileFailed:   m.ReconcileFailed.Load(),
	}
}

// TotalDropped sums the drop counters across both directions.
func (s Snapshot) TotalDropped() uint64 {
	return s.DropNoBackend + s.DropAllocFailed + s.DropQueueFull +
		s.DropStackRejected + s.DropNotReady + s.DropTransportBusy
}
