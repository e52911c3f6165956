// Copyright 2026 The Wifi Adapter Authors
// SPDX-License-Identifier: Apache-2.0

// Package diag provides the adapter's diagnostics surface: relay and
// reconciliation counters, a ring of recent frame-drop events, and a
// Unix socket server that streams CBOR-encoded telemetry snapshots to
// an operator.
//
// Errors in the adapter core are handled locally (retried, defaulted,
// or dropped) and never unwind across component boundaries, so this
// package is how a human notices that something is degraded: a missing
// address or a climbing drop counter is silent at the protocol level.
//
// The package is organized around the telemetry data flow:
//
//   - metrics.go: atomic counters and point-in-time snapshots
//   - dropring.go: bounded ring of recent drop events
//   - protocol.go: wire format for the telemetry stream (framed CBOR)
//   - server.go: Unix socket server streaming snapshots
package diag
