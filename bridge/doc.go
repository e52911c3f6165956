// Copyright 2026 The Wifi Adapter Authors
// SPDX-License-Identifier: Apache-2.0

// Package bridge assembles the adapter: it owns the exposed and
// station interface handles, runs the frame relay between the
// transport endpoint and the exposed interface, and serializes every
// address reconciliation on a single worker goroutine.
//
// Control flow, as seen from the bridge:
//
//   - Transport attach: the exposed interface's backend callbacks are
//     wired, then the worker waits for readiness and applies the base
//     assignment (192.168.42.1/24 by default), starting the address
//     service.
//   - Station address acquired: the worker derives a sibling subnet
//     for the exposed interface, reconciles it, and enables address
//     translation once both interfaces hold addresses.
//   - Frames relay continuously whenever both sides exist, regardless
//     of addressing state; link-layer forwarding needs no IP.
//
// Association with the upstream network, USB descriptor negotiation,
// and process bootstrap are collaborator concerns: the bridge only
// consumes their events.
package bridge
