// Copyright 2026 The Wifi Adapter Authors
// SPDX-License-Identifier: Apache-2.0

// Package netif models the two network interfaces the adapter bridges:
// the station interface associated with the upstream wireless network
// and the exposed interface presented to the USB-attached host.
//
// The package is organized around the interface lifecycle:
//
//   - buffer.go: chained frame buffers with single-release ownership
//   - handle.go: interface handles with backend attachment state
//   - assignment.go: IPv4 address assignments
//   - ready.go: backend readiness polling
//   - service.go: the address/DHCP-server service contract
//   - reconcile.go: address reconciliation against a busy service
//
// An interface handle is not ready for configuration until its backend
// callbacks are wired by the transport; readiness arrives asynchronously
// and non-deterministically relative to interface creation. The
// reconciler turns that race into a bounded retry with a deterministic
// link-layer fallback, so the exposed interface always ends up
// addressed even when the configuration service never cooperates.
package netif
