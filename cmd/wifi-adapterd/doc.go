// Copyright 2026 The Wifi Adapter Authors
// SPDX-License-Identifier: Apache-2.0

// wifi-adapterd bridges a wireless station interface to a host-facing
// Ethernet interface. The host side is a TAP device standing in for the
// USB network-class backend; the wireless side is an ordinary OS
// interface whose association is owned by the platform's wireless
// supervisor.
//
// The daemon relays Ethernet frames both ways, keeps the host-facing
// interface addressed (following the station's subnet once an upstream
// address is learned), and serves telemetry snapshots on a Unix socket.
//
// Configuration comes from a YAML file named by --config or the
// WIFI_ADAPTER_CONFIG environment variable; without either, built-in
// defaults apply.
package main
