// Copyright 2026 The Wifi Adapter Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR encoding used by the diagnostics
// protocol. All telemetry snapshots and drop events are encoded with
// Core Deterministic Encoding so that identical state produces
// identical bytes.
package codec
