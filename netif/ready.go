// Copyright 2026 The Wifi Adapter Authors
// SPDX-License-Identifier: Apache-2.0

package netif

import (
	"log/slog"
	"time"
)

// DefaultReadyPoll is the default backend readiness polling interval.
const DefaultReadyPoll = 100 * time.Millisecond

// Waiter polls an interface handle until its backend callbacks are
// attached or a timeout elapses. It holds no mutable state beyond its
// tuning, so one Waiter may serve any number of concurrent call sites;
// re-polling an already-ready interface returns immediately.
//
// Waits block for bounded wall-clock time and must run on a worker
// goroutine, never on the transport's delivery goroutine or the stack's
// serialized input goroutine.
type Waiter struct {
	// Interval between polls. Zero means DefaultReadyPoll.
	Interval time.Duration

	// Logger receives structured log output. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

func (w *Waiter) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}

func (w *Waiter) interval() time.Duration {
	if w.Interval > 0 {
		return w.Interval
	}
	return DefaultReadyPoll
}

// Wait polls until the handle's backend is attached, returning true,
// or until timeout elapses, returning false. The handle is observed
// only, never mutated, so a timed-out caller can still log or fall
// back using its best-known state.
func (w *Waiter) Wait(handle *Handle, timeout time.Duration) bool {
	if handle == nil {
		w.logger().Warn("readiness wait on absent interface")
		return false
	}

	deadline := time.Now().Add(timeout)
	for {
		if handle.BackendAttached() {
			return true
		}
		if !time.Now().Before(deadline) {
			w.logger().Warn("timeout waiting for interface backend",
				"interface", handle.Name(),
				"state", handle.DebugString(),
			)
			return false
		}
		w.logger().Debug("interface backend not ready, waiting",
			"interface", handle.Name(),
		)
		time.Sleep(w.interval())
	}
}
