// Copyright 2026 The Wifi Adapter Authors
// SPDX-License-Identifier: Apache-2.0

package netif

import (
	"errors"
	"log/slog"
	"time"
)

// Outcome classifies a reconciliation result.
type Outcome int

const (
	// OutcomeFailed means no address could be applied at all.
	OutcomeFailed Outcome = iota

	// OutcomeApplied means the assignment went through the address
	// service.
	OutcomeApplied

	// OutcomeAppliedViaFallback means the assignment was written
	// directly to the interface's link-layer record, bypassing the
	// service.
	OutcomeAppliedViaFallback
)

// String returns the outcome name for logs.
func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeAppliedViaFallback:
		return "applied_via_fallback"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Default retry tuning. These counts were tuned against a flaky
// configuration service whose stop/set/start calls race its own
// background timers; they bound the worst-case latency, nothing more.
const (
	DefaultStopRetries   = 8
	DefaultStopInterval  = 120 * time.Millisecond
	DefaultSetRetries    = 8
	DefaultSetInterval   = 150 * time.Millisecond
	DefaultStartRetries  = 8
	DefaultStartInterval = 150 * time.Millisecond
)

// Reconciler brings an interface's address assignment into a desired
// state despite a possibly-busy address service. The sequence "stop
// service, set static assignment, start service" is not atomic against
// the service's own background work, so each step retries transient
// conflicts under a fixed budget, and a direct link-layer write is the
// last resort.
//
// Reconcile blocks its caller for bounded wall-clock time (up to a few
// seconds at default tuning) and must run on a dedicated worker
// goroutine. There is no cancellation: a reconciliation runs to
// success, fallback, or failure once started.
type Reconciler struct {
	// Service is the address service owning the interface's
	// configuration.
	Service AddressService

	// StartService indicates the address service should be running
	// after reconciliation. A start failure is logged and never
	// downgrades the reconciliation result.
	StartService bool

	// Retry tuning; zero values take the package defaults.
	StopRetries   int
	StopInterval  time.Duration
	SetRetries    int
	SetInterval   time.Duration
	StartRetries  int
	StartInterval time.Duration

	// Logger receives structured log output. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

func (r *Reconciler) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func (r *Reconciler) stopRetries() int {
	if r.StopRetries > 0 {
		return r.StopRetries
	}
	return DefaultStopRetries
}

func (r *Reconciler) stopInterval() time.Duration {
	if r.StopInterval > 0 {
		return r.StopInterval
	}
	return DefaultStopInterval
}

func (r *Reconciler) setRetries() int {
	if r.SetRetries > 0 {
		return r.SetRetries
	}
	return DefaultSetRetries
}

func (r *Reconciler) setInterval() time.Duration {
	if r.SetInterval > 0 {
		return r.SetInterval
	}
	return DefaultSetInterval
}

func (r *Reconciler) startRetries() int {
	if r.StartRetries > 0 {
		return r.StartRetries
	}
	return DefaultStartRetries
}

func (r *Reconciler) startInterval() time.Duration {
	if r.StartInterval > 0 {
		return r.StartInterval
	}
	return DefaultStartInterval
}

// Reconcile applies the desired assignment to the interface.
//
// With an attached backend the service path runs first: stop the
// service (bounded retries, "already stopped" counts as success, budget
// exhaustion is not fatal because the set step detects the conflict
// independently), then set the assignment (retrying conflicts with a
// recovery stop in between). If the set budget is exhausted, the
// assignment is written directly to the link-layer record.
//
// Without an attached backend the service path is skipped entirely,
// since configuring the service against an unattached backend races
// its bring-up, and the link-layer write is the only path attempted.
//
// Reconcile never loops unboundedly: it terminates within the sum of
// the configured retry budgets.
func (r *Reconciler) Reconcile(handle *Handle, desired Assignment) (Outcome, error) {
	if handle == nil {
		r.logger().Error("reconcile with no interface handle")
		return OutcomeFailed, ErrNoInterface
	}

	logger := r.logger().With(
		"interface", handle.Name(),
		"desired", desired.String(),
	)

	if !handle.BackendAttached() {
		handle.SetAssignment(desired)
		logger.Warn("backend not attached, assigned at link layer",
			"state", handle.DebugString(),
		)
		return OutcomeAppliedViaFallback, nil
	}

	r.stopService(handle, logger)

	outcome := OutcomeApplied
	if !r.setAssignment(handle, desired, logger) {
		logger.Warn("service assignment failed after retries, falling back to link layer",
			"state", handle.DebugString(),
		)
		outcome = OutcomeAppliedViaFallback
	}
	handle.SetAssignment(desired)

	if r.StartService {
		r.startService(handle, logger)
	}

	logger.Info("reconciliation complete", "outcome", outcome.String())
	return outcome, nil
}

// stopService stops the address service with bounded retries. Budget
// exhaustion is tolerated: setAssignment independently detects the
// not-stopped conflict.
func (r *Reconciler) stopService(handle *Handle, logger *slog.Logger) {
	for attempt := 1; attempt <= r.stopRetries(); attempt++ {
		err := r.Service.Stop(handle)
		if err == nil || errors.Is(err, ErrAlreadyStopped) {
			logger.Debug("address service stopped", "attempt", attempt)
			return
		}
		logger.Warn("address service stop failed, retrying",
			"attempt", attempt,
			"error", err,
		)
		time.Sleep(r.stopInterval())
	}
	logger.Warn("address service stop budget exhausted, proceeding")
}

// setAssignment applies the assignment through the service, stopping
// the service once more whenever it reports the not-stopped conflict.
// Returns false once the retry budget is exhausted.
func (r *Reconciler) setAssignment(handle *Handle, desired Assignment, logger *slog.Logger) bool {
	for attempt := 1; attempt <= r.setRetries(); attempt++ {
		err := r.Service.SetAssignment(handle, desired)
		if err == nil {
			logger.Info("assignment applied via service", "attempt", attempt)
			return true
		}
		if errors.Is(err, ErrConflict) {
			logger.Warn("assignment conflicts with running service, stopping and retrying",
				"attempt", attempt,
			)
			if stopErr := r.Service.Stop(handle); stopErr != nil && !errors.Is(stopErr, ErrAlreadyStopped) {
				logger.Debug("recovery stop failed", "error", stopErr)
			}
		} else {
			logger.Warn("assignment failed, retrying",
				"attempt", attempt,
				"error", err,
			)
		}
		time.Sleep(r.setInterval())
	}
	return false
}

// startService (re)starts the address service. Failure leaves the
// interface addressed but unable to hand out leases; the host can
// still use a static address, so this is logged and not propagated.
func (r *Reconciler) startService(handle *Handle, logger *slog.Logger) {
	for attempt := 1; attempt <= r.startRetries(); attempt++ {
		err := r.Service.Start(handle)
		if err == nil {
			logger.Info("address service started", "attempt", attempt)
			return
		}
		if errors.Is(err, ErrConflict) {
			if stopErr := r.Service.Stop(handle); stopErr != nil && !errors.Is(stopErr, ErrAlreadyStopped) {
				logger.Debug("recovery stop failed", "error", stopErr)
			}
		}
		logger.Warn("address service start failed",
			"attempt", attempt,
			"error", err,
		)
		time.Sleep(r.startInterval())
	}
	logger.Warn("address service failed to start; host may need a static address")
}
