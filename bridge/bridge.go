// Copyright 2026 The Wifi Adapter Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"sync"
	"time"

	"github.com/FajarEnjoyneer/wifi-adapter/diag"
	"github.com/FajarEnjoyneer/wifi-adapter/netif"
	"github.com/FajarEnjoyneer/wifi-adapter/relay"
	"github.com/FajarEnjoyneer/wifi-adapter/transport"
	"github.com/FajarEnjoyneer/wifi-adapter/watcher"
)

// BaseHostByte is the host suffix of the exposed interface inside the
// base subnet before the station learns an address.
const BaseHostByte = 1

// Dongle bridges the station network to the transport endpoint.
type Dongle struct {
	// Station delivers upstream link events.
	Station StationLink

	// Endpoint is the USB-side transport.
	Endpoint transport.Endpoint

	// Service is the address service owning the exposed interface's
	// configuration.
	Service netif.AddressService

	// StackInput is the exposed interface's network stack input: the
	// relay's serialized consumer delivers inbound frames here once
	// the backend is attached.
	StackInput netif.InputFunc

	// NAT, if non-nil, is enabled once both interfaces hold
	// addresses.
	NAT NATController

	// BasePrefix is the local subnet used before the station learns
	// an address (e.g. 192.168.42.0/24).
	BasePrefix netip.Prefix

	// Metrics receives relay and reconciliation counters. If nil, a
	// private set is created at Start.
	Metrics *diag.Metrics

	// Drops, if non-nil, records dropped frames.
	Drops *diag.DropRing

	// Capture, if non-nil, observes every relayed frame.
	Capture func(direction string, frame []byte)

	// Readiness and reconciliation tuning. Zero values take the
	// netif defaults (100 ms poll, 2 s install wait, 5 s attach wait).
	ReadyPoll   time.Duration
	InstallWait time.Duration
	AttachWait  time.Duration

	// Reconciler, if non-nil, overrides the reconciler built from
	// Service. Used by tests to shrink retry intervals.
	Reconciler *netif.Reconciler

	// Logger receives structured log output. If nil, slog.Default()
	// is used.
	Logger *slog.Logger

	exposed  *netif.Handle
	station  *netif.Handle
	relay    *relay.Relay
	upstream *watcher.UpstreamWatcher
	waiter   *netif.Waiter

	requests chan reconcileRequest
	cancel   context.CancelFunc
	done     chan struct{}
	loops    sync.WaitGroup

	natEnabled bool // worker goroutine only
}

// reconcileRequest is one unit of work for the reconcile worker. All
// blocking waits and reconciliations happen on that single goroutine,
// so an attach-triggered bring-up and a station-triggered re-address
// queue behind each other instead of racing.
type reconcileRequest struct {
	reason string

	// desired is set for direct reconciliations (initial bring-up).
	desired netif.Assignment

	// station is set instead when the request re-derives the exposed
	// subnet from a learned station address.
	station     netif.Assignment
	fromStation bool

	waitTimeout time.Duration
}

func (d *Dongle) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

func (d *Dongle) installWait() time.Duration {
	if d.InstallWait > 0 {
		return d.InstallWait
	}
	return 2 * time.Second
}

func (d *Dongle) attachWait() time.Duration {
	if d.AttachWait > 0 {
		return d.AttachWait
	}
	return 5 * time.Second
}

// ExposedHandle returns the exposed interface handle. Nil before Start.
func (d *Dongle) ExposedHandle() *netif.Handle {
	return d.exposed
}

// StationHandle returns the station interface handle. Nil before Start.
func (d *Dongle) StationHandle() *netif.Handle {
	return d.station
}

// Start brings the bridge up: interface handles, relay, event loops,
// and the reconcile worker. It returns once everything is running; the
// bridge then operates in the background until Stop.
func (d *Dongle) Start(ctx context.Context) error {
	if d.Station == nil {
		return fmt.Errorf("bridge: Station is required")
	}
	if d.Endpoint == nil {
		return fmt.Errorf("bridge: Endpoint is required")
	}
	if d.Service == nil {
		return fmt.Errorf("bridge: Service is required")
	}
	if d.StackInput == nil {
		return fmt.Errorf("bridge: StackInput is required")
	}
	if !d.BasePrefix.IsValid() || !d.BasePrefix.Addr().Is4() {
		return fmt.Errorf("bridge: BasePrefix %s must be a valid IPv4 prefix", d.BasePrefix)
	}
	if d.Metrics == nil {
		d.Metrics = &diag.Metrics{}
	}

	d.exposed = netif.NewHandle("exposed")
	d.station = netif.NewHandle("station")
	d.waiter = &netif.Waiter{Interval: d.ReadyPoll, Logger: d.logger()}

	if d.Reconciler == nil {
		d.Reconciler = &netif.Reconciler{
			Service:      d.Service,
			StartService: true,
			Logger:       d.logger(),
		}
	}

	d.relay = &relay.Relay{
		Exposed:  d.exposed,
		Endpoint: d.Endpoint,
		Metrics:  d.Metrics,
		Drops:    d.Drops,
		Capture:  d.Capture,
		Logger:   d.logger(),
	}

	d.upstream = &watcher.UpstreamWatcher{
		Exposed:    d.exposed,
		Reconciler: countingReconciler{d},
		Logger:     d.logger(),
	}

	ctx, d.cancel = context.WithCancel(ctx)
	d.done = make(chan struct{})
	d.requests = make(chan reconcileRequest, 8)

	if err := d.relay.Start(ctx); err != nil {
		d.cancel()
		close(d.done)
		return err
	}
	d.Endpoint.SetInboundHandler(d.relay.OnTransportFrame)

	d.loops.Add(3)
	go func() {
		defer d.loops.Done()
		d.reconcileLoop(ctx)
	}()
	go func() {
		defer d.loops.Done()
		d.stationLoop(ctx)
	}()
	go func() {
		defer d.loops.Done()
		d.endpointLoop(ctx)
	}()

	go func() {
		defer close(d.done)
		d.loops.Wait()
		d.relay.Stop()
	}()

	// Default local addressing before any host attaches: the exposed
	// interface always ends up addressed even if the transport never
	// comes up.
	d.enqueue(reconcileRequest{
		reason:      "install",
		desired:     netif.HostAssignment(d.BasePrefix, BaseHostByte),
		waitTimeout: d.installWait(),
	})

	d.logger().Info("bridge started",
		"base_prefix", d.BasePrefix.String(),
	)
	return nil
}

// Stop shuts the bridge down and waits for its goroutines to drain.
func (d *Dongle) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.done != nil {
		<-d.done
	}
}

// Wait blocks until the bridge has stopped.
func (d *Dongle) Wait() {
	if d.done != nil {
		<-d.done
	}
}

// enqueue posts a request to the reconcile worker without blocking.
// The queue is small; a full queue means reconciliations are already
// piled up and the newest request is dropped with a warning (the state
// it wants will be re-requested by the next event).
func (d *Dongle) enqueue(request reconcileRequest) {
	select {
	case d.requests <- request:
	default:
		d.logger().Warn("reconcile queue full, dropping request",
			"reason", request.reason,
		)
	}
}

// reconcileLoop is the single goroutine where readiness waits and
// reconciliations run. Blocking here is fine; frame relay runs
// elsewhere.
func (d *Dongle) reconcileLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case request := <-d.requests:
			d.handleRequest(request)
		}
	}
}

func (d *Dongle) handleRequest(request reconcileRequest) {
	logger := d.logger().With("reason", request.reason)

	if request.fromStation {
		// The watcher derives the subnet and reconciles through the
		// counting adapter, on this goroutine.
		d.station.SetAssignment(request.station)
		d.upstream.OnStationAddressAcquired(request.station)
		d.maybeEnableNAT(logger)
		return
	}

	if !d.waiter.Wait(d.exposed, request.waitTimeout) {
		logger.Warn("backend not ready, reconciliation will use the link-layer path",
			"state", d.exposed.DebugString(),
		)
	}
	outcome, err := d.reconcile(d.exposed, request.desired)
	if err != nil {
		logger.Error("reconciliation failed", "error", err)
		return
	}
	logger.Info("reconciliation finished",
		"outcome", outcome.String(),
		"state", d.exposed.DebugString(),
	)
	d.maybeEnableNAT(logger)
}

// reconcile runs the reconciler and counts the outcome.
func (d *Dongle) reconcile(handle *netif.Handle, desired netif.Assignment) (netif.Outcome, error) {
	outcome, err := d.Reconciler.Reconcile(handle, desired)
	switch outcome {
	case netif.OutcomeApplied:
		d.Metrics.ReconcileApplied.Add(1)
	case netif.OutcomeAppliedViaFallback:
		d.Metrics.ReconcileFallback.Add(1)
	case netif.OutcomeFailed:
		d.Metrics.ReconcileFailed.Add(1)
	}
	return outcome, err
}

// maybeEnableNAT enables translation once both interfaces hold
// addresses. Runs on the reconcile worker only.
func (d *Dongle) maybeEnableNAT(logger *slog.Logger) {
	if d.NAT == nil || d.natEnabled {
		return
	}
	if !d.station.Assignment().Valid() || !d.exposed.Assignment().Valid() {
		return
	}
	if err := d.NAT.Enable(d.station, d.exposed); err != nil {
		logger.Warn("enabling address translation failed", "error", err)
		return
	}
	d.natEnabled = true
	logger.Info("address translation enabled")
}

// stationLoop consumes upstream link events.
func (d *Dongle) stationLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-d.Station.Events():
			if !ok {
				d.logger().Info("station link closed")
				return
			}
			switch event.Kind {
			case StationConnected:
				d.logger().Info("station connected")
			case StationDisconnected:
				// Reconnection is the link's responsibility.
				d.logger().Warn("station disconnected", "reason", event.Reason)
			case StationAddressAcquired:
				d.logger().Info("station address acquired",
					"assignment", event.Assignment.String(),
				)
				d.enqueue(reconcileRequest{
					reason:      "station address acquired",
					station:     event.Assignment,
					fromStation: true,
				})
			}
		}
	}
}

// endpointLoop consumes transport lifecycle events. Attachment wires
// the exposed interface's backend callbacks; everything that needs a
// live backend then goes through the reconcile worker.
func (d *Dongle) endpointLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-d.Endpoint.Events():
			if !ok {
				d.logger().Info("transport endpoint closed")
				return
			}
			switch event.Kind {
			case transport.Attached:
				d.logger().Info("transport attached")
				d.exposed.AttachBackend(d.StackInput, d.relay.OnNetworkFrame)
				d.enqueue(reconcileRequest{
					reason:      "transport attach",
					desired:     netif.HostAssignment(d.BasePrefix, BaseHostByte),
					waitTimeout: d.attachWait(),
				})
			case transport.Detached:
				d.logger().Warn("transport detached")
				d.exposed.DetachBackend()
			}
		}
	}
}

// countingReconciler adapts the dongle's reconciler for the upstream
// watcher, folding outcome counting in.
type countingReconciler struct {
	dongle *Dongle
}

func (c countingReconciler) Reconcile(handle *netif.Handle, desired netif.Assignment) (netif.Outcome, error) {
	return c.dongle.reconcile(handle, desired)
}
