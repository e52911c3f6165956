// Copyright 2026 The Wifi Adapter Authors
// SPDX-License-Identifier: Apache-2.0

// Package relay moves Ethernet frames between the transport endpoint
// and the exposed interface, in both directions, whenever both exist.
// Relaying is link-layer only and runs regardless of addressing state.
//
// Ownership discipline: a frame buffer produced on one side of the
// relay boundary is consumed-or-released exactly once by the other.
// Inbound, the relay allocates the buffer and ownership transfers to
// the stack on accepted delivery; on any rejection the relay releases.
// Outbound, the stack's buffer is always released by the relay after
// the send attempt, accepted or not.
//
// Both directions are lossy by design: a frame that cannot move right
// now is dropped and counted, never queued across the boundary and
// never retried. Queuing against a backend that may never become ready
// would grow without bound under load, and the stack's output path must
// never stall on the transport.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/FajarEnjoyneer/wifi-adapter/diag"
	"github.com/FajarEnjoyneer/wifi-adapter/netif"
	"github.com/FajarEnjoyneer/wifi-adapter/transport"
)

// DefaultQueueDepth is the default capacity of the serialized stack
// input queue. The queue exists for goroutine hand-off, not buffering;
// a full queue drops frames.
const DefaultQueueDepth = 64

// Relay bridges frames between a transport endpoint and the exposed
// interface.
//
// Inbound frames are posted to a bounded queue drained by a single
// goroutine, so delivery into the interface's input function is
// serialized no matter which goroutine the transport delivers from.
// Outbound frames are sent synchronously on the caller's goroutine and
// never block past the endpoint's send call.
type Relay struct {
	// Exposed is the interface receiving inbound frames.
	Exposed *netif.Handle

	// Endpoint consumes outbound frames.
	Endpoint transport.Endpoint

	// Allocator provides inbound frame buffers. If nil, a fresh
	// allocator is created at Start.
	Allocator *netif.Allocator

	// Metrics receives relay counters. If nil, counting is skipped.
	Metrics *diag.Metrics

	// Drops, if non-nil, records a DropEvent per dropped frame.
	Drops *diag.DropRing

	// Capture, if non-nil, observes every successfully relayed frame.
	// Direction is "inbound" or "outbound".
	Capture func(direction string, frame []byte)

	// QueueDepth is the stack input queue capacity. Zero means
	// DefaultQueueDepth.
	QueueDepth int

	// Logger receives structured log output. If nil, slog.Default()
	// is used.
	Logger *slog.Logger

	running atomic.Bool
	queue   chan *netif.FrameBuffer
	cancel  context.CancelFunc
	done    chan struct{}
}

func (r *Relay) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func (r *Relay) queueDepth() int {
	if r.QueueDepth > 0 {
		return r.QueueDepth
	}
	return DefaultQueueDepth
}

// Start launches the serialized stack input goroutine. The relay
// accepts no inbound frames before Start or after Stop.
func (r *Relay) Start(ctx context.Context) error {
	if r.Exposed == nil {
		return fmt.Errorf("relay: Exposed interface is required")
	}
	if r.Endpoint == nil {
		return fmt.Errorf("relay: Endpoint is required")
	}
	if r.Allocator == nil {
		r.Allocator = netif.NewAllocator()
	}

	ctx, r.cancel = context.WithCancel(ctx)
	r.queue = make(chan *netif.FrameBuffer, r.queueDepth())
	r.done = make(chan struct{})
	r.running.Store(true)

	go func() {
		defer close(r.done)
		r.inputLoop(ctx)
	}()

	r.logger().Info("relay started", "queue_depth", r.queueDepth())
	return nil
}

// Stop halts inbound relaying and releases any frames still queued.
func (r *Relay) Stop() {
	if !r.running.Swap(false) {
		return
	}
	r.cancel()
	<-r.done
	// Producers checked running before enqueueing; anything that
	// slipped in behind the input loop's final drain is released here.
	r.drainQueue()
}

// OnTransportFrame accepts one inbound frame from the transport.
// Returns true if the frame was handed to the stack input queue and
// false if it was dropped. Runs on the transport's delivery goroutine
// and never blocks.
//
// A frame arriving while the exposed interface has no attached backend
// is dropped before any buffer is allocated.
func (r *Relay) OnTransportFrame(frame []byte) bool {
	if len(frame) == 0 {
		r.logger().Debug("empty inbound frame rejected")
		return false
	}
	if !r.running.Load() {
		r.drop("inbound", "relay not running", len(frame))
		return false
	}
	if !r.Exposed.BackendAttached() {
		if r.Metrics != nil {
			r.Metrics.DropNoBackend.Add(1)
		}
		r.drop("inbound", "no backend attached", len(frame))
		return false
	}

	buffer, err := r.Allocator.Alloc(len(frame))
	if err != nil {
		if r.Metrics != nil {
			r.Metrics.DropAllocFailed.Add(1)
		}
		r.drop("inbound", "allocation failed", len(frame))
		return false
	}
	buffer.CopyIn(frame)

	select {
	case r.queue <- buffer:
		return true
	default:
		buffer.Release()
		if r.Metrics != nil {
			r.Metrics.DropQueueFull.Add(1)
		}
		r.drop("inbound", "input queue full", len(frame))
		return false
	}
}

// OnNetworkFrame consumes one outbound frame from the exposed
// interface's stack. The buffer's segments are drained in order into a
// single transport send, and the buffer is released exactly once
// whether or not the transport accepts the frame. Never blocks past
// the endpoint's send call.
func (r *Relay) OnNetworkFrame(buffer *netif.FrameBuffer) {
	frame := make([]byte, 0, buffer.Len())
	total := 0
	for _, segment := range buffer.Segments() {
		frame = append(frame, segment...)
		total += len(segment)
	}
	buffer.Release()

	err := r.Endpoint.Send(frame)
	switch {
	case err == nil:
		if r.Metrics != nil {
			r.Metrics.OutboundSent.Add(1)
			r.Metrics.OutboundBytes.Add(uint64(total))
		}
		if r.Capture != nil {
			r.Capture("outbound", frame)
		}
	case isNotReady(err):
		if r.Metrics != nil {
			r.Metrics.DropNotReady.Add(1)
		}
		r.drop("outbound", "transport not ready", total)
	default:
		if r.Metrics != nil {
			r.Metrics.DropTransportBusy.Add(1)
		}
		r.drop("outbound", err.Error(), total)
	}
}

// inputLoop is the single consumer of the stack input queue: delivery
// into the interface's input function is serialized here, per frame,
// in arrival order.
func (r *Relay) inputLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			r.drainQueue()
			return
		case buffer := <-r.queue:
			r.deliver(buffer)
		}
	}
}

func (r *Relay) deliver(buffer *netif.FrameBuffer) {
	length := buffer.Len()
	var flattened []byte
	if r.Capture != nil {
		flattened = buffer.Bytes()
	}

	if err := r.Exposed.SubmitInput(buffer); err != nil {
		// The stack refused the frame; ownership stayed with us.
		buffer.Release()
		if r.Metrics != nil {
			r.Metrics.DropStackRejected.Add(1)
		}
		r.drop("inbound", "stack rejected frame", length)
		return
	}
	if r.Metrics != nil {
		r.Metrics.InboundAccepted.Add(1)
		r.Metrics.InboundBytes.Add(uint64(length))
	}
	if r.Capture != nil {
		r.Capture("inbound", flattened)
	}
}

func (r *Relay) drainQueue() {
	for {
		select {
		case buffer := <-r.queue:
			buffer.Release()
		default:
			return
		}
	}
}

func (r *Relay) drop(direction, reason string, length int) {
	r.logger().Debug("frame dropped",
		"direction", direction,
		"reason", reason,
		"length", length,
	)
	if r.Drops != nil {
		r.Drops.Record(diag.DropEvent{
			At:          time.Now(),
			Direction:   direction,
			Reason:      reason,
			FrameLength: length,
		})
	}
}

func isNotReady(err error) bool {
	return errors.Is(err, transport.ErrNotReady)
}
