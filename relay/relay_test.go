// Copyright 2026 The Wifi Adapter Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"bytes"
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/FajarEnjoyneer/wifi-adapter/diag"
	"github.com/FajarEnjoyneer/wifi-adapter/lib/testutil"
	"github.com/FajarEnjoyneer/wifi-adapter/netif"
	"github.com/FajarEnjoyneer/wifi-adapter/transport"
)

// recordingStack collects frames delivered through the exposed
// interface's input function and releases them, as a real stack would
// after processing.
type recordingStack struct {
	mu     sync.Mutex
	frames [][]byte
	reject func(frame []byte) bool
}

func (s *recordingStack) input(buffer *netif.FrameBuffer) error {
	flat := buffer.Bytes()
	s.mu.Lock()
	reject := s.reject
	s.mu.Unlock()
	if reject != nil && reject(flat) {
		return netif.ErrNoBackend
	}
	s.mu.Lock()
	s.frames = append(s.frames, flat)
	s.mu.Unlock()
	buffer.Release()
	return nil
}

func (s *recordingStack) received() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([][]byte, len(s.frames))
	copy(result, s.frames)
	return result
}

func newTestRelay(t *testing.T) (*Relay, *recordingStack, *transport.MemoryEndpoint, *netif.Allocator) {
	t.Helper()

	stack := &recordingStack{}
	exposed := netif.NewHandle("exposed")
	endpoint := transport.NewMemoryEndpoint()
	endpoint.Attach()
	testutil.RequireReceive(t, endpoint.Events(), time.Second, "attach event")

	allocator := netif.NewAllocatorWithSegmentSize(512)
	testRelay := &Relay{
		Exposed:   exposed,
		Endpoint:  endpoint,
		Allocator: allocator,
		Metrics:   &diag.Metrics{},
		Drops:     diag.NewDropRing(16),
	}
	exposed.AttachBackend(stack.input, testRelay.OnNetworkFrame)

	if err := testRelay.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(testRelay.Stop)
	return testRelay, stack, endpoint, allocator
}

func TestOnTransportFrame_RejectsEmptyFrame(t *testing.T) {
	testRelay, _, _, allocator := newTestRelay(t)

	if testRelay.OnTransportFrame(nil) {
		t.Fatal("empty frame must be rejected")
	}
	if stats := allocator.Stats(); stats.Allocated != 0 {
		t.Fatalf("empty frame must not allocate: %+v", stats)
	}
}

// A full-MTU frame arriving before the backend attaches is rejected
// without allocating a buffer.
func TestOnTransportFrame_NoBackendNoAllocation(t *testing.T) {
	stack := &recordingStack{}
	exposed := netif.NewHandle("exposed")
	endpoint := transport.NewMemoryEndpoint()
	allocator := netif.NewAllocator()
	metrics := &diag.Metrics{}

	testRelay := &Relay{
		Exposed:   exposed,
		Endpoint:  endpoint,
		Allocator: allocator,
		Metrics:   metrics,
	}
	if err := testRelay.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(testRelay.Stop)

	frame := make([]byte, netif.MTU)
	if testRelay.OnTransportFrame(frame) {
		t.Fatal("frame must be rejected with no backend attached")
	}
	if stats := allocator.Stats(); stats.Allocated != 0 {
		t.Fatalf("rejected frame allocated a buffer: %+v", stats)
	}
	if metrics.DropNoBackend.Load() != 1 {
		t.Fatalf("DropNoBackend = %d, want 1", metrics.DropNoBackend.Load())
	}
	_ = stack
}

func TestInbound_DeliversInOrder(t *testing.T) {
	testRelay, stack, _, _ := newTestRelay(t)

	const frameCount = 100
	for i := 0; i < frameCount; i++ {
		frame := []byte{byte(i), byte(i >> 8), 0xEE}
		if !testRelay.OnTransportFrame(frame) {
			t.Fatalf("frame %d rejected", i)
		}
	}

	testutil.Eventually(t, func() bool {
		return len(stack.received()) == frameCount
	}, 5*time.Second, time.Millisecond, "stack received all frames")

	for i, frame := range stack.received() {
		if frame[0] != byte(i) || frame[1] != byte(i>>8) {
			t.Fatalf("frame %d out of order: % x", i, frame)
		}
	}
}

// Every buffer crossing the boundary is released exactly once, under
// randomized accept/reject responses from the stack.
func TestInbound_SingleReleaseUnderRandomRejection(t *testing.T) {
	testRelay, stack, _, allocator := newTestRelay(t)

	rng := rand.New(rand.NewSource(42))
	stack.reject = func(frame []byte) bool {
		return rng.Intn(3) == 0
	}

	const frameCount = 300
	accepted := 0
	for i := 0; i < frameCount; i++ {
		frame := make([]byte, 60+i%1400)
		if testRelay.OnTransportFrame(frame) {
			accepted++
		}
	}

	testutil.Eventually(t, func() bool {
		stats := allocator.Stats()
		return stats.Allocated == uint64(accepted) && stats.Released == stats.Allocated
	}, 5*time.Second, time.Millisecond, "allocation/release balance")

	if stats := allocator.Stats(); stats.DoubleReleased != 0 {
		t.Fatalf("double releases detected: %+v", stats)
	}
}

func TestInbound_QueueFullDropsAndReleases(t *testing.T) {
	stack := &recordingStack{}
	exposed := netif.NewHandle("exposed")
	endpoint := transport.NewMemoryEndpoint()
	allocator := netif.NewAllocator()
	metrics := &diag.Metrics{}

	// Block the stack so the queue backs up.
	blocked := make(chan struct{})
	exposed.AttachBackend(func(buffer *netif.FrameBuffer) error {
		<-blocked
		return stack.input(buffer)
	}, func(buffer *netif.FrameBuffer) { buffer.Release() })

	testRelay := &Relay{
		Exposed:    exposed,
		Endpoint:   endpoint,
		Allocator:  allocator,
		Metrics:    metrics,
		QueueDepth: 2,
	}
	if err := testRelay.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		close(blocked)
		testRelay.Stop()
	})

	// One frame occupies the consumer, two fill the queue; further
	// frames must drop.
	dropped := 0
	for i := 0; i < 10; i++ {
		if !testRelay.OnTransportFrame([]byte{byte(i)}) {
			dropped++
		}
	}
	if dropped == 0 {
		t.Fatal("expected drops once the queue filled")
	}
	if metrics.DropQueueFull.Load() == 0 {
		t.Fatal("queue-full drops must be counted")
	}

	// Dropped buffers were released immediately.
	stats := allocator.Stats()
	if stats.Released < uint64(dropped) {
		t.Fatalf("dropped buffers not released: dropped=%d stats=%+v", dropped, stats)
	}
}

func TestOutbound_DrainsSegmentsInOrder(t *testing.T) {
	testRelay, _, endpoint, allocator := newTestRelay(t)

	payload := make([]byte, netif.MTU)
	for i := range payload {
		payload[i] = byte(i % 251)
	}
	buffer, err := allocator.Alloc(len(payload))
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	buffer.CopyIn(payload)
	if len(buffer.Segments()) < 2 {
		t.Fatal("test requires a chained buffer")
	}

	testRelay.OnNetworkFrame(buffer)

	sent := endpoint.Sent()
	if len(sent) != 1 {
		t.Fatalf("endpoint saw %d frames, want 1", len(sent))
	}
	if !bytes.Equal(sent[0], payload) {
		t.Fatal("segments were not drained in order")
	}

	stats := allocator.Stats()
	if stats.Released != 1 || stats.DoubleReleased != 0 {
		t.Fatalf("buffer not released exactly once: %+v", stats)
	}
}

func TestOutbound_NotReadyDropsWithoutRetry(t *testing.T) {
	testRelay, _, endpoint, allocator := newTestRelay(t)
	endpoint.Detach()
	testutil.RequireReceive(t, endpoint.Events(), time.Second, "detach event")

	buffer, err := allocator.Alloc(64)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	testRelay.OnNetworkFrame(buffer)

	if got := testRelay.Metrics.DropNotReady.Load(); got != 1 {
		t.Fatalf("DropNotReady = %d, want 1", got)
	}
	if len(endpoint.Sent()) != 0 {
		t.Fatal("no frame may reach a detached endpoint")
	}
	if stats := allocator.Stats(); stats.Released != 1 {
		t.Fatalf("dropped outbound buffer not released: %+v", stats)
	}
}

func TestOutbound_BusyCountsSeparately(t *testing.T) {
	testRelay, _, endpoint, allocator := newTestRelay(t)
	endpoint.FailNextSend(transport.ErrBusy)

	buffer, err := allocator.Alloc(64)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	testRelay.OnNetworkFrame(buffer)

	if got := testRelay.Metrics.DropTransportBusy.Load(); got != 1 {
		t.Fatalf("DropTransportBusy = %d, want 1", got)
	}
}

func TestStop_ReleasesQueuedFrames(t *testing.T) {
	exposed := netif.NewHandle("exposed")
	endpoint := transport.NewMemoryEndpoint()
	allocator := netif.NewAllocator()

	// Stack that never returns until released, so frames pile up.
	blocked := make(chan struct{})
	exposed.AttachBackend(func(buffer *netif.FrameBuffer) error {
		<-blocked
		buffer.Release()
		return nil
	}, func(buffer *netif.FrameBuffer) { buffer.Release() })

	testRelay := &Relay{
		Exposed:    exposed,
		Endpoint:   endpoint,
		Allocator:  allocator,
		QueueDepth: 8,
	}
	if err := testRelay.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	for i := 0; i < 5; i++ {
		testRelay.OnTransportFrame([]byte{byte(i)})
	}
	close(blocked)
	testRelay.Stop()

	stats := allocator.Stats()
	if stats.Allocated != stats.Released {
		t.Fatalf("frames leaked across Stop: %+v", stats)
	}
}

func TestDropsAreRecorded(t *testing.T) {
	testRelay, _, endpoint, allocator := newTestRelay(t)
	endpoint.Detach()
	testutil.RequireReceive(t, endpoint.Events(), time.Second, "detach event")

	buffer, err := allocator.Alloc(100)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	testRelay.OnNetworkFrame(buffer)

	events := testRelay.Drops.Recent()
	if len(events) != 1 {
		t.Fatalf("drop ring has %d events, want 1", len(events))
	}
	if events[0].Direction != "outbound" || events[0].FrameLength != 100 {
		t.Fatalf("unexpected drop event: %+v", events[0])
	}
}
