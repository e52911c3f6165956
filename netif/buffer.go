// Copyright 2026 The Wifi Adapter Authors
// SPDX-License-Identifier: Apache-2.0

package netif

import (
	"fmt"
	"sync/atomic"
)

// MTU is the maximum frame size the adapter relays: 1500 bytes of
// payload plus the 14-byte Ethernet header. Frames larger than this
// are never allocated.
const MTU = 1514

// DefaultSegmentSize is the segment granularity of allocated frame
// buffers. A full-MTU frame spans three segments, so every relay path
// is exercised against chained storage even at small frame sizes.
const DefaultSegmentSize = 512

// Allocator creates frame buffers and tracks their lifecycle. The
// allocation and release counters let tests verify the single-release
// ownership invariant: every allocated buffer is released exactly once,
// by whichever side of the relay boundary owns it at the time.
type Allocator struct {
	segmentSize    int
	allocated      atomic.Uint64
	released       atomic.Uint64
	doubleReleased atomic.Uint64
}

// AllocStats is a point-in-time view of an allocator's counters.
type AllocStats struct {
	Allocated      uint64
	Released       uint64
	DoubleReleased uint64
}

// NewAllocator returns an allocator with the default segment size.
func NewAllocator() *Allocator {
	return &Allocator{segmentSize: DefaultSegmentSize}
}

// NewAllocatorWithSegmentSize returns an allocator that chops buffers
// into segments of the given size. Used by tests to force specific
// chain shapes.
func NewAllocatorWithSegmentSize(segmentSize int) *Allocator {
	if segmentSize <= 0 {
		segmentSize = DefaultSegmentSize
	}
	return &Allocator{segmentSize: segmentSize}
}

// Alloc creates a frame buffer holding exactly size bytes, chained
// across as many segments as the segment size requires. Sizes outside
// (0, MTU] are refused.
func (a *Allocator) Alloc(size int) (*FrameBuffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("netif: frame buffer size %d must be positive", size)
	}
	if size > MTU {
		return nil, fmt.Errorf("netif: frame buffer size %d exceeds MTU %d", size, MTU)
	}

	segmentCount := (size + a.segmentSize - 1) / a.segmentSize
	segments := make([][]byte, 0, segmentCount)
	// One backing array, sliced into segments: a frame is always
	// copied whole, so there is no benefit to separate allocations.
	backing := make([]byte, size)
	for offset := 0; offset < size; offset += a.segmentSize {
		end := offset + a.segmentSize
		if end > size {
			end = size
		}
		segments = append(segments, backing[offset:end])
	}

	a.allocated.Add(1)
	return &FrameBuffer{alloc: a, segments: segments, length: size}, nil
}

// Stats returns the allocator's lifecycle counters.
func (a *Allocator) Stats() AllocStats {
	return AllocStats{
		Allocated:      a.allocated.Load(),
		Released:       a.released.Load(),
		DoubleReleased: a.doubleReleased.Load(),
	}
}

// FrameBuffer is a reference-counted frame: an ordered sequence of byte
// segments with a total length no larger than the MTU. A buffer is
// owned by exactly one side of the relay boundary at any time, and the
// owner must release it exactly once. Handing a buffer to an input
// function transfers ownership on success; on failure the caller still
// owns it.
type FrameBuffer struct {
	alloc    *Allocator
	segments [][]byte
	length   int
	released atomic.Bool
}

// Len returns the total frame length in bytes.
func (b *FrameBuffer) Len() int {
	return b.length
}

// Segments returns the buffer's segments in frame order. Callers must
// not retain the slices past Release.
func (b *FrameBuffer) Segments() [][]byte {
	return b.segments
}

// CopyIn copies src into the buffer across its segment chain, starting
// at the first segment, and returns the number of bytes copied (at most
// the buffer length).
func (b *FrameBuffer) CopyIn(src []byte) int {
	copied := 0
	for _, segment := range b.segments {
		if copied >= len(src) {
			break
		}
		copied += copy(segment, src[copied:])
	}
	return copied
}

// Bytes flattens the segment chain into a single contiguous slice.
// Intended for tests and capture, not the relay hot path.
func (b *FrameBuffer) Bytes() []byte {
	flat := make([]byte, 0, b.length)
	for _, segment := range b.segments {
		flat = append(flat, segment...)
	}
	return flat
}

// Release returns the buffer to its allocator. A second release is
// counted and otherwise ignored; the counter makes ownership bugs
// visible in tests and telemetry instead of corrupting memory.
func (b *FrameBuffer) Release() {
	if b.released.Swap(true) {
		b.alloc.doubleReleased.Add(1)
		return
	}
	b.alloc.released.Add(1)
	b.segments = nil
}
