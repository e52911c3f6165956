// Copyright 2026 The Wifi Adapter Authors
// SPDX-License-Identifier: Apache-2.0

package diag

import (
	"sync"
	"time"
)

// DefaultDropRingSize is the default drop-event ring capacity. Drops
// come in bursts (a host stack that has not attached yet, a transport
// that went away); a few hundred events is enough context to see the
// shape of a burst without holding frames themselves.
const DefaultDropRingSize = 256

// DropEvent records one dropped frame. The frame bytes are not kept.
type DropEvent struct {
	At          time.Time `cbor:"at"`
	Direction   string    `cbor:"direction"` // "inbound" or "outbound"
	Reason      string    `cbor:"reason"`
	FrameLength int       `cbor:"frame_length"`
}

// DropRing is a fixed-capacity ring of recent drop events. New events
// overwrite the oldest once full. All methods are safe for concurrent
// use.
type DropRing struct {
	mutex    sync.Mutex
	events   []DropEvent
	next     int
	recorded uint64
}

// NewDropRing creates a ring with the given capacity. Use
// DefaultDropRingSize for the standard ring.
func NewDropRing(capacity int) *DropRing {
	if capacity <= 0 {
		capacity = DefaultDropRingSize
	}
	return &DropRing{events: make([]DropEvent, 0, capacity)}
}

// Record appends a drop event, overwriting the oldest when full.
func (ring *DropRing) Record(event DropEvent) {
	ring.mutex.Lock()
	defer ring.mutex.Unlock()
	if len(ring.events) < cap(ring.events) {
		ring.events = append(ring.events, event)
	} else {
		ring.events[ring.next] = event
	}
	ring.next = (ring.next + 1) % cap(ring.events)
	ring.recorded++
}

// Recent returns the retained events, oldest first.
func (ring *DropRing) Recent() []DropEvent {
	ring.mutex.Lock()
	defer ring.mutex.Unlock()

	result := make([]DropEvent, 0, len(ring.events))
	if len(ring.events) < cap(ring.events) {
		return append(result, ring.events...)
	}
	result = append(result, ring.events[ring.next:]...)
	return append(result, ring.events[:ring.next]...)
}

// Recorded returns the total number of events ever recorded, including
// those already overwritten.
func (ring *DropRing) Recorded() uint64 {
	ring.mutex.Lock()
	defer ring.mutex.Unlock()
	return ring.recorded
}
