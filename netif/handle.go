// Copyright 2026 The Wifi Adapter Authors
// SPDX-License-Identifier: Apache-2.0

package netif

import (
	"fmt"
	"sync"
)

// InputFunc delivers a frame buffer into an interface's network stack.
// A nil return transfers buffer ownership to the stack; a non-nil
// return leaves ownership with the caller, who must release the buffer.
type InputFunc func(*FrameBuffer) error

// OutputFunc carries a frame buffer out of an interface's network
// stack toward its transport. Ownership always transfers: the output
// path releases the buffer exactly once whether or not the transport
// accepts the frame.
type OutputFunc func(*FrameBuffer)

// Handle identifies one of the adapter's two interfaces and tracks its
// backend attachment and address state. The backend callbacks are nil
// until the transport wires them, which happens asynchronously and
// possibly after configuration is first attempted.
//
// Address state is mutated only through the reconciler; everything else
// observes. The mutex covers the callback pointers and assignment so
// attachment from the transport goroutine is safe against observation
// from the reconcile worker.
type Handle struct {
	name string

	mu         sync.Mutex
	input      InputFunc
	output     OutputFunc
	assignment Assignment
}

// NewHandle creates a handle with no backend and no address.
func NewHandle(name string) *Handle {
	return &Handle{name: name}
}

// Name returns the interface name (e.g. "exposed", "station").
func (h *Handle) Name() string {
	return h.name
}

// AttachBackend wires the interface's input and output callbacks. The
// handle counts as attached only once both are non-nil.
func (h *Handle) AttachBackend(input InputFunc, output OutputFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.input = input
	h.output = output
}

// DetachBackend clears the backend callbacks, e.g. when the host
// detaches the transport.
func (h *Handle) DetachBackend() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.input = nil
	h.output = nil
}

// BackendAttached reports whether both backend callbacks are wired.
func (h *Handle) BackendAttached() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.input != nil && h.output != nil
}

// SubmitInput hands a frame buffer to the interface's stack input.
// Returns ErrNoBackend without touching the buffer if the backend is
// not attached; the caller keeps ownership on any error.
func (h *Handle) SubmitInput(buffer *FrameBuffer) error {
	h.mu.Lock()
	input := h.input
	h.mu.Unlock()
	if input == nil {
		return ErrNoBackend
	}
	return input(buffer)
}

// Output carries a frame buffer out of the stack via the backend
// output callback. If no backend is attached the buffer is released
// here, preserving the single-release invariant.
func (h *Handle) Output(buffer *FrameBuffer) {
	h.mu.Lock()
	output := h.output
	h.mu.Unlock()
	if output == nil {
		buffer.Release()
		return
	}
	output(buffer)
}

// SetAssignment records the interface's address triple. Only the
// reconciler calls this; it is the single writer of address state.
func (h *Handle) SetAssignment(assignment Assignment) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.assignment = assignment
}

// Assignment returns the interface's current address triple. The zero
// Assignment means unconfigured.
func (h *Handle) Assignment() Assignment {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.assignment
}

// DebugString summarizes the handle for diagnostics, mirroring the
// interface dumps logged at readiness transitions.
func (h *Handle) DebugString() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return fmt.Sprintf("%s attached=%t addr=%s",
		h.name, h.input != nil && h.output != nil, h.assignment)
}
