// Copyright 2026 The Wifi Adapter Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"net"
	"sync"
)

// Compile-time interface check.
var _ Endpoint = (*MemoryEndpoint)(nil)

// MemoryEndpoint is an in-process Endpoint for tests and development.
// The test drives attachment with Attach/Detach, injects host frames
// with Deliver, and inspects what the adapter sent with Sent.
type MemoryEndpoint struct {
	mu       sync.Mutex
	handler  InboundHandler
	attached bool
	closed   bool
	sent     [][]byte
	sendErr  []error
	events   chan Event
	hwaddr   net.HardwareAddr
	mtu      int
}

// NewMemoryEndpoint creates a detached memory endpoint.
func NewMemoryEndpoint() *MemoryEndpoint {
	hwaddr, _ := net.ParseMAC("02:00:11:22:33:44")
	return &MemoryEndpoint{
		events: make(chan Event, 8),
		hwaddr: hwaddr,
		mtu:    1514,
	}
}

// Events implements Endpoint.
func (m *MemoryEndpoint) Events() <-chan Event {
	return m.events
}

// SetInboundHandler implements Endpoint.
func (m *MemoryEndpoint) SetInboundHandler(handler InboundHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = handler
}

// Send implements Endpoint. Frames are recorded in order. Scripted
// errors queued with FailNextSend are returned first.
func (m *MemoryEndpoint) Send(frame []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sendErr) > 0 {
		err := m.sendErr[0]
		m.sendErr = m.sendErr[1:]
		return err
	}
	if m.closed || !m.attached {
		return ErrNotReady
	}
	m.sent = append(m.sent, append([]byte(nil), frame...))
	return nil
}

// HardwareAddr implements Endpoint.
func (m *MemoryEndpoint) HardwareAddr() net.HardwareAddr {
	return m.hwaddr
}

// MTU implements Endpoint.
func (m *MemoryEndpoint) MTU() int {
	return m.mtu
}

// Close implements Endpoint.
func (m *MemoryEndpoint) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.attached = false
	close(m.events)
	return nil
}

// Attach simulates the host wiring the endpoint.
func (m *MemoryEndpoint) Attach() {
	m.mu.Lock()
	m.attached = true
	m.mu.Unlock()
	m.events <- Event{Kind: Attached}
}

// Detach simulates the host going away.
func (m *MemoryEndpoint) Detach() {
	m.mu.Lock()
	m.attached = false
	m.mu.Unlock()
	m.events <- Event{Kind: Detached}
}

// Deliver injects one host frame through the inbound handler,
// returning the handler's verdict. With no handler installed the frame
// is dropped and Deliver returns false.
func (m *MemoryEndpoint) Deliver(frame []byte) bool {
	m.mu.Lock()
	handler := m.handler
	m.mu.Unlock()
	if handler == nil {
		return false
	}
	return handler(frame)
}

// FailNextSend queues errs to be returned by the next Sends, ahead of
// normal processing.
func (m *MemoryEndpoint) FailNextSend(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = append(m.sendErr, errs...)
}

// Sent returns copies of all frames accepted so far, in order.
func (m *MemoryEndpoint) Sent() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([][]byte, len(m.sent))
	copy(result, m.sent)
	return result
}
