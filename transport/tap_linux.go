// Copyright 2026 The Wifi Adapter Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package transport

import (
	"fmt"
	"log/slog"
	"net"
	"sync"

	"golang.org/x/sys/unix"
)

// Compile-time interface check.
var _ Endpoint = (*TAPEndpoint)(nil)

// tapMTU matches the relay's Ethernet framing limit.
const tapMTU = 1514

// TAPEndpoint is an Endpoint backed by a Linux TAP device. It stands
// in for the USB-class backend on development machines: the TAP
// device's peer (the kernel) plays the host, and frames written to the
// device appear on the named interface.
//
// The endpoint attaches as soon as the device opens, then runs a read
// loop delivering frames to the inbound handler on a dedicated
// goroutine.
type TAPEndpoint struct {
	name   string
	hwaddr net.HardwareAddr

	mu      sync.Mutex
	handler InboundHandler
	closed  bool

	file   int
	events chan Event
	done   chan struct{}
	logger *slog.Logger
}

// NewTAPEndpoint opens (or creates) the named TAP device and starts
// its read loop. The interface still needs to be brought up and
// addressed on the kernel side; that is the host's business, exactly
// as a USB host decides when to configure its side of the link.
func NewTAPEndpoint(name string, hwaddr net.HardwareAddr, logger *slog.Logger) (*TAPEndpoint, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fd, err := unix.Open("/dev/net/tun", unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("transport: open /dev/net/tun: %w", err)
	}

	ifreq, err := unix.NewIfreq(name)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("transport: interface name %q: %w", name, err)
	}
	ifreq.SetUint16(unix.IFF_TAP | unix.IFF_NO_PI)
	if err := unix.IoctlIfreq(fd, unix.TUNSETIFF, ifreq); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("transport: TUNSETIFF %q: %w", name, err)
	}

	endpoint := &TAPEndpoint{
		name:   ifreq.Name(),
		hwaddr: hwaddr,
		file:   fd,
		events: make(chan Event, 8),
		done:   make(chan struct{}),
		logger: logger,
	}

	go endpoint.readLoop()

	endpoint.events <- Event{Kind: Attached}
	logger.Info("tap endpoint opened", "interface", endpoint.name)
	return endpoint, nil
}

// Name returns the OS interface name of the TAP device.
func (t *TAPEndpoint) Name() string {
	return t.name
}

// Events implements Endpoint.
func (t *TAPEndpoint) Events() <-chan Event {
	return t.events
}

// SetInboundHandler implements Endpoint.
func (t *TAPEndpoint) SetInboundHandler(handler InboundHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = handler
}

// Send implements Endpoint. Each call writes one complete frame to the
// TAP device.
func (t *TAPEndpoint) Send(frame []byte) error {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return ErrNotReady
	}
	if _, err := unix.Write(t.file, frame); err != nil {
		if err == unix.EAGAIN {
			return ErrBusy
		}
		return fmt.Errorf("transport: tap write: %w", err)
	}
	return nil
}

// HardwareAddr implements Endpoint.
func (t *TAPEndpoint) HardwareAddr() net.HardwareAddr {
	return t.hwaddr
}

// MTU implements Endpoint.
func (t *TAPEndpoint) MTU() int {
	return tapMTU
}

// Close implements Endpoint.
func (t *TAPEndpoint) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	// Closing the descriptor unblocks the read loop, which closes
	// the events channel on its way out.
	err := unix.Close(t.file)
	<-t.done
	return err
}

// readLoop delivers inbound frames to the handler until the device
// closes. Frames arriving with no handler installed are dropped.
func (t *TAPEndpoint) readLoop() {
	defer close(t.done)
	defer close(t.events)

	frame := make([]byte, tapMTU)
	for {
		n, err := unix.Read(t.file, frame)
		if err != nil {
			t.mu.Lock()
			closed := t.closed
			t.mu.Unlock()
			if !closed {
				t.logger.Error("tap read failed", "interface", t.name, "error", err)
			}
			return
		}
		if n == 0 {
			continue
		}

		t.mu.Lock()
		handler := t.handler
		t.mu.Unlock()
		if handler == nil {
			t.logger.Debug("inbound frame with no handler installed", "length", n)
			continue
		}
		// The handler copies the frame into its own buffer, so the
		// read buffer can be reused immediately.
		handler(frame[:n])
	}
}
