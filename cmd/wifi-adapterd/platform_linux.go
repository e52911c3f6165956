// Copyright 2026 The Wifi Adapter Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package main

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/FajarEnjoyneer/wifi-adapter/lib/config"
	"github.com/FajarEnjoyneer/wifi-adapter/netif"
	"github.com/FajarEnjoyneer/wifi-adapter/transport"
)

// openEndpoint opens the TAP device backing the host-facing interface.
func openEndpoint(cfg *config.Config, logger *slog.Logger) (transport.Endpoint, error) {
	hwaddr, err := net.ParseMAC(cfg.Exposed.MAC)
	if err != nil {
		return nil, fmt.Errorf("exposed MAC %q: %w", cfg.Exposed.MAC, err)
	}
	name := cfg.Exposed.TAP
	if name == "" {
		name = "wifi0"
	}
	return transport.NewTAPEndpoint(name, hwaddr, logger)
}

// stationForwarder moves frames between the bridge and the station
// interface through a packet socket. Inbound host frames are injected
// onto the station interface; frames seen on the station interface are
// fed back through the exposed interface's output path toward the host.
type stationForwarder struct {
	fd        int
	ifindex   int
	allocator *netif.Allocator
	logger    *slog.Logger

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

func newStationForwarder(interfaceName string, logger *slog.Logger) (*stationForwarder, error) {
	iface, err := net.InterfaceByName(interfaceName)
	if err != nil {
		return nil, fmt.Errorf("station interface %q: %w", interfaceName, err)
	}

	protocol := int(htons(unix.ETH_P_ALL))
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW|unix.SOCK_CLOEXEC, protocol)
	if err != nil {
		return nil, fmt.Errorf("packet socket: %w", err)
	}
	if err := unix.Bind(fd, &unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_ALL),
		Ifindex:  iface.Index,
	}); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("binding packet socket to %q: %w", interfaceName, err)
	}

	return &stationForwarder{
		fd:        fd,
		ifindex:   iface.Index,
		allocator: netif.NewAllocator(),
		logger:    logger,
	}, nil
}

// inject is the bridge's stack input: a host frame is written onto the
// station interface. On success ownership of the buffer transfers here
// and the buffer is released; on failure the caller keeps ownership.
func (f *stationForwarder) inject(buffer *netif.FrameBuffer) error {
	if _, err := unix.Write(f.fd, buffer.Bytes()); err != nil {
		return fmt.Errorf("injecting frame on station interface: %w", err)
	}
	buffer.Release()
	return nil
}

// startOutbound begins reading station-interface frames and feeding
// them through the exposed interface's output path toward the host.
func (f *stationForwarder) startOutbound(exposed *netif.Handle) {
	f.done = make(chan struct{})
	go func() {
		defer close(f.done)
		f.outboundLoop(exposed)
	}()
}

func (f *stationForwarder) outboundLoop(exposed *netif.Handle) {
	frame := make([]byte, netif.MTU)
	for {
		n, from, err := unix.Recvfrom(f.fd, frame, 0)
		if err != nil {
			f.mu.Lock()
			closed := f.closed
			f.mu.Unlock()
			if !closed {
				f.logger.Error("station interface read failed", "error", err)
			}
			return
		}
		if n == 0 {
			continue
		}
		// The packet socket also sees frames this process injected;
		// forwarding those back would loop.
		if linklayer, ok := from.(*unix.SockaddrLinklayer); ok && linklayer.Pkttype == unix.PACKET_OUTGOING {
			continue
		}

		buffer, err := f.allocator.Alloc(n)
		if err != nil {
			f.logger.Debug("station frame dropped, allocation failed", "length", n)
			continue
		}
		buffer.CopyIn(frame[:n])
		exposed.Output(buffer)
	}
}

func (f *stationForwarder) close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	f.mu.Unlock()

	unix.Close(f.fd)
	if f.done != nil {
		<-f.done
	}
}

// htons converts a protocol number to network byte order for the
// packet socket API.
func htons(v uint16) uint16 {
	b := [2]byte{byte(v >> 8), byte(v)}
	return binary.NativeEndian.Uint16(b[:])
}
