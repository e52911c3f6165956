// Copyright 2026 The Wifi Adapter Authors
// SPDX-License-Identifier: Apache-2.0

package diag

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/FajarEnjoyneer/wifi-adapter/lib/codec"
	"github.com/FajarEnjoyneer/wifi-adapter/lib/version"
)

// Server streams telemetry snapshots to clients over a Unix socket.
// Each connection receives a Hello message followed by a Snapshot and
// DropEvents pair at every interval until the client disconnects.
type Server struct {
	// SocketPath is the Unix socket to listen on.
	SocketPath string

	// Metrics is the counter set to snapshot.
	Metrics *Metrics

	// Drops is the drop-event ring included with each snapshot. May
	// be nil.
	Drops *DropRing

	// Interval between snapshots. Zero means 5 seconds.
	Interval time.Duration

	// Logger receives structured log output. If nil, slog.Default()
	// is used.
	Logger *slog.Logger

	listener    net.Listener
	cancel      context.CancelFunc
	done        chan struct{}
	connections sync.WaitGroup
	startedAt   time.Time
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *Server) interval() time.Duration {
	if s.Interval > 0 {
		return s.Interval
	}
	return 5 * time.Second
}

// Start binds the socket and begins serving in the background. A stale
// socket file from a previous run is removed first.
func (s *Server) Start(ctx context.Context) error {
	if s.SocketPath == "" {
		return fmt.Errorf("diag: SocketPath is required")
	}
	if s.Metrics == nil {
		return fmt.Errorf("diag: Metrics is required")
	}

	if err := os.Remove(s.SocketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("diag: remove stale socket %s: %w", s.SocketPath, err)
	}

	listener, err := net.Listen("unix", s.SocketPath)
	if err != nil {
		return fmt.Errorf("diag: listen on %s: %w", s.SocketPath, err)
	}
	s.listener = listener
	s.startedAt = time.Now()

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		s.acceptLoop(ctx)
	}()

	s.logger().Info("diagnostics server started", "socket_path", s.SocketPath)
	return nil
}

// Stop shuts the server down and waits for client connections to drain.
func (s *Server) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.listener != nil {
		s.listener.Close()
	}
	if s.done != nil {
		<-s.done
	}
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		connection, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				s.connections.Wait()
				return
			default:
				s.logger().Error("diagnostics accept failed", "error", err)
				continue
			}
		}

		s.connections.Add(1)
		go func() {
			defer s.connections.Done()
			defer connection.Close()
			s.serveConnection(ctx, connection)
		}()
	}
}

// serveConnection streams snapshots until the client goes away or the
// server stops. A write failure means the client disconnected; that is
// a normal end of stream, logged at Debug.
func (s *Server) serveConnection(ctx context.Context, connection net.Conn) {
	hello := Hello{
		Version:   version.Info(),
		StartedAt: s.startedAt.Unix(),
	}
	if err := WriteCBOR(connection, MessageTypeHello, hello); err != nil {
		s.logger().Debug("telemetry client gone during hello", "error", err)
		return
	}

	ticker := time.NewTicker(s.interval())
	defer ticker.Stop()

	for {
		if err := s.writeSnapshot(connection); err != nil {
			s.logger().Debug("telemetry client disconnected", "error", err)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) writeSnapshot(connection net.Conn) error {
	if err := WriteCBOR(connection, MessageTypeSnapshot, s.Metrics.Snapshot()); err != nil {
		return err
	}
	if s.Drops != nil {
		if err := WriteCBOR(connection, MessageTypeDropEvents, s.Drops.Recent()); err != nil {
			return err
		}
	}
	return nil
}

// DecodeSnapshot decodes a Snapshot message payload. Helper for
// telemetry clients and tests.
func DecodeSnapshot(message Message) (Snapshot, error) {
	if message.Type != MessageTypeSnapshot {
		return Snapshot{}, fmt.Errorf("diag: message type 0x%02x is not a snapshot", message.Type)
	}
	var snapshot Snapshot
	if err := codec.Unmarshal(message.Payload, &snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("diag: decode snapshot: %w", err)
	}
	return snapshot, nil
}
