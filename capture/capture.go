// Copyright 2026 The Wifi Adapter Authors
// SPDX-License-Identifier: Apache-2.0

// Package capture records relayed Ethernet frames to a compressed
// stream for offline debugging. The format is a zstd stream of records,
// each a 1-byte direction marker, a 4-byte big-endian frame length, and
// the frame bytes.
package capture

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Direction markers on the wire.
const (
	directionInbound  byte = 0x01
	directionOutbound byte = 0x02
)

// maxFrameLength bounds records read back from a capture stream, so a
// corrupt length prefix cannot trigger a huge allocation.
const maxFrameLength = 64 * 1024

// ErrTruncated is returned by the reader when the stream ends inside a
// record.
var ErrTruncated = errors.New("capture stream truncated")

// Writer appends frame records to a compressed stream. Safe for
// concurrent use; the relay captures inbound and outbound frames from
// different goroutines.
type Writer struct {
	mu      sync.Mutex
	file    *os.File
	encoder *zstd.Encoder
	closed  bool
}

// Create opens a capture file for writing, truncating any previous
// capture at the same path.
func Create(path string) (*Writer, error) {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening capture file: %w", err)
	}
	encoder, err := zstd.NewWriter(file, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("creating capture encoder: %w", err)
	}
	return &Writer{file: file, encoder: encoder}, nil
}

// NewWriter wraps an arbitrary stream, for tests.
func NewWriter(w io.Writer) (*Writer, error) {
	encoder, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("creating capture encoder: %w", err)
	}
	return &Writer{encoder: encoder}, nil
}

// Record appends one frame. Direction is "inbound" or "outbound",
// matching the relay's capture callback; anything else is recorded as
// outbound. Errors are swallowed after marking the writer closed:
// capture is a debugging aid and must never disturb the relay path.
func (w *Writer) Record(direction string, frame []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}

	marker := directionOutbound
	if direction == "inbound" {
		marker = directionInbound
	}

	var header [5]byte
	header[0] = marker
	binary.BigEndian.PutUint32(header[1:], uint32(len(frame)))
	if _, err := w.encoder.Write(header[:]); err != nil {
		w.closed = true
		return
	}
	if _, err := w.encoder.Write(frame); err != nil {
		w.closed = true
	}
}

// Close flushes and closes the stream.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		if w.file != nil {
			return w.file.Close()
		}
		return nil
	}
	w.closed = true
	err := w.encoder.Close()
	if w.file != nil {
		if closeErr := w.file.Close(); err == nil {
			err = closeErr
		}
	}
	return err
}

// Record is one captured frame.
type Record struct {
	Direction string
	Frame     []byte
}

// Reader decodes a capture stream.
type Reader struct {
	decoder *zstd.Decoder
}

// NewReader wraps a compressed capture stream.
func NewReader(r io.Reader) (*Reader, error) {
	decoder, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("creating capture decoder: %w", err)
	}
	return &Reader{decoder: decoder}, nil
}

// Next reads one record, returning io.EOF at a clean end of stream and
// ErrTruncated when the stream ends mid-record.
func (r *Reader) Next() (Record, error) {
	var header [5]byte
	if _, err := io.ReadFull(r.decoder, header[:1]); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("reading capture record: %w", err)
	}
	if _, err := io.ReadFull(r.decoder, header[1:]); err != nil {
		return Record{}, ErrTruncated
	}

	length := binary.BigEndian.Uint32(header[1:])
	if length > maxFrameLength {
		return Record{}, fmt.Errorf("capture record length %d exceeds limit %d", length, maxFrameLength)
	}
	frame := make([]byte, length)
	if _, err := io.ReadFull(r.decoder, frame); err != nil {
		return Record{}, ErrTruncated
	}

	direction := "outbound"
	if header[0] == directionInbound {
		direction = "inbound"
	}
	return Record{Direction: direction, Frame: frame}, nil
}

// Close releases the decoder.
func (r *Reader) Close() {
	r.decoder.Close()
}
