// Copyright 2026 The Wifi Adapter Authors
// SPDX-License-Identifier: Apache-2.0

package diag

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/FajarEnjoyneer/wifi-adapter/lib/codec"
)

// Message type constants for the telemetry wire format. Each message
// is a 5-byte header (1 byte type + 4 byte big-endian payload length)
// followed by a CBOR payload.
const (
	// MessageTypeHello carries a Hello payload. Sent once per
	// connection before any snapshot.
	MessageTypeHello byte = 0x01

	// MessageTypeSnapshot carries a Snapshot payload. Sent
	// periodically while the client stays connected.
	MessageTypeSnapshot byte = 0x02

	// MessageTypeDropEvents carries a []DropEvent payload with the
	// ring contents at snapshot time.
	MessageTypeDropEvents byte = 0x03
)

// messageHeaderLength is the fixed size of a message header: 1 byte
// type + 4 bytes payload length.
const messageHeaderLength = 5

// maxPayloadLength bounds a payload. 1 MB is generous for counter
// snapshots and a few hundred drop events.
const maxPayloadLength = 1024 * 1024

// Hello identifies the adapter to a telemetry client.
type Hello struct {
	Version   string `cbor:"version"`
	StartedAt int64  `cbor:"started_at"` // Unix seconds
}

// Message is a single telemetry protocol message.
type Message struct {
	Type    byte
	Payload []byte
}

// WriteMessage writes a framed message to w.
func WriteMessage(w io.Writer, message Message) error {
	if len(message.Payload) > maxPayloadLength {
		return fmt.Errorf("diag: payload length %d exceeds maximum %d", len(message.Payload), maxPayloadLength)
	}
	var header [messageHeaderLength]byte
	header[0] = message.Type
	binary.BigEndian.PutUint32(header[1:5], uint32(len(message.Payload)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("diag: write message header: %w", err)
	}
	if len(message.Payload) > 0 {
		if _, err := w.Write(message.Payload); err != nil {
			return fmt.Errorf("diag: write message payload: %w", err)
		}
	}
	return nil
}

// ReadMessage reads one framed message from r.
func ReadMessage(r io.Reader) (Message, error) {
	var header [messageHeaderLength]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Message{}, err
	}
	payloadLength := binary.BigEndian.Uint32(header[1:5])
	if payloadLength > maxPayloadLength {
		return Message{}, fmt.Errorf("diag: payload length %d exceeds maximum %d", payloadLength, maxPayloadLength)
	}
	message := Message{Type: header[0]}
	if payloadLength > 0 {
		message.Payload = make([]byte, payloadLength)
		if _, err := io.ReadFull(r, message.Payload); err != nil {
			return Message{}, fmt.Errorf("diag: read message payload: %w", err)
		}
	}
	return message, nil
}

// WriteCBOR encodes payload to CBOR and writes it as a framed message
// of the given type.
func WriteCBOR(w io.Writer, messageType byte, payload any) error {
	encoded, err := codec.Marshal(payload)
	if err != nil {
		return fmt.Errorf("diag: encode payload: %w", err)
	}
	return WriteMessage(w, Message{Type: messageType, Payload: encoded})
}
