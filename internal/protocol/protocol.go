// Package protocol implements the binary framing used on the document
// synchronization channel.
//
// Every frame is [1 byte: message type][N bytes: payload]. Sync frames
// carry one extra sub-type byte: [0][sub-type][payload]. Payloads are
// opaque document or awareness blobs; the server relays them
// byte-for-byte and never parses their internal structure.
package protocol

import (
	"errors"
	"fmt"
)

// Message types (first frame byte).
const (
	MessageSync           byte = 0
	MessageAwareness      byte = 1
	MessageAuth           byte = 2
	MessageQueryAwareness byte = 3
)

// Sync sub-types (second byte of a sync frame).
const (
	SyncRequest byte = 0 // peer asks for the current document state
	SyncState   byte = 1 // peer sends its full state / state vector
	SyncUpdate  byte = 2 // incremental update
)

const maxPayloadSize = 10 * 1024 * 1024 // 10MB max payload size

var (
	ErrEmptyFrame      = errors.New("empty frame")
	ErrEmptySyncFrame  = errors.New("sync frame missing sub-type")
	ErrUnknownType     = errors.New("unknown message type")
	ErrPayloadTooLarge = fmt.Errorf("payload exceeds maximum of %d bytes", maxPayloadSize)
)

// Encode builds a frame from a message type and payload.
func Encode(msgType byte, payload []byte) ([]byte, error) {
	if len(payload) > maxPayloadSize {
		return nil, ErrPayloadTooLarge
	}

	out := make([]byte, 1+len(payload))
	out[0] = msgType
	copy(out[1:], payload)
	return out, nil
}

// EncodeSync builds a sync frame with the given sub-type.
func EncodeSync(subType byte, payload []byte) ([]byte, error) {
	if len(payload) > maxPayloadSize {
		return nil, ErrPayloadTooLarge
	}

	out := make([]byte, 2+len(payload))
	out[0] = MessageSync
	out[1] = subType
	copy(out[2:], payload)
	return out, nil
}

// Decode splits a frame into its message type and payload.
// The payload slice references the input data for performance - do not
// modify it. An unrecognized type byte yields ErrUnknownType; callers
// log and drop such frames without closing the connection.
func Decode(data []byte) (byte, []byte, error) {
	if len(data) == 0 {
		return 0, nil, ErrEmptyFrame
	}
	if len(data)-1 > maxPayloadSize {
		return 0, nil, ErrPayloadTooLarge
	}

	msgType := data[0]
	if msgType > MessageQueryAwareness {
		return msgType, nil, ErrUnknownType
	}
	return msgType, data[1:], nil
}

// DecodeSync splits the payload of a sync frame into its sub-type and
// the opaque rest. Like Decode, the returned slice aliases the input.
func DecodeSync(payload []byte) (byte, []byte, error) {
	if len(payload) == 0 {
		return 0, nil, ErrEmptySyncFrame
	}
	return payload[0], payload[1:], nil
}
