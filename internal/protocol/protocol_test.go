package protocol

import (
	"bytes"
	"testing"
)

// TestEncodeDecode tests round-tripping frames through the codec
func TestEncodeDecode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		msgType byte
		payload []byte
	}{
		{"awareness with payload", MessageAwareness, []byte("presence-blob")},
		{"awareness empty payload", MessageAwareness, nil},
		{"auth", MessageAuth, []byte{0x01, 0x02}},
		{"query awareness", MessageQueryAwareness, nil},
		{"sync raw", MessageSync, []byte{SyncUpdate, 0xde, 0xad}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			frame, err := Encode(tt.msgType, tt.payload)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}

			msgType, payload, err := Decode(frame)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}

			if msgType != tt.msgType {
				t.Errorf("msgType = %d, want %d", msgType, tt.msgType)
			}

			if !bytes.Equal(payload, tt.payload) {
				t.Errorf("payload = %v, want %v", payload, tt.payload)
			}
		})
	}
}

// TestEncodeSync tests sync frame construction
func TestEncodeSync(t *testing.T) {
	t.Parallel()

	frame, err := EncodeSync(SyncState, []byte("doc-state"))
	if err != nil {
		t.Fatalf("EncodeSync() error = %v", err)
	}

	msgType, payload, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if msgType != MessageSync {
		t.Errorf("msgType = %d, want %d", msgType, MessageSync)
	}

	subType, rest, err := DecodeSync(payload)
	if err != nil {
		t.Fatalf("DecodeSync() error = %v", err)
	}
	if subType != SyncState {
		t.Errorf("subType = %d, want %d", subType, SyncState)
	}
	if string(rest) != "doc-state" {
		t.Errorf("rest = %q, want %q", rest, "doc-state")
	}
}

// TestDecodeErrors tests malformed frame handling
func TestDecodeErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"empty frame", nil, ErrEmptyFrame},
		{"unknown type", []byte{42, 0x01}, ErrUnknownType},
		{"unknown type no payload", []byte{0xff}, ErrUnknownType},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, _, err := Decode(tt.data)
			if err != tt.wantErr {
				t.Errorf("Decode() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// TestDecodeSyncEmpty tests that a sync frame without a sub-type is rejected
func TestDecodeSyncEmpty(t *testing.T) {
	t.Parallel()

	if _, _, err := DecodeSync(nil); err != ErrEmptySyncFrame {
		t.Errorf("DecodeSync(nil) error = %v, want %v", err, ErrEmptySyncFrame)
	}
}

// TestMaxPayloadSize tests the payload size guard
func TestMaxPayloadSize(t *testing.T) {
	t.Parallel()

	big := make([]byte, maxPayloadSize+1)

	if _, err := Encode(MessageAwareness, big); err == nil {
		t.Error("Encode() should reject oversized payload")
	}

	if _, err := EncodeSync(SyncUpdate, big); err == nil {
		t.Error("EncodeSync() should reject oversized payload")
	}
}

// TestDecodeZeroCopy verifies the payload aliases the input buffer
func TestDecodeZeroCopy(t *testing.T) {
	t.Parallel()

	frame := []byte{MessageAwareness, 1, 2, 3}
	_, payload, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	frame[1] = 99
	if payload[0] != 99 {
		t.Error("payload should reference the input buffer, not a copy")
	}
}

// BenchmarkDecode benchmarks frame decoding
func BenchmarkDecode(b *testing.B) {
	frame, _ := EncodeSync(SyncUpdate, make([]byte, 1024))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = Decode(frame)
	}
}
