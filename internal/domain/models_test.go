package domain

import (
	"errors"
	"testing"
)

func TestQueueType_Constants(t *testing.T) {
	tests := []struct {
		name      string
		queueType QueueType
		expected  string
	}{
		{"metadata", QueueTypeMetadata, "metadata"},
		{"vector", QueueTypeVector, "vector"},
		{"color_tag", QueueTypeColorTag, "color_tag"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if string(tt.queueType) != tt.expected {
				t.Errorf("QueueType %s = %q, want %q", tt.name, tt.queueType, tt.expected)
			}
			if !tt.queueType.Valid() {
				t.Errorf("QueueType %s should be valid", tt.name)
			}
		})
	}

	if QueueType("thumbnail").Valid() {
		t.Error("unknown queue type should not be valid")
	}
}

func TestQueueStatus_IsActive(t *testing.T) {
	tests := []struct {
		status QueueStatus
		active bool
	}{
		{QueueStatusPending, true},
		{QueueStatusProcessing, true},
		{QueueStatusCompleted, false},
		{QueueStatusFailed, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsActive(); got != tt.active {
				t.Errorf("IsActive() = %v, want %v", got, tt.active)
			}
		})
	}
}

func TestCanonicalPair(t *testing.T) {
	tests := []struct {
		a, b      int64
		low, high int64
	}{
		{1, 2, 1, 2},
		{2, 1, 1, 2},
		{10, 3, 3, 10},
	}

	for _, tt := range tests {
		low, high := CanonicalPair(tt.a, tt.b)
		if low != tt.low || high != tt.high {
			t.Errorf("CanonicalPair(%d, %d) = (%d, %d), want (%d, %d)", tt.a, tt.b, low, high, tt.low, tt.high)
		}
	}
}

func TestEncodePayload_Deterministic(t *testing.T) {
	a, err := EncodePayload(VectorPayload{FileID: 7, ThumbnailPath: "/thumbs/ab.png"})
	if err != nil {
		t.Fatalf("EncodePayload failed: %v", err)
	}
	b, err := EncodePayload(VectorPayload{ThumbnailPath: "/thumbs/ab.png", FileID: 7})
	if err != nil {
		t.Fatalf("EncodePayload failed: %v", err)
	}
	if a != b {
		t.Errorf("expected identical encodings, got %q and %q", a, b)
	}
	if a != `{"file_id":7,"thumbnail_path":"/thumbs/ab.png"}` {
		t.Errorf("unexpected encoding %q", a)
	}
}

func TestEncodePayload_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		payload Payload
	}{
		{"nil", nil},
		{"empty path", MetadataPayload{FilePath: "  "}},
		{"missing file id", VectorPayload{ThumbnailPath: "x.png"}},
		{"missing hash", ColorTagPayload{ThumbnailPath: "x.png"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EncodePayload(tt.payload)
			if !errors.Is(err, ErrInvalidPayload) {
				t.Errorf("expected ErrInvalidPayload, got %v", err)
			}
		})
	}
}

func TestDecodePayload(t *testing.T) {
	p, err := DecodePayload(QueueTypeColorTag, `{"file_hash":"abc","thumbnail_path":"/t/abc.png"}`)
	if err != nil {
		t.Fatalf("DecodePayload failed: %v", err)
	}
	ct, ok := p.(ColorTagPayload)
	if !ok {
		t.Fatalf("expected ColorTagPayload, got %T", p)
	}
	if ct.FileHash != "abc" || ct.ThumbnailPath != "/t/abc.png" {
		t.Errorf("unexpected payload %+v", ct)
	}

	if _, err := DecodePayload(QueueTypeMetadata, `{not json`); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("expected ErrInvalidPayload for malformed json, got %v", err)
	}
	if _, err := DecodePayload(QueueType("bogus"), `{}`); !errors.Is(err, ErrUnknownQueueType) {
		t.Errorf("expected ErrUnknownQueueType, got %v", err)
	}
}

func TestDecodeVector(t *testing.T) {
	v, err := DecodeVector(`[0.5,0.25,1]`)
	if err != nil {
		t.Fatalf("DecodeVector failed: %v", err)
	}
	if len(v) != 3 || v[2] != 1 {
		t.Errorf("unexpected vector %v", v)
	}

	for _, raw := range []string{"", "null", "[]", "[1,", `{"a":1}`} {
		if _, err := DecodeVector(raw); !errors.Is(err, ErrMalformedVector) {
			t.Errorf("DecodeVector(%q): expected ErrMalformedVector, got %v", raw, err)
		}
	}

	value, err := Vector{1, 2}.Value()
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}
	if value != "[1,2]" {
		t.Errorf("expected [1,2], got %v", value)
	}
}
