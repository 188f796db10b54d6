package sessionstore

import (
	"context"
	"testing"
)

func TestMemoryRoundTrip(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	if err := s.Set(ctx, "5551234567", []byte(`{"session_id":"abc"}`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	data, err := s.Get(ctx, "5551234567")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(data) != `{"session_id":"abc"}` {
		t.Errorf("got %q", data)
	}
	if s.Len() != 1 {
		t.Errorf("len = %d, want 1", s.Len())
	}
}

func TestMemoryMissingKeyIsNotAnError(t *testing.T) {
	s := NewMemory()
	data, err := s.Get(context.Background(), "0000000000")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if data != nil {
		t.Errorf("got %q, want nil", data)
	}
}

func TestMemoryCopiesOnBothSides(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	in := []byte("original")
	s.Set(ctx, "k", in)
	in[0] = 'X'

	out, _ := s.Get(ctx, "k")
	if string(out) != "original" {
		t.Errorf("stored value shared the caller's buffer: %q", out)
	}

	out[0] = 'Y'
	again, _ := s.Get(ctx, "k")
	if string(again) != "original" {
		t.Errorf("returned value shared the store's buffer: %q", again)
	}
}
