package store

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStore_TTL(t *testing.T) {
	s := NewMemoryStore(20*time.Millisecond, 10*time.Millisecond)
	defer s.Close()

	ctx := context.Background()
	key := "Will it rain?"

	if err := s.Set(ctx, key, []byte("Absolutely!")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, hit, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !hit {
		t.Fatalf("expected hit immediately after Set")
	}
	if string(got) != "Absolutely!" {
		t.Fatalf("expected 'Absolutely!', got %q", got)
	}

	// Wait for TTL to expire
	time.Sleep(30 * time.Millisecond)

	_, hit, err = s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get after TTL failed: %v", err)
	}
	if hit {
		t.Fatalf("expected miss after TTL expiry")
	}
}

func TestMemoryStore_NoTTLKeepsEntries(t *testing.T) {
	s := NewMemoryStore(0, 0)
	defer s.Close()

	ctx := context.Background()
	if err := s.Set(ctx, "q", []byte("Unlikely")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	time.Sleep(5 * time.Millisecond)

	got, hit, err := s.Get(ctx, "q")
	if err != nil || !hit || string(got) != "Unlikely" {
		t.Fatalf("expected stored value, got %q hit=%v err=%v", got, hit, err)
	}
}

func TestMemoryStore_MissIsNotAnError(t *testing.T) {
	s := NewMemoryStore(0, 0)
	defer s.Close()

	got, hit, err := s.Get(context.Background(), "never asked")
	if err != nil {
		t.Fatalf("miss must not be an error, got %v", err)
	}
	if hit || got != nil {
		t.Fatalf("expected clean miss, got %q hit=%v", got, hit)
	}
}

func TestMemoryStore_OverwriteAndCopy(t *testing.T) {
	s := NewMemoryStore(0, 0)
	defer s.Close()

	ctx := context.Background()
	buf := []byte("Ask again later.")
	if err := s.Set(ctx, "q", buf); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	buf[0] = 'X'

	if err := s.Set(ctx, "q", []byte("Simply put, no")); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}

	got, _, _ := s.Get(ctx, "q")
	if string(got) != "Simply put, no" {
		t.Fatalf("expected overwritten value, got %q", got)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", s.Len())
	}
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	s := NewMemoryStore(0, 0)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, err := s.Get(ctx, "q"); err == nil {
		t.Fatalf("expected error on cancelled context")
	}
	if err := s.Set(ctx, "q", []byte("x")); err == nil {
		t.Fatalf("expected error on cancelled context")
	}
}
