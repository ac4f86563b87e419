package memory

import (
	"context"
	"errors"
	"testing"

	"schedula/client/internal/store"
)

func TestStore_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, err := s.Get(ctx, "k"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Get missing err = %v, want %v", err, store.ErrNotFound)
	}
	if err := s.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	got, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got != "v" {
		t.Fatalf("Get = %q, want %q", got, "v")
	}
	if err := s.Delete(ctx, "k", "missing"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("Len = %d, want 0", s.Len())
	}
}

func TestStore_RespectsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := New().Set(ctx, "k", "v"); !errors.Is(err, context.Canceled) {
		t.Fatalf("Set err = %v, want %v", err, context.Canceled)
	}
}
