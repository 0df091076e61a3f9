package cache

import (
	"context"
	"testing"
	"time"
)

func TestCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c := New[string, int](0)
	defer c.Close()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set(ctx, "a", 1, time.Second)
	c.Set(ctx, "b", 2, 0)

	if v, ok := c.Get(ctx, "a"); !ok || v != 1 {
		t.Errorf("Get(a) = %d, %v, want 1, true", v, ok)
	}

	now = now.Add(2 * time.Second)

	if _, ok := c.Get(ctx, "a"); ok {
		t.Error("Get(a) after ttl should miss")
	}
	if v, ok := c.Get(ctx, "b"); !ok || v != 2 {
		t.Errorf("Get(b) = %d, %v, want 2, true", v, ok)
	}

	c.evictExpired()
	if got := c.Len(); got != 1 {
		t.Errorf("Len() = %d, want 1", got)
	}
}

func TestCache_CloseIdempotent(t *testing.T) {
	c := New[string, string](time.Millisecond)
	c.Close()
	c.Close()
}
