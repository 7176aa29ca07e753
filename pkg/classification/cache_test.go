package classification

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryCache(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected miss on empty cache, got %v", err)
	}

	if err := c.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if v, err := c.Get(ctx, "k"); err != nil || v != "v" {
		t.Errorf("Expected v, got %q (%v)", v, err)
	}

	now = now.Add(time.Minute)
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected expired entry to miss, got %v", err)
	}
}

func TestMemoryCacheNoExpiry(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	c.Set(ctx, "k", "v", 0)
	c.now = func() time.Time { return time.Now().Add(24 * 365 * time.Hour) }
	if v, err := c.Get(ctx, "k"); err != nil || v != "v" {
		t.Errorf("Entry without expiry should persist, got %q (%v)", v, err)
	}
}
