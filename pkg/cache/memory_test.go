package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMemoryCacheSetGetDelete(t *testing.T) {
	c := NewMemoryCache()
	defer func() { _ = c.Close() }()

	if _, err := c.Get("missing"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}

	if err := c.Set("dashboard", []byte(`{"orders":42}`), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	value, err := c.Get("dashboard")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(value) != `{"orders":42}` {
		t.Fatalf("get = %s", value)
	}

	existed, err := c.Delete("dashboard")
	if err != nil || !existed {
		t.Fatalf("delete = (%v, %v), want (true, nil)", existed, err)
	}
	existed, err = c.Delete("dashboard")
	if err != nil || existed {
		t.Fatalf("second delete = (%v, %v), want (false, nil)", existed, err)
	}
}

func TestMemoryCacheTTLExpiry(t *testing.T) {
	c := NewMemoryCache(WithJanitorInterval(10 * time.Millisecond))
	defer func() { _ = c.Close() }()

	if err := c.Set("short", []byte("v"), 20*time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := c.Get("short"); err != nil {
		t.Fatalf("get before expiry: %v", err)
	}

	time.Sleep(60 * time.Millisecond)
	if _, err := c.Get("short"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected expiry miss, got %v", err)
	}

	stats := c.Stats()
	if stats.Keys != 0 {
		t.Fatalf("expired key still counted: %+v", stats)
	}
	if stats.Evictions == 0 {
		t.Fatalf("expected at least one eviction: %+v", stats)
	}
}

func TestMemoryCacheDefaultTTLAppliedOnZero(t *testing.T) {
	c := NewMemoryCache(
		WithDefaultTTL(25*time.Millisecond),
		WithJanitorInterval(10*time.Millisecond),
	)
	defer func() { _ = c.Close() }()

	// ttl <= 0 falls back to the configured default.
	if err := c.Set("zero", []byte("v"), 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := c.Get("zero"); err != nil {
		t.Fatalf("get before default expiry: %v", err)
	}

	time.Sleep(70 * time.Millisecond)
	if _, err := c.Get("zero"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected default-TTL expiry, got %v", err)
	}
}

func TestMemoryCacheMissCounterTracksPlainMisses(t *testing.T) {
	c := NewMemoryCache()
	defer func() { _ = c.Close() }()

	before := testutil.ToFloat64(cacheResultsTotal.WithLabelValues("miss"))
	_, _ = c.Get("absent")
	_, _ = c.Get("absent")
	after := testutil.ToFloat64(cacheResultsTotal.WithLabelValues("miss"))

	if got := after - before; got != 2 {
		t.Fatalf("miss counter grew by %v, want 2", got)
	}
	if stats := c.Stats(); stats.Misses != 2 {
		t.Fatalf("stats.Misses = %d, want 2", stats.Misses)
	}
}

func TestMemoryCacheStats(t *testing.T) {
	c := NewMemoryCache()
	defer func() { _ = c.Close() }()

	_ = c.Set("a", []byte("1"), time.Minute)
	_ = c.Set("b", []byte("2"), time.Minute)

	if _, err := c.Get("a"); err != nil {
		t.Fatalf("get: %v", err)
	}
	_, _ = c.Get("missing")

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Keys != 2 {
		t.Fatalf("stats = %+v, want hits=1 misses=1 keys=2", stats)
	}
}

func TestMemoryCacheFlush(t *testing.T) {
	c := NewMemoryCache()
	defer func() { _ = c.Close() }()

	_ = c.Set("a", []byte("1"), time.Minute)
	_ = c.Set("b", []byte("2"), time.Minute)
	if err := c.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if stats := c.Stats(); stats.Keys != 0 {
		t.Fatalf("keys after flush = %d", stats.Keys)
	}
}

func TestMemoryCacheClosed(t *testing.T) {
	c := NewMemoryCache()
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := c.Set("a", []byte("1"), time.Minute); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if _, err := c.Get("a"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	// Closing twice is a no-op.
	if err := c.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
