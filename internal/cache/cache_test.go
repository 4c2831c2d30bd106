package cache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/verte-zerg/quiver/internal/stats"
	"github.com/verte-zerg/quiver/internal/store"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	return f.now
}

func TestCacheTTL(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
	c := New(NewMemoryTable(), time.Minute, WithClock(clock.Now))

	if _, ok, err := c.Get(ctx, "u1"); err != nil || ok {
		t.Fatalf("expected miss on empty cache, got ok=%v err=%v", ok, err)
	}
	if _, err := c.Put(ctx, "u1", stats.Summary{Sessions: 3, OverallAverage: 8.5}); err != nil {
		t.Fatalf("put: %v", err)
	}

	clock.now = clock.now.Add(59 * time.Second)
	entry, ok, err := c.Get(ctx, "u1")
	if err != nil || !ok {
		t.Fatalf("expected hit inside TTL, got ok=%v err=%v", ok, err)
	}
	if entry.Summary.Sessions != 3 || entry.Summary.OverallAverage != 8.5 {
		t.Fatalf("unexpected cached summary: %+v", entry.Summary)
	}

	clock.now = clock.now.Add(time.Second)
	if _, ok, _ := c.Get(ctx, "u1"); ok {
		t.Fatalf("expected miss once age reaches TTL")
	}
}

func TestCacheInvalidate(t *testing.T) {
	ctx := context.Background()
	c := New(NewMemoryTable(), 0)
	if c.TTL() != DefaultTTL {
		t.Fatalf("expected default TTL, got %v", c.TTL())
	}
	if _, err := c.Put(ctx, "u1", stats.Summary{Sessions: 1}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := c.Invalidate(ctx, "u1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "u1"); ok {
		t.Fatalf("expected miss after invalidate")
	}
}

func TestGetOrCompute(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.UnixMilli(1_000_000)}
	c := New(NewMemoryTable(), time.Minute, WithClock(clock.Now))

	calls := 0
	compute := func(context.Context) (stats.Summary, error) {
		calls++
		return stats.Summary{Sessions: calls}, nil
	}
	entry, hit, err := c.GetOrCompute(ctx, "u1", compute)
	if err != nil || hit || entry.Summary.Sessions != 1 {
		t.Fatalf("expected computed entry, got %+v hit=%v err=%v", entry, hit, err)
	}
	entry, hit, err = c.GetOrCompute(ctx, "u1", compute)
	if err != nil || !hit || entry.Summary.Sessions != 1 || calls != 1 {
		t.Fatalf("expected cached entry, got %+v hit=%v calls=%d", entry, hit, calls)
	}

	clock.now = clock.now.Add(2 * time.Minute)
	entry, hit, _ = c.GetOrCompute(ctx, "u1", compute)
	if hit || entry.Summary.Sessions != 2 {
		t.Fatalf("expected recompute after expiry, got %+v hit=%v", entry, hit)
	}

	boom := errors.New("boom")
	if err := c.Invalidate(ctx, "u1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, _, err := c.GetOrCompute(ctx, "u1", func(context.Context) (stats.Summary, error) {
		return stats.Summary{}, boom
	}); !errors.Is(err, boom) {
		t.Fatalf("expected compute error, got %v", err)
	}
}

func TestCacheOverSQLiteTable(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(filepath.Join(t.TempDir(), "quiver.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})

	c := New(st, time.Minute)
	sum := stats.Summary{
		Sessions:  2,
		Distances: []stats.DistanceRow{{Distance: 18, All: 9.25, Practice: 9.25}},
	}
	if _, err := c.Put(ctx, "u1", sum); err != nil {
		t.Fatalf("put: %v", err)
	}
	entry, ok, err := c.Get(ctx, "u1")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if len(entry.Summary.Distances) != 1 || entry.Summary.Distances[0].All != 9.25 {
		t.Fatalf("unexpected summary from sqlite: %+v", entry.Summary)
	}
}
