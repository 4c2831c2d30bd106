// Package cache memoises computed stats per owner with a validity window.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/verte-zerg/quiver/internal/stats"
)

// DefaultTTL is how long a computed summary stays usable.
const DefaultTTL = 5 * time.Minute

// Table persists raw cache payloads keyed by owner. Every store backend
// implements it.
type Table interface {
	LoadStatsCache(ctx context.Context, ownerID string) (payload []byte, computedAt time.Time, ok bool, err error)
	SaveStatsCache(ctx context.Context, ownerID string, payload []byte, computedAt time.Time) error
	DeleteStatsCache(ctx context.Context, ownerID string) error
}

// Entry is a cached summary and the time it was computed.
type Entry struct {
	Summary    stats.Summary
	ComputedAt time.Time
}

// Cache is a side-table of owner -> (summary, computedAt).
type Cache struct {
	table  Table
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// WithLogger sets the logger used for discarded entries.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// New returns a cache over table. A non-positive ttl uses DefaultTTL.
func New(table Table, ttl time.Duration, opts ...Option) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		table:  table,
		ttl:    ttl,
		now:    time.Now,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the validity window.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get returns the owner's entry while now - ComputedAt < TTL. Stale and
// undecodable entries are reported as a miss.
func (c *Cache) Get(ctx context.Context, ownerID string) (Entry, bool, error) {
	payload, computedAt, ok, err := c.table.LoadStatsCache(ctx, ownerID)
	if err != nil {
		return Entry{}, false, fmt.Errorf("cache get %s: %w", ownerID, err)
	}
	if !ok {
		return Entry{}, false, nil
	}
	if age := c.now().Sub(computedAt); age >= c.ttl {
		c.logger.Debug("stats cache stale", "owner", ownerID, "age", age)
		return Entry{}, false, nil
	}
	var sum stats.Summary
	if err := json.Unmarshal(payload, &sum); err != nil {
		c.logger.Warn("stats cache entry unreadable", "owner", ownerID, "error", err)
		return Entry{}, false, nil
	}
	return Entry{Summary: sum, ComputedAt: computedAt}, true, nil
}

// Put stores sum for the owner stamped with the current time.
func (c *Cache) Put(ctx context.Context, ownerID string, sum stats.Summary) (Entry, error) {
	payload, err := json.Marshal(sum)
	if err != nil {
		return Entry{}, fmt.Errorf("cache put %s: encode: %w", ownerID, err)
	}
	computedAt := c.now()
	if err := c.table.SaveStatsCache(ctx, ownerID, payload, computedAt); err != nil {
		return Entry{}, fmt.Errorf("cache put %s: %w", ownerID, err)
	}
	return Entry{Summary: sum, ComputedAt: computedAt}, nil
}

// Invalidate drops the owner's entry.
func (c *Cache) Invalidate(ctx context.Context, ownerID string) error {
	if err := c.table.DeleteStatsCache(ctx, ownerID); err != nil {
		return fmt.Errorf("cache invalidate %s: %w", ownerID, err)
	}
	return nil
}

// GetOrCompute returns a fresh entry if one exists, otherwise it runs
// compute and stores the result. Cache read and write failures are logged
// and do not fail the call. The bool reports a cache hit.
func (c *Cache) GetOrCompute(ctx context.Context, ownerID string, compute func(context.Context) (stats.Summary, error)) (Entry, bool, error) {
	entry, ok, err := c.Get(ctx, ownerID)
	if err != nil {
		c.logger.Warn("stats cache read failed", "owner", ownerID, "error", err)
	}
	if ok {
		return entry, true, nil
	}
	sum, err := compute(ctx)
	if err != nil {
		return Entry{}, false, err
	}
	entry, err = c.Put(ctx, ownerID, sum)
	if err != nil {
		c.logger.Warn("stats cache write failed", "owner", ownerID, "error", err)
		return Entry{Summary: sum, ComputedAt: c.now()}, false, nil
	}
	return entry, false, nil
}

type memoryEntry struct {
	payload    []byte
	computedAt time.Time
}

// MemoryTable is a process-local Table.
type MemoryTable struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

// NewMemoryTable returns an empty MemoryTable.
func NewMemoryTable() *MemoryTable {
	return &MemoryTable{entries: map[string]memoryEntry{}}
}

func (m *MemoryTable) LoadStatsCache(_ context.Context, ownerID string) ([]byte, time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[ownerID]
	if !ok {
		return nil, time.Time{}, false, nil
	}
	return append([]byte(nil), e.payload...), e.computedAt, true, nil
}

func (m *MemoryTable) SaveStatsCache(_ context.Context, ownerID string, payload []byte, computedAt time.Time) error {
	m.mu.Lock()
	m.entries[ownerID] = memoryEntry{payload: append([]byte(nil), payload...), computedAt: computedAt}
	m.mu.Unlock()
	return nil
}

func (m *MemoryTable) DeleteStatsCache(_ context.Context, ownerID string) error {
	m.mu.Lock()
	delete(m.entries, ownerID)
	m.mu.Unlock()
	return nil
}
