package cache

import (
	"context"
	"slices"

	"github.com/verte-zerg/quiver/internal/model"
	"github.com/verte-zerg/quiver/internal/stats"
)

// Report builds the stats report for cfg, serving the summary from the cache
// when cfg asks for the owner's whole history. Filtered requests and cached
// summaries computed over other distance buckets are recomputed. A nil
// Cache always recomputes. The bool reports a cache hit.
func (c *Cache) Report(ctx context.Context, src stats.SessionLister, cfg model.StatsConfig) (stats.Report, bool, error) {
	if c == nil || stats.Filtered(cfg) {
		report, err := stats.BuildReport(ctx, src, cfg)
		return report, false, err
	}
	sessions, err := src.ListSessionsForOwner(ctx, cfg.Owner)
	if err != nil {
		return stats.Report{}, false, err
	}
	buckets := cfg.Distances
	if len(buckets) == 0 {
		buckets = stats.DefaultDistances
	}
	compute := func(context.Context) (stats.Summary, error) {
		return stats.Compute(sessions, buckets), nil
	}

	entry, hit, err := c.GetOrCompute(ctx, cfg.Owner, compute)
	if err != nil {
		return stats.Report{}, false, err
	}
	if hit && !sameBuckets(entry.Summary.Distances, buckets) {
		c.logger.Debug("stats cache buckets changed", "owner", cfg.Owner)
		sum, _ := compute(ctx)
		if entry, err = c.Put(ctx, cfg.Owner, sum); err != nil {
			c.logger.Warn("stats cache write failed", "owner", cfg.Owner, "error", err)
			entry = Entry{Summary: sum, ComputedAt: c.now()}
		}
		hit = false
	}
	return stats.Report{Sessions: sessions, Summary: entry.Summary}, hit, nil
}

func sameBuckets(rows []stats.DistanceRow, buckets []float64) bool {
	got := make([]float64, len(rows))
	for i, r := range rows {
		got[i] = r.Distance
	}
	return slices.Equal(got, buckets)
}
