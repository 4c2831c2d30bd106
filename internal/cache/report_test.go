package cache

import (
	"context"
	"testing"
	"time"

	"github.com/verte-zerg/quiver/internal/model"
)

type countingLister struct {
	sessions []model.Session
	calls    int
}

func (l *countingLister) ListSessionsForOwner(_ context.Context, ownerID string) ([]model.Session, error) {
	l.calls++
	var out []model.Session
	for _, s := range l.sessions {
		if s.OwnerID == ownerID {
			out = append(out, s)
		}
	}
	return out, nil
}

func scoredSession(id string, kind model.SessionKind, values ...model.ArrowScore) model.Session {
	return model.Session{
		ID:           id,
		OwnerID:      "u1",
		Distance:     18,
		Kind:         kind,
		TotalEnds:    1,
		ArrowsPerEnd: len(values),
		Ends:         []model.End{values},
		Completed:    true,
	}
}

func TestReportServesUnfilteredSummaryFromCache(t *testing.T) {
	ctx := context.Background()
	src := &countingLister{sessions: []model.Session{
		scoredSession("a", model.Practice, 10, 8),
	}}
	c := New(NewMemoryTable(), time.Minute)
	cfg := model.StatsConfig{Owner: "u1"}

	report, hit, err := c.Report(ctx, src, cfg)
	if err != nil || hit {
		t.Fatalf("expected computed report, hit=%v err=%v", hit, err)
	}
	if report.Summary.OverallAverage != 9 {
		t.Fatalf("unexpected average %v", report.Summary.OverallAverage)
	}

	// A session written behind the cache's back stays invisible in the summary
	// until the entry is invalidated.
	src.sessions = append(src.sessions, scoredSession("b", model.Practice, 6, 6))
	report, hit, err = c.Report(ctx, src, cfg)
	if err != nil || !hit {
		t.Fatalf("expected cache hit, hit=%v err=%v", hit, err)
	}
	if report.Summary.OverallAverage != 9 || len(report.Sessions) != 2 {
		t.Fatalf("expected cached summary with fresh sessions, got %+v", report)
	}

	if err := c.Invalidate(ctx, "u1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	report, hit, _ = c.Report(ctx, src, cfg)
	if hit || report.Summary.OverallAverage != 7.5 {
		t.Fatalf("expected recomputed summary, got %v hit=%v", report.Summary.OverallAverage, hit)
	}
}

func TestReportBypassesCacheWhenFiltered(t *testing.T) {
	ctx := context.Background()
	src := &countingLister{sessions: []model.Session{
		scoredSession("a", model.Practice, 10, 10),
		scoredSession("b", model.Tournament, 5, 5),
	}}
	c := New(NewMemoryTable(), time.Minute)
	if _, _, err := c.Report(ctx, src, model.StatsConfig{Owner: "u1"}); err != nil {
		t.Fatalf("prime: %v", err)
	}

	report, hit, err := c.Report(ctx, src, model.StatsConfig{Owner: "u1", Kind: model.Tournament})
	if err != nil || hit {
		t.Fatalf("filtered report must not hit the cache, hit=%v err=%v", hit, err)
	}
	if report.Summary.OverallAverage != 5 || len(report.Sessions) != 1 {
		t.Fatalf("unexpected filtered report %+v", report.Summary)
	}
}

func TestReportRecomputesWhenBucketsChange(t *testing.T) {
	ctx := context.Background()
	src := &countingLister{sessions: []model.Session{scoredSession("a", model.Practice, 9, 9)}}
	c := New(NewMemoryTable(), time.Minute)
	if _, _, err := c.Report(ctx, src, model.StatsConfig{Owner: "u1"}); err != nil {
		t.Fatalf("prime: %v", err)
	}
	report, hit, err := c.Report(ctx, src, model.StatsConfig{Owner: "u1", Distances: []float64{18}})
	if err != nil || hit {
		t.Fatalf("expected recompute for new buckets, hit=%v err=%v", hit, err)
	}
	if len(report.Summary.Distances) != 1 || report.Summary.Distances[0].All != 9 {
		t.Fatalf("unexpected distances %+v", report.Summary.Distances)
	}
	if _, hit, _ := c.Report(ctx, src, model.StatsConfig{Owner: "u1", Distances: []float64{18}}); !hit {
		t.Fatalf("expected hit for the stored buckets")
	}
}

func TestNilCacheReport(t *testing.T) {
	src := &countingLister{sessions: []model.Session{scoredSession("a", model.Practice, 7)}}
	var c *Cache
	report, hit, err := c.Report(context.Background(), src, model.StatsConfig{Owner: "u1"})
	if err != nil || hit || report.Summary.Sessions != 1 {
		t.Fatalf("unexpected nil-cache report %+v hit=%v err=%v", report.Summary, hit, err)
	}
}
