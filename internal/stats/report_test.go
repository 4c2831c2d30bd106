package stats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/verte-zerg/quiver/internal/model"
)

type fakeLister struct {
	sessions map[string][]model.Session
	err      error
}

func (f fakeLister) ListSessionsForOwner(_ context.Context, ownerID string) ([]model.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.sessions[ownerID], nil
}

func TestBuildReport(t *testing.T) {
	newer := session("new", 18, model.Tournament, model.End{model.X, 9})
	newer.CreatedAt = time.UnixMilli(2000)
	older := session("old", 18, model.Practice, model.End{7, 7})
	older.CreatedAt = time.UnixMilli(1000)
	src := fakeLister{sessions: map[string][]model.Session{
		"u1": {newer, older},
		"u2": {session("other", 18, model.Practice, model.End{1, 1})},
	}}

	report, err := BuildReport(context.Background(), src, model.StatsConfig{Owner: "u1", Distances: []float64{18}})
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	if len(report.Sessions) != 2 || report.Summary.Sessions != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(report.Sessions))
	}
	if report.Summary.Distances[0].All != 8.25 {
		t.Fatalf("unexpected 18m average: %+v", report.Summary.Distances[0])
	}

	totals := SessionTotals(report.Sessions)
	if len(totals) != 2 || totals[0] != 14 || totals[1] != 19 {
		t.Fatalf("expected totals oldest first, got %v", totals)
	}

	report, err = BuildReport(context.Background(), src, model.StatsConfig{Owner: "u1", Kind: model.Practice})
	if err != nil {
		t.Fatalf("build filtered report: %v", err)
	}
	if len(report.Sessions) != 1 || report.Sessions[0].ID != "old" {
		t.Fatalf("unexpected filtered sessions: %v", report.Sessions)
	}
	if len(report.Summary.Distances) != len(DefaultDistances) {
		t.Fatalf("expected default distance buckets")
	}
}

func TestBuildReportPropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	_, err := BuildReport(context.Background(), fakeLister{err: boom}, model.StatsConfig{Owner: "u1"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected lister error, got %v", err)
	}
}
