package stats

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/quiver/internal/model"
)

func session(id string, distance float64, kind model.SessionKind, ends ...model.End) model.Session {
	perEnd := 0
	if len(ends) > 0 {
		perEnd = len(ends[0])
	}
	s := model.Session{
		ID:           id,
		OwnerID:      "u1",
		BowType:      model.Recurve,
		Distance:     distance,
		TotalEnds:    len(ends),
		ArrowsPerEnd: perEnd,
		Kind:         kind,
		Ends:         ends,
	}
	s.XCount = s.CountX()
	return s
}

func TestEndArithmetic(t *testing.T) {
	s := session("s1", 70, model.Practice,
		model.End{10, model.X, model.Miss, 7, model.Unset, 5},
	)
	if got := BestEnd(s); got != 32 {
		t.Fatalf("expected best end 32, got %d", got)
	}
	if got := XCount(s); got != 1 {
		t.Fatalf("expected 1 X, got %d", got)
	}
	if got := TotalScore(s); got != 32 {
		t.Fatalf("expected total 32, got %d", got)
	}
	if got := TenCount(s); got != 2 {
		t.Fatalf("expected 2 tens, got %d", got)
	}
}

func TestEmptyAggregatesAreZero(t *testing.T) {
	if got := AveragePerArrow(nil); got != 0 {
		t.Fatalf("expected 0 average, got %v", got)
	}
	if got := TenOrXPercent(nil); got != 0 {
		t.Fatalf("expected 0 percent, got %v", got)
	}
	unshot := session("s1", 18, model.Practice, model.End{model.Unset, model.Unset})
	if got := TenOrXPercent([]model.Session{unshot}); got != 0 {
		t.Fatalf("expected 0 percent with no shot arrows, got %v", got)
	}
	sum := Compute(nil, nil)
	if sum.Sessions != 0 || sum.OverallAverage != 0 || len(sum.Distances) != len(DefaultDistances) {
		t.Fatalf("unexpected empty summary: %+v", sum)
	}
}

func TestScenarioTotals(t *testing.T) {
	s := session("s1", 30, model.Practice,
		model.End{9, model.X, model.Miss},
		model.End{10, 8, 7},
	)
	if got := TotalScore(s); got != 44 {
		t.Fatalf("expected total 44, got %d", got)
	}
	if got := XCount(s); got != 1 {
		t.Fatalf("expected 1 X, got %d", got)
	}
	if got := AveragePerArrow([]model.Session{s}); got != 7.33 {
		t.Fatalf("expected 7.33 per arrow, got %v", got)
	}
	if got := AveragePerEnd(s); got != 22 {
		t.Fatalf("expected 22 per end, got %v", got)
	}
	if got := TenOrXPercent([]model.Session{s}); got != 33.3 {
		t.Fatalf("expected 33.3%%, got %v", got)
	}
	totals := EndTotals(s)
	if len(totals) != 2 || totals[0] != 19 || totals[1] != 25 {
		t.Fatalf("unexpected end totals: %v", totals)
	}
}

func TestAveragePerArrowCountsUnsetSlots(t *testing.T) {
	s := session("s1", 18, model.Practice, model.End{10, model.Unset})
	if got := AveragePerArrow([]model.Session{s}); got != 5 {
		t.Fatalf("expected 5, got %v", got)
	}
	if got := TenOrXPercent([]model.Session{s}); got != 100 {
		t.Fatalf("expected 100%%, got %v", got)
	}
}

func TestPerDistanceAverage(t *testing.T) {
	sessions := []model.Session{
		session("a", 18, model.Practice, model.End{10, 8}),
		session("b", 18, model.Tournament, model.End{6, 6}),
		session("c", 70, model.Practice, model.End{model.X, 9}),
		session("d", 25, model.Practice, model.End{10, 10}),
	}
	got := PerDistanceAverage(sessions, []float64{18, 50, 70})
	if len(got) != 3 {
		t.Fatalf("expected every bucket present, got %v", got)
	}
	if got[18] != 7.5 || got[70] != 9.5 || got[50] != 0 {
		t.Fatalf("unexpected averages: %v", got)
	}
	if _, ok := got[25]; ok {
		t.Fatalf("unknown distance should be ignored")
	}

	sum := Compute(sessions, []float64{18, 70})
	if len(sum.Distances) != 2 {
		t.Fatalf("unexpected distance rows: %+v", sum.Distances)
	}
	row := sum.Distances[0]
	if row.Distance != 18 || row.All != 7.5 || row.Practice != 9 || row.Tournament != 6 {
		t.Fatalf("unexpected 18m row: %+v", row)
	}
	if sum.BestEnd != 20 || sum.XCount != 1 || sum.Sessions != 4 || sum.Arrows != 8 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
}

func TestFilter(t *testing.T) {
	base := time.UnixMilli(1_700_000_000_000)
	sessions := []model.Session{
		session("c", 18, model.Tournament, model.End{10}),
		session("b", 18, model.Practice, model.End{9}),
		session("a", 18, model.Practice, model.End{8}),
	}
	for i := range sessions {
		sessions[i].CreatedAt = base.Add(-time.Duration(i) * time.Hour)
	}
	sessions[1].Completed = true

	practice := Filter(sessions, model.StatsConfig{Kind: model.Practice})
	if len(practice) != 2 || practice[0].ID != "b" {
		t.Fatalf("unexpected practice filter: %v", practice)
	}
	since := base.Add(-90 * time.Minute)
	recent := Filter(sessions, model.StatsConfig{Since: &since})
	if len(recent) != 2 {
		t.Fatalf("expected 2 recent sessions, got %d", len(recent))
	}
	last := Filter(sessions, model.StatsConfig{Last: 1})
	if len(last) != 1 || last[0].ID != "c" {
		t.Fatalf("expected newest session only, got %v", last)
	}
	done := Filter(sessions, model.StatsConfig{Completed: true})
	if len(done) != 1 || done[0].ID != "b" {
		t.Fatalf("unexpected completed filter: %v", done)
	}
	if Filtered(model.StatsConfig{Owner: "u1", Distances: DefaultDistances}) {
		t.Fatalf("owner and distances alone should not count as filters")
	}
}

func TestTopSessionsAndWeakEnds(t *testing.T) {
	sessions := []model.Session{
		session("a", 18, model.Practice, model.End{10, 9}),
		session("b", 18, model.Practice, model.End{model.X, 9}),
		session("c", 18, model.Practice, model.End{5, 5}),
	}
	top := TopSessions(sessions, 2)
	if len(top) != 2 || top[0].ID != "b" || top[1].ID != "a" {
		t.Fatalf("unexpected top sessions: %v", top)
	}

	s := session("s", 18, model.Practice,
		model.End{10, 10},
		model.End{5, 6},
		model.End{9, model.Unset},
		model.End{7, 7},
	)
	weak := WeakEnds(s, 1)
	if _, ok := weak[1]; !ok || len(weak) != 1 {
		t.Fatalf("expected end 1 to be weakest, got %v", weak)
	}
	if len(WeakEnds(s, 10)) != 2 {
		t.Fatalf("expected one shot end to stay unmarked")
	}
}

func TestRenderSummary(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderSummary(&buf, Summary{}); err != nil {
		t.Fatalf("render empty: %v", err)
	}
	if !strings.Contains(buf.String(), "No sessions found.") {
		t.Fatalf("expected empty notice, got %q", buf.String())
	}

	buf.Reset()
	s := session("s1", 18, model.Practice, model.End{10, model.X})
	s.ArcherName = "Ann"
	if err := RenderSummary(&buf, Compute([]model.Session{s}, []float64{18})); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Archer: Ann (recurve)", "Average per arrow: 10.00", "10/X: 100.0%", "18m"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestRenderScorecard(t *testing.T) {
	s := session("abcdef123456", 70, model.Tournament,
		model.End{model.X, 9, 8},
		model.End{7, model.Unset, model.Unset},
	)
	var buf bytes.Buffer
	if err := RenderScorecard(&buf, s); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"70m tournament", "X", "Total: 34", "Incomplete ends: 2"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}
