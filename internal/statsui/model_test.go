package statsui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/quiver/internal/cache"
	"github.com/verte-zerg/quiver/internal/model"
	"github.com/verte-zerg/quiver/internal/scoring"
	"github.com/verte-zerg/quiver/internal/store"
)

func seededRepo(t *testing.T) (*scoring.Repository, *cache.Cache) {
	t.Helper()
	st := store.NewMemory()
	c := cache.New(st, time.Minute)
	tick := time.UnixMilli(1_700_000_000_000)
	clock := func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	repo := scoring.New(st, scoring.WithCache(c), scoring.WithClock(clock))
	ctx := context.Background()
	for i, kind := range []model.SessionKind{model.Practice, model.Tournament} {
		s, err := repo.CreateSession(ctx, scoring.NewSession{
			OwnerID: "u1", BowType: model.Recurve, Distance: 18,
			TotalEnds: 1, ArrowsPerEnd: 2, Kind: kind,
		})
		if err != nil {
			t.Fatalf("create session %d: %v", i, err)
		}
		for a := 0; a < 2; a++ {
			if _, err := repo.RecordArrow(ctx, s.ID, model.ArrowScore(9-i)); err != nil {
				t.Fatalf("record arrow: %v", err)
			}
		}
	}
	return repo, c
}

func sized(t *testing.T, m *Model) *Model {
	t.Helper()
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return m
}

func key(m *Model, s string) {
	switch s {
	case "enter":
		m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	case "esc":
		m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	case "right":
		m.Update(tea.KeyMsg{Type: tea.KeyRight})
	case "tab":
		m.Update(tea.KeyMsg{Type: tea.KeyTab})
	default:
		m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	}
}

func TestOverviewShowsSummary(t *testing.T) {
	repo, c := seededRepo(t)
	m := sized(t, NewModel(repo, c, model.StatsConfig{Owner: "u1"}))
	if m.errMsg != "" {
		t.Fatalf("unexpected error: %s", m.errMsg)
	}
	if m.report.Summary.Sessions != 2 || m.report.Summary.OverallAverage != 8.5 {
		t.Fatalf("unexpected summary %+v", m.report.Summary)
	}
	out := m.View()
	for _, want := range []string{"Overview", "Distances", "Sessions", "Avg/arrow", "8.50"} {
		if !strings.Contains(out, want) {
			t.Fatalf("view missing %q:\n%s", want, out)
		}
	}
}

func TestSecondLoadHitsCache(t *testing.T) {
	repo, c := seededRepo(t)
	first := NewModel(repo, c, model.StatsConfig{Owner: "u1"})
	if first.cached {
		t.Fatalf("first load must compute")
	}
	second := NewModel(repo, c, model.StatsConfig{Owner: "u1"})
	if !second.cached {
		t.Fatalf("second load should be served from cache")
	}
	if !strings.Contains(second.renderFilterSummary(), "(cached)") {
		t.Fatalf("expected cached marker in header")
	}
}

func TestFilterFormAppliesKind(t *testing.T) {
	repo, c := seededRepo(t)
	m := sized(t, NewModel(repo, c, model.StatsConfig{Owner: "u1"}))
	key(m, "/")
	if !m.filterMode {
		t.Fatalf("expected filter mode")
	}
	key(m, "tournament")
	key(m, "enter")
	if m.filterMode {
		t.Fatalf("expected filter mode to close, error %q", m.filterError)
	}
	if m.cfg.Kind != model.Tournament || m.cfg.Owner != "u1" {
		t.Fatalf("unexpected cfg %+v", m.cfg)
	}
	if m.cached || len(m.report.Sessions) != 1 || m.report.Summary.OverallAverage != 8 {
		t.Fatalf("unexpected filtered report %+v cached=%v", m.report.Summary, m.cached)
	}
}

func TestFilterFormRejectsBadInput(t *testing.T) {
	repo, c := seededRepo(t)
	m := sized(t, NewModel(repo, c, model.StatsConfig{Owner: "u1"}))
	key(m, "/")
	key(m, "tab")
	key(m, "yesterday")
	key(m, "enter")
	if !m.filterMode || !strings.Contains(m.filterError, "since") {
		t.Fatalf("expected since error, got mode=%v err=%q", m.filterMode, m.filterError)
	}
	key(m, "esc")
	if m.filterMode || m.cfg.Since != nil {
		t.Fatalf("esc must leave the config untouched")
	}
}

func TestSessionsTabOpensScorecard(t *testing.T) {
	repo, c := seededRepo(t)
	m := sized(t, NewModel(repo, c, model.StatsConfig{Owner: "u1"}))
	key(m, "right")
	key(m, "right")
	if m.activeTab != tabSessions {
		t.Fatalf("expected sessions tab, got %d", m.activeTab)
	}
	key(m, "enter")
	if !strings.Contains(m.detail, "Total: 16") {
		t.Fatalf("expected newest session scorecard, got %q", m.detail)
	}
	if !strings.Contains(m.View(), "Esc to close") {
		t.Fatalf("expected detail modal")
	}
	key(m, "esc")
	if m.detail != "" {
		t.Fatalf("expected detail closed")
	}
}

func TestMoveTabWraps(t *testing.T) {
	m := &Model{
		tabs:      []string{"a", "b", "c"},
		distTable: newTable(distanceColumns(), 1),
		sessTable: newTable(sessionColumns(), 1),
	}
	m.moveTab(-1)
	if m.activeTab != 2 {
		t.Fatalf("expected wrap to last tab, got %d", m.activeTab)
	}
	m.moveTab(1)
	if m.activeTab != 0 {
		t.Fatalf("expected wrap to first tab, got %d", m.activeTab)
	}
}

func TestTruncateLine(t *testing.T) {
	if got := truncateLine("abcdefgh", 6); got != "abc..." {
		t.Fatalf("unexpected truncation %q", got)
	}
	if got := truncateLine("abc", 6); got != "abc" {
		t.Fatalf("unexpected truncation %q", got)
	}
}

func TestFitLinesPadsAndClips(t *testing.T) {
	out := fitLines("a\nb\nc", 3, 2)
	if out != "a  \nb  " {
		t.Fatalf("unexpected fit %q", out)
	}
}
