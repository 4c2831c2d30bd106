package scoring

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/verte-zerg/quiver/internal/cache"
	"github.com/verte-zerg/quiver/internal/model"
	"github.com/verte-zerg/quiver/internal/stats"
	"github.com/verte-zerg/quiver/internal/store"
)

type harness struct {
	repo  *Repository
	store store.Backend
	cache *cache.Cache
}

func repositories(t *testing.T) map[string]harness {
	t.Helper()
	dir := t.TempDir()
	doc, err := store.Open(filepath.Join(dir, "doc.db"))
	if err != nil {
		t.Fatalf("open document store: %v", err)
	}
	arrows, err := store.Open(filepath.Join(dir, "arrows.db"), store.WithStrategy(store.StrategyArrowRecords))
	if err != nil {
		t.Fatalf("open arrows store: %v", err)
	}
	kv, err := store.OpenBadger(store.BadgerConfig{InMemory: true})
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	backends := map[string]store.Backend{
		"memory":          store.NewMemory(),
		"sqlite-document": doc,
		"sqlite-arrows":   arrows,
		"badger":          kv,
	}
	out := map[string]harness{}
	for name, b := range backends {
		c := cache.New(b, time.Minute)
		out[name] = harness{repo: New(b, WithCache(c)), store: b, cache: c}
	}
	t.Cleanup(func() {
		for _, b := range backends {
			_ = b.Close()
		}
	})
	return out
}

func newSession(t *testing.T, r *Repository, ends, arrows int) model.Session {
	t.Helper()
	s, err := r.CreateSession(context.Background(), NewSession{
		OwnerID:      "u1",
		ArcherName:   "Ann",
		BowType:      model.Recurve,
		Distance:     70,
		TotalEnds:    ends,
		ArrowsPerEnd: arrows,
		Kind:         model.Practice,
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return s
}

func set(t *testing.T, r *Repository, id string, end, arrow int, v model.ArrowScore) model.Session {
	t.Helper()
	s, err := r.SetArrow(context.Background(), id, end, arrow, v)
	if err != nil {
		t.Fatalf("set arrow %d/%d: %v", end, arrow, err)
	}
	return s
}

func checkShape(t *testing.T, s model.Session) {
	t.Helper()
	if len(s.Ends) != s.TotalEnds {
		t.Fatalf("expected %d ends, got %d", s.TotalEnds, len(s.Ends))
	}
	for i, end := range s.Ends {
		if len(end) != s.ArrowsPerEnd {
			t.Fatalf("end %d: expected %d slots, got %d", i, s.ArrowsPerEnd, len(end))
		}
	}
	if s.XCount != s.CountX() {
		t.Fatalf("stored xCount %d, scan finds %d", s.XCount, s.CountX())
	}
}

func TestCreateSessionValidation(t *testing.T) {
	r := New(store.NewMemory())
	ctx := context.Background()
	bad := []NewSession{
		{OwnerID: "u1", BowType: model.Recurve, Distance: 70, TotalEnds: 0, ArrowsPerEnd: 6, Kind: model.Practice},
		{OwnerID: "u1", BowType: model.Recurve, Distance: 70, TotalEnds: 6, ArrowsPerEnd: -1, Kind: model.Practice},
		{OwnerID: "", BowType: model.Recurve, Distance: 70, TotalEnds: 6, ArrowsPerEnd: 6, Kind: model.Practice},
		{OwnerID: "u1", BowType: "longbow", Distance: 70, TotalEnds: 6, ArrowsPerEnd: 6, Kind: model.Practice},
		{OwnerID: "u1", BowType: model.Recurve, Distance: 70, TotalEnds: 6, ArrowsPerEnd: 6, Kind: "league"},
		{OwnerID: "u1", BowType: model.Recurve, Distance: 0, TotalEnds: 6, ArrowsPerEnd: 6, Kind: model.Practice},
	}
	for i, params := range bad {
		if _, err := r.CreateSession(ctx, params); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("case %d: expected ErrInvalidArgument, got %v", i, err)
		}
	}
	list, err := r.ListSessionsForOwner(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("rejected sessions must not be stored, found %d", len(list))
	}
}

func TestCreateSessionDefaults(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	r := New(store.NewMemory(), WithClock(func() time.Time { return now }), WithIDGenerator(func() string { return "fixed" }))
	s := newSession(t, r, 3, 6)
	if s.ID != "fixed" || !s.CreatedAt.Equal(now) || !s.UpdatedAt.Equal(now) {
		t.Fatalf("unexpected identity fields: %+v", s)
	}
	if s.Completed || s.XCount != 0 || s.Synced {
		t.Fatalf("unexpected initial flags: %+v", s)
	}
	checkShape(t, s)
	for _, end := range s.Ends {
		for _, a := range end {
			if a != model.Unset {
				t.Fatalf("expected unset matrix, got %v", s.Ends)
			}
		}
	}
	if _, err := r.CreateSession(context.Background(), NewSession{
		OwnerID: "u1", BowType: model.Compound, Distance: 18, TotalEnds: 1, ArrowsPerEnd: 3, Kind: model.Tournament,
	}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for reused id, got %v", err)
	}
}

func TestDimensionsAndXCountStable(t *testing.T) {
	ctx := context.Background()
	for name, h := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			s := newSession(t, h.repo, 3, 4)
			ops := []struct {
				end, arrow int
				value      model.ArrowScore
			}{
				{0, 0, model.X}, {0, 1, model.X}, {1, 3, 9}, {2, 2, model.Miss},
				{0, 0, 10}, {1, 3, model.X}, {0, 1, model.Unset}, {2, 0, model.X},
			}
			for _, op := range ops {
				got := set(t, h.repo, s.ID, op.end, op.arrow, op.value)
				checkShape(t, got)
				stored, err := h.repo.GetSession(ctx, s.ID)
				if err != nil {
					t.Fatalf("get: %v", err)
				}
				checkShape(t, stored)
				if stored.XCount != got.XCount {
					t.Fatalf("stored xCount %d, returned %d", stored.XCount, got.XCount)
				}
			}
			final, _ := h.repo.GetSession(ctx, s.ID)
			if final.XCount != 2 {
				t.Fatalf("expected 2 X after edits, got %d", final.XCount)
			}
			if _, err := h.repo.ClearArrow(ctx, s.ID, 2, 0); err != nil {
				t.Fatalf("clear: %v", err)
			}
			final, _ = h.repo.GetSession(ctx, s.ID)
			if final.XCount != 1 || final.Ends[2][0] != model.Unset {
				t.Fatalf("unexpected session after clear: %+v", final)
			}
		})
	}
}

func TestOutOfRangeAndNotFound(t *testing.T) {
	ctx := context.Background()
	for name, h := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			s := newSession(t, h.repo, 2, 3)
			for _, pos := range [][2]int{{2, 0}, {0, 3}, {-1, 0}, {0, -1}} {
				if _, err := h.repo.SetArrow(ctx, s.ID, pos[0], pos[1], 9); !errors.Is(err, ErrOutOfRange) {
					t.Fatalf("%v: expected ErrOutOfRange, got %v", pos, err)
				}
			}
			if _, err := h.repo.SetArrow(ctx, "missing", 0, 0, 9); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
			if _, _, err := h.repo.UndoLastArrow(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound on undo, got %v", err)
			}
			if _, err := h.repo.CompleteSession(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound on complete, got %v", err)
			}
			if _, err := h.repo.SetArrow(ctx, s.ID, 0, 0, model.ArrowScore(42)); !errors.Is(err, ErrInvalidArgument) {
				t.Fatalf("expected ErrInvalidArgument for unknown score, got %v", err)
			}
		})
	}
}

func TestCompleteScenario(t *testing.T) {
	ctx := context.Background()
	for name, h := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			s := newSession(t, h.repo, 2, 3)
			set(t, h.repo, s.ID, 0, 0, 9)
			set(t, h.repo, s.ID, 0, 1, model.X)
			set(t, h.repo, s.ID, 0, 2, model.Miss)
			set(t, h.repo, s.ID, 1, 0, 10)
			set(t, h.repo, s.ID, 1, 1, 8)

			ok, err := h.repo.CanComplete(ctx, s.ID)
			if err != nil || ok {
				t.Fatalf("expected incomplete session, got ok=%v err=%v", ok, err)
			}
			_, err = h.repo.CompleteSession(ctx, s.ID)
			var incomplete *IncompleteSessionError
			if !errors.As(err, &incomplete) || !errors.Is(err, ErrIncompleteSession) {
				t.Fatalf("expected IncompleteSessionError, got %v", err)
			}
			if len(incomplete.Ends) != 1 || incomplete.Ends[0] != 1 {
				t.Fatalf("expected end 1 reported, got %v", incomplete.Ends)
			}

			set(t, h.repo, s.ID, 1, 2, 7)
			stored, _ := h.repo.GetSession(ctx, s.ID)
			if got := stats.TotalScore(stored); got != 44 {
				t.Fatalf("expected total 44, got %d", got)
			}
			if stored.XCount != 1 {
				t.Fatalf("expected xCount 1, got %d", stored.XCount)
			}
			if ok, _ := h.repo.CanComplete(ctx, s.ID); !ok {
				t.Fatalf("expected completable session")
			}
			done, err := h.repo.CompleteSession(ctx, s.ID)
			if err != nil || !done.Completed {
				t.Fatalf("complete: %+v %v", done, err)
			}
			again, err := h.repo.CompleteSession(ctx, s.ID)
			if err != nil || !again.Completed {
				t.Fatalf("second complete should be a no-op: %v", err)
			}
			if ok, _ := h.repo.CanComplete(ctx, s.ID); !ok {
				t.Fatalf("CanComplete should stay true after completion")
			}

			if _, err := h.repo.SetArrow(ctx, s.ID, 0, 0, 10); !errors.Is(err, ErrSessionLocked) {
				t.Fatalf("expected ErrSessionLocked on set, got %v", err)
			}
			if _, err := h.repo.ClearArrow(ctx, s.ID, 0, 0); !errors.Is(err, ErrSessionLocked) {
				t.Fatalf("expected ErrSessionLocked on clear, got %v", err)
			}
			if _, _, err := h.repo.UndoLastArrow(ctx, s.ID); !errors.Is(err, ErrSessionLocked) {
				t.Fatalf("expected ErrSessionLocked on undo, got %v", err)
			}
			if _, err := h.repo.RecordArrow(ctx, s.ID, 9); !errors.Is(err, ErrSessionLocked) {
				t.Fatalf("expected ErrSessionLocked on record, got %v", err)
			}
			after, _ := h.repo.GetSession(ctx, s.ID)
			for e := range stored.Ends {
				for a := range stored.Ends[e] {
					if after.Ends[e][a] != stored.Ends[e][a] {
						t.Fatalf("locked matrix changed at %d/%d", e, a)
					}
				}
			}
		})
	}
}

func TestUndoScenario(t *testing.T) {
	ctx := context.Background()
	for name, h := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			s := newSession(t, h.repo, 2, 3)
			set(t, h.repo, s.ID, 1, 2, model.X)

			pos, ok, err := h.repo.UndoLastArrow(ctx, s.ID)
			if err != nil || !ok {
				t.Fatalf("undo: ok=%v err=%v", ok, err)
			}
			if pos != (model.Position{End: 1, Arrow: 2}) {
				t.Fatalf("expected 1/2 cleared, got %+v", pos)
			}
			after, _ := h.repo.GetSession(ctx, s.ID)
			for e, end := range after.Ends {
				for a, v := range end {
					if v != model.Unset {
						t.Fatalf("slot %d/%d not unset: %s", e, a, v)
					}
				}
			}
			if after.XCount != 0 {
				t.Fatalf("expected xCount 0, got %d", after.XCount)
			}

			_, ok, err = h.repo.UndoLastArrow(ctx, s.ID)
			if err != nil || ok {
				t.Fatalf("undo on empty session should be a no-op, got ok=%v err=%v", ok, err)
			}
		})
	}
}

func TestUndoScansBackwards(t *testing.T) {
	ctx := context.Background()
	r := New(store.NewMemory())
	s := newSession(t, r, 3, 2)
	set(t, r, s.ID, 0, 0, 9)
	set(t, r, s.ID, 1, 0, 8)
	set(t, r, s.ID, 0, 1, 7)

	pos, ok, err := r.UndoLastArrow(ctx, s.ID)
	if err != nil || !ok || pos != (model.Position{End: 1, Arrow: 0}) {
		t.Fatalf("expected 1/0 cleared, got %+v ok=%v err=%v", pos, ok, err)
	}
	after, _ := r.GetSession(ctx, s.ID)
	if after.Ends[0][0] != 9 || after.Ends[0][1] != 7 {
		t.Fatalf("earlier arrows must stay: %v", after.Ends)
	}
}

func TestRecordArrow(t *testing.T) {
	ctx := context.Background()
	for name, h := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			s := newSession(t, h.repo, 2, 2)
			set(t, h.repo, s.ID, 0, 1, 5)
			want := []model.Position{{End: 0, Arrow: 0}, {End: 1, Arrow: 0}, {End: 1, Arrow: 1}}
			for i, w := range want {
				pos, err := h.repo.RecordArrow(ctx, s.ID, model.X)
				if err != nil {
					t.Fatalf("record %d: %v", i, err)
				}
				if pos != w {
					t.Fatalf("record %d: expected %+v, got %+v", i, w, pos)
				}
			}
			if _, err := h.repo.RecordArrow(ctx, s.ID, 9); !errors.Is(err, ErrSessionFull) {
				t.Fatalf("expected ErrSessionFull, got %v", err)
			}
			if _, err := h.repo.RecordArrow(ctx, s.ID, model.Unset); !errors.Is(err, ErrInvalidArgument) {
				t.Fatalf("expected ErrInvalidArgument for unset, got %v", err)
			}
			final, _ := h.repo.GetSession(ctx, s.ID)
			if final.XCount != 3 {
				t.Fatalf("expected 3 X, got %d", final.XCount)
			}
		})
	}
}

func TestDeleteSessionInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	for name, h := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			s := newSession(t, h.repo, 1, 3)
			if _, err := h.cache.Put(ctx, "u1", stats.Summary{Sessions: 1}); err != nil {
				t.Fatalf("put cache: %v", err)
			}
			if err := h.repo.DeleteSession(ctx, s.ID); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if _, ok, _ := h.cache.Get(ctx, "u1"); ok {
				t.Fatalf("expected owner cache dropped after delete")
			}
			if _, err := h.repo.GetSession(ctx, s.ID); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound after delete, got %v", err)
			}
			if err := h.repo.DeleteSession(ctx, s.ID); err != nil {
				t.Fatalf("second delete should succeed: %v", err)
			}
		})
	}
}

func TestMutationInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	table := cache.NewMemoryTable()
	c := cache.New(table, time.Minute)
	r := New(store.NewMemory(), WithCache(c))
	s := newSession(t, r, 1, 2)
	if _, err := c.Put(ctx, "u1", stats.Summary{Sessions: 1}); err != nil {
		t.Fatalf("put: %v", err)
	}
	set(t, r, s.ID, 0, 0, 10)
	if _, ok, _ := c.Get(ctx, "u1"); ok {
		t.Fatalf("expected cache entry dropped after set")
	}
}

func TestListSessionsForOwnerNewestFirst(t *testing.T) {
	ctx := context.Background()
	clock := time.UnixMilli(1_000_000)
	r := New(store.NewMemory(), WithClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}))
	first := newSession(t, r, 1, 1)
	second := newSession(t, r, 1, 1)
	list, err := r.ListSessionsForOwner(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != second.ID || list[1].ID != first.ID {
		t.Fatalf("expected newest first, got %v", list)
	}
}

func TestConcurrentSetArrowKeepsEveryWrite(t *testing.T) {
	ctx := context.Background()
	r := New(store.NewMemory())
	s := newSession(t, r, 4, 6)

	var wg sync.WaitGroup
	errs := make(chan error, 24)
	for e := 0; e < 4; e++ {
		for a := 0; a < 6; a++ {
			wg.Add(1)
			go func(e, a int) {
				defer wg.Done()
				if _, err := r.SetArrow(ctx, s.ID, e, a, model.X); err != nil {
					errs <- fmt.Errorf("%d/%d: %w", e, a, err)
				}
			}(e, a)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("set arrow: %v", err)
	}
	final, _ := r.GetSession(ctx, s.ID)
	if final.XCount != 24 {
		t.Fatalf("expected every write kept, got xCount %d", final.XCount)
	}
}

func TestStorageTimeoutIsUnavailable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := New(store.NewMemory())
	if _, err := r.GetSession(ctx, "x"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

type unreadableStore struct {
	*store.Memory
}

func (u unreadableStore) GetSession(_ context.Context, id string) (model.Session, error) {
	return model.Session{}, fmt.Errorf("session %s: arrow record 5/0 outside 1x3", id)
}

func TestDeleteSessionRemovesUnreadableRow(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	s := newSession(t, New(mem), 1, 3)

	r := New(unreadableStore{mem})
	if err := r.DeleteSession(ctx, s.ID); err != nil {
		t.Fatalf("delete unreadable session: %v", err)
	}
	if _, err := mem.GetSession(ctx, s.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected session removed, got %v", err)
	}
}
