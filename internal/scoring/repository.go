// Package scoring owns the mutation rules for sessions and sight settings.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/quiver/internal/cache"
	"github.com/verte-zerg/quiver/internal/model"
	"github.com/verte-zerg/quiver/internal/store"
)

// DefaultTimeout bounds each repository call's storage work.
const DefaultTimeout = 5 * time.Second

// errNoChange aborts a mutation without writing.
var errNoChange = errors.New("no change")

// Repository enforces the session invariants on top of a store. Every
// read-modify-write on one session id is serialised.
type Repository struct {
	store   store.Store
	cache   *cache.Cache
	now     func() time.Time
	newID   func() string
	timeout time.Duration
	logger  *slog.Logger
	locks   keyedMutex
}

// Option configures a Repository.
type Option func(*Repository)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		r.now = now
	}
}

// WithIDGenerator overrides id generation.
func WithIDGenerator(newID func() string) Option {
	return func(r *Repository) {
		r.newID = newID
	}
}

// WithTimeout sets the per-call storage deadline. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(r *Repository) {
		r.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Repository) {
		r.logger = logger
	}
}

// WithCache makes successful mutations drop the owner's cached stats.
func WithCache(c *cache.Cache) Option {
	return func(r *Repository) {
		r.cache = c
	}
}

// New returns a repository over st.
func New(st store.Store, opts ...Option) *Repository {
	r := &Repository{
		store:   st,
		now:     time.Now,
		newID:   uuid.NewString,
		timeout: DefaultTimeout,
		logger:  slog.New(slog.DiscardHandler),
		locks:   keyedMutex{locks: map[string]*lockEntry{}},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Repository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

// stamp returns the current time at the millisecond precision stores keep.
func (r *Repository) stamp() time.Time {
	return r.now().Truncate(time.Millisecond)
}

func (r *Repository) invalidate(ctx context.Context, ownerID string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Invalidate(ctx, ownerID); err != nil {
		r.logger.Warn("drop cached stats", "owner", ownerID, "error", err)
	}
}

// CreateSession validates params and stores a new, fully unset session.
func (r *Repository) CreateSession(ctx context.Context, params NewSession) (model.Session, error) {
	if err := checkStruct("create session", params); err != nil {
		return model.Session{}, err
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	now := r.stamp()
	s := model.Session{
		ID:            r.newID(),
		OwnerID:       params.OwnerID,
		ArcherName:    params.ArcherName,
		ArcherSurname: params.ArcherSurname,
		BowType:       params.BowType,
		Distance:      params.Distance,
		TotalEnds:     params.TotalEnds,
		ArrowsPerEnd:  params.ArrowsPerEnd,
		Kind:          params.Kind,
		Ends:          model.NewEnds(params.TotalEnds, params.ArrowsPerEnd),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	created, err := r.store.CreateSession(ctx, s)
	if err != nil {
		return model.Session{}, fmt.Errorf("create session: %w", err)
	}
	r.invalidate(ctx, created.OwnerID)
	r.logger.Debug("session created", "id", created.ID, "owner", created.OwnerID,
		"ends", created.TotalEnds, "arrows", created.ArrowsPerEnd)
	return created, nil
}

// GetSession loads one session.
func (r *Repository) GetSession(ctx context.Context, id string) (model.Session, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	s, err := r.store.GetSession(ctx, id)
	if err != nil {
		return model.Session{}, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

// ListSessionsForOwner returns the owner's sessions, newest first.
func (r *Repository) ListSessionsForOwner(ctx context.Context, ownerID string) ([]model.Session, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	sessions, err := r.store.ListSessionsByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// mutate runs fn against the stored session under the session's lock, then
// rescans the X count and writes the result back as one unit.
func (r *Repository) mutate(ctx context.Context, op, id string, fn func(*model.Session) error) (model.Session, error) {
	unlock := r.locks.Lock(id)
	defer unlock()
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	s, err := r.store.GetSession(ctx, id)
	if err != nil {
		return model.Session{}, fmt.Errorf("%s: %w", op, err)
	}
	if s.Completed {
		return model.Session{}, fmt.Errorf("%s %s: %w", op, id, ErrSessionLocked)
	}
	if err := fn(&s); err != nil {
		if errors.Is(err, errNoChange) {
			return s, nil
		}
		return model.Session{}, fmt.Errorf("%s %s: %w", op, id, err)
	}
	s.XCount = s.CountX()
	s.UpdatedAt = r.stamp()
	if err := r.store.PutSession(ctx, s); err != nil {
		r.logger.Warn("session write failed", "op", op, "id", id, "error", err)
		return model.Session{}, fmt.Errorf("%s: %w", op, err)
	}
	r.invalidate(ctx, s.OwnerID)
	return s, nil
}

// SetArrow records value at (end, arrow). Setting Unset clears the slot.
func (r *Repository) SetArrow(ctx context.Context, id string, end, arrow int, value model.ArrowScore) (model.Session, error) {
	if !value.Valid() {
		return model.Session{}, fmt.Errorf("set arrow: %w: unknown score %d", ErrInvalidArgument, uint8(value))
	}
	pos := model.Position{End: end, Arrow: arrow}
	s, err := r.mutate(ctx, "set arrow", id, func(s *model.Session) error {
		if !s.InBounds(pos) {
			return fmt.Errorf("%w: end %d arrow %d outside %dx%d", ErrOutOfRange, end, arrow, s.TotalEnds, s.ArrowsPerEnd)
		}
		s.Ends[end][arrow] = value
		return nil
	})
	if err != nil {
		return model.Session{}, err
	}
	r.logger.Debug("arrow set", "id", id, "end", end, "arrow", arrow, "value", value.String())
	return s, nil
}

// ClearArrow unsets the slot at (end, arrow).
func (r *Repository) ClearArrow(ctx context.Context, id string, end, arrow int) (model.Session, error) {
	return r.SetArrow(ctx, id, end, arrow, model.Unset)
}

// RecordArrow writes value into the first unset slot, scanning ends then
// arrows in order.
func (r *Repository) RecordArrow(ctx context.Context, id string, value model.ArrowScore) (model.Position, error) {
	if !value.IsSet() {
		return model.Position{}, fmt.Errorf("record arrow: %w: a shot value is required", ErrInvalidArgument)
	}
	var pos model.Position
	_, err := r.mutate(ctx, "record arrow", id, func(s *model.Session) error {
		for e, end := range s.Ends {
			for a, slot := range end {
				if !slot.IsSet() {
					s.Ends[e][a] = value
					pos = model.Position{End: e, Arrow: a}
					return nil
				}
			}
		}
		return ErrSessionFull
	})
	if err != nil {
		return model.Position{}, err
	}
	r.logger.Debug("arrow recorded", "id", id, "end", pos.End, "arrow", pos.Arrow, "value", value.String())
	return pos, nil
}

// UndoLastArrow clears the last set slot in end-major order. ok is false
// when the session has no set slot, in which case nothing is written.
func (r *Repository) UndoLastArrow(ctx context.Context, id string) (model.Position, bool, error) {
	var pos model.Position
	found := false
	_, err := r.mutate(ctx, "undo arrow", id, func(s *model.Session) error {
		for e := len(s.Ends) - 1; e >= 0; e-- {
			for a := len(s.Ends[e]) - 1; a >= 0; a-- {
				if s.Ends[e][a].IsSet() {
					s.Ends[e][a] = model.Unset
					pos = model.Position{End: e, Arrow: a}
					found = true
					return nil
				}
			}
		}
		return errNoChange
	})
	if err != nil {
		return model.Position{}, false, err
	}
	if found {
		r.logger.Debug("arrow undone", "id", id, "end", pos.End, "arrow", pos.Arrow)
	}
	return pos, found, nil
}

// CanComplete reports whether every slot is set, regardless of Completed.
func (r *Repository) CanComplete(ctx context.Context, id string) (bool, error) {
	s, err := r.GetSession(ctx, id)
	if err != nil {
		return false, err
	}
	return len(s.IncompleteEnds()) == 0, nil
}

// CompleteSession locks a fully scored session. Completing an already
// completed session is a no-op.
func (r *Repository) CompleteSession(ctx context.Context, id string) (model.Session, error) {
	unlock := r.locks.Lock(id)
	defer unlock()
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	s, err := r.store.GetSession(ctx, id)
	if err != nil {
		return model.Session{}, fmt.Errorf("complete session: %w", err)
	}
	if s.Completed {
		return s, nil
	}
	if missing := s.IncompleteEnds(); len(missing) > 0 {
		return model.Session{}, &IncompleteSessionError{SessionID: id, Ends: missing}
	}
	s.Completed = true
	s.XCount = s.CountX()
	s.UpdatedAt = r.stamp()
	if err := r.store.PutSession(ctx, s); err != nil {
		return model.Session{}, fmt.Errorf("complete session: %w", err)
	}
	r.invalidate(ctx, s.OwnerID)
	r.logger.Debug("session completed", "id", id)
	return s, nil
}

// DeleteSession removes a session. Deleting an unknown id is not an error.
func (r *Repository) DeleteSession(ctx context.Context, id string) error {
	unlock := r.locks.Lock(id)
	defer unlock()
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	s, err := r.store.GetSession(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if errors.Is(err, store.ErrUnavailable) {
		return fmt.Errorf("delete session: %w", err)
	}
	// An undecodable row is still removed; its owner is unknown, so the
	// cached summary expires by TTL instead.
	if err != nil {
		r.logger.Warn("deleting unreadable session", "id", id, "err", err)
	}
	if err := r.store.DeleteSession(ctx, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if s.OwnerID != "" {
		r.invalidate(ctx, s.OwnerID)
	}
	r.logger.Debug("session deleted", "id", id)
	return nil
}
