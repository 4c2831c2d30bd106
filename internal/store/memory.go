package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/verte-zerg/quiver/internal/model"
)

type cacheEntry struct {
	payload    []byte
	computedAt time.Time
}

// Memory is a process-local backend used by tests and ephemeral runs.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]model.Session
	sights   map[string]model.SightSetting
	cache    map[string]cacheEntry
}

// NewMemory returns an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{
		sessions: map[string]model.Session{},
		sights:   map[string]model.SightSetting{},
		cache:    map[string]cacheEntry{},
	}
}

// Close is a no-op.
func (m *Memory) Close() error {
	return nil
}

// CreateSession stores a copy of s; ErrConflict if the id exists.
func (m *Memory) CreateSession(ctx context.Context, s model.Session) (model.Session, error) {
	if err := ctxErr(ctx, "create session"); err != nil {
		return model.Session{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; ok {
		return model.Session{}, fmt.Errorf("create session %s: %w", s.ID, ErrConflict)
	}
	m.sessions[s.ID] = s.Clone()
	return s.Clone(), nil
}

// GetSession returns a copy of the stored session.
func (m *Memory) GetSession(ctx context.Context, id string) (model.Session, error) {
	if err := ctxErr(ctx, "get session"); err != nil {
		return model.Session{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return model.Session{}, fmt.Errorf("get session %s: %w", id, ErrNotFound)
	}
	return s.Clone(), nil
}

// PutSession replaces an existing session.
func (m *Memory) PutSession(ctx context.Context, s model.Session) error {
	if err := ctxErr(ctx, "put session"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; !ok {
		return fmt.Errorf("put session %s: %w", s.ID, ErrNotFound)
	}
	m.sessions[s.ID] = s.Clone()
	return nil
}

// ListSessionsByOwner returns the owner's sessions, newest created first.
func (m *Memory) ListSessionsByOwner(ctx context.Context, ownerID string) ([]model.Session, error) {
	if err := ctxErr(ctx, "list sessions"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	var out []model.Session
	for _, s := range m.sessions {
		if s.OwnerID == ownerID {
			out = append(out, s.Clone())
		}
	}
	m.mu.RUnlock()
	sortNewestFirst(out)
	return out, nil
}

// DeleteSession removes a session; unknown ids are ignored.
func (m *Memory) DeleteSession(ctx context.Context, id string) error {
	if err := ctxErr(ctx, "delete session"); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	return nil
}

// CreateSightSetting stores a new sight mark.
func (m *Memory) CreateSightSetting(ctx context.Context, s model.SightSetting) (model.SightSetting, error) {
	if err := ctxErr(ctx, "create sight setting"); err != nil {
		return model.SightSetting{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sights[s.ID]; ok {
		return model.SightSetting{}, fmt.Errorf("create sight setting %s: %w", s.ID, ErrConflict)
	}
	m.sights[s.ID] = s
	return s, nil
}

// GetSightSetting loads one sight mark by id.
func (m *Memory) GetSightSetting(ctx context.Context, id string) (model.SightSetting, error) {
	if err := ctxErr(ctx, "get sight setting"); err != nil {
		return model.SightSetting{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sights[id]
	if !ok {
		return model.SightSetting{}, fmt.Errorf("get sight setting %s: %w", id, ErrNotFound)
	}
	return s, nil
}

// PutSightSetting replaces an existing sight mark.
func (m *Memory) PutSightSetting(ctx context.Context, s model.SightSetting) error {
	if err := ctxErr(ctx, "put sight setting"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sights[s.ID]; !ok {
		return fmt.Errorf("put sight setting %s: %w", s.ID, ErrNotFound)
	}
	m.sights[s.ID] = s
	return nil
}

// ListSightSettings returns the owner's marks for a bow, nearest first.
func (m *Memory) ListSightSettings(ctx context.Context, ownerID, bow string) ([]model.SightSetting, error) {
	if err := ctxErr(ctx, "list sight settings"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	var out []model.SightSetting
	for _, s := range m.sights {
		if s.OwnerID == ownerID && s.BowIdentifier == bow {
			out = append(out, s)
		}
	}
	m.mu.RUnlock()
	sortByDistance(out)
	return out, nil
}

// DeleteSightSetting removes a sight mark; unknown ids are ignored.
func (m *Memory) DeleteSightSetting(ctx context.Context, id string) error {
	if err := ctxErr(ctx, "delete sight setting"); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.sights, id)
	m.mu.Unlock()
	return nil
}

// LoadStatsCache returns the cached stats payload for an owner.
func (m *Memory) LoadStatsCache(ctx context.Context, ownerID string) ([]byte, time.Time, bool, error) {
	if err := ctxErr(ctx, "load stats cache"); err != nil {
		return nil, time.Time{}, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.cache[ownerID]
	if !ok {
		return nil, time.Time{}, false, nil
	}
	return append([]byte(nil), entry.payload...), entry.computedAt, true, nil
}

// SaveStatsCache stores the stats payload for an owner.
func (m *Memory) SaveStatsCache(ctx context.Context, ownerID string, payload []byte, computedAt time.Time) error {
	if err := ctxErr(ctx, "save stats cache"); err != nil {
		return err
	}
	m.mu.Lock()
	m.cache[ownerID] = cacheEntry{payload: append([]byte(nil), payload...), computedAt: computedAt}
	m.mu.Unlock()
	return nil
}

// DeleteStatsCache drops the owner's cached payload.
func (m *Memory) DeleteStatsCache(ctx context.Context, ownerID string) error {
	if err := ctxErr(ctx, "delete stats cache"); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.cache, ownerID)
	m.mu.Unlock()
	return nil
}

func sortNewestFirst(sessions []model.Session) {
	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
		}
		return sessions[i].ID > sessions[j].ID
	})
}

func sortByDistance(sights []model.SightSetting) {
	sort.Slice(sights, func(i, j int) bool {
		if sights[i].Distance != sights[j].Distance {
			return sights[i].Distance < sights[j].Distance
		}
		return sights[i].CreatedAt.Before(sights[j].CreatedAt)
	})
}
