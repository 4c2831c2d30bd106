package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/verte-zerg/quiver/internal/model"
)

var (
	// ErrNotFound is returned when a session or sight setting id is not stored.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when creating a record whose id already exists.
	ErrConflict = errors.New("already exists")
	// ErrUnavailable wraps failures of the underlying storage engine.
	ErrUnavailable = errors.New("storage unavailable")
)

// Store is durable keyed storage for sessions and sight settings. It does
// not enforce scoring rules; callers validate documents before writing them.
type Store interface {
	CreateSession(ctx context.Context, s model.Session) (model.Session, error)
	GetSession(ctx context.Context, id string) (model.Session, error)
	PutSession(ctx context.Context, s model.Session) error
	// ListSessionsByOwner returns the owner's sessions, newest created first.
	ListSessionsByOwner(ctx context.Context, ownerID string) ([]model.Session, error)
	// DeleteSession removes the session and any per-arrow records. Deleting a
	// missing id is not an error.
	DeleteSession(ctx context.Context, id string) error

	CreateSightSetting(ctx context.Context, s model.SightSetting) (model.SightSetting, error)
	GetSightSetting(ctx context.Context, id string) (model.SightSetting, error)
	PutSightSetting(ctx context.Context, s model.SightSetting) error
	// ListSightSettings returns the owner's marks for a bow sorted by distance.
	ListSightSettings(ctx context.Context, ownerID, bow string) ([]model.SightSetting, error)
	DeleteSightSetting(ctx context.Context, id string) error

	Close() error
}

// StatsCacheTable persists computed stats payloads keyed by owner.
type StatsCacheTable interface {
	LoadStatsCache(ctx context.Context, ownerID string) (payload []byte, computedAt time.Time, ok bool, err error)
	SaveStatsCache(ctx context.Context, ownerID string, payload []byte, computedAt time.Time) error
	DeleteStatsCache(ctx context.Context, ownerID string) error
}

// Backend is a Store that also carries the stats cache table.
type Backend interface {
	Store
	StatsCacheTable
}

// Strategy selects how the SQLite backend lays out score matrices.
type Strategy string

const (
	// StrategyDocument embeds the score matrix in the session row.
	StrategyDocument Strategy = "document"
	// StrategyArrowRecords stores one row per recorded arrow.
	StrategyArrowRecords Strategy = "arrows"
)

// ParseStrategy parses a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "", StrategyDocument:
		return StrategyDocument, nil
	case StrategyArrowRecords:
		return StrategyArrowRecords, nil
	}
	return "", fmt.Errorf("unknown storage strategy %q (use document or arrows)", s)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

func ctxErr(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return unavailable(op, err)
	}
	return nil
}

// validateShape checks that a session's matrix matches its declared
// dimensions before it is written.
func validateShape(s model.Session) error {
	if len(s.Ends) != s.TotalEnds {
		return fmt.Errorf("session %s: %d ends stored for total %d", s.ID, len(s.Ends), s.TotalEnds)
	}
	for i, end := range s.Ends {
		if len(end) != s.ArrowsPerEnd {
			return fmt.Errorf("session %s: end %d has %d slots, want %d", s.ID, i, len(end), s.ArrowsPerEnd)
		}
	}
	return nil
}
