// Package stats contains statistics calculations and reporting.
package stats

import (
	"context"

	"github.com/verte-zerg/quiver/internal/model"
)

// SessionLister lists an owner's sessions, newest first.
type SessionLister interface {
	ListSessionsForOwner(ctx context.Context, ownerID string) ([]model.Session, error)
}

// Report contains precomputed data for stats rendering.
type Report struct {
	// Sessions are the filtered sessions, newest first.
	Sessions []model.Session
	Summary  Summary
}

// Filtered reports whether cfg narrows the session set beyond the owner.
func Filtered(cfg model.StatsConfig) bool {
	return cfg.Kind != "" || cfg.Since != nil || cfg.Last > 0 || cfg.Completed
}

// Filter applies the kind, since, completed and last-N filters in that order.
func Filter(sessions []model.Session, cfg model.StatsConfig) []model.Session {
	out := make([]model.Session, 0, len(sessions))
	for _, s := range sessions {
		if cfg.Kind != "" && s.Kind != cfg.Kind {
			continue
		}
		if cfg.Since != nil && s.CreatedAt.Before(*cfg.Since) {
			continue
		}
		if cfg.Completed && !s.Completed {
			continue
		}
		out = append(out, s)
	}
	if cfg.Last > 0 && len(out) > cfg.Last {
		out = out[:cfg.Last]
	}
	return out
}

// BuildReport loads and prepares data for stats rendering.
func BuildReport(ctx context.Context, src SessionLister, cfg model.StatsConfig) (Report, error) {
	sessions, err := src.ListSessionsForOwner(ctx, cfg.Owner)
	if err != nil {
		return Report{}, err
	}
	sessions = Filter(sessions, cfg)
	return Report{
		Sessions: sessions,
		Summary:  Compute(sessions, cfg.Distances),
	}, nil
}

// SessionTotals returns per-session total scores oldest first, for plotting.
func SessionTotals(sessions []model.Session) []float64 {
	out := make([]float64, len(sessions))
	for i, s := range sessions {
		out[len(sessions)-1-i] = float64(TotalScore(s))
	}
	return out
}

// SessionAverages returns per-session averages per arrow oldest first.
func SessionAverages(sessions []model.Session) []float64 {
	out := make([]float64, len(sessions))
	for i, s := range sessions {
		out[len(sessions)-1-i] = AveragePerArrow([]model.Session{s})
	}
	return out
}
