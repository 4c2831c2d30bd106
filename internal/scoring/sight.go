package scoring

import (
	"context"
	"fmt"
	"strings"

	"github.com/verte-zerg/quiver/internal/model"
)

// GetSightSettingsForBow returns the owner's marks for a bow, nearest first.
func (r *Repository) GetSightSettingsForBow(ctx context.Context, ownerID, bow string) ([]model.SightSetting, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	marks, err := r.store.ListSightSettings(ctx, ownerID, bow)
	if err != nil {
		return nil, fmt.Errorf("list sight settings: %w", err)
	}
	return marks, nil
}

// GetSightSetting loads one sight mark by id.
func (r *Repository) GetSightSetting(ctx context.Context, id string) (model.SightSetting, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	mark, err := r.store.GetSightSetting(ctx, id)
	if err != nil {
		return model.SightSetting{}, fmt.Errorf("get sight setting: %w", err)
	}
	return mark, nil
}

// AddSightSetting stores a new sight mark.
func (r *Repository) AddSightSetting(ctx context.Context, params NewSightSetting) (model.SightSetting, error) {
	params.BowIdentifier = strings.TrimSpace(params.BowIdentifier)
	params.SightMark = strings.TrimSpace(params.SightMark)
	if err := checkStruct("add sight setting", params); err != nil {
		return model.SightSetting{}, err
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	now := r.stamp()
	mark, err := r.store.CreateSightSetting(ctx, model.SightSetting{
		ID:            r.newID(),
		OwnerID:       params.OwnerID,
		BowIdentifier: params.BowIdentifier,
		Distance:      params.Distance,
		SightMark:     params.SightMark,
		Notes:         params.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return model.SightSetting{}, fmt.Errorf("add sight setting: %w", err)
	}
	r.logger.Debug("sight setting added", "id", mark.ID, "bow", mark.BowIdentifier, "distance", mark.Distance)
	return mark, nil
}

// UpdateSightSetting applies the non-nil fields of upd.
func (r *Repository) UpdateSightSetting(ctx context.Context, id string, upd SightUpdate) (model.SightSetting, error) {
	unlock := r.locks.Lock("sight/" + id)
	defer unlock()
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	mark, err := r.store.GetSightSetting(ctx, id)
	if err != nil {
		return model.SightSetting{}, fmt.Errorf("update sight setting: %w", err)
	}
	next := NewSightSetting{
		OwnerID:       mark.OwnerID,
		BowIdentifier: mark.BowIdentifier,
		Distance:      mark.Distance,
		SightMark:     mark.SightMark,
		Notes:         mark.Notes,
	}
	if upd.BowIdentifier != nil {
		next.BowIdentifier = strings.TrimSpace(*upd.BowIdentifier)
	}
	if upd.Distance != nil {
		next.Distance = *upd.Distance
	}
	if upd.SightMark != nil {
		next.SightMark = strings.TrimSpace(*upd.SightMark)
	}
	if upd.Notes != nil {
		next.Notes = *upd.Notes
	}
	if err := checkStruct("update sight setting", next); err != nil {
		return model.SightSetting{}, err
	}

	mark.BowIdentifier = next.BowIdentifier
	mark.Distance = next.Distance
	mark.SightMark = next.SightMark
	mark.Notes = next.Notes
	mark.UpdatedAt = r.stamp()
	if err := r.store.PutSightSetting(ctx, mark); err != nil {
		return model.SightSetting{}, fmt.Errorf("update sight setting: %w", err)
	}
	return mark, nil
}

// DeleteSightSetting removes a sight mark. Unknown ids are ignored.
func (r *Repository) DeleteSightSetting(ctx context.Context, id string) error {
	unlock := r.locks.Lock("sight/" + id)
	defer unlock()
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	if err := r.store.DeleteSightSetting(ctx, id); err != nil {
		return fmt.Errorf("delete sight setting: %w", err)
	}
	return nil
}
