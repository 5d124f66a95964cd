package syncservice

import (
	"context"
	"errors"

	"github.com/erauner12/toolbridge-sync/internal/model"
	"github.com/erauner12/toolbridge-sync/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// detection is the outcome of checking one incoming change against the log.
type detection struct {
	kind   model.ConflictType
	remote model.SyncChange
}

// detectConflict compares in against what d has not observed: everything
// logged for the item after its last pull, plus any DELETE or TRASH its pulls
// withheld (those between RemovalCursor and LastSyncCursor).
func (s *Service) detectConflict(ctx context.Context, userID string, d model.SyncDevice, in model.RecordChangeInput) (detection, error) {
	deviceID, since := d.DeviceID, d.LastSyncCursor
	from := min(d.RemovalCursor, since)

	history, err := s.Store.ChangesForItem(ctx, userID, in.ItemID, from)
	if err != nil {
		return detection{}, err
	}

	// Only the newest unseen change matters: a later write by the same
	// device already supersedes anything before it.
	unseen := history
	for len(unseen) > 0 && unseen[0].Cursor <= since {
		unseen = unseen[1:]
	}
	if n := len(unseen); n > 0 {
		remote := unseen[n-1]
		if !remote.FromDevice(deviceID) {
			if kind := Classify(in.ChangeType, remote.ChangeType); kind != model.ConflictNone {
				return detection{kind: kind, remote: remote}, nil
			}
		}
	}

	// With nothing new since the last pull, the item's latest delivered state
	// may still be a removal the pull withheld from the device.
	if n := len(history); n > 0 && len(unseen) == 0 {
		last := history[n-1]
		if last.ChangeType.IsRemoval() && !last.FromDevice(deviceID) {
			if kind := Classify(in.ChangeType, last.ChangeType); kind != model.ConflictNone {
				return detection{kind: kind, remote: last}, nil
			}
		}
	}

	if in.ParentID == nil || in.ChangeType.IsRemoval() {
		return detection{}, nil
	}

	parent, err := s.Store.ChangesForItem(ctx, userID, *in.ParentID, from)
	if err != nil {
		return detection{}, err
	}
	for i := len(parent) - 1; i >= 0; i-- {
		p := parent[i]
		if p.FromDevice(deviceID) {
			break
		}
		if p.ChangeType.IsRemoval() {
			return detection{kind: model.ConflictParentDeleted, remote: p}, nil
		}
		if p.ChangeType == model.ChangeRestore || p.ChangeType == model.ChangeCreate {
			break
		}
	}
	return detection{}, nil
}

// FindConflict returns the conflict if it exists and belongs to userID.
func (s *Service) FindConflict(ctx context.Context, conflictID uuid.UUID, userID string) (model.SyncConflict, error) {
	c, err := s.Store.GetConflict(ctx, conflictID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && c.UserID != userID) {
		return model.SyncConflict{}, conflictNotFound(conflictID)
	}
	return c, err
}

// PendingConflicts returns the user's unresolved conflicts.
func (s *Service) PendingConflicts(ctx context.Context, userID string) ([]model.SyncConflict, error) {
	return s.Store.PendingConflicts(ctx, userID)
}

// ResolveConflict records the resolution exactly once. A second attempt
// fails with ErrInvalidOperation and leaves the first decision in place.
func (s *Service) ResolveConflict(ctx context.Context, conflictID uuid.UUID, resolution model.Resolution, userID string) (model.SyncConflict, error) {
	if !resolution.Valid() {
		return model.SyncConflict{}, &InvalidArgumentError{Field: "resolution", Reason: "unknown resolution"}
	}

	existing, err := s.FindConflict(ctx, conflictID, userID)
	if err != nil {
		return model.SyncConflict{}, err
	}
	if !existing.IsPending() {
		return model.SyncConflict{}, &InvalidOperationError{Reason: "conflict already resolved"}
	}

	c, err := s.Store.ResolveConflict(ctx, conflictID, resolution, s.now())
	switch {
	case errors.Is(err, store.ErrAlreadyResolved):
		return model.SyncConflict{}, &InvalidOperationError{Reason: "conflict already resolved"}
	case errors.Is(err, store.ErrNotFound):
		return model.SyncConflict{}, conflictNotFound(conflictID)
	case err != nil:
		return model.SyncConflict{}, err
	}

	log.Ctx(ctx).Info().
		Str("user_id", userID).
		Str("conflict_id", conflictID.String()).
		Str("resolution", resolution.String()).
		Msg("conflict resolved")
	return c, nil
}

// ConflictEffect returns what a resolved conflict asks the content layer to do.
func ConflictEffect(c model.SyncConflict) (model.Effect, bool) {
	return c.Effect()
}
