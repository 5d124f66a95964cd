package syncservice

import (
	"context"
	"errors"
	"fmt"

	"github.com/erauner12/toolbridge-sync/internal/model"
	"github.com/erauner12/toolbridge-sync/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Sync serves a pull: the changes after req.Cursor, the user's pending
// conflicts and the cursor the device presents next time. It records the
// pull on the device and is otherwise read-only, so retries are safe.
func (s *Service) Sync(ctx context.Context, req model.SyncRequest, userID string) (model.SyncResponse, error) {
	logger := log.Ctx(ctx)

	d, err := s.activeDevice(ctx, req.DeviceID, userID)
	if err != nil {
		return model.SyncResponse{}, err
	}

	var after int64
	if req.Cursor != nil {
		if *req.Cursor < 0 {
			return model.SyncResponse{}, &InvalidArgumentError{Field: "cursor", Reason: "must not be negative"}
		}
		after = *req.Cursor
	}

	page, hasMore, err := s.ChangesSince(ctx, userID, after, req.Limit)
	if err != nil {
		return model.SyncResponse{}, err
	}

	pending, err := s.Store.PendingConflicts(ctx, userID)
	if err != nil {
		return model.SyncResponse{}, err
	}

	watermark, err := s.Store.CurrentCursor(ctx, userID)
	if err != nil {
		return model.SyncResponse{}, err
	}

	// With more rows pending the device resumes right after this page;
	// otherwise it is caught up to the watermark.
	next := watermark
	if hasMore {
		next = page[len(page)-1].Cursor
	}

	changes := page
	var hidden []model.SyncChange
	if !req.IncludeDeleted {
		changes = make([]model.SyncChange, 0, len(page))
		for _, c := range page {
			if c.ChangeType.IsRemoval() {
				hidden = append(hidden, c)
				continue
			}
			changes = append(changes, c)
		}
	}
	removals := removalCursor(d.RemovalCursor, after, next, hidden)

	if err := s.Store.RecordDeviceSync(ctx, userID, d.DeviceID, s.now(), next, removals); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.SyncResponse{}, deviceNotFound(d.DeviceID)
		}
		return model.SyncResponse{}, err
	}

	logger.Debug().
		Str("user_id", userID).
		Str("device_id", d.DeviceID).
		Int64("from", after).
		Int64("cursor", next).
		Int("changes", len(changes)).
		Int("conflicts", len(pending)).
		Bool("has_more", hasMore).
		Msg("sync served")

	if changes == nil {
		changes = []model.SyncChange{}
	}
	if pending == nil {
		pending = []model.SyncConflict{}
	}
	return model.SyncResponse{
		Changes:   changes,
		Cursor:    next,
		HasMore:   hasMore,
		Conflicts: pending,
	}, nil
}

// PushChanges logs the device's changes in submission order and returns the
// conflicts they raised. Every change is appended even when it conflicts;
// the conflict record is written after the append.
func (s *Service) PushChanges(ctx context.Context, inputs []model.RecordChangeInput, deviceID, userID string) ([]model.SyncConflict, error) {
	created := make([]model.SyncConflict, 0)
	if len(inputs) == 0 {
		return created, nil
	}

	for i, in := range inputs {
		if err := validateInput(in); err != nil {
			return nil, fmt.Errorf("change %d: %w", i, err)
		}
	}

	d, err := s.activeDevice(ctx, deviceID, userID)
	if err != nil {
		return nil, err
	}

	logger := log.Ctx(ctx).With().Str("user_id", userID).Str("device_id", d.DeviceID).Logger()
	appended, skipped := 0, 0

	for _, in := range inputs {
		if _, dup, err := s.lookupClientChange(ctx, userID, in.ClientChangeID); err != nil {
			return created, err
		} else if dup {
			skipped++
			continue
		}

		det, err := s.detectConflict(ctx, userID, d, in)
		if err != nil {
			return created, err
		}

		device := d.DeviceID
		logged, err := s.RecordChange(ctx, model.SyncChange{
			ItemID:         in.ItemID,
			ChangeType:     in.ChangeType,
			UserID:         userID,
			DeviceID:       &device,
			OldPath:        in.OldPath,
			NewPath:        in.NewPath,
			Checksum:       in.Checksum,
			ParentID:       in.ParentID,
			ClientChangeID: in.ClientChangeID,
		})
		if errors.Is(err, store.ErrDuplicateChange) {
			// Lost a race with a concurrent retry of the same change
			skipped++
			continue
		}
		if err != nil {
			return created, err
		}
		appended++

		if det.kind == model.ConflictNone {
			continue
		}

		c, err := s.Store.InsertConflict(ctx, model.SyncConflict{
			ID:           uuid.New(),
			ItemID:       logged.ItemID,
			UserID:       userID,
			LocalChange:  logged,
			RemoteChange: det.remote,
			ConflictType: det.kind,
			CreatedAt:    s.now(),
		})
		if err != nil {
			return created, err
		}
		logger.Warn().
			Str("item_id", logged.ItemID.String()).
			Str("conflict_type", det.kind.String()).
			Int64("local_cursor", logged.Cursor).
			Int64("remote_cursor", det.remote.Cursor).
			Msg("conflict detected")
		created = append(created, c)
	}

	logger.Info().
		Int("appended", appended).
		Int("duplicates", skipped).
		Int("conflicts", len(created)).
		Msg("push processed")
	return created, nil
}

// removalCursor advances the device's delivered-removals mark after a pull of
// (after, next]. The mark only moves when the page starts at or below it, and
// it stops just short of the first removal the page withheld.
func removalCursor(prev, after, next int64, hidden []model.SyncChange) int64 {
	if after > prev {
		return prev
	}
	for _, c := range hidden {
		if c.Cursor > prev {
			return c.Cursor - 1
		}
	}
	return max(prev, next)
}

func validateInput(in model.RecordChangeInput) error {
	if in.ItemID == uuid.Nil {
		return &InvalidArgumentError{Field: "itemId", Reason: "must not be empty"}
	}
	if !in.ChangeType.Valid() {
		return &InvalidArgumentError{Field: "changeType", Reason: "unknown change type"}
	}
	if in.ParentID != nil && *in.ParentID == in.ItemID {
		return &InvalidArgumentError{Field: "parentId", Reason: "item cannot be its own parent"}
	}
	return nil
}
