package syncservice

import (
	"context"
	"errors"

	"github.com/erauner12/toolbridge-sync/internal/model"
	"github.com/erauner12/toolbridge-sync/internal/store"
	"github.com/google/uuid"
)

// CurrentCursor returns the user's watermark, 0 if nothing was ever logged.
func (s *Service) CurrentCursor(ctx context.Context, userID string) (int64, error) {
	return s.Store.CurrentCursor(ctx, userID)
}

// RecordChange appends c to the log. The store assigns the cursor; the
// server assigns the timestamp and id when they are unset.
func (s *Service) RecordChange(ctx context.Context, c model.SyncChange) (model.SyncChange, error) {
	if !c.ChangeType.Valid() {
		return model.SyncChange{}, &InvalidArgumentError{Field: "changeType", Reason: "unknown change type"}
	}
	if c.ItemID == uuid.Nil {
		return model.SyncChange{}, &InvalidArgumentError{Field: "itemId", Reason: "must not be empty"}
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Timestamp.IsZero() {
		c.Timestamp = s.now()
	}
	c.Cursor = 0
	return s.Store.AppendChange(ctx, c)
}

// ChangesSince returns up to limit changes after cursor in ascending order.
// hasMore reports that further rows exist past the last one returned.
func (s *Service) ChangesSince(ctx context.Context, userID string, cursor int64, limit int) (changes []model.SyncChange, hasMore bool, err error) {
	limit = clampLimit(limit)
	if cursor < 0 {
		cursor = 0
	}

	rows, err := s.Store.ChangesSince(ctx, userID, cursor, limit+1)
	if err != nil {
		return nil, false, err
	}
	if len(rows) > limit {
		return rows[:limit], true, nil
	}
	return rows, false, nil
}

// ChangesForItem returns the item's logged changes after sinceCursor.
func (s *Service) ChangesForItem(ctx context.Context, userID string, itemID uuid.UUID, sinceCursor int64) ([]model.SyncChange, error) {
	return s.Store.ChangesForItem(ctx, userID, itemID, sinceCursor)
}

// lookupClientChange returns the already-logged change carrying the idempotency key.
func (s *Service) lookupClientChange(ctx context.Context, userID string, key *string) (model.SyncChange, bool, error) {
	if key == nil || *key == "" {
		return model.SyncChange{}, false, nil
	}
	c, err := s.Store.FindChangeByClientID(ctx, userID, *key)
	if errors.Is(err, store.ErrNotFound) {
		return model.SyncChange{}, false, nil
	}
	if err != nil {
		return model.SyncChange{}, false, err
	}
	return c, true, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return model.DefaultPageLimit
	}
	if limit > MaxPageLimit {
		return MaxPageLimit
	}
	return limit
}
