// Package store defines the persistence boundary of the sync engine.
//
// Implementations live in subpackages (pgstore, sqlitestore, memstore). Every
// implementation must assign change cursors atomically per user: two appends
// for the same user never observe the same watermark, while appends for
// different users do not contend.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erauner12/toolbridge-sync/internal/model"
	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a device or conflict does not exist for the user.
	ErrNotFound = errors.New("store: not found")

	// ErrAlreadyResolved is returned by ResolveConflict when the conflict already has a resolution.
	ErrAlreadyResolved = errors.New("store: conflict already resolved")

	// ErrDuplicateChange is returned by AppendChange when the client change id was already logged.
	ErrDuplicateChange = errors.New("store: duplicate client change id")
)

// Error wraps a backend failure with the repository operation that produced it.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap returns nil for a nil err and passes sentinel errors through untouched.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrAlreadyResolved) || errors.Is(err, ErrDuplicateChange) {
		return err
	}
	return &Error{Op: op, Err: err}
}

// DeviceStore persists device registrations.
type DeviceStore interface {
	// UpsertDevice inserts d or, when (UserID, DeviceID) exists, renames,
	// retypes and reactivates the existing row. It returns the stored row.
	UpsertDevice(ctx context.Context, d model.SyncDevice) (model.SyncDevice, error)
	GetDevice(ctx context.Context, userID, deviceID string) (model.SyncDevice, error)
	ListDevices(ctx context.Context, userID string, activeOnly bool) ([]model.SyncDevice, error)
	SetDeviceActive(ctx context.Context, userID, deviceID string, active bool, at time.Time) error
	DeleteDevice(ctx context.Context, userID, deviceID string) error
	// RecordDeviceSync stores the time and cursors of a successful pull.
	RecordDeviceSync(ctx context.Context, userID, deviceID string, at time.Time, cursor, removalCursor int64) error
}

// ChangeStore is the append-only change log.
type ChangeStore interface {
	// CurrentCursor returns the user's watermark, 0 when nothing was logged.
	CurrentCursor(ctx context.Context, userID string) (int64, error)
	// AppendChange assigns the next cursor for c.UserID and persists c.
	AppendChange(ctx context.Context, c model.SyncChange) (model.SyncChange, error)
	// ChangesSince returns up to limit changes with cursor > after, ascending.
	ChangesSince(ctx context.Context, userID string, after int64, limit int) ([]model.SyncChange, error)
	// ChangesForItem returns the item's changes with cursor > after, ascending.
	ChangesForItem(ctx context.Context, userID string, itemID uuid.UUID, after int64) ([]model.SyncChange, error)
	// FindChangeByClientID finds the change logged under a client change id.
	// Keys outlive pruning: once the change itself is gone, the result carries
	// only UserID, Cursor and ClientChangeID.
	FindChangeByClientID(ctx context.Context, userID, clientChangeID string) (model.SyncChange, error)
	// PruneChanges deletes changes older than before, keeping the newest change of every item.
	PruneChanges(ctx context.Context, before time.Time) (int64, error)
}

// ConflictStore persists detected conflicts.
type ConflictStore interface {
	InsertConflict(ctx context.Context, c model.SyncConflict) (model.SyncConflict, error)
	GetConflict(ctx context.Context, id uuid.UUID) (model.SyncConflict, error)
	PendingConflicts(ctx context.Context, userID string) ([]model.SyncConflict, error)
	// ResolveConflict sets resolution and resolvedAt only if the conflict is still pending.
	ResolveConflict(ctx context.Context, id uuid.UUID, r model.Resolution, at time.Time) (model.SyncConflict, error)
	// PruneResolvedConflicts deletes conflicts resolved before the given time.
	PruneResolvedConflicts(ctx context.Context, before time.Time) (int64, error)
}

// Store is the full repository used by the sync services.
type Store interface {
	DeviceStore
	ChangeStore
	ConflictStore
	Close() error
}
