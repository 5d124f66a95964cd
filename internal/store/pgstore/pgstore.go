// Package pgstore implements store.Store on PostgreSQL through pgx.
//
// Cursor assignment uses a per-user counter row in sync_cursor. The counter is
// bumped with an upsert in the same transaction as the change insert, so the
// row lock serializes concurrent appends for one user while different users
// touch different rows.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/erauner12/toolbridge-sync/internal/model"
	"github.com/erauner12/toolbridge-sync/internal/store"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const uniqueViolation = "23505"

// Store holds the connection pool
type Store struct {
	DB *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

// New creates a Store over an open pool. The pool is owned by the caller.
func New(pool *pgxpool.Pool) *Store {
	return &Store{DB: pool}
}

// Close is a no-op; the pool is closed by whoever opened it.
func (s *Store) Close() error { return nil }

// Ping checks that the pool can reach the database.
func (s *Store) Ping(ctx context.Context) error { return s.DB.Ping(ctx) }

type rowScanner interface {
	Scan(dest ...any) error
}

const deviceCols = `id, user_id, device_id, device_name, device_type, is_active,
	last_sync_at, last_sync_cursor, removal_cursor, created_at, updated_at`

func scanDevice(row rowScanner) (model.SyncDevice, error) {
	var d model.SyncDevice
	var deviceType string
	err := row.Scan(&d.ID, &d.UserID, &d.DeviceID, &d.DeviceName, &deviceType, &d.IsActive,
		&d.LastSyncAt, &d.LastSyncCursor, &d.RemovalCursor, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return model.SyncDevice{}, err
	}
	d.DeviceType = model.DeviceType(deviceType)
	return d, nil
}

const changeCols = `id, user_id, item_id, change_type, device_id, ts, cursor,
	old_path, new_path, checksum, parent_id, client_change_id`

func scanChange(row rowScanner) (model.SyncChange, error) {
	var c model.SyncChange
	var changeType string
	err := row.Scan(&c.ID, &c.UserID, &c.ItemID, &changeType, &c.DeviceID, &c.Timestamp, &c.Cursor,
		&c.OldPath, &c.NewPath, &c.Checksum, &c.ParentID, &c.ClientChangeID)
	if err != nil {
		return model.SyncChange{}, err
	}
	if c.ChangeType, err = model.ParseChangeType(changeType); err != nil {
		return model.SyncChange{}, err
	}
	return c, nil
}

func collectChanges(rows pgx.Rows) ([]model.SyncChange, error) {
	defer rows.Close()

	out := make([]model.SyncChange, 0)
	for rows.Next() {
		c, err := scanChange(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const conflictCols = `id, user_id, item_id, local_change, remote_change, conflict_type,
	resolved_at, resolution, created_at`

func scanConflict(row rowScanner) (model.SyncConflict, error) {
	var c model.SyncConflict
	var local, remote []byte
	var conflictType string
	var resolution *string
	err := row.Scan(&c.ID, &c.UserID, &c.ItemID, &local, &remote, &conflictType,
		&c.ResolvedAt, &resolution, &c.CreatedAt)
	if err != nil {
		return model.SyncConflict{}, err
	}
	if err := json.Unmarshal(local, &c.LocalChange); err != nil {
		return model.SyncConflict{}, err
	}
	if err := json.Unmarshal(remote, &c.RemoteChange); err != nil {
		return model.SyncConflict{}, err
	}
	if c.ConflictType, err = model.ParseConflictType(conflictType); err != nil {
		return model.SyncConflict{}, err
	}
	if resolution != nil {
		r, err := model.ParseResolution(*resolution)
		if err != nil {
			return model.SyncConflict{}, err
		}
		c.Resolution = &r
	}
	return c, nil
}

// Devices

func (s *Store) UpsertDevice(ctx context.Context, d model.SyncDevice) (model.SyncDevice, error) {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	out, err := scanDevice(s.DB.QueryRow(ctx, `
		INSERT INTO sync_device (id, user_id, device_id, device_name, device_type, is_active,
			last_sync_cursor, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, true, 0, $6, $7)
		ON CONFLICT (user_id, device_id) DO UPDATE SET
			device_name = EXCLUDED.device_name,
			device_type = EXCLUDED.device_type,
			is_active   = true,
			updated_at  = EXCLUDED.updated_at
		RETURNING `+deviceCols,
		d.ID, d.UserID, d.DeviceID, d.DeviceName, string(d.DeviceType), d.CreatedAt, d.UpdatedAt))
	return out, store.Wrap("upsert device", err)
}

func (s *Store) GetDevice(ctx context.Context, userID, deviceID string) (model.SyncDevice, error) {
	d, err := scanDevice(s.DB.QueryRow(ctx,
		`SELECT `+deviceCols+` FROM sync_device WHERE user_id = $1 AND device_id = $2`,
		userID, deviceID))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.SyncDevice{}, store.ErrNotFound
	}
	return d, store.Wrap("get device", err)
}

func (s *Store) ListDevices(ctx context.Context, userID string, activeOnly bool) ([]model.SyncDevice, error) {
	query := `SELECT ` + deviceCols + ` FROM sync_device WHERE user_id = $1`
	if activeOnly {
		query += ` AND is_active`
	}
	query += ` ORDER BY created_at, device_id`

	rows, err := s.DB.Query(ctx, query, userID)
	if err != nil {
		return nil, store.Wrap("list devices", err)
	}
	defer rows.Close()

	out := make([]model.SyncDevice, 0)
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, store.Wrap("list devices", err)
		}
		out = append(out, d)
	}
	return out, store.Wrap("list devices", rows.Err())
}

func (s *Store) SetDeviceActive(ctx context.Context, userID, deviceID string, active bool, at time.Time) error {
	tag, err := s.DB.Exec(ctx, `
		UPDATE sync_device SET is_active = $3, updated_at = $4
		WHERE user_id = $1 AND device_id = $2
	`, userID, deviceID, active, at)
	if err != nil {
		return store.Wrap("set device active", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) RecordDeviceSync(ctx context.Context, userID, deviceID string, at time.Time, cursor, removalCursor int64) error {
	tag, err := s.DB.Exec(ctx, `
		UPDATE sync_device SET last_sync_at = $3, last_sync_cursor = $4, removal_cursor = $5, updated_at = $3
		WHERE user_id = $1 AND device_id = $2
	`, userID, deviceID, at, cursor, removalCursor)
	if err != nil {
		return store.Wrap("record device sync", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteDevice(ctx context.Context, userID, deviceID string) error {
	tag, err := s.DB.Exec(ctx,
		`DELETE FROM sync_device WHERE user_id = $1 AND device_id = $2`, userID, deviceID)
	if err != nil {
		return store.Wrap("delete device", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Change log

func (s *Store) CurrentCursor(ctx context.Context, userID string) (int64, error) {
	var cur int64
	err := s.DB.QueryRow(ctx, `SELECT cursor FROM sync_cursor WHERE user_id = $1`, userID).Scan(&cur)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return cur, store.Wrap("current cursor", err)
}

func (s *Store) AppendChange(ctx context.Context, c model.SyncChange) (model.SyncChange, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}

	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return model.SyncChange{}, store.Wrap("append change", err)
	}
	defer tx.Rollback(ctx)

	if c.ClientChangeID != nil {
		_, err := tx.Exec(ctx, `
			INSERT INTO sync_client_change (user_id, client_change_id, cursor) VALUES ($1, $2, 0)
		`, c.UserID, *c.ClientChangeID)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return model.SyncChange{}, store.ErrDuplicateChange
		}
		if err != nil {
			return model.SyncChange{}, store.Wrap("claim client change id", err)
		}
	}

	if err := tx.QueryRow(ctx, `
		INSERT INTO sync_cursor (user_id, cursor) VALUES ($1, 1)
		ON CONFLICT (user_id) DO UPDATE SET cursor = sync_cursor.cursor + 1
		RETURNING cursor
	`, c.UserID).Scan(&c.Cursor); err != nil {
		return model.SyncChange{}, store.Wrap("assign cursor", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO sync_change (id, user_id, item_id, change_type, device_id, ts, cursor,
			old_path, new_path, checksum, parent_id, client_change_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, c.ID, c.UserID, c.ItemID, c.ChangeType.String(), c.DeviceID, c.Timestamp, c.Cursor,
		c.OldPath, c.NewPath, c.Checksum, c.ParentID, c.ClientChangeID)
	if err != nil {
		return model.SyncChange{}, store.Wrap("insert change", err)
	}

	if c.ClientChangeID != nil {
		if _, err := tx.Exec(ctx, `
			UPDATE sync_client_change SET cursor = $3 WHERE user_id = $1 AND client_change_id = $2
		`, c.UserID, *c.ClientChangeID, c.Cursor); err != nil {
			return model.SyncChange{}, store.Wrap("record client change id", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return model.SyncChange{}, store.Wrap("commit change", err)
	}
	return c, nil
}

func (s *Store) ChangesSince(ctx context.Context, userID string, after int64, limit int) ([]model.SyncChange, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT `+changeCols+`
		FROM sync_change
		WHERE user_id = $1 AND cursor > $2
		ORDER BY cursor
		LIMIT $3
	`, userID, after, limit)
	if err != nil {
		return nil, store.Wrap("changes since", err)
	}
	out, err := collectChanges(rows)
	return out, store.Wrap("changes since", err)
}

func (s *Store) ChangesForItem(ctx context.Context, userID string, itemID uuid.UUID, after int64) ([]model.SyncChange, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT `+changeCols+`
		FROM sync_change
		WHERE user_id = $1 AND item_id = $2 AND cursor > $3
		ORDER BY cursor
	`, userID, itemID, after)
	if err != nil {
		return nil, store.Wrap("changes for item", err)
	}
	out, err := collectChanges(rows)
	return out, store.Wrap("changes for item", err)
}

func (s *Store) FindChangeByClientID(ctx context.Context, userID, clientChangeID string) (model.SyncChange, error) {
	var cur int64
	err := s.DB.QueryRow(ctx,
		`SELECT cursor FROM sync_client_change WHERE user_id = $1 AND client_change_id = $2`,
		userID, clientChangeID).Scan(&cur)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.SyncChange{}, store.ErrNotFound
	}
	if err != nil {
		return model.SyncChange{}, store.Wrap("find client change id", err)
	}

	c, err := scanChange(s.DB.QueryRow(ctx,
		`SELECT `+changeCols+` FROM sync_change WHERE user_id = $1 AND cursor = $2`,
		userID, cur))
	if errors.Is(err, pgx.ErrNoRows) {
		// Pruned; the key still counts as seen
		return model.SyncChange{UserID: userID, Cursor: cur, ClientChangeID: &clientChangeID}, nil
	}
	return c, store.Wrap("find change", err)
}

func (s *Store) PruneChanges(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.DB.Exec(ctx, `
		DELETE FROM sync_change c
		WHERE c.ts < $1
		  AND c.cursor < (
			SELECT MAX(n.cursor) FROM sync_change n
			WHERE n.user_id = c.user_id AND n.item_id = c.item_id
		  )
	`, before)
	if err != nil {
		return 0, store.Wrap("prune changes", err)
	}
	log.Ctx(ctx).Debug().Int64("rows", tag.RowsAffected()).Time("before", before).Msg("pruned change log")
	return tag.RowsAffected(), nil
}

// Conflicts

func (s *Store) InsertConflict(ctx context.Context, c model.SyncConflict) (model.SyncConflict, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	local, err := json.Marshal(c.LocalChange)
	if err != nil {
		return model.SyncConflict{}, err
	}
	remote, err := json.Marshal(c.RemoteChange)
	if err != nil {
		return model.SyncConflict{}, err
	}

	_, err = s.DB.Exec(ctx, `
		INSERT INTO sync_conflict (id, user_id, item_id, local_change, remote_change, conflict_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, c.ID, c.UserID, c.ItemID, local, remote, c.ConflictType.String(), c.CreatedAt)
	if err != nil {
		return model.SyncConflict{}, store.Wrap("insert conflict", err)
	}
	return c, nil
}

func (s *Store) GetConflict(ctx context.Context, id uuid.UUID) (model.SyncConflict, error) {
	c, err := scanConflict(s.DB.QueryRow(ctx,
		`SELECT `+conflictCols+` FROM sync_conflict WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.SyncConflict{}, store.ErrNotFound
	}
	return c, store.Wrap("get conflict", err)
}

func (s *Store) PendingConflicts(ctx context.Context, userID string) ([]model.SyncConflict, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT `+conflictCols+`
		FROM sync_conflict
		WHERE user_id = $1 AND resolved_at IS NULL
		ORDER BY created_at, id
	`, userID)
	if err != nil {
		return nil, store.Wrap("pending conflicts", err)
	}
	defer rows.Close()

	out := make([]model.SyncConflict, 0)
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, store.Wrap("pending conflicts", err)
		}
		out = append(out, c)
	}
	return out, store.Wrap("pending conflicts", rows.Err())
}

func (s *Store) ResolveConflict(ctx context.Context, id uuid.UUID, r model.Resolution, at time.Time) (model.SyncConflict, error) {
	// Conditional write: only a pending conflict can be resolved
	c, err := scanConflict(s.DB.QueryRow(ctx, `
		UPDATE sync_conflict SET resolved_at = $2, resolution = $3
		WHERE id = $1 AND resolved_at IS NULL
		RETURNING `+conflictCols,
		id, at, r.String()))
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return model.SyncConflict{}, store.Wrap("resolve conflict", err)
	}

	// Nothing updated: either missing or already resolved
	var exists bool
	if err := s.DB.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM sync_conflict WHERE id = $1)`, id).Scan(&exists); err != nil {
		return model.SyncConflict{}, store.Wrap("resolve conflict", err)
	}
	if !exists {
		return model.SyncConflict{}, store.ErrNotFound
	}
	return model.SyncConflict{}, store.ErrAlreadyResolved
}

func (s *Store) PruneResolvedConflicts(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.DB.Exec(ctx,
		`DELETE FROM sync_conflict WHERE resolved_at IS NOT NULL AND resolved_at < $1`, before)
	if err != nil {
		return 0, store.Wrap("prune conflicts", err)
	}
	return tag.RowsAffected(), nil
}
