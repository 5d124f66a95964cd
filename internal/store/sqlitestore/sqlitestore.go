// Package sqlitestore implements store.Store on an embedded SQLite file.
//
// The database is opened with a single connection, so SQLite's one writer at a
// time becomes one statement or transaction at a time. Cursor assignment runs
// the counter increment and the change insert in one transaction.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/erauner12/toolbridge-sync/internal/model"
	"github.com/erauner12/toolbridge-sync/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	_ "modernc.org/sqlite"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS sync_device (
		id               TEXT PRIMARY KEY,
		user_id          TEXT NOT NULL,
		device_id        TEXT NOT NULL,
		device_name      TEXT NOT NULL,
		device_type      TEXT NOT NULL,
		is_active        INTEGER NOT NULL DEFAULT 1,
		last_sync_at     INTEGER,
		last_sync_cursor INTEGER NOT NULL DEFAULT 0,
		removal_cursor   INTEGER NOT NULL DEFAULT 0,
		created_at       INTEGER NOT NULL,
		updated_at       INTEGER NOT NULL,
		UNIQUE (user_id, device_id)
	)`,
	`CREATE TABLE IF NOT EXISTS sync_cursor (
		user_id TEXT PRIMARY KEY,
		cursor  INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sync_change (
		id               TEXT PRIMARY KEY,
		user_id          TEXT NOT NULL,
		item_id          TEXT NOT NULL,
		change_type      TEXT NOT NULL,
		device_id        TEXT,
		ts               INTEGER NOT NULL,
		cursor           INTEGER NOT NULL,
		old_path         TEXT,
		new_path         TEXT,
		checksum         TEXT,
		parent_id        TEXT,
		client_change_id TEXT,
		UNIQUE (user_id, cursor)
	)`,
	`CREATE INDEX IF NOT EXISTS sync_change_item_idx ON sync_change (user_id, item_id, cursor)`,
	`CREATE INDEX IF NOT EXISTS sync_change_ts_idx ON sync_change (ts)`,
	`CREATE TABLE IF NOT EXISTS sync_client_change (
		user_id          TEXT NOT NULL,
		client_change_id TEXT NOT NULL,
		cursor           INTEGER NOT NULL,
		PRIMARY KEY (user_id, client_change_id)
	)`,
	`CREATE TABLE IF NOT EXISTS sync_conflict (
		id            TEXT PRIMARY KEY,
		user_id       TEXT NOT NULL,
		item_id       TEXT NOT NULL,
		local_change  TEXT NOT NULL,
		remote_change TEXT NOT NULL,
		conflict_type TEXT NOT NULL,
		resolved_at   INTEGER,
		resolution    TEXT,
		created_at    INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS sync_conflict_user_idx ON sync_conflict (user_id, resolved_at)`,
}

// Store wraps the database handle
type Store struct {
	db   *sql.DB
	path string
}

var _ store.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and ensures the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("schema statement %d: %w", i, err)
		}
	}

	log.Info().Str("path", path).Msg("sqlite store opened")
	return &Store{db: db, path: path}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Time is stored as Unix nanoseconds.

func toNanos(t time.Time) int64 { return t.UTC().UnixNano() }

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }

func nullTime(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromNanos(n.Int64)
	return &t
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func nullUUID(s sql.NullString) (*uuid.UUID, error) {
	if !s.Valid {
		return nil, nil
	}
	id, err := uuid.Parse(s.String)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func uuidArg(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

func strArg(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

type rowScanner interface {
	Scan(dest ...any) error
}

const deviceCols = `id, user_id, device_id, device_name, device_type, is_active,
	last_sync_at, last_sync_cursor, removal_cursor, created_at, updated_at`

func scanDevice(row rowScanner) (model.SyncDevice, error) {
	var d model.SyncDevice
	var id, deviceType string
	var lastSync sql.NullInt64
	var created, updated int64
	if err := row.Scan(&id, &d.UserID, &d.DeviceID, &d.DeviceName, &deviceType, &d.IsActive,
		&lastSync, &d.LastSyncCursor, &d.RemovalCursor, &created, &updated); err != nil {
		return model.SyncDevice{}, err
	}
	var err error
	if d.ID, err = uuid.Parse(id); err != nil {
		return model.SyncDevice{}, err
	}
	d.DeviceType = model.DeviceType(deviceType)
	d.LastSyncAt = nullTime(lastSync)
	d.CreatedAt = fromNanos(created)
	d.UpdatedAt = fromNanos(updated)
	return d, nil
}

const changeCols = `id, user_id, item_id, change_type, device_id, ts, cursor,
	old_path, new_path, checksum, parent_id, client_change_id`

func scanChange(row rowScanner) (model.SyncChange, error) {
	var c model.SyncChange
	var id, itemID, changeType string
	var deviceID, oldPath, newPath, checksum, parentID, clientID sql.NullString
	var ts int64
	if err := row.Scan(&id, &c.UserID, &itemID, &changeType, &deviceID, &ts, &c.Cursor,
		&oldPath, &newPath, &checksum, &parentID, &clientID); err != nil {
		return model.SyncChange{}, err
	}

	var err error
	if c.ID, err = uuid.Parse(id); err != nil {
		return model.SyncChange{}, err
	}
	if c.ItemID, err = uuid.Parse(itemID); err != nil {
		return model.SyncChange{}, err
	}
	if c.ChangeType, err = model.ParseChangeType(changeType); err != nil {
		return model.SyncChange{}, err
	}
	if c.ParentID, err = nullUUID(parentID); err != nil {
		return model.SyncChange{}, err
	}
	c.DeviceID = nullString(deviceID)
	c.Timestamp = fromNanos(ts)
	c.OldPath = nullString(oldPath)
	c.NewPath = nullString(newPath)
	c.Checksum = nullString(checksum)
	c.ClientChangeID = nullString(clientID)
	return c, nil
}

func collectChanges(rows *sql.Rows) ([]model.SyncChange, error) {
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
	var id, itemID, local, remote, conflictType string
	var resolvedAt sql.NullInt64
	var resolution sql.NullString
	var created int64
	if err := row.Scan(&id, &c.UserID, &itemID, &local, &remote, &conflictType,
		&resolvedAt, &resolution, &created); err != nil {
		return model.SyncConflict{}, err
	}

	var err error
	if c.ID, err = uuid.Parse(id); err != nil {
		return model.SyncConflict{}, err
	}
	if c.ItemID, err = uuid.Parse(itemID); err != nil {
		return model.SyncConflict{}, err
	}
	if err := json.Unmarshal([]byte(local), &c.LocalChange); err != nil {
		return model.SyncConflict{}, err
	}
	if err := json.Unmarshal([]byte(remote), &c.RemoteChange); err != nil {
		return model.SyncConflict{}, err
	}
	if c.ConflictType, err = model.ParseConflictType(conflictType); err != nil {
		return model.SyncConflict{}, err
	}
	c.ResolvedAt = nullTime(resolvedAt)
	if resolution.Valid {
		r, err := model.ParseResolution(resolution.String)
		if err != nil {
			return model.SyncConflict{}, err
		}
		c.Resolution = &r
	}
	c.CreatedAt = fromNanos(created)
	return c, nil
}

// Devices

func (s *Store) UpsertDevice(ctx context.Context, d model.SyncDevice) (model.SyncDevice, error) {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	out, err := scanDevice(s.db.QueryRowContext(ctx, `
		INSERT INTO sync_device (id, user_id, device_id, device_name, device_type, is_active,
			last_sync_cursor, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 1, 0, ?, ?)
		ON CONFLICT (user_id, device_id) DO UPDATE SET
			device_name = excluded.device_name,
			device_type = excluded.device_type,
			is_active   = 1,
			updated_at  = excluded.updated_at
		RETURNING `+deviceCols,
		d.ID.String(), d.UserID, d.DeviceID, d.DeviceName, string(d.DeviceType),
		toNanos(d.CreatedAt), toNanos(d.UpdatedAt)))
	return out, store.Wrap("upsert device", err)
}

func (s *Store) GetDevice(ctx context.Context, userID, deviceID string) (model.SyncDevice, error) {
	d, err := scanDevice(s.db.QueryRowContext(ctx,
		`SELECT `+deviceCols+` FROM sync_device WHERE user_id = ? AND device_id = ?`,
		userID, deviceID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.SyncDevice{}, store.ErrNotFound
	}
	return d, store.Wrap("get device", err)
}

func (s *Store) ListDevices(ctx context.Context, userID string, activeOnly bool) ([]model.SyncDevice, error) {
	query := `SELECT ` + deviceCols + ` FROM sync_device WHERE user_id = ?`
	if activeOnly {
		query += ` AND is_active = 1`
	}
	query += ` ORDER BY created_at, device_id`

	rows, err := s.db.QueryContext(ctx, query, userID)
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

func (s *Store) execOne(ctx context.Context, op, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return store.Wrap(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return store.Wrap(op, err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) SetDeviceActive(ctx context.Context, userID, deviceID string, active bool, at time.Time) error {
	return s.execOne(ctx, "set device active",
		`UPDATE sync_device SET is_active = ?, updated_at = ? WHERE user_id = ? AND device_id = ?`,
		active, toNanos(at), userID, deviceID)
}

func (s *Store) RecordDeviceSync(ctx context.Context, userID, deviceID string, at time.Time, cursor, removalCursor int64) error {
	return s.execOne(ctx, "record device sync",
		`UPDATE sync_device SET last_sync_at = ?, last_sync_cursor = ?, removal_cursor = ?, updated_at = ?
		 WHERE user_id = ? AND device_id = ?`,
		toNanos(at), cursor, removalCursor, toNanos(at), userID, deviceID)
}

func (s *Store) DeleteDevice(ctx context.Context, userID, deviceID string) error {
	return s.execOne(ctx, "delete device",
		`DELETE FROM sync_device WHERE user_id = ? AND device_id = ?`, userID, deviceID)
}

// Change log

func (s *Store) CurrentCursor(ctx context.Context, userID string) (int64, error) {
	var cur int64
	err := s.db.QueryRowContext(ctx, `SELECT cursor FROM sync_cursor WHERE user_id = ?`, userID).Scan(&cur)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return cur, store.Wrap("current cursor", err)
}

func (s *Store) AppendChange(ctx context.Context, c model.SyncChange) (model.SyncChange, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.SyncChange{}, store.Wrap("append change", err)
	}
	defer tx.Rollback()

	if c.ClientChangeID != nil {
		var seen int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM sync_client_change WHERE user_id = ? AND client_change_id = ?`,
			c.UserID, *c.ClientChangeID).Scan(&seen)
		if err != nil {
			return model.SyncChange{}, store.Wrap("append change", err)
		}
		if seen > 0 {
			return model.SyncChange{}, store.ErrDuplicateChange
		}
	}

	if err := tx.QueryRowContext(ctx, `
		INSERT INTO sync_cursor (user_id, cursor) VALUES (?, 1)
		ON CONFLICT (user_id) DO UPDATE SET cursor = cursor + 1
		RETURNING cursor
	`, c.UserID).Scan(&c.Cursor); err != nil {
		return model.SyncChange{}, store.Wrap("assign cursor", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sync_change (id, user_id, item_id, change_type, device_id, ts, cursor,
			old_path, new_path, checksum, parent_id, client_change_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID.String(), c.UserID, c.ItemID.String(), c.ChangeType.String(), strArg(c.DeviceID),
		toNanos(c.Timestamp), c.Cursor, strArg(c.OldPath), strArg(c.NewPath), strArg(c.Checksum),
		uuidArg(c.ParentID), strArg(c.ClientChangeID)); err != nil {
		return model.SyncChange{}, store.Wrap("insert change", err)
	}

	// Client change ids are kept after their change is pruned
	if c.ClientChangeID != nil {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sync_client_change (user_id, client_change_id, cursor) VALUES (?, ?, ?)`,
			c.UserID, *c.ClientChangeID, c.Cursor); err != nil {
			return model.SyncChange{}, store.Wrap("record client change id", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return model.SyncChange{}, store.Wrap("commit change", err)
	}
	return c, nil
}

func (s *Store) ChangesSince(ctx context.Context, userID string, after int64, limit int) ([]model.SyncChange, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+changeCols+`
		FROM sync_change
		WHERE user_id = ? AND cursor > ?
		ORDER BY cursor
		LIMIT ?
	`, userID, after, limit)
	if err != nil {
		return nil, store.Wrap("changes since", err)
	}
	out, err := collectChanges(rows)
	return out, store.Wrap("changes since", err)
}

func (s *Store) ChangesForItem(ctx context.Context, userID string, itemID uuid.UUID, after int64) ([]model.SyncChange, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+changeCols+`
		FROM sync_change
		WHERE user_id = ? AND item_id = ? AND cursor > ?
		ORDER BY cursor
	`, userID, itemID.String(), after)
	if err != nil {
		return nil, store.Wrap("changes for item", err)
	}
	out, err := collectChanges(rows)
	return out, store.Wrap("changes for item", err)
}

func (s *Store) FindChangeByClientID(ctx context.Context, userID, clientChangeID string) (model.SyncChange, error) {
	var cur int64
	err := s.db.QueryRowContext(ctx,
		`SELECT cursor FROM sync_client_change WHERE user_id = ? AND client_change_id = ?`,
		userID, clientChangeID).Scan(&cur)
	if errors.Is(err, sql.ErrNoRows) {
		return model.SyncChange{}, store.ErrNotFound
	}
	if err != nil {
		return model.SyncChange{}, store.Wrap("find client change id", err)
	}

	c, err := scanChange(s.db.QueryRowContext(ctx,
		`SELECT `+changeCols+` FROM sync_change WHERE user_id = ? AND cursor = ?`,
		userID, cur))
	if errors.Is(err, sql.ErrNoRows) {
		// Pruned; the key still counts as seen
		return model.SyncChange{UserID: userID, Cursor: cur, ClientChangeID: &clientChangeID}, nil
	}
	return c, store.Wrap("find change", err)
}

func (s *Store) PruneChanges(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM sync_change
		WHERE ts < ?
		  AND cursor < (
			SELECT MAX(n.cursor) FROM sync_change n
			WHERE n.user_id = sync_change.user_id AND n.item_id = sync_change.item_id
		  )
	`, toNanos(before))
	if err != nil {
		return 0, store.Wrap("prune changes", err)
	}
	n, err := res.RowsAffected()
	return n, store.Wrap("prune changes", err)
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

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sync_conflict (id, user_id, item_id, local_change, remote_change, conflict_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.ID.String(), c.UserID, c.ItemID.String(), string(local), string(remote),
		c.ConflictType.String(), toNanos(c.CreatedAt))
	if err != nil {
		return model.SyncConflict{}, store.Wrap("insert conflict", err)
	}
	return c, nil
}

func (s *Store) GetConflict(ctx context.Context, id uuid.UUID) (model.SyncConflict, error) {
	c, err := scanConflict(s.db.QueryRowContext(ctx,
		`SELECT `+conflictCols+` FROM sync_conflict WHERE id = ?`, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return model.SyncConflict{}, store.ErrNotFound
	}
	return c, store.Wrap("get conflict", err)
}

func (s *Store) PendingConflicts(ctx context.Context, userID string) ([]model.SyncConflict, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+conflictCols+`
		FROM sync_conflict
		WHERE user_id = ? AND resolved_at IS NULL
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
	c, err := scanConflict(s.db.QueryRowContext(ctx, `
		UPDATE sync_conflict SET resolved_at = ?, resolution = ?
		WHERE id = ? AND resolved_at IS NULL
		RETURNING `+conflictCols,
		toNanos(at), r.String(), id.String()))
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return model.SyncConflict{}, store.Wrap("resolve conflict", err)
	}

	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sync_conflict WHERE id = ?`, id.String()).Scan(&n); err != nil {
		return model.SyncConflict{}, store.Wrap("resolve conflict", err)
	}
	if n == 0 {
		return model.SyncConflict{}, store.ErrNotFound
	}
	return model.SyncConflict{}, store.ErrAlreadyResolved
}

func (s *Store) PruneResolvedConflicts(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sync_conflict WHERE resolved_at IS NOT NULL AND resolved_at < ?`, toNanos(before))
	if err != nil {
		return 0, store.Wrap("prune conflicts", err)
	}
	n, err := res.RowsAffected()
	return n, store.Wrap("prune conflicts", err)
}
