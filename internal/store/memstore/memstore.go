// Package memstore is an in-process implementation of store.Store.
//
// State is partitioned per user. Each partition has its own mutex, so cursor
// assignment is serialized per user and users never wait on each other.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/erauner12/toolbridge-sync/internal/model"
	"github.com/erauner12/toolbridge-sync/internal/store"
	"github.com/google/uuid"
)

type partition struct {
	mu        sync.Mutex
	cursor    int64
	changes   []model.SyncChange // ascending by cursor
	clientIDs map[string]int64
	devices   map[string]model.SyncDevice
	conflicts map[uuid.UUID]model.SyncConflict
}

// Store keeps everything in memory. The zero value is not usable; call New.
type Store struct {
	mu            sync.Mutex
	users         map[string]*partition
	conflictOwner map[uuid.UUID]string
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:         make(map[string]*partition),
		conflictOwner: make(map[uuid.UUID]string),
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) partition(userID string) *partition {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.users[userID]
	if !ok {
		p = &partition{
			clientIDs: make(map[string]int64),
			devices:   make(map[string]model.SyncDevice),
			conflicts: make(map[uuid.UUID]model.SyncConflict),
		}
		s.users[userID] = p
	}
	return p
}

func (s *Store) partitions() []*partition {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*partition, 0, len(s.users))
	for _, p := range s.users {
		out = append(out, p)
	}
	return out
}

// Devices

func (s *Store) UpsertDevice(ctx context.Context, d model.SyncDevice) (model.SyncDevice, error) {
	if err := ctx.Err(); err != nil {
		return model.SyncDevice{}, err
	}
	p := s.partition(d.UserID)
	p.mu.Lock()
	defer p.mu.Unlock()

	if existing, ok := p.devices[d.DeviceID]; ok {
		existing.DeviceName = d.DeviceName
		existing.DeviceType = d.DeviceType
		existing.IsActive = true
		existing.UpdatedAt = d.UpdatedAt
		p.devices[d.DeviceID] = existing
		return existing, nil
	}

	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	d.IsActive = true
	p.devices[d.DeviceID] = d
	return d, nil
}

func (s *Store) GetDevice(ctx context.Context, userID, deviceID string) (model.SyncDevice, error) {
	if err := ctx.Err(); err != nil {
		return model.SyncDevice{}, err
	}
	p := s.partition(userID)
	p.mu.Lock()
	defer p.mu.Unlock()

	d, ok := p.devices[deviceID]
	if !ok {
		return model.SyncDevice{}, store.ErrNotFound
	}
	return d, nil
}

func (s *Store) ListDevices(ctx context.Context, userID string, activeOnly bool) ([]model.SyncDevice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := s.partition(userID)
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]model.SyncDevice, 0, len(p.devices))
	for _, d := range p.devices {
		if activeOnly && !d.IsActive {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].DeviceID < out[j].DeviceID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) SetDeviceActive(ctx context.Context, userID, deviceID string, active bool, at time.Time) error {
	return s.updateDevice(ctx, userID, deviceID, func(d *model.SyncDevice) {
		d.IsActive = active
		d.UpdatedAt = at
	})
}

func (s *Store) RecordDeviceSync(ctx context.Context, userID, deviceID string, at time.Time, cursor, removalCursor int64) error {
	return s.updateDevice(ctx, userID, deviceID, func(d *model.SyncDevice) {
		t := at
		d.LastSyncAt = &t
		d.LastSyncCursor = cursor
		d.RemovalCursor = removalCursor
		d.UpdatedAt = at
	})
}

func (s *Store) updateDevice(ctx context.Context, userID, deviceID string, fn func(*model.SyncDevice)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p := s.partition(userID)
	p.mu.Lock()
	defer p.mu.Unlock()

	d, ok := p.devices[deviceID]
	if !ok {
		return store.ErrNotFound
	}
	fn(&d)
	p.devices[deviceID] = d
	return nil
}

func (s *Store) DeleteDevice(ctx context.Context, userID, deviceID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p := s.partition(userID)
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.devices[deviceID]; !ok {
		return store.ErrNotFound
	}
	delete(p.devices, deviceID)
	return nil
}

// Change log

func (s *Store) CurrentCursor(ctx context.Context, userID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p := s.partition(userID)
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor, nil
}

func (s *Store) AppendChange(ctx context.Context, c model.SyncChange) (model.SyncChange, error) {
	if err := ctx.Err(); err != nil {
		return model.SyncChange{}, err
	}
	p := s.partition(c.UserID)
	p.mu.Lock()
	defer p.mu.Unlock()

	if c.ClientChangeID != nil {
		if _, dup := p.clientIDs[*c.ClientChangeID]; dup {
			return model.SyncChange{}, store.ErrDuplicateChange
		}
	}

	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	p.cursor++
	c.Cursor = p.cursor
	p.changes = append(p.changes, c)
	if c.ClientChangeID != nil {
		p.clientIDs[*c.ClientChangeID] = c.Cursor
	}
	return c, nil
}

// firstAfter returns the index of the first change with cursor > after.
// Caller holds p.mu.
func (p *partition) firstAfter(after int64) int {
	return sort.Search(len(p.changes), func(i int) bool {
		return p.changes[i].Cursor > after
	})
}

func (s *Store) ChangesSince(ctx context.Context, userID string, after int64, limit int) ([]model.SyncChange, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := s.partition(userID)
	p.mu.Lock()
	defer p.mu.Unlock()

	rest := p.changes[p.firstAfter(after):]
	if limit > 0 && len(rest) > limit {
		rest = rest[:limit]
	}
	out := make([]model.SyncChange, len(rest))
	copy(out, rest)
	return out, nil
}

func (s *Store) ChangesForItem(ctx context.Context, userID string, itemID uuid.UUID, after int64) ([]model.SyncChange, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := s.partition(userID)
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []model.SyncChange
	for _, c := range p.changes[p.firstAfter(after):] {
		if c.ItemID == itemID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) FindChangeByClientID(ctx context.Context, userID, clientChangeID string) (model.SyncChange, error) {
	if err := ctx.Err(); err != nil {
		return model.SyncChange{}, err
	}
	p := s.partition(userID)
	p.mu.Lock()
	defer p.mu.Unlock()

	cur, ok := p.clientIDs[clientChangeID]
	if !ok {
		return model.SyncChange{}, store.ErrNotFound
	}
	i := p.firstAfter(cur - 1)
	if i < len(p.changes) && p.changes[i].Cursor == cur {
		return p.changes[i], nil
	}
	// Logged once but pruned since; the key still counts as seen.
	return model.SyncChange{Cursor: cur, UserID: userID, ClientChangeID: &clientChangeID}, nil
}

func (s *Store) PruneChanges(ctx context.Context, before time.Time) (int64, error) {
	var total int64
	for _, p := range s.partitions() {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		total += p.pruneChanges(before)
	}
	return total, nil
}

func (p *partition) pruneChanges(before time.Time) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	newest := make(map[uuid.UUID]int64, len(p.changes))
	for _, c := range p.changes {
		newest[c.ItemID] = c.Cursor
	}

	kept := p.changes[:0]
	var removed int64
	for _, c := range p.changes {
		if c.Timestamp.Before(before) && newest[c.ItemID] != c.Cursor {
			removed++
			continue
		}
		kept = append(kept, c)
	}
	for i := len(kept); i < len(p.changes); i++ {
		p.changes[i] = model.SyncChange{}
	}
	p.changes = kept
	return removed
}

// Conflicts

func (s *Store) InsertConflict(ctx context.Context, c model.SyncConflict) (model.SyncConflict, error) {
	if err := ctx.Err(); err != nil {
		return model.SyncConflict{}, err
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	p := s.partition(c.UserID)
	p.mu.Lock()
	p.conflicts[c.ID] = c
	p.mu.Unlock()

	s.mu.Lock()
	s.conflictOwner[c.ID] = c.UserID
	s.mu.Unlock()
	return c, nil
}

func (s *Store) owner(id uuid.UUID) (*partition, bool) {
	s.mu.Lock()
	userID, ok := s.conflictOwner[id]
	s.mu.Unlock()
	if !ok {
		return nil, false
	}
	return s.partition(userID), true
}

func (s *Store) GetConflict(ctx context.Context, id uuid.UUID) (model.SyncConflict, error) {
	if err := ctx.Err(); err != nil {
		return model.SyncConflict{}, err
	}
	p, ok := s.owner(id)
	if !ok {
		return model.SyncConflict{}, store.ErrNotFound
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.conflicts[id]
	if !ok {
		return model.SyncConflict{}, store.ErrNotFound
	}
	return c, nil
}

func (s *Store) PendingConflicts(ctx context.Context, userID string) ([]model.SyncConflict, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := s.partition(userID)
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]model.SyncConflict, 0)
	for _, c := range p.conflicts {
		if c.IsPending() {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LocalChange.Cursor < out[j].LocalChange.Cursor
	})
	return out, nil
}

func (s *Store) ResolveConflict(ctx context.Context, id uuid.UUID, r model.Resolution, at time.Time) (model.SyncConflict, error) {
	if err := ctx.Err(); err != nil {
		return model.SyncConflict{}, err
	}
	p, ok := s.owner(id)
	if !ok {
		return model.SyncConflict{}, store.ErrNotFound
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.conflicts[id]
	if !ok {
		return model.SyncConflict{}, store.ErrNotFound
	}
	if !c.IsPending() {
		return model.SyncConflict{}, store.ErrAlreadyResolved
	}
	t := at
	res := r
	c.ResolvedAt = &t
	c.Resolution = &res
	p.conflicts[id] = c
	return c, nil
}

func (s *Store) PruneResolvedConflicts(ctx context.Context, before time.Time) (int64, error) {
	var total int64
	for _, p := range s.partitions() {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		removed := p.pruneConflicts(before)
		s.mu.Lock()
		for _, id := range removed {
			delete(s.conflictOwner, id)
		}
		s.mu.Unlock()
		total += int64(len(removed))
	}
	return total, nil
}

func (p *partition) pruneConflicts(before time.Time) []uuid.UUID {
	p.mu.Lock()
	defer p.mu.Unlock()

	var removed []uuid.UUID
	for id, c := range p.conflicts {
		if c.ResolvedAt != nil && c.ResolvedAt.Before(before) {
			delete(p.conflicts, id)
			removed = append(removed, id)
		}
	}
	return removed
}
