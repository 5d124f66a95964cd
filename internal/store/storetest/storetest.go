// Package storetest is a conformance suite run against every store.Store implementation.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/erauner12/toolbridge-sync/internal/model"
	"github.com/erauner12/toolbridge-sync/internal/store"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) store.Store

var base = time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC)

func strp(s string) *string { return &s }

// Run executes the suite. Subtests run sequentially so factories may reuse a database.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(*testing.T, store.Store)
	}{
		{"device upsert is idempotent", testDeviceUpsert},
		{"device lifecycle", testDeviceLifecycle},
		{"cursor starts at zero and increases", testCursorMonotonic},
		{"concurrent appends get unique cursors", testConcurrentAppend},
		{"cursors are independent per user", testCursorPerUser},
		{"changes since pages in order", testChangesSince},
		{"changes for item", testChangesForItem},
		{"duplicate client change id", testDuplicateClientID},
		{"client change id survives prune", testDuplicateClientIDAfterPrune},
		{"conflict resolve is one-shot", testConflictResolve},
		{"prune keeps newest change per item", testPrune},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			defer s.Close()
			tt.fn(t, s)
		})
	}
}

func newDevice(userID, deviceID, name string, typ model.DeviceType, at time.Time) model.SyncDevice {
	return model.SyncDevice{
		UserID:     userID,
		DeviceID:   deviceID,
		DeviceName: name,
		DeviceType: typ,
		IsActive:   true,
		CreatedAt:  at,
		UpdatedAt:  at,
	}
}

func newChange(userID string, item uuid.UUID, ct model.ChangeType, device string, at time.Time) model.SyncChange {
	return model.SyncChange{
		ItemID:     item,
		ChangeType: ct,
		UserID:     userID,
		DeviceID:   strp(device),
		Timestamp:  at,
	}
}

func mustAppend(t *testing.T, s store.Store, c model.SyncChange) model.SyncChange {
	t.Helper()
	out, err := s.AppendChange(context.Background(), c)
	if err != nil {
		t.Fatalf("AppendChange: %v", err)
	}
	return out
}

func testDeviceUpsert(t *testing.T, s store.Store) {
	ctx := context.Background()

	first, err := s.UpsertDevice(ctx, newDevice("u1", "dev-1", "Laptop", model.DeviceDesktopMac, base))
	if err != nil {
		t.Fatalf("UpsertDevice: %v", err)
	}
	if err := s.SetDeviceActive(ctx, "u1", "dev-1", false, base.Add(time.Minute)); err != nil {
		t.Fatalf("SetDeviceActive: %v", err)
	}

	second, err := s.UpsertDevice(ctx, newDevice("u1", "dev-1", "Work Laptop", model.DeviceDesktopLinux, base.Add(2*time.Minute)))
	if err != nil {
		t.Fatalf("UpsertDevice again: %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("re-registration created a new row: %v != %v", second.ID, first.ID)
	}
	if second.DeviceName != "Work Laptop" || second.DeviceType != model.DeviceDesktopLinux {
		t.Errorf("second registration did not win: %+v", second)
	}
	if !second.IsActive {
		t.Error("re-registration must reactivate")
	}
	if !second.CreatedAt.Equal(base) {
		t.Errorf("createdAt changed: %v", second.CreatedAt)
	}

	all, err := s.ListDevices(ctx, "u1", false)
	if err != nil {
		t.Fatalf("ListDevices: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("expected 1 device, got %d", len(all))
	}
}

func testDeviceLifecycle(t *testing.T, s store.Store) {
	ctx := context.Background()

	for i, id := range []string{"a", "b", "c"} {
		if _, err := s.UpsertDevice(ctx, newDevice("u1", id, id, model.DeviceWeb, base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("UpsertDevice %s: %v", id, err)
		}
	}
	if _, err := s.UpsertDevice(ctx, newDevice("u2", "a", "other user", model.DeviceCLI, base)); err != nil {
		t.Fatalf("UpsertDevice u2: %v", err)
	}

	if err := s.SetDeviceActive(ctx, "u1", "b", false, base.Add(time.Hour)); err != nil {
		t.Fatalf("SetDeviceActive: %v", err)
	}
	active, err := s.ListDevices(ctx, "u1", true)
	if err != nil {
		t.Fatalf("ListDevices: %v", err)
	}
	if len(active) != 2 || active[0].DeviceID != "a" || active[1].DeviceID != "c" {
		t.Errorf("unexpected active devices: %+v", active)
	}

	if err := s.RecordDeviceSync(ctx, "u1", "a", base.Add(2*time.Hour), 42, 40); err != nil {
		t.Fatalf("RecordDeviceSync: %v", err)
	}
	d, err := s.GetDevice(ctx, "u1", "a")
	if err != nil {
		t.Fatalf("GetDevice: %v", err)
	}
	if d.LastSyncCursor != 42 || d.RemovalCursor != 40 || d.LastSyncAt == nil || !d.LastSyncAt.Equal(base.Add(2*time.Hour)) {
		t.Errorf("sync bookkeeping not stored: %+v", d)
	}

	if err := s.DeleteDevice(ctx, "u1", "c"); err != nil {
		t.Fatalf("DeleteDevice: %v", err)
	}
	if _, err := s.GetDevice(ctx, "u1", "c"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetDevice after delete = %v, want ErrNotFound", err)
	}
	if err := s.DeleteDevice(ctx, "u1", "c"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second delete = %v, want ErrNotFound", err)
	}
	if err := s.SetDeviceActive(ctx, "u1", "zzz", false, base); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("SetDeviceActive(missing) = %v, want ErrNotFound", err)
	}
	if err := s.RecordDeviceSync(ctx, "u1", "zzz", base, 1, 1); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("RecordDeviceSync(missing) = %v, want ErrNotFound", err)
	}

	// Other user's device with the same id is untouched
	other, err := s.GetDevice(ctx, "u2", "a")
	if err != nil || other.DeviceName != "other user" {
		t.Errorf("u2 device = %+v, %v", other, err)
	}
}

func testCursorMonotonic(t *testing.T, s store.Store) {
	ctx := context.Background()

	cur, err := s.CurrentCursor(ctx, "u1")
	if err != nil {
		t.Fatalf("CurrentCursor: %v", err)
	}
	if cur != 0 {
		t.Fatalf("fresh user cursor = %d, want 0", cur)
	}

	item := uuid.New()
	var last int64
	for i := 0; i < 5; i++ {
		c := mustAppend(t, s, newChange("u1", item, model.ChangeModify, "dev-1", base))
		if c.Cursor <= last {
			t.Fatalf("cursor %d not greater than %d", c.Cursor, last)
		}
		last = c.Cursor
	}

	cur, err = s.CurrentCursor(ctx, "u1")
	if err != nil {
		t.Fatalf("CurrentCursor: %v", err)
	}
	if cur != last {
		t.Errorf("watermark = %d, want %d", cur, last)
	}
}

func testConcurrentAppend(t *testing.T, s store.Store) {
	const writers, perWriter = 8, 10
	ctx := context.Background()

	cursors := make([][]int64, writers)
	var g errgroup.Group
	for w := 0; w < writers; w++ {
		w := w
		g.Go(func() error {
			device := fmt.Sprintf("dev-%d", w)
			for i := 0; i < perWriter; i++ {
				c, err := s.AppendChange(ctx, newChange("u1", uuid.New(), model.ChangeCreate, device, base))
				if err != nil {
					return err
				}
				cursors[w] = append(cursors[w], c.Cursor)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent append: %v", err)
	}

	var all []int64
	for _, cs := range cursors {
		for i := 1; i < len(cs); i++ {
			if cs[i] <= cs[i-1] {
				t.Errorf("writer saw non-increasing cursors %v", cs)
			}
		}
		all = append(all, cs...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })
	for i, c := range all {
		if c != int64(i+1) {
			t.Fatalf("cursor set not 1..%d without duplicates: %v", writers*perWriter, all)
		}
	}
}

func testCursorPerUser(t *testing.T, s store.Store) {
	item := uuid.New()
	a := mustAppend(t, s, newChange("alice", item, model.ChangeCreate, "d", base))
	b := mustAppend(t, s, newChange("bob", item, model.ChangeCreate, "d", base))
	a2 := mustAppend(t, s, newChange("alice", item, model.ChangeModify, "d", base))

	if a.Cursor != 1 || b.Cursor != 1 || a2.Cursor != 2 {
		t.Errorf("per-user cursors = alice %d,%d bob %d; want 1,2 and 1", a.Cursor, a2.Cursor, b.Cursor)
	}
}

func testChangesSince(t *testing.T, s store.Store) {
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		c := newChange("u1", uuid.New(), model.ChangeCreate, "dev-1", base.Add(time.Duration(i)*time.Second))
		c.NewPath = strp(fmt.Sprintf("/docs/%d.txt", i))
		mustAppend(t, s, c)
	}
	mustAppend(t, s, newChange("u2", uuid.New(), model.ChangeCreate, "dev-9", base))

	page, err := s.ChangesSince(ctx, "u1", 3, 4)
	if err != nil {
		t.Fatalf("ChangesSince: %v", err)
	}
	if len(page) != 4 {
		t.Fatalf("page size %d, want 4", len(page))
	}
	for i, c := range page {
		if c.Cursor != int64(4+i) {
			t.Errorf("page[%d].Cursor = %d, want %d", i, c.Cursor, 4+i)
		}
		if c.UserID != "u1" {
			t.Errorf("leaked change from %s", c.UserID)
		}
	}
	if page[0].NewPath == nil || *page[0].NewPath != "/docs/3.txt" {
		t.Errorf("newPath not round-tripped: %v", page[0].NewPath)
	}

	// Completeness: since(c1) == (c1, c2] ++ since(c2)
	all, _ := s.ChangesSince(ctx, "u1", 0, 1000)
	tail, _ := s.ChangesSince(ctx, "u1", 6, 1000)
	if len(all) != 10 || len(tail) != 4 {
		t.Fatalf("len(all)=%d len(tail)=%d", len(all), len(tail))
	}
	for i := range tail {
		if tail[i].ID != all[6+i].ID {
			t.Errorf("tail[%d] differs from all[%d]", i, 6+i)
		}
	}

	empty, err := s.ChangesSince(ctx, "u1", 10, 100)
	if err != nil || len(empty) != 0 {
		t.Errorf("ChangesSince past watermark = %v, %v", empty, err)
	}
}

func testChangesForItem(t *testing.T, s store.Store) {
	ctx := context.Background()
	item, other := uuid.New(), uuid.New()
	parent := uuid.New()

	c := newChange("u1", item, model.ChangeCreate, "dev-1", base)
	c.ParentID = &parent
	c.Checksum = strp("abc")
	mustAppend(t, s, c)
	mustAppend(t, s, newChange("u1", other, model.ChangeCreate, "dev-1", base))
	mustAppend(t, s, newChange("u1", item, model.ChangeModify, "dev-2", base))
	mustAppend(t, s, newChange("u2", item, model.ChangeModify, "dev-3", base))

	got, err := s.ChangesForItem(ctx, "u1", item, 0)
	if err != nil {
		t.Fatalf("ChangesForItem: %v", err)
	}
	if len(got) != 2 || got[0].Cursor != 1 || got[1].Cursor != 3 {
		t.Fatalf("unexpected item history: %+v", got)
	}
	if got[0].ParentID == nil || *got[0].ParentID != parent {
		t.Errorf("parentId not round-tripped: %v", got[0].ParentID)
	}
	if !got[1].FromDevice("dev-2") {
		t.Errorf("deviceId not round-tripped: %v", got[1].DeviceID)
	}

	since, err := s.ChangesForItem(ctx, "u1", item, 1)
	if err != nil || len(since) != 1 || since[0].ChangeType != model.ChangeModify {
		t.Errorf("ChangesForItem(after=1) = %+v, %v", since, err)
	}
}

func testDuplicateClientID(t *testing.T, s store.Store) {
	ctx := context.Background()

	c := newChange("u1", uuid.New(), model.ChangeModify, "dev-1", base)
	c.ClientChangeID = strp("op-1")
	first := mustAppend(t, s, c)

	c.ID = uuid.Nil
	if _, err := s.AppendChange(ctx, c); !errors.Is(err, store.ErrDuplicateChange) {
		t.Fatalf("second append = %v, want ErrDuplicateChange", err)
	}

	cur, _ := s.CurrentCursor(ctx, "u1")
	if cur != first.Cursor {
		t.Errorf("duplicate consumed a cursor: watermark %d, want %d", cur, first.Cursor)
	}

	found, err := s.FindChangeByClientID(ctx, "u1", "op-1")
	if err != nil || found.Cursor != first.Cursor {
		t.Errorf("FindChangeByClientID = %+v, %v", found, err)
	}
	if _, err := s.FindChangeByClientID(ctx, "u1", "op-2"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("FindChangeByClientID(missing) = %v", err)
	}

	// Same key for another user is a different change
	c.UserID = "u2"
	if _, err := s.AppendChange(ctx, c); err != nil {
		t.Errorf("same key for another user: %v", err)
	}
}

func testDuplicateClientIDAfterPrune(t *testing.T, s store.Store) {
	ctx := context.Background()
	item := uuid.New()

	old := newChange("u1", item, model.ChangeModify, "dev-1", base.Add(-90*24*time.Hour))
	old.ClientChangeID = strp("op-1")
	first := mustAppend(t, s, old)
	mustAppend(t, s, newChange("u1", item, model.ChangeModify, "dev-2", base))

	n, err := s.PruneChanges(ctx, base.Add(-30*24*time.Hour))
	if err != nil {
		t.Fatalf("PruneChanges: %v", err)
	}
	if n != 1 {
		t.Fatalf("pruned %d changes, want 1", n)
	}

	found, err := s.FindChangeByClientID(ctx, "u1", "op-1")
	if err != nil {
		t.Fatalf("FindChangeByClientID after prune: %v", err)
	}
	if found.Cursor != first.Cursor || found.ClientChangeID == nil || *found.ClientChangeID != "op-1" {
		t.Errorf("FindChangeByClientID after prune = %+v", found)
	}

	old.ID = uuid.Nil
	if _, err := s.AppendChange(ctx, old); !errors.Is(err, store.ErrDuplicateChange) {
		t.Errorf("retry after prune = %v, want ErrDuplicateChange", err)
	}
	if cur, _ := s.CurrentCursor(ctx, "u1"); cur != 2 {
		t.Errorf("watermark = %d, want 2", cur)
	}
}

func testConflictResolve(t *testing.T, s store.Store) {
	ctx := context.Background()
	item := uuid.New()
	local := mustAppend(t, s, newChange("u1", item, model.ChangeModify, "dev-2", base))
	remote := mustAppend(t, s, newChange("u1", item, model.ChangeModify, "dev-1", base))

	c, err := s.InsertConflict(ctx, model.SyncConflict{
		ItemID:       item,
		UserID:       "u1",
		LocalChange:  local,
		RemoteChange: remote,
		ConflictType: model.ConflictEdit,
		CreatedAt:    base,
	})
	if err != nil {
		t.Fatalf("InsertConflict: %v", err)
	}

	got, err := s.GetConflict(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetConflict: %v", err)
	}
	if !got.IsPending() || got.ConflictType != model.ConflictEdit || got.RemoteChange.ID != remote.ID {
		t.Errorf("stored conflict mismatch: %+v", got)
	}

	pending, err := s.PendingConflicts(ctx, "u1")
	if err != nil || len(pending) != 1 {
		t.Fatalf("PendingConflicts = %d, %v", len(pending), err)
	}
	if others, _ := s.PendingConflicts(ctx, "u2"); len(others) != 0 {
		t.Errorf("conflict leaked to u2")
	}

	resolved, err := s.ResolveConflict(ctx, c.ID, model.ResolutionKeepRemote, base.Add(time.Minute))
	if err != nil {
		t.Fatalf("ResolveConflict: %v", err)
	}
	if resolved.IsPending() || *resolved.Resolution != model.ResolutionKeepRemote {
		t.Errorf("resolution not applied: %+v", resolved)
	}

	if _, err := s.ResolveConflict(ctx, c.ID, model.ResolutionKeepLocal, base.Add(2*time.Minute)); !errors.Is(err, store.ErrAlreadyResolved) {
		t.Errorf("second resolve = %v, want ErrAlreadyResolved", err)
	}
	again, _ := s.GetConflict(ctx, c.ID)
	if again.Resolution == nil || *again.Resolution != model.ResolutionKeepRemote {
		t.Errorf("resolution was overwritten: %+v", again.Resolution)
	}

	if _, err := s.ResolveConflict(ctx, uuid.New(), model.ResolutionKeepLocal, base); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("resolve missing = %v, want ErrNotFound", err)
	}
	if pending, _ := s.PendingConflicts(ctx, "u1"); len(pending) != 0 {
		t.Errorf("resolved conflict still pending")
	}
}

func testPrune(t *testing.T, s store.Store) {
	ctx := context.Background()
	old := base.Add(-60 * 24 * time.Hour)
	horizon := base.Add(-30 * 24 * time.Hour)

	// Three items, five old changes each: four superseded rows per item
	items := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for _, item := range items {
		for i := 0; i < 5; i++ {
			mustAppend(t, s, newChange("u1", item, model.ChangeModify, "dev-1", old.Add(time.Duration(i)*time.Minute)))
		}
	}
	// Recent change on a fresh item stays
	fresh := mustAppend(t, s, newChange("u1", uuid.New(), model.ChangeCreate, "dev-1", base))

	for i := 0; i < 4; i++ {
		c, err := s.InsertConflict(ctx, model.SyncConflict{
			ItemID: items[0], UserID: "u1", ConflictType: model.ConflictEdit, CreatedAt: old,
			LocalChange: model.SyncChange{ItemID: items[0]}, RemoteChange: model.SyncChange{ItemID: items[0]},
		})
		if err != nil {
			t.Fatalf("InsertConflict: %v", err)
		}
		if _, err := s.ResolveConflict(ctx, c.ID, model.ResolutionKeepBoth, old.Add(time.Hour)); err != nil {
			t.Fatalf("ResolveConflict: %v", err)
		}
	}
	// Pending and recently resolved conflicts stay
	if _, err := s.InsertConflict(ctx, model.SyncConflict{
		ItemID: items[1], UserID: "u1", ConflictType: model.ConflictEdit, CreatedAt: old,
		LocalChange: model.SyncChange{ItemID: items[1]}, RemoteChange: model.SyncChange{ItemID: items[1]},
	}); err != nil {
		t.Fatalf("InsertConflict: %v", err)
	}

	changes, err := s.PruneChanges(ctx, horizon)
	if err != nil {
		t.Fatalf("PruneChanges: %v", err)
	}
	conflicts, err := s.PruneResolvedConflicts(ctx, horizon)
	if err != nil {
		t.Fatalf("PruneResolvedConflicts: %v", err)
	}
	if changes != 12 || conflicts != 4 {
		t.Errorf("pruned %d changes and %d conflicts, want 12 and 4", changes, conflicts)
	}

	for _, item := range items {
		left, err := s.ChangesForItem(ctx, "u1", item, 0)
		if err != nil {
			t.Fatalf("ChangesForItem: %v", err)
		}
		if len(left) != 1 {
			t.Errorf("item %v kept %d changes, want 1", item, len(left))
		}
	}
	all, _ := s.ChangesSince(ctx, "u1", 0, 100)
	if len(all) != 4 || all[3].ID != fresh.ID {
		t.Errorf("unexpected survivors: %d", len(all))
	}
	if pending, _ := s.PendingConflicts(ctx, "u1"); len(pending) != 1 {
		t.Errorf("pending conflict was pruned")
	}

	// Watermark survives pruning and a rerun removes nothing
	if cur, _ := s.CurrentCursor(ctx, "u1"); cur != 16 {
		t.Errorf("watermark after prune = %d, want 16", cur)
	}
	again, _ := s.PruneChanges(ctx, horizon)
	if again != 0 {
		t.Errorf("second prune removed %d rows", again)
	}
}
