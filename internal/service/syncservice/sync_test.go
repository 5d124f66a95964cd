package syncservice

import (
	"context"
	"errors"
	"testing"

	"github.com/erauner12/toolbridge-sync/internal/model"
	"github.com/google/uuid"
)

func TestSync_PagesThroughLog(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	mustRegister(t, svc, "dev-1", model.DeviceDesktopMac)
	mustRegister(t, svc, "dev-2", model.DeviceMobileIOS)

	for i := 0; i < 5; i++ {
		mustPush(t, svc, "dev-1", change(uuid.New(), model.ChangeCreate))
	}

	resp, err := svc.Sync(ctx, model.SyncRequest{DeviceID: "dev-2", Limit: 2}, testUser)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if len(resp.Changes) != 2 || !resp.HasMore || resp.Cursor != 2 {
		t.Fatalf("first page: %d changes, hasMore=%v, cursor=%d", len(resp.Changes), resp.HasMore, resp.Cursor)
	}

	var seen []int64
	for _, c := range resp.Changes {
		seen = append(seen, c.Cursor)
	}
	for resp.HasMore {
		cur := resp.Cursor
		resp, err = svc.Sync(ctx, model.SyncRequest{DeviceID: "dev-2", Cursor: &cur, Limit: 2}, testUser)
		if err != nil {
			t.Fatalf("Sync: %v", err)
		}
		for _, c := range resp.Changes {
			seen = append(seen, c.Cursor)
		}
	}

	if len(seen) != 5 {
		t.Fatalf("saw %v, want 5 changes", seen)
	}
	for i, c := range seen {
		if c != int64(i+1) {
			t.Errorf("seen[%d] = %d", i, c)
		}
	}
	if resp.Cursor != 5 {
		t.Errorf("final cursor = %d, want watermark 5", resp.Cursor)
	}

	d, _ := svc.GetDevice(ctx, "dev-2", testUser)
	if d.LastSyncCursor != 5 || d.LastSyncAt == nil {
		t.Errorf("device bookkeeping = cursor %d at %v", d.LastSyncCursor, d.LastSyncAt)
	}
}

func TestSync_IncludeDeleted(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	mustRegister(t, svc, "dev-1", model.DeviceDesktopMac)
	item := uuid.New()

	mustPush(t, svc, "dev-1",
		change(item, model.ChangeCreate),
		change(item, model.ChangeModify),
		change(uuid.New(), model.ChangeDelete),
		change(uuid.New(), model.ChangeTrash),
	)

	tests := []struct {
		name           string
		includeDeleted bool
		want           int
	}{
		{"deleted rows filtered", false, 2},
		{"deleted rows included", true, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := svc.Sync(ctx, model.SyncRequest{DeviceID: "dev-1", IncludeDeleted: tt.includeDeleted}, testUser)
			if err != nil {
				t.Fatal(err)
			}
			if len(resp.Changes) != tt.want {
				t.Errorf("got %d changes, want %d", len(resp.Changes), tt.want)
			}
			if resp.Cursor != 4 || resp.HasMore {
				t.Errorf("cursor=%d hasMore=%v, want 4/false", resp.Cursor, resp.HasMore)
			}
		})
	}
}

func TestSync_ReturnsPendingConflicts(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	mustRegister(t, svc, "dev-1", model.DeviceDesktopMac)
	mustRegister(t, svc, "dev-2", model.DeviceMobileIOS)
	mustRegister(t, svc, "dev-3", model.DeviceWeb)
	item := uuid.New()

	mustPush(t, svc, "dev-1", change(item, model.ChangeModify))
	mustPush(t, svc, "dev-2", change(item, model.ChangeDelete))

	resp, err := svc.Sync(ctx, model.SyncRequest{DeviceID: "dev-3", IncludeDeleted: true}, testUser)
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Conflicts) != 1 || resp.Conflicts[0].ConflictType != model.ConflictDeleteEdit {
		t.Errorf("conflicts = %+v", resp.Conflicts)
	}
}

func TestSync_Errors(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	mustRegister(t, svc, "dev-off", model.DeviceCLI)
	mustRegister(t, svc, "dev-1", model.DeviceCLI)
	if err := svc.DeactivateDevice(ctx, "dev-off", testUser); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		req     model.SyncRequest
		wantErr error
	}{
		{"unknown device", model.SyncRequest{DeviceID: "missing"}, ErrItemNotFound},
		{"inactive device", model.SyncRequest{DeviceID: "dev-off"}, ErrInvalidOperation},
		{"negative cursor", model.SyncRequest{DeviceID: "dev-1", Cursor: ptr(int64(-1))}, ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Sync(ctx, tt.req, testUser); !errors.Is(err, tt.wantErr) {
				t.Errorf("Sync() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestChangesSince_Completeness(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	mustRegister(t, svc, "dev-1", model.DeviceDesktopMac)
	for i := 0; i < 8; i++ {
		mustPush(t, svc, "dev-1", change(uuid.New(), model.ChangeCreate))
	}

	for c1 := int64(0); c1 < 8; c1++ {
		for c2 := c1 + 1; c2 <= 8; c2++ {
			from1, _, _ := svc.ChangesSince(ctx, testUser, c1, MaxPageLimit)
			from2, _, _ := svc.ChangesSince(ctx, testUser, c2, MaxPageLimit)
			if int64(len(from1)-len(from2)) != c2-c1 {
				t.Fatalf("since(%d)=%d since(%d)=%d", c1, len(from1), c2, len(from2))
			}
			tail := from1[len(from1)-len(from2):]
			for i := range from2 {
				if tail[i].ID != from2[i].ID {
					t.Fatalf("since(%d) is not a suffix of since(%d)", c2, c1)
				}
			}
		}
	}
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, model.DefaultPageLimit},
		{-5, model.DefaultPageLimit},
		{10, 10},
		{MaxPageLimit + 1, MaxPageLimit},
	}
	for _, tt := range tests {
		if got := clampLimit(tt.in); got != tt.want {
			t.Errorf("clampLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
