package syncservice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erauner12/toolbridge-sync/internal/model"
	"github.com/google/uuid"
)

func TestPruneOldData_Scenario(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()
	now := clock.t
	clock.t = now.Add(-60 * 24 * time.Hour)

	mustRegister(t, svc, "dev-1", model.DeviceDesktopMac)
	mustRegister(t, svc, "dev-2", model.DeviceMobileIOS)

	// Two items with five changes each from one device: 8 superseded rows
	quiet := []uuid.UUID{uuid.New(), uuid.New()}
	for _, item := range quiet {
		for i := 0; i < 5; i++ {
			mustPush(t, svc, "dev-1", change(item, model.ChangeModify))
		}
	}

	// One contested item: 4 superseded rows and 4 conflicts
	contested := uuid.New()
	var conflicts []model.SyncConflict
	for i := 0; i < 5; i++ {
		device := "dev-1"
		if i%2 == 1 {
			device = "dev-2"
		}
		conflicts = append(conflicts, mustPush(t, svc, device, change(contested, model.ChangeModify))...)
	}
	if len(conflicts) != 4 {
		t.Fatalf("setup produced %d conflicts, want 4", len(conflicts))
	}
	for _, c := range conflicts {
		if _, err := svc.ResolveConflict(ctx, c.ID, model.ResolutionKeepBoth, testUser); err != nil {
			t.Fatal(err)
		}
	}

	clock.t = now
	removed, err := svc.PruneOldData(ctx, 30)
	if err != nil {
		t.Fatalf("PruneOldData: %v", err)
	}
	if removed != 16 {
		t.Errorf("PruneOldData() = %d, want 16", removed)
	}

	for _, item := range append(quiet, contested) {
		left, err := svc.ChangesForItem(ctx, testUser, item, 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(left) != 1 {
			t.Errorf("item kept %d rows, want 1", len(left))
		}
	}
	if cur, _ := svc.CurrentCursor(ctx, testUser); cur != 15 {
		t.Errorf("watermark = %d, want 15", cur)
	}

	again, err := svc.PruneOldData(ctx, 30)
	if err != nil || again != 0 {
		t.Errorf("second prune = %d, %v", again, err)
	}
}

func TestPruneOldData_RecentDataKept(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	mustRegister(t, svc, "dev-1", model.DeviceWeb)
	item := uuid.New()
	for i := 0; i < 3; i++ {
		mustPush(t, svc, "dev-1", change(item, model.ChangeModify))
	}

	removed, err := svc.PruneOldData(ctx, 1)
	if err != nil || removed != 0 {
		t.Errorf("PruneOldData() = %d, %v", removed, err)
	}
}

func TestPruneOldData_InvalidHorizon(t *testing.T) {
	svc, _ := newTestService(t)
	for _, days := range []int{0, -3} {
		if _, err := svc.PruneOldData(context.Background(), days); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("PruneOldData(%d) error = %v", days, err)
		}
	}
}
