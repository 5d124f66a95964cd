package syncservice

import (
	"context"
	"testing"
	"time"

	"github.com/erauner12/toolbridge-sync/internal/model"
	"github.com/erauner12/toolbridge-sync/internal/store/memstore"
	"github.com/google/uuid"
)

const testUser = "user-1"

// fakeClock advances one second per call so timestamps are ordered.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestService(t *testing.T) (*Service, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC)}
	svc := New(memstore.New(), nil)
	svc.Now = clock.Now
	return svc, clock
}

func mustRegister(t *testing.T, svc *Service, deviceID string, typ model.DeviceType) model.SyncDevice {
	t.Helper()
	d, err := svc.RegisterDevice(context.Background(), deviceID, deviceID+" name", typ, testUser)
	if err != nil {
		t.Fatalf("RegisterDevice(%s): %v", deviceID, err)
	}
	return d
}

func mustPush(t *testing.T, svc *Service, deviceID string, in ...model.RecordChangeInput) []model.SyncConflict {
	t.Helper()
	conflicts, err := svc.PushChanges(context.Background(), in, deviceID, testUser)
	if err != nil {
		t.Fatalf("PushChanges(%s): %v", deviceID, err)
	}
	return conflicts
}

func change(item uuid.UUID, ct model.ChangeType) model.RecordChangeInput {
	return model.RecordChangeInput{ItemID: item, ChangeType: ct}
}

func ptr[T any](v T) *T { return &v }
