package syncservice

import (
	"context"
	"errors"
	"testing"

	"github.com/erauner12/toolbridge-sync/internal/model"
)

func TestRegisterDevice_Idempotent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.RegisterDevice(ctx, "dev-1", "Laptop", model.DeviceDesktopMac, testUser)
	if err != nil {
		t.Fatalf("RegisterDevice: %v", err)
	}
	if err := svc.DeactivateDevice(ctx, "dev-1", testUser); err != nil {
		t.Fatalf("DeactivateDevice: %v", err)
	}

	second, err := svc.RegisterDevice(ctx, "dev-1", "Renamed", model.DeviceDesktopLinux, testUser)
	if err != nil {
		t.Fatalf("RegisterDevice again: %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("expected same row, got %v and %v", first.ID, second.ID)
	}
	if second.DeviceName != "Renamed" || second.DeviceType != model.DeviceDesktopLinux || !second.IsActive {
		t.Errorf("re-registration not applied: %+v", second)
	}

	devices, err := svc.ListDevices(ctx, testUser, false)
	if err != nil {
		t.Fatalf("ListDevices: %v", err)
	}
	if len(devices) != 1 {
		t.Errorf("expected 1 device, got %d", len(devices))
	}
}

func TestRegisterDevice_Validation(t *testing.T) {
	svc, _ := newTestService(t)

	tests := []struct {
		name     string
		deviceID string
		typ      model.DeviceType
	}{
		{"empty device id", "", model.DeviceWeb},
		{"blank device id", "   ", model.DeviceWeb},
		{"unknown type", "dev-1", model.DeviceType("TOASTER")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.RegisterDevice(context.Background(), tt.deviceID, "x", tt.typ, testUser)
			if !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("RegisterDevice() error = %v, want ErrInvalidArgument", err)
			}
		})
	}
}

func TestDeviceLifecycle_NotFound(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	mustRegister(t, svc, "dev-1", model.DeviceCLI)

	if err := svc.DeactivateDevice(ctx, "missing", testUser); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("DeactivateDevice(missing) = %v, want ErrItemNotFound", err)
	}
	if err := svc.RemoveDevice(ctx, "missing", testUser); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("RemoveDevice(missing) = %v, want ErrItemNotFound", err)
	}
	// Another user cannot see the device
	if err := svc.RemoveDevice(ctx, "dev-1", "someone-else"); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("RemoveDevice(other user) = %v, want ErrItemNotFound", err)
	}

	if err := svc.RemoveDevice(ctx, "dev-1", testUser); err != nil {
		t.Fatalf("RemoveDevice: %v", err)
	}
	var nf *NotFoundError
	if _, err := svc.GetDevice(ctx, "dev-1", testUser); !errors.As(err, &nf) || nf.Kind != "device" {
		t.Errorf("GetDevice after remove = %v", err)
	}
}

func TestListDevices_ActiveOnly(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	mustRegister(t, svc, "dev-1", model.DeviceDesktopMac)
	mustRegister(t, svc, "dev-2", model.DeviceMobileIOS)
	if err := svc.DeactivateDevice(ctx, "dev-1", testUser); err != nil {
		t.Fatal(err)
	}

	active, err := svc.ListDevices(ctx, testUser, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 || active[0].DeviceID != "dev-2" {
		t.Errorf("active devices = %+v", active)
	}
}
