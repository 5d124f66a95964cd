package syncservice

import (
	"context"
	"errors"
	"strings"

	"github.com/erauner12/toolbridge-sync/internal/model"
	"github.com/erauner12/toolbridge-sync/internal/store"
	"github.com/rs/zerolog/log"
)

const maxDeviceIDLen = 255

// RegisterDevice creates the device or, when (userID, deviceID) already
// exists, renames, retypes and reactivates it.
func (s *Service) RegisterDevice(ctx context.Context, deviceID, deviceName string, deviceType model.DeviceType, userID string) (model.SyncDevice, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return model.SyncDevice{}, &InvalidArgumentError{Field: "deviceId", Reason: "must not be empty"}
	}
	if len(deviceID) > maxDeviceIDLen {
		return model.SyncDevice{}, &InvalidArgumentError{Field: "deviceId", Reason: "too long"}
	}
	if !deviceType.Valid() {
		return model.SyncDevice{}, &InvalidArgumentError{Field: "deviceType", Reason: "unknown device type " + string(deviceType)}
	}
	if strings.TrimSpace(deviceName) == "" {
		deviceName = deviceID
	}

	now := s.now()
	d, err := s.Store.UpsertDevice(ctx, model.SyncDevice{
		UserID:     userID,
		DeviceID:   deviceID,
		DeviceName: deviceName,
		DeviceType: deviceType,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		return model.SyncDevice{}, err
	}

	log.Ctx(ctx).Info().
		Str("user_id", userID).
		Str("device_id", deviceID).
		Str("device_type", string(deviceType)).
		Msg("device registered")
	return d, nil
}

// ListDevices returns the user's devices ordered by registration time.
func (s *Service) ListDevices(ctx context.Context, userID string, activeOnly bool) ([]model.SyncDevice, error) {
	return s.Store.ListDevices(ctx, userID, activeOnly)
}

// GetDevice returns one device of the user.
func (s *Service) GetDevice(ctx context.Context, deviceID, userID string) (model.SyncDevice, error) {
	d, err := s.Store.GetDevice(ctx, userID, deviceID)
	if errors.Is(err, store.ErrNotFound) {
		return model.SyncDevice{}, deviceNotFound(deviceID)
	}
	return d, err
}

// DeactivateDevice marks the device inactive. Its pulls and pushes fail until it re-registers.
func (s *Service) DeactivateDevice(ctx context.Context, deviceID, userID string) error {
	err := s.Store.SetDeviceActive(ctx, userID, deviceID, false, s.now())
	if errors.Is(err, store.ErrNotFound) {
		return deviceNotFound(deviceID)
	}
	if err != nil {
		return err
	}
	log.Ctx(ctx).Info().Str("user_id", userID).Str("device_id", deviceID).Msg("device deactivated")
	return nil
}

// RemoveDevice deletes the registration. Logged changes keep the device id.
func (s *Service) RemoveDevice(ctx context.Context, deviceID, userID string) error {
	err := s.Store.DeleteDevice(ctx, userID, deviceID)
	if errors.Is(err, store.ErrNotFound) {
		return deviceNotFound(deviceID)
	}
	if err != nil {
		return err
	}
	log.Ctx(ctx).Info().Str("user_id", userID).Str("device_id", deviceID).Msg("device removed")
	return nil
}

// activeDevice loads the device and enforces that it may sync.
func (s *Service) activeDevice(ctx context.Context, deviceID, userID string) (model.SyncDevice, error) {
	d, err := s.GetDevice(ctx, deviceID, userID)
	if err != nil {
		return model.SyncDevice{}, err
	}
	if !d.IsActive {
		return model.SyncDevice{}, &InvalidOperationError{Reason: "device not active: " + deviceID}
	}
	return d, nil
}
