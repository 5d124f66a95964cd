package httpapi

import (
	"net/http"

	"github.com/erauner12/toolbridge-sync/internal/auth"
	"github.com/erauner12/toolbridge-sync/internal/model"
	"github.com/erauner12/toolbridge-sync/internal/syncx"
	"github.com/go-chi/chi/v5"
)

type registerDeviceReq struct {
	DeviceID   string `json:"deviceId"`
	DeviceName string `json:"deviceName"`
	DeviceType string `json:"deviceType"`
}

type listDevicesResp struct {
	Devices []model.SyncDevice `json:"devices"`
}

// RegisterDevice handles POST /v1/sync/devices
// Re-registering an existing device id renames and reactivates it
func (s *Server) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := auth.UserID(ctx)

	var req registerDeviceReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json")
		return
	}

	deviceType, err := model.ParseDeviceType(req.DeviceType)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	d, err := s.Sync.RegisterDevice(ctx, deviceOrHeader(ctx, req.DeviceID), req.DeviceName, deviceType, userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// ListDevices handles GET /v1/sync/devices?activeOnly=true
func (s *Server) ListDevices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	activeOnly := syncx.ParseBool(r.URL.Query().Get("activeOnly"), false)

	devices, err := s.Sync.ListDevices(ctx, auth.UserID(ctx), activeOnly)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if devices == nil {
		devices = []model.SyncDevice{}
	}
	writeJSON(w, http.StatusOK, listDevicesResp{Devices: devices})
}

// GetDevice handles GET /v1/sync/devices/{deviceId}
func (s *Server) GetDevice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	d, err := s.Sync.GetDevice(ctx, chi.URLParam(r, "deviceId"), auth.UserID(ctx))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// DeactivateDevice handles POST /v1/sync/devices/{deviceId}/deactivate
func (s *Server) DeactivateDevice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.Sync.DeactivateDevice(ctx, chi.URLParam(r, "deviceId"), auth.UserID(ctx)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveDevice handles DELETE /v1/sync/devices/{deviceId}
func (s *Server) RemoveDevice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.Sync.RemoveDevice(ctx, chi.URLParam(r, "deviceId"), auth.UserID(ctx)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
