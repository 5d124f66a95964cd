package httpapi

import (
	"fmt"
	"net/http"

	"github.com/erauner12/toolbridge-sync/internal/auth"
	"github.com/erauner12/toolbridge-sync/internal/model"
	"github.com/erauner12/toolbridge-sync/internal/service/syncservice"
	"github.com/erauner12/toolbridge-sync/internal/syncx"
	"github.com/rs/zerolog/log"
)

// pushReq is the request body for POST /v1/sync/push
type pushReq struct {
	DeviceID string           `json:"deviceId"`
	Changes  []map[string]any `json:"changes"`
}

// pushResp lists the conflicts raised by the pushed changes
type pushResp struct {
	Conflicts []model.SyncConflict `json:"conflicts"`
}

type cursorResp struct {
	Cursor int64 `json:"cursor"`
}

// Pull handles GET /v1/sync/pull?deviceId=&cursor=&limit=&includeDeleted=
// Returns changes after the cursor plus all pending conflicts
func (s *Server) Pull(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	cursor, err := syncx.ParseCursor(q.Get("cursor"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	req := model.SyncRequest{
		DeviceID:       deviceOrHeader(ctx, q.Get("deviceId")),
		Cursor:         cursor,
		Limit:          syncx.ParseLimit(q.Get("limit"), model.DefaultPageLimit, syncservice.MaxPageLimit),
		IncludeDeleted: syncx.ParseBool(q.Get("includeDeleted"), false),
	}
	if req.DeviceID == "" {
		writeError(w, r, http.StatusBadRequest, "deviceId is required")
		return
	}

	resp, err := s.Sync.Sync(ctx, req, auth.UserID(ctx))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Push handles POST /v1/sync/push
// Every change is logged; conflicting ones additionally produce a conflict record
func (s *Server) Push(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req pushReq
	if err := decodeJSON(w, r, &req); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("invalid push request body")
		writeError(w, r, http.StatusBadRequest, "invalid json")
		return
	}

	inputs := make([]model.RecordChangeInput, 0, len(req.Changes))
	for i, item := range req.Changes {
		in, err := syncx.ExtractChange(item)
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Int("index", i).Msg("failed to extract change")
			writeError(w, r, http.StatusBadRequest, fmt.Sprintf("change %d: %v", i, err))
			return
		}
		inputs = append(inputs, in)
	}

	deviceID := deviceOrHeader(ctx, req.DeviceID)
	if deviceID == "" && len(inputs) > 0 {
		writeError(w, r, http.StatusBadRequest, "deviceId is required")
		return
	}

	conflicts, err := s.Sync.PushChanges(ctx, inputs, deviceID, auth.UserID(ctx))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pushResp{Conflicts: conflicts})
}

// Cursor handles GET /v1/sync/cursor
func (s *Server) Cursor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c, err := s.Sync.CurrentCursor(ctx, auth.UserID(ctx))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cursorResp{Cursor: c})
}
