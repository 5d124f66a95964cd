package httpapi

import (
	"net/http"

	"github.com/erauner12/toolbridge-sync/internal/auth"
	"github.com/erauner12/toolbridge-sync/internal/model"
	"github.com/erauner12/toolbridge-sync/internal/service/syncservice"
	"github.com/erauner12/toolbridge-sync/internal/syncx"
	"github.com/go-chi/chi/v5"
)

type resolveReq struct {
	Resolution string `json:"resolution"`
}

type conflictsResp struct {
	Conflicts []model.SyncConflict `json:"conflicts"`
}

type resolveResp struct {
	Conflict model.SyncConflict `json:"conflict"`
	Effect   effectView         `json:"effect"`
}

// effectView tells the client which logged changes survive the resolution.
type effectView struct {
	Action         string  `json:"action"`
	KeepCursors    []int64 `json:"keepCursors"`
	DiscardCursors []int64 `json:"discardCursors"`
}

func viewEffect(e model.Effect) effectView {
	switch e := e.(type) {
	case model.KeepChange:
		return effectView{Action: "KEEP_CHANGE", KeepCursors: []int64{e.Winner.Cursor}, DiscardCursors: []int64{e.Loser.Cursor}}
	case model.KeepBoth:
		return effectView{Action: "KEEP_BOTH", KeepCursors: []int64{e.Local.Cursor, e.Remote.Cursor}, DiscardCursors: []int64{}}
	case model.AwaitMerge:
		return effectView{Action: "AWAIT_MERGE", KeepCursors: []int64{}, DiscardCursors: []int64{}}
	case model.AwaitManual:
		return effectView{Action: "AWAIT_MANUAL", KeepCursors: []int64{}, DiscardCursors: []int64{}}
	}
	return effectView{Action: "NONE", KeepCursors: []int64{}, DiscardCursors: []int64{}}
}

// ListConflicts handles GET /v1/sync/conflicts
func (s *Server) ListConflicts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pending, err := s.Sync.PendingConflicts(ctx, auth.UserID(ctx))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if pending == nil {
		pending = []model.SyncConflict{}
	}
	writeJSON(w, http.StatusOK, conflictsResp{Conflicts: pending})
}

// GetConflict handles GET /v1/sync/conflicts/{conflictId}
func (s *Server) GetConflict(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := syncx.ParseUUID(chi.URLParam(r, "conflictId"))
	if !ok {
		writeError(w, r, http.StatusBadRequest, "invalid conflict id")
		return
	}

	c, err := s.Sync.FindConflict(ctx, id, auth.UserID(ctx))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// ResolveConflict handles POST /v1/sync/conflicts/{conflictId}/resolve
// A conflict can be resolved once; later attempts get 409
func (s *Server) ResolveConflict(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := syncx.ParseUUID(chi.URLParam(r, "conflictId"))
	if !ok {
		writeError(w, r, http.StatusBadRequest, "invalid conflict id")
		return
	}

	var req resolveReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json")
		return
	}
	resolution, err := model.ParseResolution(req.Resolution)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	c, err := s.Sync.ResolveConflict(ctx, id, resolution, auth.UserID(ctx))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	effect, _ := syncservice.ConflictEffect(c)
	writeJSON(w, http.StatusOK, resolveResp{Conflict: c, Effect: viewEffect(effect)})
}
