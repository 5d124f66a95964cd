package httpapi

import (
	"errors"
	"net/http"

	"github.com/erauner12/toolbridge-sync/internal/service/syncservice"
	"github.com/rs/zerolog/log"
)

type errorBody struct {
	Error         string `json:"error"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// writeError writes a JSON error carrying the request's correlation id
func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	writeJSON(w, code, errorBody{
		Error:         msg,
		CorrelationID: GetCorrelationID(r.Context()),
	})
}

// writeServiceError maps a sync engine failure onto an HTTP status.
// Storage failures are logged and reported without detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, syncservice.ErrItemNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, syncservice.ErrInvalidOperation):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, syncservice.ErrInvalidArgument):
		writeError(w, r, http.StatusBadRequest, err.Error())
	default:
		log.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("sync operation failed")
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
