package httpapi

import (
	"net/http"
	"strconv"

	"github.com/erauner12/toolbridge-sync/internal/syncx"
)

// Signature handles GET /v1/sync/signature?itemId=&versionNumber=&blockSize=
// An empty block list means the client should transfer the whole file
func (s *Server) Signature(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	itemID, ok := syncx.ParseUUID(q.Get("itemId"))
	if !ok {
		writeError(w, r, http.StatusBadRequest, "invalid itemId")
		return
	}
	version, err := strconv.Atoi(q.Get("versionNumber"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid versionNumber")
		return
	}
	blockSize := 0
	if bs := q.Get("blockSize"); bs != "" {
		if blockSize, err = strconv.Atoi(bs); err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid blockSize")
			return
		}
	}

	sig, err := s.Sync.GenerateFileSignature(ctx, itemID, version, blockSize)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sig)
}
