// Package syncservice implements the multi-device sync engine: device
// registry, change log, conflict detection, the pull/push coordinator, block
// signatures and retention. Persistence is delegated to a store.Store.
package syncservice

import (
	"time"

	"github.com/erauner12/toolbridge-sync/internal/blob"
	"github.com/erauner12/toolbridge-sync/internal/store"
)

// MaxPageLimit caps the number of changes returned by a single pull.
const MaxPageLimit = 5000

// Service encapsulates business logic for sync operations
type Service struct {
	Store store.Store
	Blobs blob.Source

	// Now is the clock; tests replace it.
	Now func() time.Time
}

// New creates a Service. blobs may be nil, in which case every signature is empty.
func New(s store.Store, blobs blob.Source) *Service {
	return &Service{
		Store: s,
		Blobs: blobs,
		Now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}
