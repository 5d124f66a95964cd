package syncservice

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// PruneOldData deletes change rows older than the horizon that are not the
// newest change of their item, and conflicts resolved before the horizon.
// It returns the total number of rows removed. Safe to rerun.
func (s *Service) PruneOldData(ctx context.Context, olderThanDays int) (int64, error) {
	if olderThanDays < 1 {
		return 0, &InvalidArgumentError{Field: "olderThanDays", Reason: "must be at least 1"}
	}
	horizon := s.now().Add(-time.Duration(olderThanDays) * 24 * time.Hour)

	changes, err := s.Store.PruneChanges(ctx, horizon)
	if err != nil {
		return 0, err
	}
	conflicts, err := s.Store.PruneResolvedConflicts(ctx, horizon)
	if err != nil {
		return changes, err
	}

	log.Ctx(ctx).Info().
		Time("horizon", horizon).
		Int64("changes", changes).
		Int64("conflicts", conflicts).
		Msg("retention prune complete")
	return changes + conflicts, nil
}
