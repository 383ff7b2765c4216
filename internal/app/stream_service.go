// internal/app/stream_service.go
package app

import (
	"context"
	"fmt"

	"sweep_reminder_bot/internal/domain/stream"

	"github.com/sirupsen/logrus"
)

// StreamService recomputes a subscriber's notification streams whenever
// their selections change. Streams are recomputed from scratch, not patched:
// fresh streams are upserted by stream key (the store preserves created_at
// for keys that survive) and streams whose key no longer appears are deleted.
type StreamService struct {
	streamRepo stream.Repository
	segments   *SegmentCache
	logger     *logrus.Entry
}

func NewStreamService(sr stream.Repository, segments *SegmentCache, logger *logrus.Entry) *StreamService {
	return &StreamService{
		streamRepo: sr,
		segments:   segments,
		logger:     logger,
	}
}

// UpdateSelections replaces the owner's persisted stream set with the one
// derived from the given segment selections and returns the fresh set.
func (s *StreamService) UpdateSelections(ctx context.Context, ownerID int64, segmentIDs []string) ([]stream.NotificationStream, error) {
	segments, err := s.segments.GetByIDs(ctx, segmentIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve selected segments: %w", err)
	}

	fresh := stream.ComputeStreams(ownerID, segments)

	existing, err := s.streamRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list existing streams for owner %d: %w", ownerID, err)
	}

	freshKeys := make(map[string]struct{}, len(fresh))
	for i := range fresh {
		if err := s.streamRepo.Upsert(ctx, &fresh[i]); err != nil {
			return nil, fmt.Errorf("failed to upsert stream %s: %w", fresh[i].StreamKey, err)
		}
		freshKeys[fresh[i].StreamKey] = struct{}{}
	}

	var stale []string
	for _, st := range existing {
		if _, ok := freshKeys[st.StreamKey]; !ok {
			stale = append(stale, st.StreamKey)
		}
	}
	if len(stale) > 0 {
		if err := s.streamRepo.DeleteByKeys(ctx, ownerID, stale); err != nil {
			return nil, fmt.Errorf("failed to delete stale streams for owner %d: %w", ownerID, err)
		}
	}

	s.logger.WithFields(logrus.Fields{
		"owner_id": ownerID,
		"streams":  len(fresh),
		"removed":  len(stale),
	}).Info("Recomputed notification streams")
	return fresh, nil
}

// ListStreams returns the owner's persisted streams.
func (s *StreamService) ListStreams(ctx context.Context, ownerID int64) ([]stream.NotificationStream, error) {
	return s.streamRepo.ListByOwner(ctx, ownerID)
}
