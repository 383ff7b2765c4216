// internal/app/segment_cache.go
package app

import (
	"context"
	"sync"
	"time"

	"sweep_reminder_bot/internal/domain/segment"

	"github.com/sirupsen/logrus"
)

// SegmentCache is an explicitly owned, injectable cache over the ingested
// segment catalog. It is constructed once in main with a configured TTL and
// passed to the services that need it; there is no process-wide state. The
// catalog is config data owned by the ingest job, so serving it slightly
// stale is fine.
type SegmentCache struct {
	repo   segment.Repository
	ttl    time.Duration
	logger *logrus.Entry

	mu       sync.RWMutex
	byID     map[string]segment.Segment
	loadedAt time.Time
}

func NewSegmentCache(repo segment.Repository, ttl time.Duration, logger *logrus.Entry) *SegmentCache {
	return &SegmentCache{
		repo:   repo,
		ttl:    ttl,
		logger: logger,
	}
}

// GetByIDs resolves segment ids through the cache, refreshing the whole
// catalog from the store when the TTL has lapsed. Unknown ids are skipped
// with a warning rather than failing the lookup: a stale selection must not
// block recomputing the subscriber's remaining streams.
func (c *SegmentCache) GetByIDs(ctx context.Context, ids []string) ([]segment.Segment, error) {
	if err := c.refreshIfStale(ctx); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	segments := make([]segment.Segment, 0, len(ids))
	for _, id := range ids {
		seg, ok := c.byID[id]
		if !ok {
			c.logger.WithField("segment_id", id).Warn("Selected segment not present in catalog; skipping")
			continue
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

func (c *SegmentCache) refreshIfStale(ctx context.Context) error {
	c.mu.RLock()
	fresh := c.byID != nil && time.Since(c.loadedAt) < c.ttl
	c.mu.RUnlock()
	if fresh {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.byID != nil && time.Since(c.loadedAt) < c.ttl {
		return nil
	}

	segments, err := c.repo.ListAll(ctx)
	if err != nil {
		// Keep serving the previous catalog if we have one.
		if c.byID != nil {
			c.logger.WithError(err).Warn("Segment catalog refresh failed; serving stale catalog")
			return nil
		}
		return err
	}

	byID := make(map[string]segment.Segment, len(segments))
	for _, seg := range segments {
		byID[seg.ID] = seg
	}
	c.byID = byID
	c.loadedAt = time.Now()
	c.logger.WithField("segments", len(segments)).Debug("Segment catalog refreshed")
	return nil
}
