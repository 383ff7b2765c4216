// internal/domain/stream/repository.go
package stream

import "context"

// Repository defines persistence operations for notification streams.
type Repository interface {
	// Upsert inserts or updates a stream by its StreamKey. An existing
	// row keeps its created_at; the fresh members/summary replace the old
	// ones. The stream's ID and timestamps are filled in on return.
	Upsert(ctx context.Context, st *NotificationStream) error
	GetByKey(ctx context.Context, streamKey string) (*NotificationStream, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]NotificationStream, error)
	// ListAll returns every persisted stream; the reminder worker sweeps
	// over this set each tick.
	ListAll(ctx context.Context) ([]NotificationStream, error)
	// DeleteByKeys removes an owner's streams whose keys no longer appear
	// in a freshly recomputed set.
	DeleteByKeys(ctx context.Context, ownerID int64, keys []string) error
}
