// internal/domain/segment/repository.go
package segment

import "context"

// Repository reads back the segment catalog written by the ingest job.
// The catalog is config data: this service never writes it.
type Repository interface {
	ListAll(ctx context.Context) ([]Segment, error)
	GetByIDs(ctx context.Context, ids []string) ([]Segment, error)
}
