package record

import "context"

// Repository is the persistence contract for records.  The PostgreSQL
// implementation lives in internal/infrastructure/database/postgres.
type Repository interface {
	// Save inserts or updates a record by ID.
	Save(ctx context.Context, r *Record) error

	// SaveBatch persists a batch of records in one round trip.
	SaveBatch(ctx context.Context, records []*Record) error

	// GetByID returns the record with the given ID, or a REC_001 error.
	GetByID(ctx context.Context, id string) (*Record, error)

	// UpdateCodes replaces the two code sets of an existing record.  Used by
	// the annotation worker after normalization.
	UpdateCodes(ctx context.Context, id string, disease, drug CodeSet) error

	// ListBySource returns records of a single registry in insertion order.
	ListBySource(ctx context.Context, source Source) ([]*Record, error)

	// LoadDataset returns all records as an ordered Dataset; rows where both
	// code sets are empty are included (the grouping layer filters them).
	LoadDataset(ctx context.Context) (*Dataset, error)

	// ListUnannotated returns IDs of records that have no code sets yet.
	ListUnannotated(ctx context.Context, limit int) ([]string, error)
}
