package settlement

import (
	"context"

	"github.com/google/uuid"
)

// RunRepository is the persistence contract for settlement runs
type RunRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Run, error)
	FindByProperty(ctx context.Context, orgID, propertyID uuid.UUID) ([]Run, error)
	Save(ctx context.Context, run *Run) error
	Update(ctx context.Context, run *Run) error
}

// DistributionEntryRepository is the persistence contract for unit shares
type DistributionEntryRepository interface {
	FindByRun(ctx context.Context, runID uuid.UUID) ([]DistributionEntry, error)
	SaveAll(ctx context.Context, entries []DistributionEntry) error
	DeleteByRun(ctx context.Context, runID uuid.UUID) (int64, error)
}
