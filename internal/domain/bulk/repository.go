package bulk

import (
	"context"

	"github.com/google/uuid"
)

// ImportRunRepository is the persistence contract for import runs
type ImportRunRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*ImportRun, error)
	// FindByRunID resolves the idempotency key within one organization.
	FindByRunID(ctx context.Context, orgID uuid.UUID, runID string) (*ImportRun, error)
	FindByOrg(ctx context.Context, orgID uuid.UUID) ([]ImportRun, error)
	Save(ctx context.Context, run *ImportRun) error
	Update(ctx context.Context, run *ImportRun) error
}
