package job

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the persistence contract for jobs.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Job, error)
	// ClaimNext atomically claims up to limit due jobs for exclusive
	// processing (SELECT ... FOR UPDATE SKIP LOCKED semantics): at most
	// one worker ever sees a given job. An empty result is a normal
	// outcome, not an error.
	ClaimNext(ctx context.Context, limit int) ([]*Job, error)
	Save(ctx context.Context, j *Job) error
	Update(ctx context.Context, j *Job) error
}
