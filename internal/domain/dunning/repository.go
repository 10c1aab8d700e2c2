package dunning

import (
	"context"

	"github.com/google/uuid"
)

// CaseRepository is the persistence contract for dunning cases
type CaseRepository interface {
	FindByInvoice(ctx context.Context, invoiceID uuid.UUID) (*Case, error)
	FindOpenByOrg(ctx context.Context, orgID uuid.UUID) ([]Case, error)
	Save(ctx context.Context, c *Case) error
	Update(ctx context.Context, c *Case) error
}
