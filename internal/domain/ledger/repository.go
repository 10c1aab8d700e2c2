package ledger

import (
	"context"

	"github.com/google/uuid"
)

// EntryRepository is the persistence contract for ledger entries.
// Entries are append-only: there is no update or delete.
type EntryRepository interface {
	FindByTenant(ctx context.Context, orgID, tenantID uuid.UUID) ([]Entry, error)
	FindIstByPayment(ctx context.Context, paymentID uuid.UUID) (*Entry, error)
	// HasStornoForPayment is the caller-side uniqueness guard: at most one
	// storno may exist per payment reference.
	HasStornoForPayment(ctx context.Context, paymentID uuid.UUID) (bool, error)
	Append(ctx context.Context, entries ...*Entry) error
}

// AuditRepository is the persistence contract for the audit chain
type AuditRepository interface {
	FindChain(ctx context.Context, orgID uuid.UUID) ([]AuditRecord, error)
	// LastHash returns the hash of the newest record for the organization,
	// or empty string when the chain is empty.
	LastHash(ctx context.Context, orgID uuid.UUID) (string, error)
	Append(ctx context.Context, records ...*AuditRecord) error
}
