package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// InvoiceRepository is the persistence contract for invoices
type InvoiceRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	FindOpenByTenant(ctx context.Context, orgID, tenantID uuid.UUID) ([]Invoice, error)
	// FindOverdue returns unpaid invoices whose due date lies before asOf.
	FindOverdue(ctx context.Context, orgID uuid.UUID, asOf time.Time) ([]Invoice, error)
	FindByPeriod(ctx context.Context, orgID uuid.UUID, period Period) ([]Invoice, error)
	Save(ctx context.Context, invoice *Invoice) error
	// Update persists the invoice and fails with ErrConcurrencyConflict
	// when the stored version no longer matches the one read.
	Update(ctx context.Context, invoice *Invoice) error
}

// PaymentRepository is the persistence contract for payments
type PaymentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	FindByTenant(ctx context.Context, orgID, tenantID uuid.UUID) ([]Payment, error)
	FindUnappliedForOrg(ctx context.Context, orgID uuid.UUID, limit int) ([]Payment, error)
	Save(ctx context.Context, payment *Payment) error
	Update(ctx context.Context, payment *Payment) error
}

// AllocationRepository is the persistence contract for allocations
type AllocationRepository interface {
	FindByPayment(ctx context.Context, paymentID uuid.UUID) ([]Allocation, error)
	FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]Allocation, error)
	SaveAll(ctx context.Context, allocations []Allocation) error
	// DeleteByPayment removes all allocations of one payment. Scoping the
	// delete by payment ID only is what makes repair runs idempotent.
	DeleteByPayment(ctx context.Context, paymentID uuid.UUID) (int64, error)
}

// PeriodLockRepository is the persistence contract for period locks
type PeriodLockRepository interface {
	IsLocked(ctx context.Context, orgID uuid.UUID, period Period) (bool, error)
	Save(ctx context.Context, lock *PeriodLock) error
	FindByOrg(ctx context.Context, orgID uuid.UUID) ([]PeriodLock, error)
}
