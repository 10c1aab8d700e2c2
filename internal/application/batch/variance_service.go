package batch

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/immoflow/backend/internal/domain/billing"
	"github.com/immoflow/backend/internal/domain/shared"
)

// VarianceTolerance is the largest absolute difference between an
// invoice's paid amount and the sum of its allocations that still counts
// as clean. One cent absorbs legitimate rounding.
var VarianceTolerance = decimal.NewFromFloat(0.01)

// Variance is one invoice whose paid amount disagrees with its allocations
type Variance struct {
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	AllocatedSum  decimal.Decimal `json:"allocated_sum"`
	Delta         decimal.Decimal `json:"delta"`
}

// VarianceReport is the outcome of one reconciliation pass
type VarianceReport struct {
	OrgID     uuid.UUID  `json:"org_id"`
	Period    string     `json:"period"`
	Checked   int        `json:"checked"`
	Variances []Variance `json:"variances"`
}

// Clean reports whether every checked invoice was within tolerance
func (r *VarianceReport) Clean() bool {
	return len(r.Variances) == 0
}

// VarianceService cross-checks stored paid amounts against the allocation
// table. It only reads; repairing a found variance is the reassignment
// tooling's job.
type VarianceService struct {
	invoiceRepo    billing.InvoiceRepository
	allocationRepo billing.AllocationRepository
	logger         *zap.Logger
}

// NewVarianceService creates a new VarianceService
func NewVarianceService(invoiceRepo billing.InvoiceRepository, allocationRepo billing.AllocationRepository, logger *zap.Logger) *VarianceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VarianceService{
		invoiceRepo:    invoiceRepo,
		allocationRepo: allocationRepo,
		logger:         logger,
	}
}

// Reconcile checks every invoice of one accounting period. With
// excludeSeed set, allocations tagged as initial data load are left out
// of the sum; that isolates drift introduced after the migration.
func (s *VarianceService) Reconcile(ctx context.Context, orgID uuid.UUID, period billing.Period, excludeSeed bool) (*VarianceReport, error) {
	if orgID == uuid.Nil {
		return nil, shared.NewDomainError("VALIDATION", "organization ID cannot be empty")
	}
	invoices, err := s.invoiceRepo.FindByPeriod(ctx, orgID, period)
	if err != nil {
		return nil, err
	}

	report := &VarianceReport{
		OrgID:     orgID,
		Period:    period.String(),
		Variances: make([]Variance, 0),
	}
	for i := range invoices {
		inv := invoices[i]
		allocations, err := s.allocationRepo.FindByInvoice(ctx, inv.ID)
		if err != nil {
			return nil, err
		}

		allocated := decimal.Zero
		for _, a := range allocations {
			if excludeSeed && a.Source == billing.AllocationSourceSeed {
				continue
			}
			allocated = allocated.Add(a.AppliedAmount)
		}

		report.Checked++
		delta := inv.PaidAmount.Sub(allocated)
		if delta.Abs().GreaterThan(VarianceTolerance) {
			report.Variances = append(report.Variances, Variance{
				InvoiceID:     inv.ID,
				InvoiceNumber: inv.InvoiceNumber,
				PaidAmount:    inv.PaidAmount,
				AllocatedSum:  allocated,
				Delta:         delta,
			})
		}
	}

	if !report.Clean() {
		s.logger.Warn("variance reconciliation found drift",
			zap.String("org_id", orgID.String()),
			zap.String("period", period.String()),
			zap.Int("checked", report.Checked),
			zap.Int("variances", len(report.Variances)),
		)
	}
	return report, nil
}
