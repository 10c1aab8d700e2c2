package billing

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	ledgerapp "github.com/immoflow/backend/internal/application/ledger"
	"github.com/immoflow/backend/internal/domain/billing"
	"github.com/immoflow/backend/internal/domain/ledger"
)

// RepairService re-plans allocations for payments that still carry an
// unapplied remainder. Every touched payment leaves a before/after audit
// record tagged with the outcome, dry runs included, so an operator can
// reconstruct what a repair run saw and did.
type RepairService struct {
	allocations *AllocationService
	paymentRepo billing.PaymentRepository
	ledgerSvc   *ledgerapp.LedgerService
	logger      *zap.Logger
}

// NewRepairService creates a new RepairService
func NewRepairService(
	allocations *AllocationService,
	paymentRepo billing.PaymentRepository,
	ledgerSvc *ledgerapp.LedgerService,
	logger *zap.Logger,
) *RepairService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RepairService{
		allocations: allocations,
		paymentRepo: paymentRepo,
		ledgerSvc:   ledgerSvc,
		logger:      logger,
	}
}

// RepairRequest selects the payments of one repair run
type RepairRequest struct {
	OrgID     uuid.UUID
	TenantID  *uuid.UUID
	BatchSize int
	RunID     string
	Apply     bool
	Actor     string
}

// RepairItem is one payment's outcome within a repair run
type RepairItem struct {
	PaymentID uuid.UUID       `json:"payment_id"`
	Amount    decimal.Decimal `json:"amount"`
	Unapplied decimal.Decimal `json:"unapplied"`
	Applied   decimal.Decimal `json:"applied"`
	Error     string          `json:"error,omitempty"`
}

// RepairReport tallies a repair run
type RepairReport struct {
	RunID    string       `json:"run_id"`
	DryRun   bool         `json:"dry_run"`
	Repaired []RepairItem `json:"repaired,omitempty"`
	Planned  []RepairItem `json:"planned,omitempty"`
	Failed   []RepairItem `json:"failed,omitempty"`
}

// Run selects the payments with unapplied money and reassigns each one.
// Failures do not stop the run; each payment's outcome is reported and
// audited individually.
func (s *RepairService) Run(ctx context.Context, req RepairRequest) (*RepairReport, error) {
	runID := req.RunID
	if runID == "" {
		runID = "repair-" + time.Now().Format("20060102-150405")
	}

	var (
		payments []billing.Payment
		err      error
	)
	if req.TenantID != nil {
		payments, err = s.paymentRepo.FindByTenant(ctx, req.OrgID, *req.TenantID)
	} else {
		payments, err = s.paymentRepo.FindUnappliedForOrg(ctx, req.OrgID, req.BatchSize)
	}
	if err != nil {
		return nil, err
	}

	report := &RepairReport{RunID: runID, DryRun: !req.Apply}
	for i := range payments {
		p := &payments[i]
		if p.IsReversed() || p.UnappliedAmount.IsZero() {
			continue
		}
		before, _ := json.Marshal(p)
		item := RepairItem{PaymentID: p.ID, Amount: p.Amount, Unapplied: p.UnappliedAmount}

		if !req.Apply {
			if _, err := s.ledgerSvc.RecordAudit(ctx, req.OrgID, ledger.AuditOperationReassignDryRun, "payment", p.ID, before, before, req.Actor, runID); err != nil {
				return nil, err
			}
			report.Planned = append(report.Planned, item)
			continue
		}

		result, err := s.allocations.Reassign(ctx, p.ID, billing.AllocationModeFIFO, nil, req.Actor, runID)
		if err != nil {
			item.Error = err.Error()
			detail, _ := json.Marshal(map[string]string{"error": err.Error()})
			if _, aerr := s.ledgerSvc.RecordAudit(ctx, req.OrgID, ledger.AuditOperationReassignError, "payment", p.ID, before, detail, req.Actor, runID); aerr != nil {
				return nil, aerr
			}
			s.logger.Warn("repair failed",
				zap.String("payment_id", p.ID.String()), zap.Error(err))
			report.Failed = append(report.Failed, item)
			continue
		}

		after, err := s.paymentRepo.FindByID(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		afterSnapshot, _ := json.Marshal(after)
		if _, err := s.ledgerSvc.RecordAudit(ctx, req.OrgID, ledger.AuditOperationReassignApplied, "payment", p.ID, before, afterSnapshot, req.Actor, runID); err != nil {
			return nil, err
		}
		item.Applied = result.TotalApplied
		item.Unapplied = result.Unapplied
		report.Repaired = append(report.Repaired, item)
	}

	return report, nil
}
