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
	"github.com/immoflow/backend/internal/domain/dunning"
	"github.com/immoflow/backend/internal/domain/ledger"
	"github.com/immoflow/backend/internal/domain/shared"
	"github.com/immoflow/backend/internal/domain/shared/valueobject"
)

// AllocationService coordinates payment booking, allocation and reversal.
// Each public operation is one transaction: paid amounts are recomputed
// from the full allocation set inside it, and repair runs delete before
// they reinsert, so a retried unit of work converges instead of
// duplicating.
type AllocationService struct {
	invoiceRepo    billing.InvoiceRepository
	paymentRepo    billing.PaymentRepository
	allocationRepo billing.AllocationRepository
	lockRepo       billing.PeriodLockRepository
	caseRepo       dunning.CaseRepository
	ledgerSvc      *ledgerapp.LedgerService
	transactor     shared.Transactor
	logger         *zap.Logger
}

// NewAllocationService creates a new AllocationService. A nil transactor
// runs operations without transactional boundaries.
func NewAllocationService(
	invoiceRepo billing.InvoiceRepository,
	paymentRepo billing.PaymentRepository,
	allocationRepo billing.AllocationRepository,
	lockRepo billing.PeriodLockRepository,
	caseRepo dunning.CaseRepository,
	ledgerSvc *ledgerapp.LedgerService,
	transactor shared.Transactor,
	logger *zap.Logger,
) *AllocationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AllocationService{
		invoiceRepo:    invoiceRepo,
		paymentRepo:    paymentRepo,
		allocationRepo: allocationRepo,
		lockRepo:       lockRepo,
		caseRepo:       caseRepo,
		ledgerSvc:      ledgerSvc,
		transactor:     transactor,
		logger:         logger,
	}
}

// RecordPaymentRequest carries an incoming payment booking
type RecordPaymentRequest struct {
	OrgID       uuid.UUID
	TenantID    uuid.UUID
	Amount      decimal.Decimal
	BookingDate time.Time
	Source      billing.PaymentSource
	Reference   string
	Actor       string
}

// AllocationResult reports what one allocation run did
type AllocationResult struct {
	PaymentID             uuid.UUID         `json:"payment_id"`
	Mode                  string            `json:"mode"`
	TotalApplied          decimal.Decimal   `json:"total_applied"`
	Unapplied             decimal.Decimal   `json:"unapplied"`
	Allocations           []AllocationView  `json:"allocations"`
	InvoicesFullyPaid     []uuid.UUID       `json:"invoices_fully_paid,omitempty"`
	InvoicesPartiallyPaid []uuid.UUID       `json:"invoices_partially_paid,omitempty"`
}

// AllocationView is one allocation in a result
type AllocationView struct {
	InvoiceID     uuid.UUID              `json:"invoice_id"`
	InvoiceNumber string                 `json:"invoice_number"`
	AppliedAmount decimal.Decimal        `json:"applied_amount"`
	Splits        billing.CategorySplits `json:"splits,omitempty"`
}

// RecordPayment books a payment, posts its ist entry to the ledger and
// immediately runs a FIFO allocation over the tenant's open invoices.
// Booking and allocation commit or roll back as one unit.
func (s *AllocationService) RecordPayment(ctx context.Context, req RecordPaymentRequest) (*AllocationResult, error) {
	var result *AllocationResult
	err := shared.RunInTx(ctx, s.transactor, func(ctx context.Context) error {
		amount, err := valueobject.NewMoney(req.Amount, valueobject.EUR)
		if err != nil {
			return err
		}
		payment, err := billing.NewPayment(req.OrgID, req.TenantID, amount, req.BookingDate, req.Source, req.Reference)
		if err != nil {
			return err
		}
		if err := s.paymentRepo.Save(ctx, payment); err != nil {
			return err
		}

		istEntry, err := ledger.NewEntry(req.OrgID, req.TenantID, ledger.EntryTypeIst, payment.Amount, req.BookingDate, "payment "+req.Reference)
		if err != nil {
			return err
		}
		istEntry.WithPayment(payment.ID)
		if err := s.ledgerSvc.PostEntries(ctx, istEntry); err != nil {
			return err
		}

		snapshot, _ := json.Marshal(payment)
		if _, err := s.ledgerSvc.RecordAudit(ctx, req.OrgID, ledger.AuditOperationInsert, "payment", payment.ID, nil, snapshot, req.Actor, ""); err != nil {
			return err
		}

		result, err = s.Allocate(ctx, payment.ID, billing.AllocationModeFIFO, nil, req.Actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Allocate runs an allocation strategy for a payment. FIFO mode spreads
// the payment over the tenant's open invoices oldest period first;
// waterfall mode fills the cost categories of one target invoice.
// A payment that already carries allocations must go through Reassign.
func (s *AllocationService) Allocate(ctx context.Context, paymentID uuid.UUID, mode billing.AllocationMode, invoiceID *uuid.UUID, actor string) (*AllocationResult, error) {
	var result *AllocationResult
	err := shared.RunInTx(ctx, s.transactor, func(ctx context.Context) error {
		payment, err := s.paymentRepo.FindByID(ctx, paymentID)
		if err != nil {
			return err
		}
		if payment.IsReversed() {
			return shared.NewDomainError("INVALID_STATE", "cannot allocate a reversed payment")
		}

		existing, err := s.allocationRepo.FindByPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return shared.NewDomainError("INVALID_STATE", "payment already allocated; use reassign to change the allocation")
		}

		invoices, err := s.candidateInvoices(ctx, payment, mode, invoiceID)
		if err != nil {
			return err
		}

		if err := s.ensureUnlocked(ctx, payment.OrgID, invoices); err != nil {
			return err
		}

		strategy, err := billing.StrategyForMode(mode)
		if err != nil {
			return err
		}
		plan, err := strategy.Allocate(payment, invoices)
		if err != nil {
			return err
		}

		result, err = s.applyPlan(ctx, payment, plan, sourceForMode(mode), actor, "")
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Reverse cancels a payment: books the single permitted storno entry,
// removes the payment's allocations and reopens the affected invoices,
// all inside one transaction.
func (s *AllocationService) Reverse(ctx context.Context, paymentID uuid.UUID, reason, actor string) error {
	err := shared.RunInTx(ctx, s.transactor, func(ctx context.Context) error {
		payment, err := s.paymentRepo.FindByID(ctx, paymentID)
		if err != nil {
			return err
		}

		now := time.Now()
		if err := payment.MarkReversed(now); err != nil {
			return err
		}

		// The ledger-side guard rejects a second storno even if the payment
		// row was rolled back by a concurrent writer.
		storno, err := s.ledgerSvc.StornoPayment(ctx, paymentID, now, reason)
		if err != nil {
			return err
		}

		affected, err := s.allocationRepo.FindByPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		if _, err := s.allocationRepo.DeleteByPayment(ctx, paymentID); err != nil {
			return err
		}
		for _, a := range affected {
			if err := s.recomputeInvoice(ctx, a.InvoiceID); err != nil {
				return err
			}
		}

		if err := s.paymentRepo.Update(ctx, payment); err != nil {
			return err
		}

		snapshot, _ := json.Marshal(storno)
		_, err = s.ledgerSvc.RecordAudit(ctx, payment.OrgID, ledger.AuditOperationStorno, "payment", paymentID, nil, snapshot, actor, "")
		return err
	})
	if err != nil {
		return err
	}

	s.logger.Info("payment reversed",
		zap.String("payment_id", paymentID.String()),
		zap.String("reason", reason),
	)
	return nil
}

// Reassign deletes a payment's allocations and re-runs the strategy from
// scratch. Because the delete is scoped by payment ID and paid amounts
// are recomputed, running it twice converges to the same state. The lock
// precondition covers both the periods the stale allocations sit in and
// the candidate periods, and is checked before the first write so a
// blocked repair leaves the prior allocation state untouched.
func (s *AllocationService) Reassign(ctx context.Context, paymentID uuid.UUID, mode billing.AllocationMode, invoiceID *uuid.UUID, actor, runID string) (*AllocationResult, error) {
	var result *AllocationResult
	err := shared.RunInTx(ctx, s.transactor, func(ctx context.Context) error {
		payment, err := s.paymentRepo.FindByID(ctx, paymentID)
		if err != nil {
			return err
		}
		if payment.IsReversed() {
			return shared.NewDomainError("INVALID_STATE", "cannot reassign a reversed payment")
		}

		stale, err := s.allocationRepo.FindByPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		staleInvoices := make([]billing.Invoice, 0, len(stale))
		for _, a := range stale {
			inv, err := s.invoiceRepo.FindByID(ctx, a.InvoiceID)
			if err != nil {
				return err
			}
			staleInvoices = append(staleInvoices, *inv)
		}
		candidates, err := s.candidateInvoices(ctx, payment, mode, invoiceID)
		if err != nil {
			return err
		}
		if err := s.ensureUnlocked(ctx, payment.OrgID, append(staleInvoices, candidates...)); err != nil {
			return err
		}

		if _, err := s.allocationRepo.DeleteByPayment(ctx, paymentID); err != nil {
			return err
		}
		for _, a := range stale {
			if err := s.recomputeInvoice(ctx, a.InvoiceID); err != nil {
				return err
			}
		}
		if err := payment.SetUnapplied(payment.Amount); err != nil {
			return err
		}
		if err := s.paymentRepo.Update(ctx, payment); err != nil {
			return err
		}

		// Re-query after the delete: invoices the stale allocations had
		// paid off are open again and belong in the candidate set.
		invoices, err := s.candidateInvoices(ctx, payment, mode, invoiceID)
		if err != nil {
			return err
		}
		strategy, err := billing.StrategyForMode(mode)
		if err != nil {
			return err
		}
		plan, err := strategy.Allocate(payment, invoices)
		if err != nil {
			return err
		}

		result, err = s.applyPlan(ctx, payment, plan, billing.AllocationSourceRepair, actor, runID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ensureUnlocked rejects the run outright when any candidate invoice sits
// in a locked accounting period. Skipping locked invoices silently would
// shift money to younger periods without anyone deciding that.
func (s *AllocationService) ensureUnlocked(ctx context.Context, orgID uuid.UUID, invoices []billing.Invoice) error {
	for i := range invoices {
		locked, err := s.lockRepo.IsLocked(ctx, orgID, invoices[i].Period)
		if err != nil {
			return err
		}
		if locked {
			return shared.NewDomainErrorf("PERIOD_LOCKED", "period %s is locked", invoices[i].Period)
		}
	}
	return nil
}

func (s *AllocationService) candidateInvoices(ctx context.Context, payment *billing.Payment, mode billing.AllocationMode, invoiceID *uuid.UUID) ([]billing.Invoice, error) {
	if mode == billing.AllocationModeWaterfall {
		if invoiceID == nil {
			return nil, shared.NewDomainError("VALIDATION", "waterfall allocation requires a target invoice")
		}
		inv, err := s.invoiceRepo.FindByID(ctx, *invoiceID)
		if err != nil {
			return nil, err
		}
		if inv.TenantID != payment.TenantID {
			return nil, shared.NewDomainError("VALIDATION", "invoice belongs to a different tenant")
		}
		return []billing.Invoice{*inv}, nil
	}
	return s.invoiceRepo.FindOpenByTenant(ctx, payment.OrgID, payment.TenantID)
}

// applyPlan persists a computed allocation plan: inserts the allocations,
// recomputes every touched invoice, writes back the payment remainder and
// clears dunning cases of invoices that became fully paid.
func (s *AllocationService) applyPlan(ctx context.Context, payment *billing.Payment, plan *billing.AllocationPlan, source billing.AllocationSource, actor, runID string) (*AllocationResult, error) {
	allocations := make([]billing.Allocation, 0, len(plan.Allocations))
	views := make([]AllocationView, 0, len(plan.Allocations))
	for _, planned := range plan.Allocations {
		alloc, err := billing.NewAllocation(payment.ID, planned.InvoiceID, planned.AppliedAmount, source, planned.Splits)
		if err != nil {
			return nil, err
		}
		allocations = append(allocations, *alloc)
		views = append(views, AllocationView{
			InvoiceID:     planned.InvoiceID,
			InvoiceNumber: planned.InvoiceNumber,
			AppliedAmount: planned.AppliedAmount,
			Splits:        planned.Splits,
		})
	}
	if err := s.allocationRepo.SaveAll(ctx, allocations); err != nil {
		return nil, err
	}

	for _, planned := range plan.Allocations {
		oldSnapshot, newSnapshot, err := s.recomputeInvoiceSnapshotted(ctx, planned.InvoiceID)
		if err != nil {
			return nil, err
		}
		if _, err := s.ledgerSvc.RecordAudit(ctx, payment.OrgID, ledger.AuditOperationUpdate, "invoice", planned.InvoiceID, oldSnapshot, newSnapshot, actor, runID); err != nil {
			return nil, err
		}
	}

	if err := payment.SetUnapplied(plan.Unapplied); err != nil {
		return nil, err
	}
	if err := s.paymentRepo.Update(ctx, payment); err != nil {
		return nil, err
	}

	for _, invoiceID := range plan.InvoicesFullyPaid {
		s.clearDunningCase(ctx, invoiceID)
	}

	s.logger.Info("payment allocated",
		zap.String("payment_id", payment.ID.String()),
		zap.String("mode", string(source)),
		zap.String("applied", plan.TotalApplied.String()),
		zap.String("unapplied", plan.Unapplied.String()),
	)

	return &AllocationResult{
		PaymentID:             payment.ID,
		Mode:                  string(source),
		TotalApplied:          plan.TotalApplied,
		Unapplied:             plan.Unapplied,
		Allocations:           views,
		InvoicesFullyPaid:     plan.InvoicesFullyPaid,
		InvoicesPartiallyPaid: plan.InvoicesPartiallyPaid,
	}, nil
}

func (s *AllocationService) recomputeInvoice(ctx context.Context, invoiceID uuid.UUID) error {
	_, _, err := s.recomputeInvoiceSnapshotted(ctx, invoiceID)
	return err
}

// recomputeInvoiceSnapshotted reloads the invoice, derives paid amount
// and status from its complete current allocation set and persists it,
// returning before/after snapshots for the audit trail.
func (s *AllocationService) recomputeInvoiceSnapshotted(ctx context.Context, invoiceID uuid.UUID) (json.RawMessage, json.RawMessage, error) {
	inv, err := s.invoiceRepo.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, nil, err
	}
	oldSnapshot, _ := json.Marshal(inv)

	current, err := s.allocationRepo.FindByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, nil, err
	}
	if err := inv.RecomputeFromAllocations(current); err != nil {
		return nil, nil, err
	}
	if err := s.invoiceRepo.Update(ctx, inv); err != nil {
		return nil, nil, err
	}
	newSnapshot, _ := json.Marshal(inv)
	return oldSnapshot, newSnapshot, nil
}

// clearDunningCase closes the open dunning case of a fully paid invoice.
// Missing cases are normal; failures only log, never fail the allocation.
func (s *AllocationService) clearDunningCase(ctx context.Context, invoiceID uuid.UUID) {
	if s.caseRepo == nil {
		return
	}
	c, err := s.caseRepo.FindByInvoice(ctx, invoiceID)
	if err != nil {
		return
	}
	if c.IsCleared() {
		return
	}
	c.Clear(time.Now())
	if err := s.caseRepo.Update(ctx, c); err != nil {
		s.logger.Warn("failed to clear dunning case",
			zap.String("invoice_id", invoiceID.String()), zap.Error(err))
	}
}

func sourceForMode(mode billing.AllocationMode) billing.AllocationSource {
	if mode == billing.AllocationModeWaterfall {
		return billing.AllocationSourceManual
	}
	return billing.AllocationSourceFIFO
}
