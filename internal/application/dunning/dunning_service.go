package dunning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	ledgerapp "github.com/immoflow/backend/internal/application/ledger"
	"github.com/immoflow/backend/internal/domain/billing"
	"github.com/immoflow/backend/internal/domain/dunning"
	"github.com/immoflow/backend/internal/domain/ledger"
	"github.com/immoflow/backend/internal/domain/shared"
)

// DunningService escalates overdue invoices through the statutory dunning
// levels and books the resulting fees and interest to the ledger.
type DunningService struct {
	invoiceRepo billing.InvoiceRepository
	caseRepo    dunning.CaseRepository
	ledgerSvc   *ledgerapp.LedgerService
	logger      *zap.Logger
}

// NewDunningService creates a new DunningService
func NewDunningService(
	invoiceRepo billing.InvoiceRepository,
	caseRepo dunning.CaseRepository,
	ledgerSvc *ledgerapp.LedgerService,
	logger *zap.Logger,
) *DunningService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DunningService{
		invoiceRepo: invoiceRepo,
		caseRepo:    caseRepo,
		ledgerSvc:   ledgerSvc,
		logger:      logger,
	}
}

// RunSummary reports the outcome of one dunning run
type RunSummary struct {
	OrgID     uuid.UUID `json:"org_id"`
	AsOf      time.Time `json:"as_of"`
	Processed int       `json:"processed"`
	Escalated int       `json:"escalated"`
	Failed    int       `json:"failed"`
}

// Run checks every overdue invoice of the organization against the
// dunning thresholds as of the given date. Each invoice is handled on
// its own; a failure on one is counted and logged, never aborts the run.
func (s *DunningService) Run(ctx context.Context, orgID uuid.UUID, asOf time.Time, actor string) (*RunSummary, error) {
	if orgID == uuid.Nil {
		return nil, shared.NewDomainError("VALIDATION", "organization ID cannot be empty")
	}
	overdue, err := s.invoiceRepo.FindOverdue(ctx, orgID, asOf)
	if err != nil {
		return nil, err
	}

	summary := &RunSummary{OrgID: orgID, AsOf: asOf}
	for i := range overdue {
		inv := overdue[i]
		escalated, err := s.processInvoice(ctx, &inv, asOf, actor)
		if err != nil {
			summary.Failed++
			s.logger.Error("dunning check failed",
				zap.String("invoice_id", inv.ID.String()),
				zap.String("invoice_number", inv.InvoiceNumber),
				zap.Error(err),
			)
			continue
		}
		summary.Processed++
		if escalated {
			summary.Escalated++
		}
	}

	s.logger.Info("dunning run finished",
		zap.String("org_id", orgID.String()),
		zap.Time("as_of", asOf),
		zap.Int("processed", summary.Processed),
		zap.Int("escalated", summary.Escalated),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

// processInvoice escalates one invoice's dunning case if its days overdue
// crossed a threshold. New charges reach the ledger as deltas against
// what the case already carries, so re-running the same day books nothing
// twice.
func (s *DunningService) processInvoice(ctx context.Context, inv *billing.Invoice, asOf time.Time, actor string) (bool, error) {
	daysOverdue := inv.DaysOverdue(asOf)
	outstanding := inv.GrossAmount.Sub(inv.PaidAmount)
	if !outstanding.IsPositive() {
		return false, nil
	}

	// Inside the grace period nothing is opened and nothing accrues.
	if dunning.LevelFor(daysOverdue) == dunning.LevelOpen {
		return false, nil
	}

	c, created, err := s.findOrOpenCase(ctx, inv, outstanding)
	if err != nil {
		return false, err
	}
	oldSnapshot, _ := json.Marshal(c)
	prevFee := c.Fee
	prevInterest := c.Interest

	escalated, err := c.Escalate(daysOverdue, outstanding)
	if err != nil {
		return false, err
	}

	if err := s.postCharges(ctx, inv, c, prevFee, prevInterest, asOf); err != nil {
		return false, err
	}

	if created {
		err = s.caseRepo.Save(ctx, c)
	} else {
		err = s.caseRepo.Update(ctx, c)
	}
	if err != nil {
		return false, err
	}

	newSnapshot, _ := json.Marshal(c)
	op := ledger.AuditOperationUpdate
	var oldForAudit json.RawMessage
	if created {
		op = ledger.AuditOperationInsert
	} else {
		oldForAudit = oldSnapshot
	}
	if _, err := s.ledgerSvc.RecordAudit(ctx, inv.OrgID, op, "dunning_case", c.ID, oldForAudit, newSnapshot, actor, ""); err != nil {
		return false, err
	}

	if escalated {
		s.logger.Info("dunning level escalated",
			zap.String("invoice_number", inv.InvoiceNumber),
			zap.Int("level", int(c.Level)),
			zap.Int("days_overdue", daysOverdue),
			zap.String("fee", c.Fee.String()),
			zap.String("interest", c.Interest.String()),
		)
	}
	return escalated, nil
}

func (s *DunningService) findOrOpenCase(ctx context.Context, inv *billing.Invoice, outstanding decimal.Decimal) (*dunning.Case, bool, error) {
	c, err := s.caseRepo.FindByInvoice(ctx, inv.ID)
	if err == nil {
		if c.IsCleared() {
			// A cleared case means the invoice was once settled; overdue
			// again implies a reversed payment, so a fresh case starts over.
			fresh, err := dunning.NewCase(inv.OrgID, inv.ID, inv.TenantID, outstanding)
			if err != nil {
				return nil, false, err
			}
			return fresh, true, nil
		}
		return c, false, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, false, err
	}
	fresh, err := dunning.NewCase(inv.OrgID, inv.ID, inv.TenantID, outstanding)
	if err != nil {
		return nil, false, err
	}
	return fresh, true, nil
}

// postCharges books the fee and interest growth since the last check.
// The ledger stays append-only; the running totals live on the case.
func (s *DunningService) postCharges(ctx context.Context, inv *billing.Invoice, c *dunning.Case, prevFee, prevInterest decimal.Decimal, asOf time.Time) error {
	var entries []*ledger.Entry

	if feeDelta := c.Fee.Sub(prevFee); feeDelta.IsPositive() {
		entry, err := ledger.NewEntry(inv.OrgID, inv.TenantID, ledger.EntryTypeFee, feeDelta, asOf,
			fmt.Sprintf("dunning fee level %d, invoice %s", c.Level, inv.InvoiceNumber))
		if err != nil {
			return err
		}
		entries = append(entries, entry.WithInvoice(inv.ID))
	}
	if interestDelta := c.Interest.Sub(prevInterest); interestDelta.IsPositive() {
		entry, err := ledger.NewEntry(inv.OrgID, inv.TenantID, ledger.EntryTypeInterest, interestDelta, asOf,
			fmt.Sprintf("default interest, invoice %s", inv.InvoiceNumber))
		if err != nil {
			return err
		}
		entries = append(entries, entry.WithInvoice(inv.ID))
	}
	if len(entries) == 0 {
		return nil
	}
	return s.ledgerSvc.PostEntries(ctx, entries...)
}

// ClearCase closes the dunning case of a settled invoice
func (s *DunningService) ClearCase(ctx context.Context, invoiceID uuid.UUID, actor string) error {
	c, err := s.caseRepo.FindByInvoice(ctx, invoiceID)
	if err != nil {
		return err
	}
	if c.IsCleared() {
		return nil
	}
	oldSnapshot, _ := json.Marshal(c)
	c.Clear(time.Now())
	if err := s.caseRepo.Update(ctx, c); err != nil {
		return err
	}
	newSnapshot, _ := json.Marshal(c)
	_, err = s.ledgerSvc.RecordAudit(ctx, c.OrgID, ledger.AuditOperationUpdate, "dunning_case", c.ID, oldSnapshot, newSnapshot, actor, "")
	return err
}

// OpenCases lists the organization's uncleared dunning cases
func (s *DunningService) OpenCases(ctx context.Context, orgID uuid.UUID) ([]dunning.Case, error) {
	return s.caseRepo.FindOpenByOrg(ctx, orgID)
}
