package settlement

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
	"github.com/immoflow/backend/internal/domain/settlement"
	"github.com/immoflow/backend/internal/domain/shared"
)

// SettlementService manages yearly expense settlement runs: creating a
// run, distributing the expense pool over the property's units and
// finalizing within the statutory deadlines. A run whose year contains a
// locked accounting period can no longer be distributed or finalized.
type SettlementService struct {
	runRepo     settlement.RunRepository
	entryRepo   settlement.DistributionEntryRepository
	lockRepo    billing.PeriodLockRepository
	distributor *settlement.Distributor
	ledgerSvc   *ledgerapp.LedgerService
	logger      *zap.Logger
}

// NewSettlementService creates a new SettlementService
func NewSettlementService(
	runRepo settlement.RunRepository,
	entryRepo settlement.DistributionEntryRepository,
	lockRepo billing.PeriodLockRepository,
	ledgerSvc *ledgerapp.LedgerService,
	logger *zap.Logger,
) *SettlementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettlementService{
		runRepo:     runRepo,
		entryRepo:   entryRepo,
		lockRepo:    lockRepo,
		distributor: settlement.NewDistributor(),
		ledgerSvc:   ledgerSvc,
		logger:      logger,
	}
}

// ensureYearUnlocked rejects the operation when any month of the
// settlement year is locked. Settlement writes into the year's periods,
// so a single locked month blocks the whole run.
func (s *SettlementService) ensureYearUnlocked(ctx context.Context, orgID uuid.UUID, year int) error {
	if s.lockRepo == nil {
		return nil
	}
	locks, err := s.lockRepo.FindByOrg(ctx, orgID)
	if err != nil {
		return err
	}
	for i := range locks {
		if locks[i].Period.Year == year {
			return shared.NewDomainErrorf("PERIOD_LOCKED", "period %s is locked", locks[i].Period)
		}
	}
	return nil
}

// CreateRunRequest describes a new settlement run
type CreateRunRequest struct {
	OrgID        uuid.UUID
	PropertyID   uuid.UUID
	Year         int
	Key          settlement.DistributionKey
	TotalExpense decimal.Decimal
	Actor        string
}

// CreateRun opens a draft settlement run for one property and year.
// Creation past the completion deadline is refused outright: a run that
// can never be lawfully billed has no reason to exist.
func (s *SettlementService) CreateRun(ctx context.Context, req CreateRunRequest) (*settlement.Run, error) {
	if err := settlement.CheckDeadline(req.Year, time.Now()); err != nil {
		return nil, err
	}
	run, err := settlement.NewRun(req.OrgID, req.PropertyID, req.Year, req.Key, req.TotalExpense)
	if err != nil {
		return nil, err
	}
	if err := s.runRepo.Save(ctx, run); err != nil {
		return nil, err
	}

	snapshot, _ := json.Marshal(run)
	if _, err := s.ledgerSvc.RecordAudit(ctx, req.OrgID, ledger.AuditOperationInsert, "settlement_run", run.ID, nil, snapshot, req.Actor, ""); err != nil {
		return nil, err
	}
	return run, nil
}

// Distribute prorates the run's expense pool over the given units and
// persists the resulting shares. A draft run can be redistributed any
// number of times; the previous shares are replaced wholesale.
func (s *SettlementService) Distribute(ctx context.Context, runID uuid.UUID, units []settlement.Unit, actor string) (*settlement.Distribution, error) {
	run, err := s.runRepo.FindByID(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Status == settlement.RunStatusFinalized {
		return nil, shared.NewDomainError("INVALID_STATE", "cannot redistribute a finalized settlement run")
	}
	if err := s.ensureYearUnlocked(ctx, run.OrgID, run.Year); err != nil {
		return nil, err
	}

	dist, err := s.distributor.Distribute(run.TotalExpense, units, run.Key)
	if err != nil {
		return nil, err
	}

	if _, err := s.entryRepo.DeleteByRun(ctx, runID); err != nil {
		return nil, err
	}
	if err := s.entryRepo.SaveAll(ctx, settlement.EntriesForRun(runID, dist)); err != nil {
		return nil, err
	}

	snapshot, _ := json.Marshal(dist)
	if _, err := s.ledgerSvc.RecordAudit(ctx, run.OrgID, ledger.AuditOperationUpdate, "settlement_run", run.ID, nil, snapshot, actor, ""); err != nil {
		return nil, err
	}

	s.logger.Info("settlement distributed",
		zap.String("run_id", runID.String()),
		zap.Int("year", run.Year),
		zap.String("key", run.Key.String()),
		zap.Int("shares", len(dist.Shares)),
		zap.String("tenant_total", dist.TenantTotal.String()),
		zap.String("owner_total", dist.OwnerTotal.String()),
	)
	return dist, nil
}

// Finalize closes the run. The domain enforces the expiry deadline; a
// finalized run can never be redistributed.
func (s *SettlementService) Finalize(ctx context.Context, runID uuid.UUID, actor string) (*settlement.Run, error) {
	run, err := s.runRepo.FindByID(ctx, runID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureYearUnlocked(ctx, run.OrgID, run.Year); err != nil {
		return nil, err
	}

	entries, err := s.entryRepo.FindByRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, shared.NewDomainError("INVALID_STATE", "settlement run has no distribution to finalize")
	}

	oldSnapshot, _ := json.Marshal(run)
	if err := run.Finalize(time.Now()); err != nil {
		return nil, err
	}
	if err := s.runRepo.Update(ctx, run); err != nil {
		return nil, err
	}

	newSnapshot, _ := json.Marshal(run)
	if _, err := s.ledgerSvc.RecordAudit(ctx, run.OrgID, ledger.AuditOperationUpdate, "settlement_run", run.ID, oldSnapshot, newSnapshot, actor, ""); err != nil {
		return nil, err
	}

	s.logger.Info("settlement finalized",
		zap.String("run_id", runID.String()),
		zap.Int("year", run.Year),
	)
	return run, nil
}

// RunWithEntries returns a run together with its persisted shares
func (s *SettlementService) RunWithEntries(ctx context.Context, runID uuid.UUID) (*settlement.Run, []settlement.DistributionEntry, error) {
	run, err := s.runRepo.FindByID(ctx, runID)
	if err != nil {
		return nil, nil, err
	}
	entries, err := s.entryRepo.FindByRun(ctx, runID)
	if err != nil {
		return nil, nil, err
	}
	return run, entries, nil
}

// RunsForProperty lists all settlement runs of one property
func (s *SettlementService) RunsForProperty(ctx context.Context, orgID, propertyID uuid.UUID) ([]settlement.Run, error) {
	return s.runRepo.FindByProperty(ctx, orgID, propertyID)
}
