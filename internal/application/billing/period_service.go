package billing

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"

	ledgerapp "github.com/immoflow/backend/internal/application/ledger"
	"github.com/immoflow/backend/internal/domain/billing"
	"github.com/immoflow/backend/internal/domain/ledger"
	"github.com/immoflow/backend/internal/domain/shared"
)

// PeriodService manages accounting period locks
type PeriodService struct {
	lockRepo  billing.PeriodLockRepository
	ledgerSvc *ledgerapp.LedgerService
	logger    *zap.Logger
}

// NewPeriodService creates a new PeriodService
func NewPeriodService(lockRepo billing.PeriodLockRepository, ledgerSvc *ledgerapp.LedgerService, logger *zap.Logger) *PeriodService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PeriodService{lockRepo: lockRepo, ledgerSvc: ledgerSvc, logger: logger}
}

// LockPeriod closes an accounting period for further postings.
// Locking is one-way; there is no unlock operation.
func (s *PeriodService) LockPeriod(ctx context.Context, orgID uuid.UUID, year, month int, actor, reason string) (*billing.PeriodLock, error) {
	period, err := billing.NewPeriod(year, month)
	if err != nil {
		return nil, err
	}
	locked, err := s.lockRepo.IsLocked(ctx, orgID, period)
	if err != nil {
		return nil, err
	}
	if locked {
		return nil, shared.NewDomainErrorf("ALREADY_EXISTS", "period %s is already locked", period)
	}

	lock, err := billing.NewPeriodLock(orgID, period, actor, reason)
	if err != nil {
		return nil, err
	}
	if err := s.lockRepo.Save(ctx, lock); err != nil {
		return nil, err
	}

	snapshot, _ := json.Marshal(lock)
	if _, err := s.ledgerSvc.RecordAudit(ctx, orgID, ledger.AuditOperationInsert, "period_lock", lock.ID, nil, snapshot, actor, ""); err != nil {
		return nil, err
	}

	s.logger.Info("period locked",
		zap.String("org_id", orgID.String()),
		zap.String("period", period.String()),
		zap.String("actor", actor),
	)
	return lock, nil
}

// ListLocks returns all period locks of an organization
func (s *PeriodService) ListLocks(ctx context.Context, orgID uuid.UUID) ([]billing.PeriodLock, error) {
	return s.lockRepo.FindByOrg(ctx, orgID)
}
