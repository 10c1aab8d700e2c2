package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/immoflow/backend/internal/domain/ledger"
	"github.com/immoflow/backend/internal/domain/shared"
)

// SaldoCache is the caching contract the service uses. A nil cache
// disables caching without changing behavior.
type SaldoCache interface {
	Get(ctx context.Context, orgID, tenantID uuid.UUID) (decimal.Decimal, error)
	Set(ctx context.Context, orgID, tenantID uuid.UUID, saldo decimal.Decimal) error
	Invalidate(ctx context.Context, orgID, tenantID uuid.UUID) error
}

// LedgerService provides application-level operations on the append-only
// ledger and the audit chain.
type LedgerService struct {
	entryRepo ledger.EntryRepository
	auditRepo ledger.AuditRepository
	cache     SaldoCache
	logger    *zap.Logger
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(entryRepo ledger.EntryRepository, auditRepo ledger.AuditRepository, cache SaldoCache, logger *zap.Logger) *LedgerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerService{
		entryRepo: entryRepo,
		auditRepo: auditRepo,
		cache:     cache,
		logger:    logger,
	}
}

// PostEntries appends ledger entries and drops the affected saldo cache
// keys. Entries are never mutated afterwards.
func (s *LedgerService) PostEntries(ctx context.Context, entries ...*ledger.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := s.entryRepo.Append(ctx, entries...); err != nil {
		return err
	}
	if s.cache != nil {
		for _, e := range entries {
			if err := s.cache.Invalidate(ctx, e.OrgID, e.TenantID); err != nil {
				s.logger.Warn("failed to invalidate saldo cache",
					zap.String("tenant_id", e.TenantID.String()), zap.Error(err))
			}
		}
	}
	return nil
}

// Saldo returns the tenant's balance: the sum of all debt entries (soll,
// interest, fee, storno) minus all payments (ist). Positive means the
// tenant owes money.
func (s *LedgerService) Saldo(ctx context.Context, orgID, tenantID uuid.UUID) (decimal.Decimal, error) {
	if s.cache != nil {
		if saldo, err := s.cache.Get(ctx, orgID, tenantID); err == nil {
			return saldo, nil
		}
	}

	entries, err := s.entryRepo.FindByTenant(ctx, orgID, tenantID)
	if err != nil {
		return decimal.Zero, err
	}
	saldo := ledger.ComputeSaldo(entries)

	if s.cache != nil {
		if err := s.cache.Set(ctx, orgID, tenantID, saldo); err != nil {
			s.logger.Warn("failed to cache saldo", zap.Error(err))
		}
	}
	return saldo, nil
}

// StornoPayment books the reversal entry for a payment's ist entry. At
// most one storno may ever exist per payment; a second attempt fails with
// ErrAlreadyReversed regardless of who booked the first.
func (s *LedgerService) StornoPayment(ctx context.Context, paymentID uuid.UUID, at time.Time, reason string) (*ledger.Entry, error) {
	has, err := s.entryRepo.HasStornoForPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if has {
		return nil, shared.ErrAlreadyReversed
	}

	original, err := s.entryRepo.FindIstByPayment(ctx, paymentID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "no ist entry booked for payment")
		}
		return nil, err
	}

	storno, err := ledger.StornoFor(original, at, reason)
	if err != nil {
		return nil, err
	}
	if err := s.PostEntries(ctx, storno); err != nil {
		return nil, err
	}
	return storno, nil
}

// RecordAudit appends a hash-chained audit record. The new record chains
// onto the organization's current last hash; appends for one organization
// must not run concurrently or the chain forks.
func (s *LedgerService) RecordAudit(ctx context.Context, orgID uuid.UUID, op ledger.AuditOperation, entityType string, entityID uuid.UUID, oldSnapshot, newSnapshot json.RawMessage, actor, runID string) (*ledger.AuditRecord, error) {
	prevHash, err := s.auditRepo.LastHash(ctx, orgID)
	if err != nil {
		return nil, err
	}
	record, err := ledger.NewAuditRecord(orgID, op, entityType, entityID, oldSnapshot, newSnapshot, actor, runID, prevHash)
	if err != nil {
		return nil, err
	}
	if err := s.auditRepo.Append(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// VerifyChain recomputes every hash in the organization's audit chain and
// reports the first record that no longer matches.
func (s *LedgerService) VerifyChain(ctx context.Context, orgID uuid.UUID) (ledger.ChainVerification, error) {
	records, err := s.auditRepo.FindChain(ctx, orgID)
	if err != nil {
		return ledger.ChainVerification{}, err
	}
	return ledger.VerifyChain(records), nil
}

// Entries returns the tenant's full ledger in booking order
func (s *LedgerService) Entries(ctx context.Context, orgID, tenantID uuid.UUID) ([]ledger.Entry, error) {
	return s.entryRepo.FindByTenant(ctx, orgID, tenantID)
}
