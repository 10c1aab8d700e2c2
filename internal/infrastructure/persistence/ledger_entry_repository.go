package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/immoflow/backend/internal/domain/ledger"
	"github.com/immoflow/backend/internal/domain/shared"
	"github.com/immoflow/backend/internal/infrastructure/persistence/models"
)

// GormLedgerEntryRepository implements ledger.EntryRepository using GORM.
// The table is append-only; the repository exposes no update or delete.
type GormLedgerEntryRepository struct {
	db *gorm.DB
}

// NewGormLedgerEntryRepository creates a new GormLedgerEntryRepository
func NewGormLedgerEntryRepository(db *gorm.DB) *GormLedgerEntryRepository {
	return &GormLedgerEntryRepository{db: db}
}

// FindByTenant finds all ledger entries of one tenant in booking order
func (r *GormLedgerEntryRepository) FindByTenant(ctx context.Context, orgID, tenantID uuid.UUID) ([]ledger.Entry, error) {
	var entryModels []models.LedgerEntryModel
	err := conn(ctx, r.db).
		Where("org_id = ? AND tenant_id = ?", orgID, tenantID).
		Order("booking_date ASC, created_at ASC").
		Find(&entryModels).Error
	if err != nil {
		return nil, err
	}
	entries := make([]ledger.Entry, len(entryModels))
	for i, model := range entryModels {
		entries[i] = *model.ToDomain()
	}
	return entries, nil
}

// FindIstByPayment finds the ist entry booked for one payment
func (r *GormLedgerEntryRepository) FindIstByPayment(ctx context.Context, paymentID uuid.UUID) (*ledger.Entry, error) {
	var model models.LedgerEntryModel
	err := conn(ctx, r.db).
		Where("payment_id = ? AND type = ?", paymentID, ledger.EntryTypeIst).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// HasStornoForPayment reports whether a storno entry already references the payment
func (r *GormLedgerEntryRepository) HasStornoForPayment(ctx context.Context, paymentID uuid.UUID) (bool, error) {
	var count int64
	err := conn(ctx, r.db).
		Model(&models.LedgerEntryModel{}).
		Where("payment_id = ? AND type = ?", paymentID, ledger.EntryTypeStorno).
		Count(&count).Error
	return count > 0, err
}

// Append inserts new entries. There is deliberately no counterpart that
// mutates existing rows.
func (r *GormLedgerEntryRepository) Append(ctx context.Context, entries ...*ledger.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	entryModels := make([]models.LedgerEntryModel, len(entries))
	for i, e := range entries {
		entryModels[i].FromDomain(e)
	}
	return conn(ctx, r.db).Create(&entryModels).Error
}
