package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/immoflow/backend/internal/domain/ledger"
	"github.com/immoflow/backend/internal/infrastructure/persistence/models"
)

// GormAuditRepository implements ledger.AuditRepository using GORM
type GormAuditRepository struct {
	db *gorm.DB
}

// NewGormAuditRepository creates a new GormAuditRepository
func NewGormAuditRepository(db *gorm.DB) *GormAuditRepository {
	return &GormAuditRepository{db: db}
}

// FindChain returns the organization's full audit chain in recording order.
// The order must match the order the hashes were chained in; ties on
// recorded_at are broken by insertion order via created_at.
func (r *GormAuditRepository) FindChain(ctx context.Context, orgID uuid.UUID) ([]ledger.AuditRecord, error) {
	var recordModels []models.AuditRecordModel
	err := conn(ctx, r.db).
		Where("org_id = ?", orgID).
		Order("recorded_at ASC, created_at ASC").
		Find(&recordModels).Error
	if err != nil {
		return nil, err
	}
	records := make([]ledger.AuditRecord, len(recordModels))
	for i, model := range recordModels {
		records[i] = *model.ToDomain()
	}
	return records, nil
}

// LastHash returns the hash of the newest record, or "" for an empty chain
func (r *GormAuditRepository) LastHash(ctx context.Context, orgID uuid.UUID) (string, error) {
	var model models.AuditRecordModel
	err := conn(ctx, r.db).
		Where("org_id = ?", orgID).
		Order("recorded_at DESC, created_at DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return model.Hash, nil
}

// Append inserts new audit records
func (r *GormAuditRepository) Append(ctx context.Context, records ...*ledger.AuditRecord) error {
	if len(records) == 0 {
		return nil
	}
	recordModels := make([]models.AuditRecordModel, len(records))
	for i, rec := range records {
		recordModels[i].FromDomain(rec)
	}
	return conn(ctx, r.db).Create(&recordModels).Error
}
