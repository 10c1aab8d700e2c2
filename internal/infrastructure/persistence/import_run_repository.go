package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/immoflow/backend/internal/domain/bulk"
	"github.com/immoflow/backend/internal/domain/shared"
	"github.com/immoflow/backend/internal/infrastructure/persistence/models"
)

// GormImportRunRepository implements bulk.ImportRunRepository using GORM
type GormImportRunRepository struct {
	db *gorm.DB
}

// NewGormImportRunRepository creates a new GormImportRunRepository
func NewGormImportRunRepository(db *gorm.DB) *GormImportRunRepository {
	return &GormImportRunRepository{db: db}
}

// FindByID finds an import run by its ID
func (r *GormImportRunRepository) FindByID(ctx context.Context, id uuid.UUID) (*bulk.ImportRun, error) {
	var model models.ImportRunModel
	if err := conn(ctx, r.db).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByRunID resolves the idempotency key within one organization
func (r *GormImportRunRepository) FindByRunID(ctx context.Context, orgID uuid.UUID, runID string) (*bulk.ImportRun, error) {
	var model models.ImportRunModel
	err := conn(ctx, r.db).
		First(&model, "org_id = ? AND run_id = ?", orgID, runID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByOrg lists the organization's import runs, newest first
func (r *GormImportRunRepository) FindByOrg(ctx context.Context, orgID uuid.UUID) ([]bulk.ImportRun, error) {
	var runModels []models.ImportRunModel
	err := conn(ctx, r.db).
		Where("org_id = ?", orgID).
		Order("created_at DESC").
		Find(&runModels).Error
	if err != nil {
		return nil, err
	}
	runs := make([]bulk.ImportRun, len(runModels))
	for i, model := range runModels {
		runs[i] = *model.ToDomain()
	}
	return runs, nil
}

// Save creates a new import run
func (r *GormImportRunRepository) Save(ctx context.Context, run *bulk.ImportRun) error {
	var model models.ImportRunModel
	model.FromDomain(run)
	return conn(ctx, r.db).Create(&model).Error
}

// Update persists the run with optimistic locking
func (r *GormImportRunRepository) Update(ctx context.Context, run *bulk.ImportRun) error {
	var model models.ImportRunModel
	model.FromDomain(run)
	result := conn(ctx, r.db).
		Model(&model).
		Where("id = ? AND version = ?", run.ID, run.Version-1).
		Select("*").
		Updates(&model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}
