package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/immoflow/backend/internal/domain/settlement"
	"github.com/immoflow/backend/internal/domain/shared"
	"github.com/immoflow/backend/internal/infrastructure/persistence/models"
)

// GormSettlementRunRepository implements settlement.RunRepository using GORM
type GormSettlementRunRepository struct {
	db *gorm.DB
}

// NewGormSettlementRunRepository creates a new GormSettlementRunRepository
func NewGormSettlementRunRepository(db *gorm.DB) *GormSettlementRunRepository {
	return &GormSettlementRunRepository{db: db}
}

// FindByID finds a settlement run by its ID
func (r *GormSettlementRunRepository) FindByID(ctx context.Context, id uuid.UUID) (*settlement.Run, error) {
	var model models.SettlementRunModel
	if err := conn(ctx, r.db).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByProperty finds all settlement runs of one property, newest year first
func (r *GormSettlementRunRepository) FindByProperty(ctx context.Context, orgID, propertyID uuid.UUID) ([]settlement.Run, error) {
	var runModels []models.SettlementRunModel
	err := conn(ctx, r.db).
		Where("org_id = ? AND property_id = ?", orgID, propertyID).
		Order("year DESC").
		Find(&runModels).Error
	if err != nil {
		return nil, err
	}
	runs := make([]settlement.Run, len(runModels))
	for i, model := range runModels {
		runs[i] = *model.ToDomain()
	}
	return runs, nil
}

// Save creates a new settlement run
func (r *GormSettlementRunRepository) Save(ctx context.Context, run *settlement.Run) error {
	model := &models.SettlementRunModel{}
	model.FromDomain(run)
	return conn(ctx, r.db).Create(model).Error
}

// Update persists the run with optimistic locking
func (r *GormSettlementRunRepository) Update(ctx context.Context, run *settlement.Run) error {
	model := &models.SettlementRunModel{}
	model.FromDomain(run)
	result := conn(ctx, r.db).
		Model(model).
		Where("id = ? AND version = ?", run.ID, run.Version-1).
		Select("*").
		Updates(model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// GormDistributionEntryRepository implements settlement.DistributionEntryRepository using GORM
type GormDistributionEntryRepository struct {
	db *gorm.DB
}

// NewGormDistributionEntryRepository creates a new GormDistributionEntryRepository
func NewGormDistributionEntryRepository(db *gorm.DB) *GormDistributionEntryRepository {
	return &GormDistributionEntryRepository{db: db}
}

// FindByRun finds all unit shares of one settlement run
func (r *GormDistributionEntryRepository) FindByRun(ctx context.Context, runID uuid.UUID) ([]settlement.DistributionEntry, error) {
	var entryModels []models.DistributionEntryModel
	err := conn(ctx, r.db).
		Where("run_id = ?", runID).
		Order("created_at ASC").
		Find(&entryModels).Error
	if err != nil {
		return nil, err
	}
	entries := make([]settlement.DistributionEntry, len(entryModels))
	for i, model := range entryModels {
		entries[i] = model.ToDomain()
	}
	return entries, nil
}

// SaveAll persists a batch of distribution entries in one insert
func (r *GormDistributionEntryRepository) SaveAll(ctx context.Context, entries []settlement.DistributionEntry) error {
	if len(entries) == 0 {
		return nil
	}
	entryModels := make([]models.DistributionEntryModel, len(entries))
	for i := range entries {
		entryModels[i].FromDomain(entries[i])
	}
	return conn(ctx, r.db).Create(&entryModels).Error
}

// DeleteByRun removes all shares of one run so a draft can be redistributed
func (r *GormDistributionEntryRepository) DeleteByRun(ctx context.Context, runID uuid.UUID) (int64, error) {
	result := conn(ctx, r.db).
		Where("run_id = ?", runID).
		Delete(&models.DistributionEntryModel{})
	return result.RowsAffected, result.Error
}
