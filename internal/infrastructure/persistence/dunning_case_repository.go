package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/immoflow/backend/internal/domain/dunning"
	"github.com/immoflow/backend/internal/domain/shared"
	"github.com/immoflow/backend/internal/infrastructure/persistence/models"
)

// GormDunningCaseRepository implements dunning.CaseRepository using GORM
type GormDunningCaseRepository struct {
	db *gorm.DB
}

// NewGormDunningCaseRepository creates a new GormDunningCaseRepository
func NewGormDunningCaseRepository(db *gorm.DB) *GormDunningCaseRepository {
	return &GormDunningCaseRepository{db: db}
}

// FindByInvoice finds the dunning case opened for one invoice
func (r *GormDunningCaseRepository) FindByInvoice(ctx context.Context, invoiceID uuid.UUID) (*dunning.Case, error) {
	var model models.DunningCaseModel
	if err := conn(ctx, r.db).First(&model, "invoice_id = ?", invoiceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindOpenByOrg finds all uncleared cases of one organization
func (r *GormDunningCaseRepository) FindOpenByOrg(ctx context.Context, orgID uuid.UUID) ([]dunning.Case, error) {
	var caseModels []models.DunningCaseModel
	err := conn(ctx, r.db).
		Where("org_id = ? AND cleared_at IS NULL", orgID).
		Order("level DESC, days_overdue DESC").
		Find(&caseModels).Error
	if err != nil {
		return nil, err
	}
	cases := make([]dunning.Case, len(caseModels))
	for i, model := range caseModels {
		cases[i] = *model.ToDomain()
	}
	return cases, nil
}

// Save creates a new dunning case
func (r *GormDunningCaseRepository) Save(ctx context.Context, c *dunning.Case) error {
	model := &models.DunningCaseModel{}
	model.FromDomain(c)
	return conn(ctx, r.db).Create(model).Error
}

// Update persists the case with optimistic locking
func (r *GormDunningCaseRepository) Update(ctx context.Context, c *dunning.Case) error {
	model := &models.DunningCaseModel{}
	model.FromDomain(c)
	result := conn(ctx, r.db).
		Model(model).
		Where("id = ? AND version = ?", c.ID, c.Version-1).
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
