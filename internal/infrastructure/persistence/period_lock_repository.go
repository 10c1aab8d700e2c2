package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/immoflow/backend/internal/domain/billing"
	"github.com/immoflow/backend/internal/infrastructure/persistence/models"
)

// GormPeriodLockRepository implements billing.PeriodLockRepository using GORM
type GormPeriodLockRepository struct {
	db *gorm.DB
}

// NewGormPeriodLockRepository creates a new GormPeriodLockRepository
func NewGormPeriodLockRepository(db *gorm.DB) *GormPeriodLockRepository {
	return &GormPeriodLockRepository{db: db}
}

// IsLocked reports whether the period is locked for the organization
func (r *GormPeriodLockRepository) IsLocked(ctx context.Context, orgID uuid.UUID, period billing.Period) (bool, error) {
	var count int64
	err := conn(ctx, r.db).
		Model(&models.PeriodLockModel{}).
		Where("org_id = ? AND period_year = ? AND period_month = ?", orgID, period.Year, period.Month).
		Count(&count).Error
	return count > 0, err
}

// Save creates a period lock. The unique index on (org, year, month)
// makes double-locking a constraint violation.
func (r *GormPeriodLockRepository) Save(ctx context.Context, lock *billing.PeriodLock) error {
	model := &models.PeriodLockModel{}
	model.FromDomain(lock)
	return conn(ctx, r.db).Create(model).Error
}

// FindByOrg lists all period locks of one organization, newest period first
func (r *GormPeriodLockRepository) FindByOrg(ctx context.Context, orgID uuid.UUID) ([]billing.PeriodLock, error) {
	var lockModels []models.PeriodLockModel
	err := conn(ctx, r.db).
		Where("org_id = ?", orgID).
		Order("period_year DESC, period_month DESC").
		Find(&lockModels).Error
	if err != nil {
		return nil, err
	}
	locks := make([]billing.PeriodLock, len(lockModels))
	for i, model := range lockModels {
		locks[i] = *model.ToDomain()
	}
	return locks, nil
}
