package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/immoflow/backend/internal/domain/billing"
	"github.com/immoflow/backend/internal/domain/shared"
	"github.com/immoflow/backend/internal/infrastructure/persistence/models"
)

// GormPaymentRepository implements billing.PaymentRepository using GORM
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// FindByID finds a payment by its ID
func (r *GormPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Payment, error) {
	var model models.PaymentModel
	if err := conn(ctx, r.db).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByTenant finds all payments of one tenant, newest booking first
func (r *GormPaymentRepository) FindByTenant(ctx context.Context, orgID, tenantID uuid.UUID) ([]billing.Payment, error) {
	var paymentModels []models.PaymentModel
	err := conn(ctx, r.db).
		Where("org_id = ? AND tenant_id = ?", orgID, tenantID).
		Order("booking_date DESC").
		Find(&paymentModels).Error
	if err != nil {
		return nil, err
	}
	payments := make([]billing.Payment, len(paymentModels))
	for i, model := range paymentModels {
		payments[i] = *model.ToDomain()
	}
	return payments, nil
}

// FindUnappliedForOrg finds payments with a positive unapplied remainder,
// oldest booking first
func (r *GormPaymentRepository) FindUnappliedForOrg(ctx context.Context, orgID uuid.UUID, limit int) ([]billing.Payment, error) {
	var paymentModels []models.PaymentModel
	query := conn(ctx, r.db).
		Where("org_id = ? AND unapplied_amount > 0 AND reversed_at IS NULL", orgID).
		Order("booking_date ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&paymentModels).Error; err != nil {
		return nil, err
	}
	payments := make([]billing.Payment, len(paymentModels))
	for i, model := range paymentModels {
		payments[i] = *model.ToDomain()
	}
	return payments, nil
}

// Save creates a new payment
func (r *GormPaymentRepository) Save(ctx context.Context, payment *billing.Payment) error {
	model := models.PaymentModelFromDomain(payment)
	return conn(ctx, r.db).Create(model).Error
}

// Update persists the payment with optimistic locking
func (r *GormPaymentRepository) Update(ctx context.Context, payment *billing.Payment) error {
	model := models.PaymentModelFromDomain(payment)
	result := conn(ctx, r.db).
		Model(model).
		Where("id = ? AND version = ?", payment.ID, payment.Version-1).
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
