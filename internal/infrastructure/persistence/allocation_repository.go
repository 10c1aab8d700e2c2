package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/immoflow/backend/internal/domain/billing"
	"github.com/immoflow/backend/internal/infrastructure/persistence/models"
)

// GormAllocationRepository implements billing.AllocationRepository using GORM
type GormAllocationRepository struct {
	db *gorm.DB
}

// NewGormAllocationRepository creates a new GormAllocationRepository
func NewGormAllocationRepository(db *gorm.DB) *GormAllocationRepository {
	return &GormAllocationRepository{db: db}
}

// FindByPayment finds all allocations of one payment
func (r *GormAllocationRepository) FindByPayment(ctx context.Context, paymentID uuid.UUID) ([]billing.Allocation, error) {
	var allocationModels []models.AllocationModel
	err := conn(ctx, r.db).
		Where("payment_id = ?", paymentID).
		Order("booked_at ASC").
		Find(&allocationModels).Error
	if err != nil {
		return nil, err
	}
	return toDomainAllocations(allocationModels), nil
}

// FindByInvoice finds all allocations applied to one invoice
func (r *GormAllocationRepository) FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]billing.Allocation, error) {
	var allocationModels []models.AllocationModel
	err := conn(ctx, r.db).
		Where("invoice_id = ?", invoiceID).
		Order("booked_at ASC").
		Find(&allocationModels).Error
	if err != nil {
		return nil, err
	}
	return toDomainAllocations(allocationModels), nil
}

// SaveAll persists a batch of allocations in one insert
func (r *GormAllocationRepository) SaveAll(ctx context.Context, allocations []billing.Allocation) error {
	if len(allocations) == 0 {
		return nil
	}
	allocationModels := make([]models.AllocationModel, len(allocations))
	for i := range allocations {
		allocationModels[i].FromDomain(&allocations[i])
	}
	return conn(ctx, r.db).Create(&allocationModels).Error
}

// DeleteByPayment removes all allocations of one payment and reports how
// many rows went away. Repair runs call this before re-allocating, so a
// rerun never double-books.
func (r *GormAllocationRepository) DeleteByPayment(ctx context.Context, paymentID uuid.UUID) (int64, error) {
	result := conn(ctx, r.db).
		Where("payment_id = ?", paymentID).
		Delete(&models.AllocationModel{})
	return result.RowsAffected, result.Error
}

func toDomainAllocations(allocationModels []models.AllocationModel) []billing.Allocation {
	allocations := make([]billing.Allocation, len(allocationModels))
	for i, model := range allocationModels {
		allocations[i] = *model.ToDomain()
	}
	return allocations
}
