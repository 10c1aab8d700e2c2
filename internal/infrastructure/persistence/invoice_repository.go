package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/immoflow/backend/internal/domain/billing"
	"github.com/immoflow/backend/internal/domain/shared"
	"github.com/immoflow/backend/internal/infrastructure/persistence/models"
)

// GormInvoiceRepository implements billing.InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// FindByID finds an invoice by its ID
func (r *GormInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Invoice, error) {
	var model models.InvoiceModel
	if err := conn(ctx, r.db).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindOpenByTenant returns the tenant's open and partially paid invoices
// ordered oldest period first, which is the order FIFO allocation consumes
// them in.
func (r *GormInvoiceRepository) FindOpenByTenant(ctx context.Context, orgID, tenantID uuid.UUID) ([]billing.Invoice, error) {
	var invoiceModels []models.InvoiceModel
	err := conn(ctx, r.db).
		Where("org_id = ? AND tenant_id = ? AND status IN ?", orgID, tenantID,
			[]billing.InvoiceStatus{billing.InvoiceStatusOpen, billing.InvoiceStatusPartiallyPaid}).
		Order("period_year ASC, period_month ASC, invoice_number ASC").
		Find(&invoiceModels).Error
	if err != nil {
		return nil, err
	}
	invoices := make([]billing.Invoice, len(invoiceModels))
	for i, model := range invoiceModels {
		invoices[i] = *model.ToDomain()
	}
	return invoices, nil
}

// FindOverdue returns unpaid invoices due before asOf, oldest due date first
func (r *GormInvoiceRepository) FindOverdue(ctx context.Context, orgID uuid.UUID, asOf time.Time) ([]billing.Invoice, error) {
	var invoiceModels []models.InvoiceModel
	err := conn(ctx, r.db).
		Where("org_id = ? AND status IN ? AND due_date < ?", orgID,
			[]billing.InvoiceStatus{billing.InvoiceStatusOpen, billing.InvoiceStatusPartiallyPaid}, asOf).
		Order("due_date ASC, invoice_number ASC").
		Find(&invoiceModels).Error
	if err != nil {
		return nil, err
	}
	invoices := make([]billing.Invoice, len(invoiceModels))
	for i, model := range invoiceModels {
		invoices[i] = *model.ToDomain()
	}
	return invoices, nil
}

// FindByPeriod finds all invoices of one accounting period
func (r *GormInvoiceRepository) FindByPeriod(ctx context.Context, orgID uuid.UUID, period billing.Period) ([]billing.Invoice, error) {
	var invoiceModels []models.InvoiceModel
	err := conn(ctx, r.db).
		Where("org_id = ? AND period_year = ? AND period_month = ?", orgID, period.Year, period.Month).
		Order("invoice_number ASC").
		Find(&invoiceModels).Error
	if err != nil {
		return nil, err
	}
	invoices := make([]billing.Invoice, len(invoiceModels))
	for i, model := range invoiceModels {
		invoices[i] = *model.ToDomain()
	}
	return invoices, nil
}

// Save creates a new invoice
func (r *GormInvoiceRepository) Save(ctx context.Context, invoice *billing.Invoice) error {
	model := models.InvoiceModelFromDomain(invoice)
	return conn(ctx, r.db).Create(model).Error
}

// Update persists the invoice with optimistic locking. The aggregate
// increments its version before the write; the update only matches when
// the stored row still carries the previous version.
func (r *GormInvoiceRepository) Update(ctx context.Context, invoice *billing.Invoice) error {
	model := models.InvoiceModelFromDomain(invoice)
	result := conn(ctx, r.db).
		Model(model).
		Where("id = ? AND version = ?", invoice.ID, invoice.Version-1).
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
