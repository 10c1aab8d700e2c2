package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/immoflow/backend/internal/domain/billing"
)

// InvoiceModel is the persistence model for the Invoice aggregate root.
type InvoiceModel struct {
	OrgAggregateModel
	InvoiceNumber string                `gorm:"type:varchar(50);not null;uniqueIndex:idx_invoice_org_number,priority:2"`
	TenantID      uuid.UUID             `gorm:"type:uuid;not null;index"`
	UnitID        uuid.UUID             `gorm:"type:uuid;not null;index"`
	PeriodYear    int                   `gorm:"not null;index:idx_invoice_period"`
	PeriodMonth   int                   `gorm:"not null;index:idx_invoice_period"`
	Lines         billing.InvoiceLines  `gorm:"type:jsonb;default:'[]'"`
	GrossAmount   decimal.Decimal       `gorm:"type:decimal(18,2);not null"`
	PaidAmount    decimal.Decimal       `gorm:"type:decimal(18,2);not null"`
	Status        billing.InvoiceStatus `gorm:"type:varchar(20);not null;default:'open';index"`
	DueDate       time.Time             `gorm:"not null;index"`
	CanceledAt    *time.Time
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice
func (m *InvoiceModel) ToDomain() *billing.Invoice {
	inv := &billing.Invoice{
		InvoiceNumber: m.InvoiceNumber,
		TenantID:      m.TenantID,
		UnitID:        m.UnitID,
		Period:        billing.Period{Year: m.PeriodYear, Month: m.PeriodMonth},
		Lines:         m.Lines,
		GrossAmount:   m.GrossAmount,
		PaidAmount:    m.PaidAmount,
		Status:        m.Status,
		DueDate:       m.DueDate,
		CanceledAt:    m.CanceledAt,
	}
	m.PopulateOrgAggregateRoot(&inv.OrgAggregateRoot)
	return inv
}

// FromDomain populates the persistence model from a domain Invoice
func (m *InvoiceModel) FromDomain(inv *billing.Invoice) {
	m.FromDomainOrgAggregateRoot(inv.OrgAggregateRoot)
	m.InvoiceNumber = inv.InvoiceNumber
	m.TenantID = inv.TenantID
	m.UnitID = inv.UnitID
	m.PeriodYear = inv.Period.Year
	m.PeriodMonth = inv.Period.Month
	m.Lines = inv.Lines
	m.GrossAmount = inv.GrossAmount
	m.PaidAmount = inv.PaidAmount
	m.Status = inv.Status
	m.DueDate = inv.DueDate
	m.CanceledAt = inv.CanceledAt
}

// InvoiceModelFromDomain creates a new persistence model from a domain Invoice
func InvoiceModelFromDomain(inv *billing.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}

// PaymentModel is the persistence model for the Payment aggregate root.
type PaymentModel struct {
	OrgAggregateModel
	TenantID        uuid.UUID             `gorm:"type:uuid;not null;index"`
	Amount          decimal.Decimal       `gorm:"type:decimal(18,2);not null"`
	UnappliedAmount decimal.Decimal       `gorm:"type:decimal(18,2);not null;index"`
	BookingDate     time.Time             `gorm:"not null;index"`
	Source          billing.PaymentSource `gorm:"type:varchar(20);not null"`
	Reference       string                `gorm:"type:varchar(200)"`
	ReversedAt      *time.Time
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts the persistence model to a domain Payment
func (m *PaymentModel) ToDomain() *billing.Payment {
	p := &billing.Payment{
		TenantID:        m.TenantID,
		Amount:          m.Amount,
		UnappliedAmount: m.UnappliedAmount,
		BookingDate:     m.BookingDate,
		Source:          m.Source,
		Reference:       m.Reference,
		ReversedAt:      m.ReversedAt,
	}
	m.PopulateOrgAggregateRoot(&p.OrgAggregateRoot)
	return p
}

// FromDomain populates the persistence model from a domain Payment
func (m *PaymentModel) FromDomain(p *billing.Payment) {
	m.FromDomainOrgAggregateRoot(p.OrgAggregateRoot)
	m.TenantID = p.TenantID
	m.Amount = p.Amount
	m.UnappliedAmount = p.UnappliedAmount
	m.BookingDate = p.BookingDate
	m.Source = p.Source
	m.Reference = p.Reference
	m.ReversedAt = p.ReversedAt
}

// PaymentModelFromDomain creates a new persistence model from a domain Payment
func PaymentModelFromDomain(p *billing.Payment) *PaymentModel {
	m := &PaymentModel{}
	m.FromDomain(p)
	return m
}

// AllocationModel is the persistence model for payment-to-invoice allocations.
type AllocationModel struct {
	BaseModel
	PaymentID     uuid.UUID                `gorm:"type:uuid;not null;index"`
	InvoiceID     uuid.UUID                `gorm:"type:uuid;not null;index"`
	AppliedAmount decimal.Decimal          `gorm:"type:decimal(18,2);not null"`
	Source        billing.AllocationSource `gorm:"type:varchar(20);not null"`
	Splits        billing.CategorySplits   `gorm:"type:jsonb;default:'[]'"`
	BookedAt      time.Time                `gorm:"not null"`
}

// TableName returns the table name for GORM
func (AllocationModel) TableName() string {
	return "allocations"
}

// ToDomain converts the persistence model to a domain Allocation
func (m *AllocationModel) ToDomain() *billing.Allocation {
	return &billing.Allocation{
		BaseEntity:    m.BaseModel.ToDomain(),
		PaymentID:     m.PaymentID,
		InvoiceID:     m.InvoiceID,
		AppliedAmount: m.AppliedAmount,
		Source:        m.Source,
		Splits:        m.Splits,
		BookedAt:      m.BookedAt,
	}
}

// FromDomain populates the persistence model from a domain Allocation
func (m *AllocationModel) FromDomain(a *billing.Allocation) {
	m.FromDomainBaseEntity(a.BaseEntity)
	m.PaymentID = a.PaymentID
	m.InvoiceID = a.InvoiceID
	m.AppliedAmount = a.AppliedAmount
	m.Source = a.Source
	m.Splits = a.Splits
	m.BookedAt = a.BookedAt
}

// PeriodLockModel is the persistence model for accounting period locks.
type PeriodLockModel struct {
	BaseModel
	OrgID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_period_lock_org_period,priority:1"`
	PeriodYear  int       `gorm:"not null;uniqueIndex:idx_period_lock_org_period,priority:2"`
	PeriodMonth int       `gorm:"not null;uniqueIndex:idx_period_lock_org_period,priority:3"`
	LockedBy    string    `gorm:"type:varchar(200);not null"`
	LockedAt    time.Time `gorm:"not null"`
	Reason      string    `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (PeriodLockModel) TableName() string {
	return "period_locks"
}

// ToDomain converts the persistence model to a domain PeriodLock
func (m *PeriodLockModel) ToDomain() *billing.PeriodLock {
	return &billing.PeriodLock{
		BaseEntity: m.BaseModel.ToDomain(),
		OrgID:      m.OrgID,
		Period:     billing.Period{Year: m.PeriodYear, Month: m.PeriodMonth},
		LockedBy:   m.LockedBy,
		LockedAt:   m.LockedAt,
		Reason:     m.Reason,
	}
}

// FromDomain populates the persistence model from a domain PeriodLock
func (m *PeriodLockModel) FromDomain(l *billing.PeriodLock) {
	m.FromDomainBaseEntity(l.BaseEntity)
	m.OrgID = l.OrgID
	m.PeriodYear = l.Period.Year
	m.PeriodMonth = l.Period.Month
	m.LockedBy = l.LockedBy
	m.LockedAt = l.LockedAt
	m.Reason = l.Reason
}
