package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/immoflow/backend/internal/domain/dunning"
)

// DunningCaseModel is the persistence model for the dunning Case aggregate root.
type DunningCaseModel struct {
	OrgAggregateModel
	InvoiceID   uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex"`
	TenantID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	Level       dunning.Level   `gorm:"not null;index"`
	DaysOverdue int             `gorm:"not null"`
	Principal   decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Fee         decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Interest    decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	ClearedAt   *time.Time      `gorm:"index"`
}

// TableName returns the table name for GORM
func (DunningCaseModel) TableName() string {
	return "dunning_cases"
}

// ToDomain converts the persistence model to a domain Case
func (m *DunningCaseModel) ToDomain() *dunning.Case {
	c := &dunning.Case{
		InvoiceID:   m.InvoiceID,
		TenantID:    m.TenantID,
		Level:       m.Level,
		DaysOverdue: m.DaysOverdue,
		Principal:   m.Principal,
		Fee:         m.Fee,
		Interest:    m.Interest,
		ClearedAt:   m.ClearedAt,
	}
	m.PopulateOrgAggregateRoot(&c.OrgAggregateRoot)
	return c
}

// FromDomain populates the persistence model from a domain Case
func (m *DunningCaseModel) FromDomain(c *dunning.Case) {
	m.FromDomainOrgAggregateRoot(c.OrgAggregateRoot)
	m.InvoiceID = c.InvoiceID
	m.TenantID = c.TenantID
	m.Level = c.Level
	m.DaysOverdue = c.DaysOverdue
	m.Principal = c.Principal
	m.Fee = c.Fee
	m.Interest = c.Interest
	m.ClearedAt = c.ClearedAt
}
