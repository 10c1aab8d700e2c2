package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/immoflow/backend/internal/domain/settlement"
)

// SettlementRunModel is the persistence model for the settlement Run aggregate root.
type SettlementRunModel struct {
	OrgAggregateModel
	PropertyID   uuid.UUID                  `gorm:"type:uuid;not null;uniqueIndex:idx_settlement_property_year,priority:1"`
	Year         int                        `gorm:"not null;uniqueIndex:idx_settlement_property_year,priority:2"`
	Key          settlement.DistributionKey `gorm:"type:varchar(20);not null"`
	TotalExpense decimal.Decimal            `gorm:"type:decimal(18,2);not null"`
	Status       settlement.RunStatus       `gorm:"type:varchar(20);not null;default:'draft';index"`
	FinalizedAt  *time.Time
}

// TableName returns the table name for GORM
func (SettlementRunModel) TableName() string {
	return "settlement_runs"
}

// ToDomain converts the persistence model to a domain Run
func (m *SettlementRunModel) ToDomain() *settlement.Run {
	r := &settlement.Run{
		PropertyID:   m.PropertyID,
		Year:         m.Year,
		Key:          m.Key,
		TotalExpense: m.TotalExpense,
		Status:       m.Status,
		FinalizedAt:  m.FinalizedAt,
	}
	m.PopulateOrgAggregateRoot(&r.OrgAggregateRoot)
	return r
}

// FromDomain populates the persistence model from a domain Run
func (m *SettlementRunModel) FromDomain(r *settlement.Run) {
	m.FromDomainOrgAggregateRoot(r.OrgAggregateRoot)
	m.PropertyID = r.PropertyID
	m.Year = r.Year
	m.Key = r.Key
	m.TotalExpense = r.TotalExpense
	m.Status = r.Status
	m.FinalizedAt = r.FinalizedAt
}

// DistributionEntryModel is the persistence model for per-unit settlement shares.
type DistributionEntryModel struct {
	BaseModel
	RunID     uuid.UUID            `gorm:"type:uuid;not null;index"`
	UnitID    uuid.UUID            `gorm:"type:uuid;not null;index"`
	TenantID  *uuid.UUID           `gorm:"type:uuid;index"`
	Amount    decimal.Decimal      `gorm:"type:decimal(18,2);not null"`
	ChargedTo settlement.ChargedTo `gorm:"type:varchar(10);not null"`
	Residual  bool                 `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (DistributionEntryModel) TableName() string {
	return "distribution_entries"
}

// ToDomain converts the persistence model to a domain DistributionEntry
func (m *DistributionEntryModel) ToDomain() settlement.DistributionEntry {
	return settlement.DistributionEntry{
		BaseEntity: m.BaseModel.ToDomain(),
		RunID:      m.RunID,
		UnitID:     m.UnitID,
		TenantID:   m.TenantID,
		Amount:     m.Amount,
		ChargedTo:  m.ChargedTo,
		Residual:   m.Residual,
	}
}

// FromDomain populates the persistence model from a domain DistributionEntry
func (m *DistributionEntryModel) FromDomain(e settlement.DistributionEntry) {
	m.FromDomainBaseEntity(e.BaseEntity)
	m.RunID = e.RunID
	m.UnitID = e.UnitID
	m.TenantID = e.TenantID
	m.Amount = e.Amount
	m.ChargedTo = e.ChargedTo
	m.Residual = e.Residual
}
