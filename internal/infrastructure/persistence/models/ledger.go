package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/immoflow/backend/internal/domain/ledger"
)

// LedgerEntryModel is the persistence model for append-only ledger entries.
type LedgerEntryModel struct {
	BaseModel
	OrgID       uuid.UUID        `gorm:"type:uuid;not null;index:idx_ledger_org_tenant,priority:1"`
	TenantID    uuid.UUID        `gorm:"type:uuid;not null;index:idx_ledger_org_tenant,priority:2"`
	InvoiceID   *uuid.UUID       `gorm:"type:uuid;index"`
	PaymentID   *uuid.UUID       `gorm:"type:uuid;index"`
	Type        ledger.EntryType `gorm:"type:varchar(20);not null;index"`
	Amount      decimal.Decimal  `gorm:"type:decimal(18,2);not null"`
	BookingDate time.Time        `gorm:"not null;index"`
	Description string           `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (LedgerEntryModel) TableName() string {
	return "ledger_entries"
}

// ToDomain converts the persistence model to a domain Entry
func (m *LedgerEntryModel) ToDomain() *ledger.Entry {
	return &ledger.Entry{
		BaseEntity:  m.BaseModel.ToDomain(),
		OrgID:       m.OrgID,
		TenantID:    m.TenantID,
		InvoiceID:   m.InvoiceID,
		PaymentID:   m.PaymentID,
		Type:        m.Type,
		Amount:      m.Amount,
		BookingDate: m.BookingDate,
		Description: m.Description,
	}
}

// FromDomain populates the persistence model from a domain Entry
func (m *LedgerEntryModel) FromDomain(e *ledger.Entry) {
	m.FromDomainBaseEntity(e.BaseEntity)
	m.OrgID = e.OrgID
	m.TenantID = e.TenantID
	m.InvoiceID = e.InvoiceID
	m.PaymentID = e.PaymentID
	m.Type = e.Type
	m.Amount = e.Amount
	m.BookingDate = e.BookingDate
	m.Description = e.Description
}

// AuditRecordModel is the persistence model for hash-chained audit records.
// Rows are ordered by recorded_at then id; the chain hash makes any
// after-the-fact edit detectable.
type AuditRecordModel struct {
	BaseModel
	OrgID       uuid.UUID             `gorm:"type:uuid;not null;index:idx_audit_org_recorded,priority:1"`
	RunID       string                `gorm:"type:varchar(100);index"`
	Operation   ledger.AuditOperation `gorm:"type:varchar(20);not null"`
	EntityType  string                `gorm:"type:varchar(50);not null"`
	EntityID    uuid.UUID             `gorm:"type:uuid;not null;index"`
	OldSnapshot json.RawMessage       `gorm:"type:jsonb"`
	NewSnapshot json.RawMessage       `gorm:"type:jsonb"`
	Actor       string                `gorm:"type:varchar(200)"`
	RecordedAt  time.Time             `gorm:"not null;index:idx_audit_org_recorded,priority:2"`
	PrevHash    string                `gorm:"type:char(64);not null"`
	Hash        string                `gorm:"type:char(64);not null"`
}

// TableName returns the table name for GORM
func (AuditRecordModel) TableName() string {
	return "audit_records"
}

// ToDomain converts the persistence model to a domain AuditRecord
func (m *AuditRecordModel) ToDomain() *ledger.AuditRecord {
	return &ledger.AuditRecord{
		BaseEntity:  m.BaseModel.ToDomain(),
		OrgID:       m.OrgID,
		RunID:       m.RunID,
		Operation:   m.Operation,
		EntityType:  m.EntityType,
		EntityID:    m.EntityID,
		OldSnapshot: m.OldSnapshot,
		NewSnapshot: m.NewSnapshot,
		Actor:       m.Actor,
		RecordedAt:  m.RecordedAt,
		PrevHash:    m.PrevHash,
		Hash:        m.Hash,
	}
}

// FromDomain populates the persistence model from a domain AuditRecord
func (m *AuditRecordModel) FromDomain(r *ledger.AuditRecord) {
	m.FromDomainBaseEntity(r.BaseEntity)
	m.OrgID = r.OrgID
	m.RunID = r.RunID
	m.Operation = r.Operation
	m.EntityType = r.EntityType
	m.EntityID = r.EntityID
	m.OldSnapshot = r.OldSnapshot
	m.NewSnapshot = r.NewSnapshot
	m.Actor = r.Actor
	m.RecordedAt = r.RecordedAt
	m.PrevHash = r.PrevHash
	m.Hash = r.Hash
}
