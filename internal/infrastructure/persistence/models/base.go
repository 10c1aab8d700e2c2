package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/immoflow/backend/internal/domain/shared"
)

// BaseModel provides common persistence fields for all models.
// It maps to the domain's BaseEntity.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// ToDomain converts BaseModel to domain BaseEntity
func (m *BaseModel) ToDomain() shared.BaseEntity {
	return shared.BaseEntity{
		ID:        m.ID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// FromDomainBaseEntity populates BaseModel from domain BaseEntity
func (m *BaseModel) FromDomainBaseEntity(e shared.BaseEntity) {
	m.ID = e.ID
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
}

// OrgAggregateModel provides common persistence fields for
// organization-scoped aggregate roots: version for optimistic locking
// plus the managing organization ID.
type OrgAggregateModel struct {
	BaseModel
	Version int       `gorm:"not null;default:1"`
	OrgID   uuid.UUID `gorm:"type:uuid;not null;index"`
}

// FromDomainOrgAggregateRoot populates OrgAggregateModel from domain OrgAggregateRoot
func (m *OrgAggregateModel) FromDomainOrgAggregateRoot(a shared.OrgAggregateRoot) {
	m.FromDomainBaseEntity(a.BaseEntity)
	m.Version = a.Version
	m.OrgID = a.OrgID
}

// PopulateOrgAggregateRoot populates a domain OrgAggregateRoot from the persistence model
func (m *OrgAggregateModel) PopulateOrgAggregateRoot(a *shared.OrgAggregateRoot) {
	a.BaseEntity = m.ToDomain()
	a.Version = m.Version
	a.OrgID = m.OrgID
}
