package models

import (
	"time"

	"github.com/immoflow/backend/internal/domain/bulk"
)

// ImportRunModel is the persistence model for bulk import runs.
type ImportRunModel struct {
	OrgAggregateModel
	RunID        string            `gorm:"size:128;not null;uniqueIndex:idx_import_run_org_run,priority:2"`
	FileName     string            `gorm:"size:255;not null"`
	FileSize     int64             `gorm:"not null"`
	TotalRows    int               `gorm:"not null;default:0"`
	UpsertedRows int               `gorm:"not null;default:0"`
	SkippedRows  int               `gorm:"not null;default:0"`
	ErrorRows    int               `gorm:"not null;default:0"`
	Status       bulk.ImportStatus `gorm:"size:20;not null;index"`
	RowErrors    bulk.RowErrors    `gorm:"type:jsonb"`
	ImportedBy   string            `gorm:"size:255;not null"`
	StartedAt    *time.Time
	CompletedAt  *time.Time
}

// TableName returns the table name for GORM
func (ImportRunModel) TableName() string {
	return "import_runs"
}

// ToDomain converts the persistence model to a domain ImportRun
func (m *ImportRunModel) ToDomain() *bulk.ImportRun {
	r := &bulk.ImportRun{
		RunID:        m.RunID,
		FileName:     m.FileName,
		FileSize:     m.FileSize,
		TotalRows:    m.TotalRows,
		UpsertedRows: m.UpsertedRows,
		SkippedRows:  m.SkippedRows,
		ErrorRows:    m.ErrorRows,
		Status:       m.Status,
		RowErrors:    m.RowErrors,
		ImportedBy:   m.ImportedBy,
		StartedAt:    m.StartedAt,
		CompletedAt:  m.CompletedAt,
	}
	m.PopulateOrgAggregateRoot(&r.OrgAggregateRoot)
	return r
}

// FromDomain populates the persistence model from a domain ImportRun
func (m *ImportRunModel) FromDomain(r *bulk.ImportRun) {
	m.FromDomainOrgAggregateRoot(r.OrgAggregateRoot)
	m.RunID = r.RunID
	m.FileName = r.FileName
	m.FileSize = r.FileSize
	m.TotalRows = r.TotalRows
	m.UpsertedRows = r.UpsertedRows
	m.SkippedRows = r.SkippedRows
	m.ErrorRows = r.ErrorRows
	m.Status = r.Status
	m.RowErrors = r.RowErrors
	m.ImportedBy = r.ImportedBy
	m.StartedAt = r.StartedAt
	m.CompletedAt = r.CompletedAt
}
