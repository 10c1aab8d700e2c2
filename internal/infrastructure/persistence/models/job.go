package models

import (
	"encoding/json"
	"time"

	"github.com/immoflow/backend/internal/domain/job"
)

// JobModel is the persistence model for the background job queue.
type JobModel struct {
	OrgAggregateModel
	Type         job.Type        `gorm:"type:varchar(40);not null;index"`
	Payload      json.RawMessage `gorm:"type:jsonb"`
	Status       job.Status      `gorm:"type:varchar(20);not null;default:'pending';index:idx_job_status_scheduled,priority:1"`
	RetryCount   int             `gorm:"not null;default:0"`
	MaxRetries   int             `gorm:"not null;default:3"`
	ScheduledFor time.Time       `gorm:"not null;index:idx_job_status_scheduled,priority:2"`
	StartedAt    *time.Time
	FinishedAt   *time.Time
	Result       json.RawMessage `gorm:"type:jsonb"`
	LastError    string          `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (JobModel) TableName() string {
	return "jobs"
}

// ToDomain converts the persistence model to a domain Job
func (m *JobModel) ToDomain() *job.Job {
	j := &job.Job{
		Type:         m.Type,
		Payload:      m.Payload,
		Status:       m.Status,
		RetryCount:   m.RetryCount,
		MaxRetries:   m.MaxRetries,
		ScheduledFor: m.ScheduledFor,
		StartedAt:    m.StartedAt,
		FinishedAt:   m.FinishedAt,
		Result:       m.Result,
		LastError:    m.LastError,
	}
	m.PopulateOrgAggregateRoot(&j.OrgAggregateRoot)
	return j
}

// FromDomain populates the persistence model from a domain Job
func (m *JobModel) FromDomain(j *job.Job) {
	m.FromDomainOrgAggregateRoot(j.OrgAggregateRoot)
	m.Type = j.Type
	m.Payload = j.Payload
	m.Status = j.Status
	m.RetryCount = j.RetryCount
	m.MaxRetries = j.MaxRetries
	m.ScheduledFor = j.ScheduledFor
	m.StartedAt = j.StartedAt
	m.FinishedAt = j.FinishedAt
	m.Result = j.Result
	m.LastError = j.LastError
}
