package job

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/immoflow/backend/internal/domain/shared"
)

// Status represents the lifecycle state of a queued job
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusRetrying   Status = "retrying"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsValid checks if the status is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusRetrying, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether the job can no longer change state
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Type identifies what a job does
type Type string

const (
	TypeBillingRun        Type = "billing_run"
	TypeSettlementRun     Type = "settlement_run"
	TypeDunningRun        Type = "dunning_run"
	TypeReportGeneration  Type = "report_generation"
	TypeSEPAExport        Type = "sepa_export"
	TypeBulkInvoiceUpsert Type = "bulk_invoice_upsert"
)

// IsValid checks if the job type is valid
func (t Type) IsValid() bool {
	switch t {
	case TypeBillingRun, TypeSettlementRun, TypeDunningRun,
		TypeReportGeneration, TypeSEPAExport, TypeBulkInvoiceUpsert:
		return true
	}
	return false
}

// DefaultMaxRetries is the retry cap applied when none is given
const DefaultMaxRetries = 3

// backoffBase is the base of the quadratic backoff: 30 * retryCount^2 seconds
const backoffBase = 30 * time.Second

// Backoff returns the retry delay after the given number of failures
func Backoff(retryCount int) time.Duration {
	return backoffBase * time.Duration(retryCount*retryCount)
}

// Job is one asynchronous unit of work. A job is claimed exclusively by
// one worker, either completes, is rescheduled with backoff, or ends up
// failed with its last error recorded. There is no mid-flight
// cancellation. Every state transition is timestamped.
type Job struct {
	shared.OrgAggregateRoot
	Type         Type            `json:"job_type"`
	Payload      json.RawMessage `json:"payload"`
	Status       Status          `json:"status"`
	RetryCount   int             `json:"retry_count"`
	MaxRetries   int             `json:"max_retries"`
	ScheduledFor time.Time       `json:"scheduled_for"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	FinishedAt   *time.Time      `json:"finished_at,omitempty"`
	Result       json.RawMessage `json:"result,omitempty"`
	LastError    string          `json:"last_error,omitempty"`
}

// New creates a pending job scheduled for the given time
func New(orgID uuid.UUID, jobType Type, payload json.RawMessage, scheduledFor time.Time, maxRetries int) (*Job, error) {
	if !jobType.IsValid() {
		return nil, shared.NewDomainErrorf("VALIDATION", "invalid job type %q", jobType)
	}
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	if payload == nil {
		payload = json.RawMessage("{}")
	}
	return &Job{
		OrgAggregateRoot: shared.NewOrgAggregateRoot(orgID),
		Type:             jobType,
		Payload:          payload,
		Status:           StatusPending,
		MaxRetries:       maxRetries,
		ScheduledFor:     scheduledFor,
	}, nil
}

// MarkProcessing transitions a claimable job to processing
func (j *Job) MarkProcessing(at time.Time) error {
	if j.Status != StatusPending && j.Status != StatusRetrying {
		return shared.NewDomainErrorf("INVALID_STATE", "cannot claim job in status %s", j.Status)
	}
	j.Status = StatusProcessing
	j.StartedAt = &at
	j.UpdatedAt = at
	j.IncrementVersion()
	return nil
}

// MarkCompleted records a successful result
func (j *Job) MarkCompleted(at time.Time, result json.RawMessage) error {
	if j.Status != StatusProcessing {
		return shared.NewDomainErrorf("INVALID_STATE", "cannot complete job in status %s", j.Status)
	}
	j.Status = StatusCompleted
	j.Result = result
	j.FinishedAt = &at
	j.UpdatedAt = at
	j.IncrementVersion()
	return nil
}

// MarkFailed records a failure. Below the retry cap the job is
// rescheduled with quadratic backoff (30 * retryCount^2 seconds);
// at the cap it transitions to failed with the last error kept.
func (j *Job) MarkFailed(at time.Time, errMsg string) error {
	if j.Status != StatusProcessing {
		return shared.NewDomainErrorf("INVALID_STATE", "cannot fail job in status %s", j.Status)
	}
	j.RetryCount++
	j.LastError = errMsg
	j.UpdatedAt = at

	if j.RetryCount >= j.MaxRetries {
		j.Status = StatusFailed
		j.FinishedAt = &at
	} else {
		j.Status = StatusRetrying
		j.ScheduledFor = at.Add(Backoff(j.RetryCount))
	}
	j.IncrementVersion()
	return nil
}

// Exhausted reports whether the job burned through all its retries
func (j *Job) Exhausted() bool {
	return j.Status == StatusFailed && j.RetryCount >= j.MaxRetries
}
