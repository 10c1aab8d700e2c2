package bulk

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/immoflow/backend/internal/domain/shared"
)

// ImportStatus is the lifecycle state of a bulk import run
type ImportStatus string

const (
	ImportStatusPending    ImportStatus = "pending"
	ImportStatusProcessing ImportStatus = "processing"
	ImportStatusCompleted  ImportStatus = "completed"
	ImportStatusFailed     ImportStatus = "failed"
)

// IsValid checks if the status is a valid ImportStatus
func (s ImportStatus) IsValid() bool {
	switch s {
	case ImportStatusPending, ImportStatusProcessing, ImportStatusCompleted, ImportStatusFailed:
		return true
	}
	return false
}

// IsTerminal returns true for states the run can never leave
func (s ImportStatus) IsTerminal() bool {
	return s == ImportStatusCompleted || s == ImportStatusFailed
}

// RowError pins an import failure to one CSV row
type RowError struct {
	Row     int    `json:"row"`
	Column  string `json:"column,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

// RowErrors is a JSONB-persisted collection of row errors
type RowErrors []RowError

// Value implements driver.Valuer for GORM to store row errors as JSONB
func (e RowErrors) Value() (driver.Value, error) {
	if e == nil {
		return "[]", nil
	}
	return json.Marshal(e)
}

// Scan implements sql.Scanner for GORM to read row errors from JSONB
func (e *RowErrors) Scan(value interface{}) error {
	if value == nil {
		*e = RowErrors{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into RowErrors", value)
	}
	return json.Unmarshal(bytes, e)
}

// ImportRun tracks one bulk invoice-line upsert from a CSV file.
// RunID is the caller-supplied idempotency key: replaying a file with the
// same RunID must not apply its rows a second time.
type ImportRun struct {
	shared.OrgAggregateRoot
	RunID        string       `json:"run_id"`
	FileName     string       `json:"file_name"`
	FileSize     int64        `json:"file_size"`
	TotalRows    int          `json:"total_rows"`
	UpsertedRows int          `json:"upserted_rows"`
	SkippedRows  int          `json:"skipped_rows"`
	ErrorRows    int          `json:"error_rows"`
	Status       ImportStatus `json:"status"`
	RowErrors    RowErrors    `json:"row_errors,omitempty"`
	ImportedBy   string       `json:"imported_by"`
	StartedAt    *time.Time   `json:"started_at,omitempty"`
	CompletedAt  *time.Time   `json:"completed_at,omitempty"`
}

// NewImportRun creates a pending import run
func NewImportRun(orgID uuid.UUID, runID, fileName string, fileSize int64, importedBy string) (*ImportRun, error) {
	if runID == "" {
		return nil, shared.NewDomainError("VALIDATION", "run ID cannot be empty")
	}
	if fileName == "" {
		return nil, shared.NewDomainError("VALIDATION", "file name cannot be empty")
	}
	if fileSize < 0 {
		return nil, shared.NewDomainError("VALIDATION", "file size cannot be negative")
	}
	return &ImportRun{
		OrgAggregateRoot: shared.NewOrgAggregateRoot(orgID),
		RunID:            runID,
		FileName:         fileName,
		FileSize:         fileSize,
		Status:           ImportStatusPending,
		RowErrors:        make(RowErrors, 0),
		ImportedBy:       importedBy,
	}, nil
}

// StartProcessing marks the run as started with the parsed row count
func (r *ImportRun) StartProcessing(totalRows int) error {
	if r.Status != ImportStatusPending {
		return shared.NewDomainErrorf("INVALID_STATE", "cannot start processing from state %s", r.Status)
	}
	if totalRows < 0 {
		return shared.NewDomainError("VALIDATION", "total rows cannot be negative")
	}
	r.Status = ImportStatusProcessing
	r.TotalRows = totalRows
	now := time.Now()
	r.StartedAt = &now
	r.UpdatedAt = now
	r.IncrementVersion()
	return nil
}

// Complete records the outcome. A run in which every row failed counts
// as failed even though the processing loop itself ran to the end.
func (r *ImportRun) Complete(upserted, skipped int, rowErrors []RowError) error {
	if r.Status != ImportStatusProcessing {
		return shared.NewDomainErrorf("INVALID_STATE", "cannot complete from state %s", r.Status)
	}
	status := ImportStatusCompleted
	if len(rowErrors) > 0 && upserted == 0 {
		status = ImportStatusFailed
	}
	r.Status = status
	r.UpsertedRows = upserted
	r.SkippedRows = skipped
	r.ErrorRows = len(rowErrors)
	r.RowErrors = rowErrors
	now := time.Now()
	r.CompletedAt = &now
	r.UpdatedAt = now
	r.IncrementVersion()
	return nil
}

// Fail marks the run as failed before any rows were applied
func (r *ImportRun) Fail(rowErrors []RowError) error {
	if r.Status.IsTerminal() {
		return shared.NewDomainErrorf("INVALID_STATE", "cannot fail from terminal state %s", r.Status)
	}
	r.Status = ImportStatusFailed
	r.ErrorRows = len(rowErrors)
	r.RowErrors = rowErrors
	now := time.Now()
	r.CompletedAt = &now
	r.UpdatedAt = now
	r.IncrementVersion()
	return nil
}

// SuccessRate returns the share of rows applied, as a percentage
func (r *ImportRun) SuccessRate() float64 {
	if r.TotalRows == 0 {
		return 0
	}
	return float64(r.UpsertedRows) / float64(r.TotalRows) * 100
}

// Duration returns how long the run took, or has been running so far
func (r *ImportRun) Duration() time.Duration {
	if r.StartedAt == nil {
		return 0
	}
	end := time.Now()
	if r.CompletedAt != nil {
		end = *r.CompletedAt
	}
	return end.Sub(*r.StartedAt)
}
