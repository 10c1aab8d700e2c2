package settlement

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/immoflow/backend/internal/domain/shared"
)

// Statutory deadlines for operating-cost settlements (MRG): the
// settlement must be completed by 30 June of the following year, and
// claims expire entirely three years after that completion deadline.
const (
	completionMonth = time.June
	completionDay   = 30
	expiryYears     = 3
)

// CompletionDeadline returns the statutory completion deadline for a
// settlement covering the given year: 30 June of year+1.
func CompletionDeadline(year int) time.Time {
	return time.Date(year+1, completionMonth, completionDay, 23, 59, 59, 0, time.UTC)
}

// ExpiryDeadline returns the full statutory expiry: three years after the
// completion deadline.
func ExpiryDeadline(year int) time.Time {
	return CompletionDeadline(year).AddDate(expiryYears, 0, 0)
}

// CheckDeadline validates that a settlement for the given year may still
// be finalized at the reference time. Past the completion deadline the
// settlement is late; past the expiry deadline it is barred entirely.
// Both cases surface as ErrDeadlineExceeded rather than proceeding.
func CheckDeadline(year int, at time.Time) error {
	if at.After(ExpiryDeadline(year)) {
		return shared.NewDomainErrorf("DEADLINE_EXCEEDED", "settlement for %d is fully expired since %s", year, ExpiryDeadline(year).Format("2006-01-02"))
	}
	if at.After(CompletionDeadline(year)) {
		return shared.NewDomainErrorf("DEADLINE_EXCEEDED", "settlement for %d is past its completion deadline of %s", year, CompletionDeadline(year).Format("2006-01-02"))
	}
	return nil
}

// RunStatus is the lifecycle state of a settlement run
type RunStatus string

const (
	RunStatusDraft     RunStatus = "draft"
	RunStatusFinalized RunStatus = "finalized"
)

// Run is one settlement run: the distribution of a building's allocable
// expenses over its units for one accounting year.
type Run struct {
	shared.OrgAggregateRoot
	PropertyID   uuid.UUID       `json:"property_id"`
	Year         int             `json:"year"`
	Key          DistributionKey `json:"key"`
	TotalExpense decimal.Decimal `json:"total_expense"`
	Status       RunStatus       `json:"status"`
	FinalizedAt  *time.Time      `json:"finalized_at,omitempty"`
}

// NewRun creates a draft settlement run
func NewRun(orgID, propertyID uuid.UUID, year int, key DistributionKey, totalExpense decimal.Decimal) (*Run, error) {
	if propertyID == uuid.Nil {
		return nil, shared.NewDomainError("VALIDATION", "property ID cannot be empty")
	}
	if !key.IsValid() {
		return nil, shared.NewDomainErrorf("VALIDATION", "invalid distribution key %q", key)
	}
	if totalExpense.IsNegative() {
		return nil, shared.NewDomainError("VALIDATION", "total expense cannot be negative")
	}
	return &Run{
		OrgAggregateRoot: shared.NewOrgAggregateRoot(orgID),
		PropertyID:       propertyID,
		Year:             year,
		Key:              key,
		TotalExpense:     totalExpense.Round(2),
		Status:           RunStatusDraft,
	}, nil
}

// Finalize closes the run after the statutory deadline check passes
func (r *Run) Finalize(at time.Time) error {
	if r.Status == RunStatusFinalized {
		return shared.NewDomainError("INVALID_STATE", "settlement run is already finalized")
	}
	if err := CheckDeadline(r.Year, at); err != nil {
		return err
	}
	r.Status = RunStatusFinalized
	r.FinalizedAt = &at
	r.Touch()
	r.IncrementVersion()
	return nil
}

// DistributionEntry is one persisted unit share of a settlement run
type DistributionEntry struct {
	shared.BaseEntity
	RunID     uuid.UUID       `json:"run_id"`
	UnitID    uuid.UUID       `json:"unit_id"`
	TenantID  *uuid.UUID      `json:"tenant_id,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	ChargedTo ChargedTo       `json:"charged_to"`
	Residual  bool            `json:"residual"`
}

// EntriesForRun converts a computed distribution into persistable entries
func EntriesForRun(runID uuid.UUID, dist *Distribution) []DistributionEntry {
	entries := make([]DistributionEntry, 0, len(dist.Shares))
	for _, share := range dist.Shares {
		entries = append(entries, DistributionEntry{
			BaseEntity: shared.NewBaseEntity(),
			RunID:      runID,
			UnitID:     share.UnitID,
			TenantID:   share.TenantID,
			Amount:     share.Amount,
			ChargedTo:  share.ChargedTo,
			Residual:   share.Residual,
		})
	}
	return entries
}
