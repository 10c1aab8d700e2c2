package dunning

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/immoflow/backend/internal/domain/shared"
)

// Level is the dunning escalation stage of an overdue invoice
type Level int

const (
	LevelOpen          Level = 0 // within grace period
	LevelReminder      Level = 1 // Zahlungserinnerung
	LevelFirstDunning  Level = 2 // 1. Mahnung
	LevelSecondDunning Level = 3 // 2. Mahnung
)

// Escalation thresholds in days overdue
const (
	ReminderDays      = 14
	FirstDunningDays  = 30
	SecondDunningDays = 45
)

// InterestRate is the statutory default interest rate for money debts
// between private parties (ABGB §1333): 4% per year, simple interest.
var InterestRate = decimal.NewFromFloat(0.04)

// feeFor maps a dunning level to its flat fee
func feeFor(level Level) decimal.Decimal {
	switch level {
	case LevelFirstDunning:
		return decimal.NewFromInt(5)
	case LevelSecondDunning:
		return decimal.NewFromInt(10)
	default:
		return decimal.Zero
	}
}

// LevelFor maps days overdue to the nominal dunning level. It is
// non-decreasing in daysOverdue.
func LevelFor(daysOverdue int) Level {
	switch {
	case daysOverdue >= SecondDunningDays:
		return LevelSecondDunning
	case daysOverdue >= FirstDunningDays:
		return LevelFirstDunning
	case daysOverdue >= ReminderDays:
		return LevelReminder
	default:
		return LevelOpen
	}
}

// CalculateInterest computes simple, non-compounding statutory interest:
// amount * 0.04 * days/365, rounded to cents. A reminder carries no
// interest; accrual starts with the first dunning level at 30 days.
func CalculateInterest(amount decimal.Decimal, daysOverdue int) decimal.Decimal {
	if daysOverdue < FirstDunningDays {
		return decimal.Zero
	}
	days := decimal.NewFromInt(int64(daysOverdue))
	year := decimal.NewFromInt(365)
	return amount.Mul(InterestRate).Mul(days).Div(year).Round(2)
}

// Case tracks the dunning state of one overdue invoice. The level only
// ever increases; fee and interest are derived from daysOverdue on every
// check rather than accumulated, which makes escalation idempotent and
// safe against double-applied charges on retry.
type Case struct {
	shared.OrgAggregateRoot
	InvoiceID   uuid.UUID       `json:"invoice_id"`
	TenantID    uuid.UUID       `json:"tenant_id"`
	Level       Level           `json:"level"`
	DaysOverdue int             `json:"days_overdue"`
	Principal   decimal.Decimal `json:"principal"`
	Fee         decimal.Decimal `json:"fee"`
	Interest    decimal.Decimal `json:"interest"`
	ClearedAt   *time.Time      `json:"cleared_at,omitempty"`
}

// NewCase opens a dunning case for an overdue invoice
func NewCase(orgID, invoiceID, tenantID uuid.UUID, principal decimal.Decimal) (*Case, error) {
	if invoiceID == uuid.Nil || tenantID == uuid.Nil {
		return nil, shared.NewDomainError("VALIDATION", "dunning case requires invoice and tenant IDs")
	}
	if !principal.IsPositive() {
		return nil, shared.NewDomainError("VALIDATION", "principal must be positive")
	}
	return &Case{
		OrgAggregateRoot: shared.NewOrgAggregateRoot(orgID),
		InvoiceID:        invoiceID,
		TenantID:         tenantID,
		Level:            LevelOpen,
		Principal:        principal.Round(2),
	}, nil
}

// Escalate recomputes the case from the current days overdue. The level
// never regresses, even if a later check sees a lower nominal level from
// stale data. Returns true when the level actually moved up.
func (c *Case) Escalate(daysOverdue int, principal decimal.Decimal) (bool, error) {
	if c.ClearedAt != nil {
		return false, shared.NewDomainError("INVALID_STATE", "case is already cleared")
	}
	if daysOverdue < 0 {
		return false, shared.NewDomainError("VALIDATION", "days overdue cannot be negative")
	}

	c.DaysOverdue = daysOverdue
	c.Principal = principal.Round(2)

	escalated := false
	if nominal := LevelFor(daysOverdue); nominal > c.Level {
		c.Level = nominal
		escalated = true
	}

	// Derived, not accumulated: recomputing twice on the same day yields
	// the same fee and interest.
	c.Fee = feeFor(c.Level)
	c.Interest = CalculateInterest(c.Principal, daysOverdue)
	c.Touch()
	c.IncrementVersion()
	return escalated, nil
}

// TotalDue is principal plus the current level's fee plus accrued interest
func (c *Case) TotalDue() decimal.Decimal {
	return c.Principal.Add(c.Fee).Add(c.Interest).Round(2)
}

// Clear closes the case once the invoice is fully paid
func (c *Case) Clear(at time.Time) {
	if c.ClearedAt != nil {
		return
	}
	c.ClearedAt = &at
	c.Touch()
	c.IncrementVersion()
}

// IsCleared reports whether the case has been closed
func (c *Case) IsCleared() bool {
	return c.ClearedAt != nil
}
