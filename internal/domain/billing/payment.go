package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/immoflow/backend/internal/domain/shared"
	"github.com/immoflow/backend/internal/domain/shared/valueobject"
)

// PaymentSource identifies how a payment entered the system
type PaymentSource string

const (
	PaymentSourceBankImport PaymentSource = "bank_import"
	PaymentSourceManual     PaymentSource = "manual"
)

// IsValid checks if the payment source is valid
func (s PaymentSource) IsValid() bool {
	return s == PaymentSourceBankImport || s == PaymentSourceManual
}

// Payment is an incoming amount from a tenant. Payments are immutable once
// posted: they are never deleted, only reversed through a storno ledger
// entry. UnappliedAmount tracks the overpayment remainder left after
// allocation; it is surfaced on the record, never silently dropped.
type Payment struct {
	shared.OrgAggregateRoot
	TenantID        uuid.UUID       `json:"tenant_id"`
	Amount          decimal.Decimal `json:"amount"`
	UnappliedAmount decimal.Decimal `json:"unapplied_amount"`
	BookingDate     time.Time       `json:"booking_date"`
	Source          PaymentSource   `json:"source"`
	Reference       string          `json:"reference,omitempty"` // bank statement reference
	ReversedAt      *time.Time      `json:"reversed_at,omitempty"`
}

// NewPayment creates a new posted payment
func NewPayment(orgID, tenantID uuid.UUID, amount valueobject.Money, bookingDate time.Time, source PaymentSource, reference string) (*Payment, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("VALIDATION", "tenant ID cannot be empty")
	}
	if !amount.IsPositive() {
		return nil, shared.NewDomainError("VALIDATION", "payment amount must be positive")
	}
	if !source.IsValid() {
		return nil, shared.NewDomainErrorf("VALIDATION", "invalid payment source %q", source)
	}
	rounded := amount.RoundCents()
	return &Payment{
		OrgAggregateRoot: shared.NewOrgAggregateRoot(orgID),
		TenantID:         tenantID,
		Amount:           rounded.Amount(),
		UnappliedAmount:  rounded.Amount(),
		BookingDate:      bookingDate,
		Source:           source,
		Reference:        reference,
	}, nil
}

// IsReversed reports whether a storno has been posted against this payment
func (p *Payment) IsReversed() bool {
	return p.ReversedAt != nil
}

// MarkReversed records the storno timestamp and clears the unapplied
// remainder; the debt reopening itself lives in the ledger.
func (p *Payment) MarkReversed(at time.Time) error {
	if p.IsReversed() {
		return shared.ErrAlreadyReversed
	}
	p.ReversedAt = &at
	p.UnappliedAmount = decimal.Zero
	p.Touch()
	p.IncrementVersion()
	return nil
}

// SetUnapplied replaces the unapplied remainder after an allocation run
func (p *Payment) SetUnapplied(unapplied decimal.Decimal) error {
	if unapplied.IsNegative() {
		return shared.NewDomainError("VALIDATION", "unapplied amount cannot be negative")
	}
	if unapplied.GreaterThan(p.Amount) {
		return shared.NewDomainError("VALIDATION", "unapplied amount cannot exceed payment amount")
	}
	p.UnappliedAmount = unapplied.Round(2)
	p.Touch()
	p.IncrementVersion()
	return nil
}
