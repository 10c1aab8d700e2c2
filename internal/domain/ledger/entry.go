package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/immoflow/backend/internal/domain/shared"
)

// EntryType identifies the kind of ledger entry
type EntryType string

const (
	EntryTypeSoll     EntryType = "soll"     // debit: debt owed by the tenant
	EntryTypeIst      EntryType = "ist"      // credit: payment received
	EntryTypeStorno   EntryType = "storno"   // reversal: reopens previously settled debt
	EntryTypeInterest EntryType = "interest" // statutory default interest
	EntryTypeFee      EntryType = "fee"      // dunning fee
)

// IsValid checks if the entry type is valid
func (t EntryType) IsValid() bool {
	switch t {
	case EntryTypeSoll, EntryTypeIst, EntryTypeStorno, EntryTypeInterest, EntryTypeFee:
		return true
	}
	return false
}

// String returns the string representation of EntryType
func (t EntryType) String() string {
	return string(t)
}

// Entry is one append-only ledger posting for a tenant. History is never
// mutated: corrections are expressed as additional entries (storno), so
// the saldo of any point in time stays reproducible.
type Entry struct {
	shared.BaseEntity
	OrgID       uuid.UUID       `json:"org_id"`
	TenantID    uuid.UUID       `json:"tenant_id"`
	InvoiceID   *uuid.UUID      `json:"invoice_id,omitempty"`
	PaymentID   *uuid.UUID      `json:"payment_id,omitempty"`
	Type        EntryType       `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	BookingDate time.Time       `json:"booking_date"`
	Description string          `json:"description,omitempty"`
}

// NewEntry creates a validated ledger entry
func NewEntry(orgID, tenantID uuid.UUID, entryType EntryType, amount decimal.Decimal, bookingDate time.Time, description string) (*Entry, error) {
	if orgID == uuid.Nil || tenantID == uuid.Nil {
		return nil, shared.NewDomainError("VALIDATION", "ledger entry requires org and tenant IDs")
	}
	if !entryType.IsValid() {
		return nil, shared.NewDomainErrorf("VALIDATION", "invalid entry type %q", entryType)
	}
	if !amount.IsPositive() {
		return nil, shared.NewDomainError("VALIDATION", "entry amount must be positive")
	}
	return &Entry{
		BaseEntity:  shared.NewBaseEntity(),
		OrgID:       orgID,
		TenantID:    tenantID,
		Type:        entryType,
		Amount:      amount.Round(2),
		BookingDate: bookingDate,
		Description: description,
	}, nil
}

// WithInvoice attaches an invoice reference
func (e *Entry) WithInvoice(invoiceID uuid.UUID) *Entry {
	e.InvoiceID = &invoiceID
	return e
}

// WithPayment attaches a payment reference
func (e *Entry) WithPayment(paymentID uuid.UUID) *Entry {
	e.PaymentID = &paymentID
	return e
}

// ComputeSaldo folds the given entries into the tenant's balance:
//
//	saldo = sum(soll, interest, fee) - sum(ist) + sum(storno)
//
// A positive saldo is debt owed by the tenant. The fold is pure and
// order-independent, so recomputing over the same entry set always yields
// the same result.
func ComputeSaldo(entries []Entry) decimal.Decimal {
	saldo := decimal.Zero
	for _, e := range entries {
		switch e.Type {
		case EntryTypeSoll, EntryTypeInterest, EntryTypeFee, EntryTypeStorno:
			saldo = saldo.Add(e.Amount)
		case EntryTypeIst:
			saldo = saldo.Sub(e.Amount)
		}
	}
	return saldo.Round(2)
}

// StornoFor builds the reversal entry for a payment's ist entry. The
// original entry is left untouched; the storno adds the debt back.
func StornoFor(original *Entry, bookingDate time.Time, reason string) (*Entry, error) {
	if original == nil {
		return nil, shared.ErrNotFound
	}
	if original.Type != EntryTypeIst {
		return nil, shared.NewDomainErrorf("VALIDATION", "can only reverse ist entries, got %s", original.Type)
	}
	storno, err := NewEntry(original.OrgID, original.TenantID, EntryTypeStorno, original.Amount, bookingDate, reason)
	if err != nil {
		return nil, err
	}
	storno.InvoiceID = original.InvoiceID
	storno.PaymentID = original.PaymentID
	return storno, nil
}
