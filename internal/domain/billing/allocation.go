package billing

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/immoflow/backend/internal/domain/shared"
)

// AllocationSource tags how an allocation came to be
type AllocationSource string

const (
	AllocationSourceManual AllocationSource = "manual"
	AllocationSourceFIFO   AllocationSource = "fifo"
	AllocationSourceSeed   AllocationSource = "seed"   // initial data load
	AllocationSourceRepair AllocationSource = "repair" // reassignment script
)

// IsValid checks if the allocation source is valid
func (s AllocationSource) IsValid() bool {
	switch s {
	case AllocationSourceManual, AllocationSourceFIFO, AllocationSourceSeed, AllocationSourceRepair:
		return true
	}
	return false
}

// CategorySplit is the per-cost-category breakdown of one allocation.
// VATAmount is apportioned from the gross actually applied to the
// category, not from the nominal invoice line.
type CategorySplit struct {
	Type        LineType        `json:"type"`
	GrossAmount decimal.Decimal `json:"gross_amount"`
	VATAmount   decimal.Decimal `json:"vat_amount"`
}

// CategorySplits is a JSONB-persisted collection of category splits
type CategorySplits []CategorySplit

// Value implements driver.Valuer for GORM to store splits as JSONB
func (s CategorySplits) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner for GORM to read splits from JSONB
func (s *CategorySplits) Scan(value interface{}) error {
	if value == nil {
		*s = CategorySplits{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into CategorySplits", value)
	}
	return json.Unmarshal(bytes, s)
}

// Allocation links one payment to one invoice with the amount applied.
// For a given payment the sum of applied amounts never exceeds the
// payment amount; the remainder lives on Payment.UnappliedAmount.
type Allocation struct {
	shared.BaseEntity
	PaymentID     uuid.UUID        `json:"payment_id"`
	InvoiceID     uuid.UUID        `json:"invoice_id"`
	AppliedAmount decimal.Decimal  `json:"applied_amount"`
	Source        AllocationSource `json:"source"`
	Splits        CategorySplits   `json:"splits,omitempty"`
	BookedAt      time.Time        `json:"booked_at"`
}

// NewAllocation creates a new allocation of a payment to an invoice
func NewAllocation(paymentID, invoiceID uuid.UUID, applied decimal.Decimal, source AllocationSource, splits []CategorySplit) (*Allocation, error) {
	if paymentID == uuid.Nil || invoiceID == uuid.Nil {
		return nil, shared.NewDomainError("VALIDATION", "allocation requires payment and invoice IDs")
	}
	if !applied.IsPositive() {
		return nil, shared.NewDomainError("VALIDATION", "applied amount must be positive")
	}
	if !source.IsValid() {
		return nil, shared.NewDomainErrorf("VALIDATION", "invalid allocation source %q", source)
	}
	for _, split := range splits {
		if !split.Type.IsValid() {
			return nil, shared.NewDomainErrorf("VALIDATION", "invalid split type %q", split.Type)
		}
	}
	return &Allocation{
		BaseEntity:    shared.NewBaseEntity(),
		PaymentID:     paymentID,
		InvoiceID:     invoiceID,
		AppliedAmount: applied.Round(2),
		Source:        source,
		Splits:        splits,
		BookedAt:      time.Now(),
	}, nil
}

// TotalSplitAmount returns the sum of the category split gross amounts
func (a *Allocation) TotalSplitAmount() decimal.Decimal {
	total := decimal.Zero
	for _, s := range a.Splits {
		total = total.Add(s.GrossAmount)
	}
	return total
}
