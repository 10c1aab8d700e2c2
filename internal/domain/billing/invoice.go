package billing

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/immoflow/backend/internal/domain/shared"
	"github.com/immoflow/backend/internal/domain/shared/valueobject"
)

// InvoiceStatus represents the payment status of an invoice
type InvoiceStatus string

const (
	InvoiceStatusOpen          InvoiceStatus = "open"
	InvoiceStatusPartiallyPaid InvoiceStatus = "partially_paid"
	InvoiceStatusPaid          InvoiceStatus = "paid"
	InvoiceStatusCanceled      InvoiceStatus = "canceled"
)

// IsValid checks if the status is a valid InvoiceStatus
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusOpen, InvoiceStatusPartiallyPaid, InvoiceStatusPaid, InvoiceStatusCanceled:
		return true
	}
	return false
}

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// CanReceiveAllocation returns true if allocations may be applied in this status
func (s InvoiceStatus) CanReceiveAllocation() bool {
	return s == InvoiceStatusOpen || s == InvoiceStatusPartiallyPaid
}

// LineType identifies the cost category of an invoice line
type LineType string

const (
	LineTypeRent      LineType = "rent"      // base rent (Hauptmietzins)
	LineTypeOperating LineType = "operating" // Betriebskosten
	LineTypeHeating   LineType = "heating"   // Heizkosten
)

// IsValid checks if the line type is valid
func (t LineType) IsValid() bool {
	switch t {
	case LineTypeRent, LineTypeOperating, LineTypeHeating:
		return true
	}
	return false
}

// WaterfallOrder lists line types in allocation priority: operating costs
// first, then heating, base rent last.
func WaterfallOrder() []LineType {
	return []LineType{LineTypeOperating, LineTypeHeating, LineTypeRent}
}

// Period identifies one accounting period (year + month)
type Period struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// NewPeriod creates a validated accounting period
func NewPeriod(year, month int) (Period, error) {
	if year < 2000 || year > 2100 {
		return Period{}, shared.NewDomainErrorf("VALIDATION", "year %d out of range", year)
	}
	if month < 1 || month > 12 {
		return Period{}, shared.NewDomainErrorf("VALIDATION", "month %d out of range", month)
	}
	return Period{Year: year, Month: month}, nil
}

// Before reports whether p is chronologically before other
func (p Period) Before(other Period) bool {
	if p.Year != other.Year {
		return p.Year < other.Year
	}
	return p.Month < other.Month
}

// Equal reports whether two periods are the same
func (p Period) Equal(other Period) bool {
	return p.Year == other.Year && p.Month == other.Month
}

// String returns the period as "YYYY-MM"
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// InvoiceLine is one cost-category line of an invoice.
// NetAmount is exclusive of VAT; the gross target of the line is
// NetAmount * (1 + VATRate), rounded to cents.
type InvoiceLine struct {
	Type        LineType        `json:"type"`
	Description string          `json:"description,omitempty"`
	NetAmount   decimal.Decimal `json:"net_amount"`
	VATRate     decimal.Decimal `json:"vat_rate"`
	// Meta carries free-form annotations from batch imports, e.g. the
	// source system's row reference. Opaque to billing itself.
	Meta string `json:"meta,omitempty"`
}

// GrossAmount returns the VAT-inclusive amount of the line, rounded to cents
func (l InvoiceLine) GrossAmount() valueobject.Money {
	return valueobject.NewMoneyEUR(l.NetAmount).GrossFromNet(l.VATRate)
}

// InvoiceLines is a JSONB-persisted collection of invoice lines
type InvoiceLines []InvoiceLine

// Value implements driver.Valuer for GORM to store lines as JSONB
func (l InvoiceLines) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner for GORM to read lines from JSONB
func (l *InvoiceLines) Scan(value interface{}) error {
	if value == nil {
		*l = InvoiceLines{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into InvoiceLines", value)
	}
	return json.Unmarshal(bytes, l)
}

// Invoice is the aggregate root for one tenant invoice in one accounting
// period. PaidAmount is never incremented in place: it is always recomputed
// from the invoice's current allocation set, which keeps the allocation
// path safe to retry.
type Invoice struct {
	shared.OrgAggregateRoot
	InvoiceNumber string          `json:"invoice_number"`
	TenantID      uuid.UUID       `json:"tenant_id"` // renter (Mieter)
	UnitID        uuid.UUID       `json:"unit_id"`
	Period        Period          `json:"period"`
	Lines         InvoiceLines    `json:"lines"`
	GrossAmount   decimal.Decimal `json:"gross_amount"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	Status        InvoiceStatus   `json:"status"`
	DueDate       time.Time       `json:"due_date"`
	CanceledAt    *time.Time      `json:"canceled_at,omitempty"`
}

// NewInvoice creates a new invoice with its gross amount derived from the lines
func NewInvoice(orgID uuid.UUID, invoiceNumber string, tenantID, unitID uuid.UUID, period Period, lines []InvoiceLine, dueDate time.Time) (*Invoice, error) {
	if invoiceNumber == "" {
		return nil, shared.NewDomainError("VALIDATION", "invoice number cannot be empty")
	}
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("VALIDATION", "tenant ID cannot be empty")
	}
	if unitID == uuid.Nil {
		return nil, shared.NewDomainError("VALIDATION", "unit ID cannot be empty")
	}
	if len(lines) == 0 {
		return nil, shared.NewDomainError("VALIDATION", "invoice needs at least one line")
	}
	gross := valueobject.ZeroEUR()
	for _, line := range lines {
		if !line.Type.IsValid() {
			return nil, shared.NewDomainErrorf("VALIDATION", "invalid line type %q", line.Type)
		}
		if line.NetAmount.IsNegative() {
			return nil, shared.NewDomainError("VALIDATION", "line net amount cannot be negative")
		}
		if line.VATRate.IsNegative() {
			return nil, shared.NewDomainError("VALIDATION", "line VAT rate cannot be negative")
		}
		gross = gross.MustAdd(line.GrossAmount())
	}

	return &Invoice{
		OrgAggregateRoot: shared.NewOrgAggregateRoot(orgID),
		InvoiceNumber:    invoiceNumber,
		TenantID:         tenantID,
		UnitID:           unitID,
		Period:           period,
		Lines:            lines,
		GrossAmount:      gross.Amount(),
		PaidAmount:       decimal.Zero,
		Status:           InvoiceStatusOpen,
		DueDate:          dueDate,
	}, nil
}

// Line returns the line of the given type, or nil when the invoice has none
func (inv *Invoice) Line(t LineType) *InvoiceLine {
	for i := range inv.Lines {
		if inv.Lines[i].Type == t {
			return &inv.Lines[i]
		}
	}
	return nil
}

// UpsertLine replaces the line of the same type or appends a new one,
// then rederives gross amount and status. Returns false when the line
// matched the existing one exactly and nothing moved.
func (inv *Invoice) UpsertLine(line InvoiceLine) (bool, error) {
	if inv.Status == InvoiceStatusCanceled {
		return false, shared.NewDomainErrorf("INVALID_STATE", "invoice %s is canceled", inv.InvoiceNumber)
	}
	if !line.Type.IsValid() {
		return false, shared.NewDomainErrorf("VALIDATION", "invalid line type %q", line.Type)
	}
	if line.NetAmount.IsNegative() {
		return false, shared.NewDomainError("VALIDATION", "line net amount cannot be negative")
	}
	if line.VATRate.IsNegative() {
		return false, shared.NewDomainError("VALIDATION", "line VAT rate cannot be negative")
	}

	replaced := false
	for i := range inv.Lines {
		if inv.Lines[i].Type == line.Type {
			if inv.Lines[i].NetAmount.Equal(line.NetAmount) &&
				inv.Lines[i].VATRate.Equal(line.VATRate) &&
				inv.Lines[i].Description == line.Description &&
				inv.Lines[i].Meta == line.Meta {
				return false, nil
			}
			inv.Lines[i] = line
			replaced = true
			break
		}
	}
	if !replaced {
		inv.Lines = append(inv.Lines, line)
	}

	gross := valueobject.ZeroEUR()
	for _, l := range inv.Lines {
		gross = gross.MustAdd(l.GrossAmount())
	}
	inv.GrossAmount = gross.Amount()
	inv.Status = statusFor(inv.PaidAmount, inv.GrossAmount)
	inv.Touch()
	inv.IncrementVersion()
	return true, nil
}

// OutstandingAmount returns gross minus paid, floored at zero
func (inv *Invoice) OutstandingAmount() decimal.Decimal {
	outstanding := inv.GrossAmount.Sub(inv.PaidAmount)
	if outstanding.IsNegative() {
		return decimal.Zero
	}
	return outstanding
}

// statusFor derives the status from paid vs gross. Status is a pure
// function of the two amounts; cancellation is the only exception.
func statusFor(paid, gross decimal.Decimal) InvoiceStatus {
	switch {
	case paid.GreaterThanOrEqual(gross):
		return InvoiceStatusPaid
	case paid.IsPositive():
		return InvoiceStatusPartiallyPaid
	default:
		return InvoiceStatusOpen
	}
}

// RecomputeFromAllocations replaces PaidAmount and Status with values
// derived from the given allocation set. Passing the invoice's complete
// current set (not a delta) makes repeated allocation runs converge.
func (inv *Invoice) RecomputeFromAllocations(allocations []Allocation) error {
	if inv.Status == InvoiceStatusCanceled {
		return shared.NewDomainErrorf("INVALID_STATE", "invoice %s is canceled", inv.InvoiceNumber)
	}
	paid := decimal.Zero
	for _, a := range allocations {
		if a.InvoiceID != inv.ID {
			return shared.NewDomainErrorf("VALIDATION", "allocation %s does not belong to invoice %s", a.ID, inv.InvoiceNumber)
		}
		paid = paid.Add(a.AppliedAmount)
	}
	inv.PaidAmount = paid.Round(2)
	inv.Status = statusFor(inv.PaidAmount, inv.GrossAmount)
	inv.Touch()
	inv.IncrementVersion()
	return nil
}

// Cancel marks the invoice canceled. Only unpaid invoices can be canceled.
func (inv *Invoice) Cancel() error {
	if !inv.PaidAmount.IsZero() {
		return shared.NewDomainErrorf("INVALID_STATE", "cannot cancel invoice %s with payments applied", inv.InvoiceNumber)
	}
	if inv.Status == InvoiceStatusCanceled {
		return nil
	}
	now := time.Now()
	inv.Status = InvoiceStatusCanceled
	inv.CanceledAt = &now
	inv.UpdatedAt = now
	inv.IncrementVersion()
	return nil
}

// DaysOverdue returns the number of whole days the invoice is past due at
// the given reference time, zero when not yet due or already paid.
func (inv *Invoice) DaysOverdue(at time.Time) int {
	if inv.Status == InvoiceStatusPaid || inv.Status == InvoiceStatusCanceled {
		return 0
	}
	if !at.After(inv.DueDate) {
		return 0
	}
	return int(at.Sub(inv.DueDate).Hours() / 24)
}
