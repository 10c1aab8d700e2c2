package billing

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/immoflow/backend/internal/domain/shared"
	"github.com/immoflow/backend/internal/domain/shared/strategy"
)

// AllocationMode selects how a payment is spread over invoices
type AllocationMode string

const (
	AllocationModeFIFO      AllocationMode = "fifo"      // oldest invoice first, across invoices
	AllocationModeWaterfall AllocationMode = "waterfall" // category waterfall within one invoice
)

// IsValid checks if the allocation mode is valid
func (m AllocationMode) IsValid() bool {
	return m == AllocationModeFIFO || m == AllocationModeWaterfall
}

// PlannedAllocation is one allocation a strategy wants to make
type PlannedAllocation struct {
	InvoiceID     uuid.UUID
	InvoiceNumber string
	AppliedAmount decimal.Decimal
	Splits        []CategorySplit
}

// AllocationPlan is the complete outcome of running an allocation strategy.
// Conservation invariant: TotalApplied + Unapplied equals the payment
// amount exactly, for any input.
type AllocationPlan struct {
	Allocations           []PlannedAllocation
	TotalApplied          decimal.Decimal
	Unapplied             decimal.Decimal
	InvoicesFullyPaid     []uuid.UUID
	InvoicesPartiallyPaid []uuid.UUID
}

// AllocationStrategy plans how to apply a payment amount to invoices.
// Strategies are pure: they never touch the store, only compute a plan
// over already-fetched invoices.
type AllocationStrategy interface {
	strategy.Strategy
	Mode() AllocationMode
	Allocate(payment *Payment, invoices []Invoice) (*AllocationPlan, error)
}

// categoryFill distributes an applied gross amount over the invoice's
// category lines in waterfall order (operating -> heating -> rent), each
// category filled to its gross target before the next. VAT is apportioned
// from the gross actually applied per category.
func categoryFill(inv *Invoice, applied decimal.Decimal) []CategorySplit {
	splits := make([]CategorySplit, 0, len(inv.Lines))
	remaining := applied
	for _, lineType := range WaterfallOrder() {
		if remaining.LessThanOrEqual(decimal.Zero) {
			break
		}
		line := inv.Line(lineType)
		if line == nil {
			continue
		}
		target := line.GrossAmount().Amount()
		if target.LessThanOrEqual(decimal.Zero) {
			continue
		}
		fill := decimal.Min(remaining, target)
		splits = append(splits, CategorySplit{
			Type:        lineType,
			GrossAmount: fill.Round(2),
			VATAmount:   vatPortion(fill, line.VATRate),
		})
		remaining = remaining.Sub(fill)
	}
	return splits
}

// vatPortion is gross * rate / (1 + rate), rounded to cents
func vatPortion(gross, rate decimal.Decimal) decimal.Decimal {
	if rate.IsZero() {
		return decimal.Zero
	}
	one := decimal.NewFromInt(1)
	return gross.Mul(rate).Div(one.Add(rate)).Round(2)
}

// FIFOAllocationStrategy applies a payment to the oldest open invoices
// first, ordered by accounting period ascending. Any remainder after all
// invoices are exhausted is reported as unapplied overpayment.
type FIFOAllocationStrategy struct {
	strategy.BaseStrategy
}

// NewFIFOAllocationStrategy creates a new FIFO allocation strategy
func NewFIFOAllocationStrategy() *FIFOAllocationStrategy {
	return &FIFOAllocationStrategy{
		BaseStrategy: strategy.NewBaseStrategy(
			"fifo_allocation",
			strategy.StrategyTypeAllocation,
			"applies a payment to open invoices in chronological period order",
		),
	}
}

// Mode returns the allocation mode
func (s *FIFOAllocationStrategy) Mode() AllocationMode {
	return AllocationModeFIFO
}

// Allocate plans a FIFO allocation of the payment over the given invoices
func (s *FIFOAllocationStrategy) Allocate(payment *Payment, invoices []Invoice) (*AllocationPlan, error) {
	if payment == nil {
		return nil, shared.NewDomainError("VALIDATION", "payment cannot be nil")
	}
	if payment.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("VALIDATION", "payment amount must be positive")
	}

	// Chronological order by (year, month); equal periods fall back to
	// invoice number for a deterministic ordering.
	sorted := make([]Invoice, len(invoices))
	copy(sorted, invoices)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].Period.Equal(sorted[j].Period) {
			return sorted[i].Period.Before(sorted[j].Period)
		}
		return sorted[i].InvoiceNumber < sorted[j].InvoiceNumber
	})

	plan := &AllocationPlan{
		Allocations:           make([]PlannedAllocation, 0, len(sorted)),
		TotalApplied:          decimal.Zero,
		InvoicesFullyPaid:     make([]uuid.UUID, 0),
		InvoicesPartiallyPaid: make([]uuid.UUID, 0),
	}

	remaining := payment.Amount.Round(2)
	for i := range sorted {
		if remaining.IsZero() {
			break
		}
		inv := &sorted[i]
		if !inv.Status.CanReceiveAllocation() {
			continue
		}
		outstanding := inv.OutstandingAmount().Round(2)
		if outstanding.LessThanOrEqual(decimal.Zero) {
			continue
		}

		applied := decimal.Min(remaining, outstanding).Round(2)
		plan.Allocations = append(plan.Allocations, PlannedAllocation{
			InvoiceID:     inv.ID,
			InvoiceNumber: inv.InvoiceNumber,
			AppliedAmount: applied,
			Splits:        categoryFill(inv, applied),
		})
		plan.TotalApplied = plan.TotalApplied.Add(applied)
		remaining = remaining.Sub(applied)

		if applied.GreaterThanOrEqual(outstanding) {
			plan.InvoicesFullyPaid = append(plan.InvoicesFullyPaid, inv.ID)
		} else {
			plan.InvoicesPartiallyPaid = append(plan.InvoicesPartiallyPaid, inv.ID)
		}
	}

	plan.Unapplied = remaining
	return plan, nil
}

// CategoryWaterfallStrategy fills the cost categories of a single invoice
// in fixed priority order: operating costs, then heating, then base rent.
type CategoryWaterfallStrategy struct {
	strategy.BaseStrategy
}

// NewCategoryWaterfallStrategy creates a new category waterfall strategy
func NewCategoryWaterfallStrategy() *CategoryWaterfallStrategy {
	return &CategoryWaterfallStrategy{
		BaseStrategy: strategy.NewBaseStrategy(
			"category_waterfall",
			strategy.StrategyTypeAllocation,
			"fills operating costs, heating, then base rent within one invoice",
		),
	}
}

// Mode returns the allocation mode
func (s *CategoryWaterfallStrategy) Mode() AllocationMode {
	return AllocationModeWaterfall
}

// Allocate plans a waterfall allocation against exactly one invoice
func (s *CategoryWaterfallStrategy) Allocate(payment *Payment, invoices []Invoice) (*AllocationPlan, error) {
	if payment == nil {
		return nil, shared.NewDomainError("VALIDATION", "payment cannot be nil")
	}
	if len(invoices) != 1 {
		return nil, shared.NewDomainErrorf("VALIDATION", "waterfall mode expects exactly one invoice, got %d", len(invoices))
	}
	inv := &invoices[0]
	if !inv.Status.CanReceiveAllocation() {
		return nil, shared.NewDomainErrorf("INVALID_STATE", "invoice %s cannot receive allocations in status %s", inv.InvoiceNumber, inv.Status)
	}

	remaining := payment.Amount.Round(2)
	outstanding := inv.OutstandingAmount().Round(2)
	applied := decimal.Min(remaining, outstanding).Round(2)

	plan := &AllocationPlan{
		Allocations:           make([]PlannedAllocation, 0, 1),
		TotalApplied:          decimal.Zero,
		Unapplied:             remaining,
		InvoicesFullyPaid:     make([]uuid.UUID, 0),
		InvoicesPartiallyPaid: make([]uuid.UUID, 0),
	}
	if applied.LessThanOrEqual(decimal.Zero) {
		return plan, nil
	}

	plan.Allocations = append(plan.Allocations, PlannedAllocation{
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		AppliedAmount: applied,
		Splits:        categoryFill(inv, applied),
	})
	plan.TotalApplied = applied
	plan.Unapplied = remaining.Sub(applied)
	if applied.GreaterThanOrEqual(outstanding) {
		plan.InvoicesFullyPaid = append(plan.InvoicesFullyPaid, inv.ID)
	} else {
		plan.InvoicesPartiallyPaid = append(plan.InvoicesPartiallyPaid, inv.ID)
	}
	return plan, nil
}

// StrategyForMode returns the allocation strategy for the given mode
func StrategyForMode(mode AllocationMode) (AllocationStrategy, error) {
	switch mode {
	case AllocationModeFIFO:
		return NewFIFOAllocationStrategy(), nil
	case AllocationModeWaterfall:
		return NewCategoryWaterfallStrategy(), nil
	default:
		return nil, shared.NewDomainErrorf("VALIDATION", "unknown allocation mode %q", mode)
	}
}
