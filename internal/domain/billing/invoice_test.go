package billing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInvoice(t *testing.T) {
	lines := []InvoiceLine{
		{Type: LineTypeRent, NetAmount: decimal.NewFromInt(500), VATRate: decimal.NewFromFloat(0.10)},
		{Type: LineTypeOperating, NetAmount: decimal.NewFromInt(200), VATRate: decimal.NewFromFloat(0.10)},
	}

	t.Run("derives gross amount from lines", func(t *testing.T) {
		inv, err := NewInvoice(uuid.New(), "INV-1", uuid.New(), uuid.New(), Period{Year: 2026, Month: 1}, lines, time.Now())
		require.NoError(t, err)
		// 550 + 220
		assert.True(t, inv.GrossAmount.Equal(decimal.NewFromInt(770)))
		assert.Equal(t, InvoiceStatusOpen, inv.Status)
		assert.True(t, inv.PaidAmount.IsZero())
		assert.Equal(t, 1, inv.Version)
	})

	t.Run("rejects empty lines", func(t *testing.T) {
		_, err := NewInvoice(uuid.New(), "INV-1", uuid.New(), uuid.New(), Period{Year: 2026, Month: 1}, nil, time.Now())
		assert.Error(t, err)
	})

	t.Run("rejects negative net amount", func(t *testing.T) {
		bad := []InvoiceLine{{Type: LineTypeRent, NetAmount: decimal.NewFromInt(-1), VATRate: decimal.Zero}}
		_, err := NewInvoice(uuid.New(), "INV-1", uuid.New(), uuid.New(), Period{Year: 2026, Month: 1}, bad, time.Now())
		assert.Error(t, err)
	})
}

func TestRecomputeFromAllocations(t *testing.T) {
	newInv := func(t *testing.T) *Invoice {
		return rentOnlyInvoice(t, "INV-R", Period{Year: 2026, Month: 1}, 400)
	}

	t.Run("status is derived from paid vs gross", func(t *testing.T) {
		inv := newInv(t)
		paymentID := uuid.New()

		half, err := NewAllocation(paymentID, inv.ID, decimal.NewFromInt(200), AllocationSourceFIFO, nil)
		require.NoError(t, err)
		require.NoError(t, inv.RecomputeFromAllocations([]Allocation{*half}))
		assert.Equal(t, InvoiceStatusPartiallyPaid, inv.Status)

		rest, err := NewAllocation(paymentID, inv.ID, decimal.NewFromInt(200), AllocationSourceFIFO, nil)
		require.NoError(t, err)
		require.NoError(t, inv.RecomputeFromAllocations([]Allocation{*half, *rest}))
		assert.Equal(t, InvoiceStatusPaid, inv.Status)

		// empty set takes it back to open
		require.NoError(t, inv.RecomputeFromAllocations(nil))
		assert.Equal(t, InvoiceStatusOpen, inv.Status)
		assert.True(t, inv.PaidAmount.IsZero())
	})

	t.Run("recompute replaces rather than increments", func(t *testing.T) {
		inv := newInv(t)
		alloc, err := NewAllocation(uuid.New(), inv.ID, decimal.NewFromInt(150), AllocationSourceRepair, nil)
		require.NoError(t, err)

		require.NoError(t, inv.RecomputeFromAllocations([]Allocation{*alloc}))
		require.NoError(t, inv.RecomputeFromAllocations([]Allocation{*alloc}))
		assert.True(t, inv.PaidAmount.Equal(decimal.NewFromInt(150)), "repeated recompute must converge")
	})

	t.Run("rejects foreign allocations", func(t *testing.T) {
		inv := newInv(t)
		foreign, err := NewAllocation(uuid.New(), uuid.New(), decimal.NewFromInt(10), AllocationSourceManual, nil)
		require.NoError(t, err)
		assert.Error(t, inv.RecomputeFromAllocations([]Allocation{*foreign}))
	})

	t.Run("increments version for optimistic locking", func(t *testing.T) {
		inv := newInv(t)
		before := inv.Version
		require.NoError(t, inv.RecomputeFromAllocations(nil))
		assert.Equal(t, before+1, inv.Version)
	})
}

func TestInvoiceDaysOverdue(t *testing.T) {
	inv := rentOnlyInvoice(t, "INV-O", Period{Year: 2026, Month: 1}, 100)
	inv.DueDate = time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC)

	t.Run("zero before due date", func(t *testing.T) {
		assert.Equal(t, 0, inv.DaysOverdue(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)))
	})

	t.Run("counts whole days after due date", func(t *testing.T) {
		assert.Equal(t, 20, inv.DaysOverdue(time.Date(2026, 2, 25, 0, 0, 0, 0, time.UTC)))
	})

	t.Run("zero once paid", func(t *testing.T) {
		alloc, err := NewAllocation(uuid.New(), inv.ID, decimal.NewFromInt(100), AllocationSourceManual, nil)
		require.NoError(t, err)
		require.NoError(t, inv.RecomputeFromAllocations([]Allocation{*alloc}))
		assert.Equal(t, 0, inv.DaysOverdue(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)))
	})
}

func TestPeriod(t *testing.T) {
	t.Run("ordering", func(t *testing.T) {
		assert.True(t, Period{2025, 12}.Before(Period{2026, 1}))
		assert.False(t, Period{2026, 1}.Before(Period{2025, 12}))
		assert.False(t, Period{2026, 1}.Before(Period{2026, 1}))
	})

	t.Run("validation", func(t *testing.T) {
		_, err := NewPeriod(2026, 13)
		assert.Error(t, err)
		_, err = NewPeriod(1999, 1)
		assert.Error(t, err)
		p, err := NewPeriod(2026, 6)
		require.NoError(t, err)
		assert.Equal(t, "2026-06", p.String())
	})
}

func TestPayment(t *testing.T) {
	t.Run("double reversal is rejected", func(t *testing.T) {
		p := testPayment(t, 100)
		require.NoError(t, p.MarkReversed(time.Now()))
		assert.Error(t, p.MarkReversed(time.Now()))
	})

	t.Run("unapplied cannot exceed amount", func(t *testing.T) {
		p := testPayment(t, 100)
		assert.Error(t, p.SetUnapplied(decimal.NewFromInt(101)))
		assert.NoError(t, p.SetUnapplied(decimal.NewFromInt(40)))
	})
}

func TestUpsertLine(t *testing.T) {
	newInv := func(t *testing.T) *Invoice {
		t.Helper()
		lines := []InvoiceLine{
			{Type: LineTypeRent, NetAmount: decimal.NewFromInt(500), VATRate: decimal.NewFromFloat(0.10)},
		}
		inv, err := NewInvoice(uuid.New(), "INV-1", uuid.New(), uuid.New(), Period{Year: 2026, Month: 1}, lines, time.Now())
		require.NoError(t, err)
		return inv
	}

	t.Run("replaces line of the same type", func(t *testing.T) {
		inv := newInv(t)
		changed, err := inv.UpsertLine(InvoiceLine{Type: LineTypeRent, NetAmount: decimal.NewFromInt(600), VATRate: decimal.NewFromFloat(0.10)})
		require.NoError(t, err)
		assert.True(t, changed)
		assert.True(t, inv.GrossAmount.Equal(decimal.NewFromInt(660)))
		assert.Len(t, inv.Lines, 1)
	})

	t.Run("appends a new line type", func(t *testing.T) {
		inv := newInv(t)
		changed, err := inv.UpsertLine(InvoiceLine{Type: LineTypeOperating, NetAmount: decimal.NewFromInt(200), VATRate: decimal.Zero})
		require.NoError(t, err)
		assert.True(t, changed)
		assert.True(t, inv.GrossAmount.Equal(decimal.NewFromInt(750)))
		assert.Len(t, inv.Lines, 2)
	})

	t.Run("identical line is a no-op", func(t *testing.T) {
		inv := newInv(t)
		before := inv.Version
		changed, err := inv.UpsertLine(InvoiceLine{Type: LineTypeRent, NetAmount: decimal.NewFromInt(500), VATRate: decimal.NewFromFloat(0.10)})
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Equal(t, before, inv.Version)
	})

	t.Run("rejected on canceled invoice", func(t *testing.T) {
		inv := newInv(t)
		require.NoError(t, inv.Cancel())
		_, err := inv.UpsertLine(InvoiceLine{Type: LineTypeRent, NetAmount: decimal.NewFromInt(1), VATRate: decimal.Zero})
		assert.Error(t, err)
	})
}
