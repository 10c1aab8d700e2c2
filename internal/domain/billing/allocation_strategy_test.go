package billing

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/immoflow/backend/internal/domain/shared/valueobject"
)

func testInvoice(t *testing.T, number string, period Period, lines []InvoiceLine) *Invoice {
	t.Helper()
	inv, err := NewInvoice(uuid.New(), number, uuid.New(), uuid.New(), period, lines, time.Now().AddDate(0, 0, 14))
	require.NoError(t, err)
	return inv
}

func rentOnlyInvoice(t *testing.T, number string, period Period, net float64) *Invoice {
	t.Helper()
	return testInvoice(t, number, period, []InvoiceLine{
		{Type: LineTypeRent, NetAmount: decimal.NewFromFloat(net), VATRate: decimal.Zero},
	})
}

func testPayment(t *testing.T, amount float64) *Payment {
	t.Helper()
	p, err := NewPayment(uuid.New(), uuid.New(), valueobject.NewMoneyEURFromFloat(amount), time.Now(), PaymentSourceBankImport, "REF-1")
	require.NoError(t, err)
	return p
}

func TestFIFOAllocationStrategy(t *testing.T) {
	strategy := NewFIFOAllocationStrategy()

	t.Run("fills oldest period first", func(t *testing.T) {
		dec := rentOnlyInvoice(t, "INV-2025-12", Period{Year: 2025, Month: 12}, 400)
		jan := rentOnlyInvoice(t, "INV-2026-01", Period{Year: 2026, Month: 1}, 400)

		// deliberately pass newest first
		plan, err := strategy.Allocate(testPayment(t, 500), []Invoice{*jan, *dec})
		require.NoError(t, err)

		require.Len(t, plan.Allocations, 2)
		assert.Equal(t, dec.ID, plan.Allocations[0].InvoiceID)
		assert.True(t, plan.Allocations[0].AppliedAmount.Equal(decimal.NewFromInt(400)))
		assert.Equal(t, jan.ID, plan.Allocations[1].InvoiceID)
		assert.True(t, plan.Allocations[1].AppliedAmount.Equal(decimal.NewFromInt(100)))

		assert.Contains(t, plan.InvoicesFullyPaid, dec.ID)
		assert.Contains(t, plan.InvoicesPartiallyPaid, jan.ID)
		assert.True(t, plan.Unapplied.IsZero())
	})

	t.Run("overpayment becomes unapplied remainder", func(t *testing.T) {
		inv := rentOnlyInvoice(t, "INV-1", Period{Year: 2026, Month: 1}, 300)
		plan, err := strategy.Allocate(testPayment(t, 450), []Invoice{*inv})
		require.NoError(t, err)

		assert.True(t, plan.TotalApplied.Equal(decimal.NewFromInt(300)))
		assert.True(t, plan.Unapplied.Equal(decimal.NewFromInt(150)))
	})

	t.Run("skips canceled and paid invoices", func(t *testing.T) {
		open := rentOnlyInvoice(t, "INV-OPEN", Period{Year: 2026, Month: 2}, 100)
		canceled := rentOnlyInvoice(t, "INV-CANC", Period{Year: 2026, Month: 1}, 100)
		require.NoError(t, canceled.Cancel())

		plan, err := strategy.Allocate(testPayment(t, 100), []Invoice{*canceled, *open})
		require.NoError(t, err)
		require.Len(t, plan.Allocations, 1)
		assert.Equal(t, open.ID, plan.Allocations[0].InvoiceID)
	})

	t.Run("conservation holds for awkward amounts", func(t *testing.T) {
		amounts := []float64{0.01, 33.33, 123.45, 999.99, 1500}
		for _, amt := range amounts {
			invoices := []Invoice{
				*rentOnlyInvoice(t, "A", Period{Year: 2025, Month: 11}, 123.45),
				*rentOnlyInvoice(t, "B", Period{Year: 2025, Month: 12}, 0.02),
				*rentOnlyInvoice(t, "C", Period{Year: 2026, Month: 1}, 678.90),
			}
			payment := testPayment(t, amt)
			plan, err := strategy.Allocate(payment, invoices)
			require.NoError(t, err)

			total := plan.Unapplied
			for _, a := range plan.Allocations {
				total = total.Add(a.AppliedAmount)
			}
			assert.True(t, total.Equal(payment.Amount),
				"payment %v: applied+unapplied = %s, want %s", amt, total, payment.Amount)
		}
	})

	t.Run("empty invoice set leaves everything unapplied", func(t *testing.T) {
		payment := testPayment(t, 250)
		plan, err := strategy.Allocate(payment, nil)
		require.NoError(t, err)
		assert.Empty(t, plan.Allocations)
		assert.True(t, plan.Unapplied.Equal(payment.Amount))
	})

	t.Run("nil payment is rejected", func(t *testing.T) {
		_, err := strategy.Allocate(nil, nil)
		assert.Error(t, err)
	})
}

func TestCategoryWaterfallStrategy(t *testing.T) {
	strategy := NewCategoryWaterfallStrategy()

	fullInvoice := func(t *testing.T) *Invoice {
		// operating 200 net @10%, heating 100 net @20%, rent 500 net @10%
		return testInvoice(t, "INV-W", Period{Year: 2026, Month: 3}, []InvoiceLine{
			{Type: LineTypeRent, NetAmount: decimal.NewFromInt(500), VATRate: decimal.NewFromFloat(0.10)},
			{Type: LineTypeOperating, NetAmount: decimal.NewFromInt(200), VATRate: decimal.NewFromFloat(0.10)},
			{Type: LineTypeHeating, NetAmount: decimal.NewFromInt(100), VATRate: decimal.NewFromFloat(0.20)},
		})
	}

	t.Run("fills operating then heating then rent", func(t *testing.T) {
		inv := fullInvoice(t)
		// operating gross 220, heating gross 120, rent gross 550
		plan, err := strategy.Allocate(testPayment(t, 400), []Invoice{*inv})
		require.NoError(t, err)
		require.Len(t, plan.Allocations, 1)

		splits := plan.Allocations[0].Splits
		require.Len(t, splits, 3)
		assert.Equal(t, LineTypeOperating, splits[0].Type)
		assert.True(t, splits[0].GrossAmount.Equal(decimal.NewFromInt(220)))
		assert.Equal(t, LineTypeHeating, splits[1].Type)
		assert.True(t, splits[1].GrossAmount.Equal(decimal.NewFromInt(120)))
		assert.Equal(t, LineTypeRent, splits[2].Type)
		assert.True(t, splits[2].GrossAmount.Equal(decimal.NewFromInt(60)))
	})

	t.Run("VAT apportioned from gross actually applied", func(t *testing.T) {
		inv := fullInvoice(t)
		// 110 covers half of the operating gross (220 @ 10%)
		plan, err := strategy.Allocate(testPayment(t, 110), []Invoice{*inv})
		require.NoError(t, err)
		splits := plan.Allocations[0].Splits
		require.Len(t, splits, 1)
		assert.Equal(t, LineTypeOperating, splits[0].Type)
		assert.True(t, splits[0].VATAmount.Equal(decimal.NewFromInt(10)),
			"got VAT %s", splits[0].VATAmount)
	})

	t.Run("overpayment surfaces as unapplied", func(t *testing.T) {
		inv := fullInvoice(t)
		// total gross 890
		plan, err := strategy.Allocate(testPayment(t, 1000), []Invoice{*inv})
		require.NoError(t, err)
		assert.True(t, plan.TotalApplied.Equal(decimal.NewFromInt(890)))
		assert.True(t, plan.Unapplied.Equal(decimal.NewFromInt(110)))
		assert.Contains(t, plan.InvoicesFullyPaid, inv.ID)
	})

	t.Run("rejects multiple invoices", func(t *testing.T) {
		a := rentOnlyInvoice(t, "A", Period{Year: 2026, Month: 1}, 10)
		b := rentOnlyInvoice(t, "B", Period{Year: 2026, Month: 2}, 10)
		_, err := strategy.Allocate(testPayment(t, 10), []Invoice{*a, *b})
		assert.Error(t, err)
	})
}

func TestAllocationPlanDeterminism(t *testing.T) {
	// Running the same allocation twice must produce identical plans.
	strategy := NewFIFOAllocationStrategy()
	invoices := make([]Invoice, 0, 5)
	for i := 1; i <= 5; i++ {
		invoices = append(invoices, *rentOnlyInvoice(t, fmt.Sprintf("INV-%d", i), Period{Year: 2026, Month: i}, 99.99))
	}
	payment := testPayment(t, 333.33)

	first, err := strategy.Allocate(payment, invoices)
	require.NoError(t, err)
	second, err := strategy.Allocate(payment, invoices)
	require.NoError(t, err)

	require.Equal(t, len(first.Allocations), len(second.Allocations))
	for i := range first.Allocations {
		assert.Equal(t, first.Allocations[i].InvoiceID, second.Allocations[i].InvoiceID)
		assert.True(t, first.Allocations[i].AppliedAmount.Equal(second.Allocations[i].AppliedAmount))
	}
	assert.True(t, first.Unapplied.Equal(second.Unapplied))
}
