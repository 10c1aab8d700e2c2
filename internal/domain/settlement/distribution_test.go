package settlement

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func occupiedUnit(name string, area float64) Unit {
	tenantID := uuid.New()
	return Unit{
		ID:       uuid.New(),
		Name:     name,
		Area:     decimal.NewFromFloat(area),
		TenantID: &tenantID,
	}
}

func TestDistribute(t *testing.T) {
	d := NewDistributor()

	t.Run("prorates by area", func(t *testing.T) {
		units := []Unit{
			occupiedUnit("Top 1", 50),
			occupiedUnit("Top 2", 30),
			occupiedUnit("Top 3", 20),
		}
		dist, err := d.Distribute(decimal.NewFromInt(1000), units, KeyArea)
		require.NoError(t, err)
		require.Len(t, dist.Shares, 3)
		assert.True(t, dist.Shares[0].Amount.Equal(decimal.NewFromInt(500)))
		assert.True(t, dist.Shares[1].Amount.Equal(decimal.NewFromInt(300)))
		assert.True(t, dist.Shares[2].Amount.Equal(decimal.NewFromInt(200)))
	})

	t.Run("last unit absorbs rounding residual", func(t *testing.T) {
		// three equal weights over 100.00 -> 33.33 + 33.33 + 33.34
		units := []Unit{
			occupiedUnit("A", 1),
			occupiedUnit("B", 1),
			occupiedUnit("C", 1),
		}
		dist, err := d.Distribute(decimal.NewFromInt(100), units, KeyArea)
		require.NoError(t, err)
		assert.True(t, dist.Shares[0].Amount.Equal(decimal.NewFromFloat(33.33)))
		assert.True(t, dist.Shares[1].Amount.Equal(decimal.NewFromFloat(33.33)))
		assert.True(t, dist.Shares[2].Amount.Equal(decimal.NewFromFloat(33.34)))
		assert.True(t, dist.Shares[2].Residual)
	})

	t.Run("residual skips trailing zero-weight unit", func(t *testing.T) {
		// the vacant cellar has no area under the person key: it owes
		// nothing, so the drift cent lands on the last weighted unit
		units := []Unit{
			occupiedUnit("A", 0),
			occupiedUnit("B", 0),
			occupiedUnit("C", 0),
			{ID: uuid.New(), Name: "Cellar", Vacant: true},
		}
		units[0].Persons = 1
		units[1].Persons = 1
		units[2].Persons = 1

		dist, err := d.Distribute(decimal.NewFromInt(100), units, KeyPerson)
		require.NoError(t, err)
		require.Len(t, dist.Shares, 4)
		assert.True(t, dist.Shares[2].Amount.Equal(decimal.NewFromFloat(33.34)))
		assert.True(t, dist.Shares[2].Residual)
		assert.True(t, dist.Shares[3].Amount.IsZero())
		assert.False(t, dist.Shares[3].Residual)

		sum := decimal.Zero
		for _, s := range dist.Shares {
			sum = sum.Add(s.Amount)
		}
		assert.True(t, sum.Equal(decimal.NewFromInt(100)))
	})

	t.Run("conservation for random weight vectors up to 500 units", func(t *testing.T) {
		rng := rand.New(rand.NewSource(7))
		for _, n := range []int{1, 2, 17, 100, 500} {
			units := make([]Unit, 0, n)
			for i := 0; i < n; i++ {
				units = append(units, occupiedUnit(fmt.Sprintf("U%d", i), 1+rng.Float64()*120))
			}
			total := decimal.NewFromFloat(1 + rng.Float64()*100000).Round(2)

			dist, err := d.Distribute(total, units, KeyArea)
			require.NoError(t, err)

			sum := decimal.Zero
			for _, s := range dist.Shares {
				sum = sum.Add(s.Amount)
			}
			assert.True(t, sum.Equal(total), "n=%d: sum %s != total %s", n, sum, total)
		}
	})

	t.Run("vacant unit share goes to the owner", func(t *testing.T) {
		vacant := Unit{ID: uuid.New(), Name: "Top 2", Area: decimal.NewFromInt(50), Vacant: true}
		units := []Unit{occupiedUnit("Top 1", 50), vacant}

		dist, err := d.Distribute(decimal.NewFromInt(400), units, KeyArea)
		require.NoError(t, err)

		// vacant weight stays in the pool: occupied unit pays 200, not 400
		assert.True(t, dist.Shares[0].Amount.Equal(decimal.NewFromInt(200)))
		assert.Equal(t, ChargedToTenant, dist.Shares[0].ChargedTo)
		assert.Equal(t, ChargedToOwner, dist.Shares[1].ChargedTo)
		assert.Nil(t, dist.Shares[1].TenantID)
		assert.True(t, dist.TenantTotal.Equal(decimal.NewFromInt(200)))
		assert.True(t, dist.OwnerTotal.Equal(decimal.NewFromInt(200)))
	})

	t.Run("person and fixed keys", func(t *testing.T) {
		t1, t2 := uuid.New(), uuid.New()
		units := []Unit{
			{ID: uuid.New(), Name: "A", Persons: 3, Fixed: decimal.NewFromInt(2), TenantID: &t1},
			{ID: uuid.New(), Name: "B", Persons: 1, Fixed: decimal.NewFromInt(2), TenantID: &t2},
		}

		byPerson, err := d.Distribute(decimal.NewFromInt(100), units, KeyPerson)
		require.NoError(t, err)
		assert.True(t, byPerson.Shares[0].Amount.Equal(decimal.NewFromInt(75)))

		byFixed, err := d.Distribute(decimal.NewFromInt(100), units, KeyFixed)
		require.NoError(t, err)
		assert.True(t, byFixed.Shares[0].Amount.Equal(decimal.NewFromInt(50)))
	})

	t.Run("rejects zero total weight", func(t *testing.T) {
		units := []Unit{{ID: uuid.New(), Name: "A", Area: decimal.Zero}}
		_, err := d.Distribute(decimal.NewFromInt(100), units, KeyArea)
		assert.Error(t, err)
	})

	t.Run("rejects invalid key and empty unit set", func(t *testing.T) {
		_, err := d.Distribute(decimal.NewFromInt(100), []Unit{occupiedUnit("A", 1)}, DistributionKey("floors"))
		assert.Error(t, err)
		_, err = d.Distribute(decimal.NewFromInt(100), nil, KeyArea)
		assert.Error(t, err)
	})
}

func TestDeadlines(t *testing.T) {
	t.Run("completion deadline is 30 June of year+1", func(t *testing.T) {
		deadline := CompletionDeadline(2025)
		assert.Equal(t, 2026, deadline.Year())
		assert.Equal(t, time.June, deadline.Month())
		assert.Equal(t, 30, deadline.Day())
	})

	t.Run("within deadline passes", func(t *testing.T) {
		assert.NoError(t, CheckDeadline(2025, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)))
	})

	t.Run("past completion deadline fails", func(t *testing.T) {
		err := CheckDeadline(2025, time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "completion deadline")
	})

	t.Run("past full expiry fails", func(t *testing.T) {
		err := CheckDeadline(2025, time.Date(2029, 7, 1, 0, 0, 0, 0, time.UTC))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "fully expired")
	})
}

func TestRunFinalize(t *testing.T) {
	newRun := func(t *testing.T) *Run {
		r, err := NewRun(uuid.New(), uuid.New(), 2025, KeyMEA, decimal.NewFromInt(12000))
		require.NoError(t, err)
		return r
	}

	t.Run("finalizes within deadline", func(t *testing.T) {
		r := newRun(t)
		require.NoError(t, r.Finalize(time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)))
		assert.Equal(t, RunStatusFinalized, r.Status)
		assert.NotNil(t, r.FinalizedAt)
	})

	t.Run("rejects finalization past deadline", func(t *testing.T) {
		r := newRun(t)
		err := r.Finalize(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
		assert.Error(t, err)
		assert.Equal(t, RunStatusDraft, r.Status)
	})

	t.Run("double finalize is rejected", func(t *testing.T) {
		r := newRun(t)
		require.NoError(t, r.Finalize(time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)))
		assert.Error(t, r.Finalize(time.Date(2026, 1, 16, 0, 0, 0, 0, time.UTC)))
	})
}
