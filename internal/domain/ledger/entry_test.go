package ledger

import (
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustEntry(t *testing.T, orgID, tenantID uuid.UUID, entryType EntryType, amount float64) Entry {
	t.Helper()
	e, err := NewEntry(orgID, tenantID, entryType, decimal.NewFromFloat(amount), time.Now(), "")
	require.NoError(t, err)
	return *e
}

func TestComputeSaldo(t *testing.T) {
	orgID := uuid.New()
	tenantID := uuid.New()

	t.Run("soll minus ist plus storno", func(t *testing.T) {
		entries := []Entry{
			mustEntry(t, orgID, tenantID, EntryTypeSoll, 800),
			mustEntry(t, orgID, tenantID, EntryTypeIst, 800),
			mustEntry(t, orgID, tenantID, EntryTypeStorno, 800), // bounced payment reopens the debt
			mustEntry(t, orgID, tenantID, EntryTypeFee, 5),
			mustEntry(t, orgID, tenantID, EntryTypeInterest, 3.29),
		}
		saldo := ComputeSaldo(entries)
		assert.True(t, saldo.Equal(decimal.NewFromFloat(808.29)), "got %s", saldo)
	})

	t.Run("empty ledger is zero", func(t *testing.T) {
		assert.True(t, ComputeSaldo(nil).IsZero())
	})

	t.Run("order independent and reproducible", func(t *testing.T) {
		entries := []Entry{
			mustEntry(t, orgID, tenantID, EntryTypeSoll, 123.45),
			mustEntry(t, orgID, tenantID, EntryTypeIst, 100),
			mustEntry(t, orgID, tenantID, EntryTypeFee, 10),
			mustEntry(t, orgID, tenantID, EntryTypeInterest, 1.23),
			mustEntry(t, orgID, tenantID, EntryTypeIst, 20),
			mustEntry(t, orgID, tenantID, EntryTypeStorno, 20),
		}
		want := ComputeSaldo(entries)

		rng := rand.New(rand.NewSource(42))
		for i := 0; i < 10; i++ {
			shuffled := make([]Entry, len(entries))
			copy(shuffled, entries)
			rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
			assert.True(t, ComputeSaldo(shuffled).Equal(want))
		}
		// repeated calls over the same slice
		assert.True(t, ComputeSaldo(entries).Equal(want))
	})
}

func TestNewEntry(t *testing.T) {
	t.Run("rejects non-positive amounts", func(t *testing.T) {
		_, err := NewEntry(uuid.New(), uuid.New(), EntryTypeSoll, decimal.Zero, time.Now(), "")
		assert.Error(t, err)
		_, err = NewEntry(uuid.New(), uuid.New(), EntryTypeSoll, decimal.NewFromInt(-5), time.Now(), "")
		assert.Error(t, err)
	})

	t.Run("rejects unknown type", func(t *testing.T) {
		_, err := NewEntry(uuid.New(), uuid.New(), EntryType("haben"), decimal.NewFromInt(10), time.Now(), "")
		assert.Error(t, err)
	})

	t.Run("rounds amount to cents", func(t *testing.T) {
		e, err := NewEntry(uuid.New(), uuid.New(), EntryTypeIst, decimal.NewFromFloat(10.005), time.Now(), "")
		require.NoError(t, err)
		assert.True(t, e.Amount.Equal(decimal.NewFromFloat(10.01)))
	})
}

func TestStornoFor(t *testing.T) {
	orgID := uuid.New()
	tenantID := uuid.New()
	paymentID := uuid.New()

	t.Run("builds storno of equal magnitude", func(t *testing.T) {
		ist, err := NewEntry(orgID, tenantID, EntryTypeIst, decimal.NewFromInt(500), time.Now(), "rent January")
		require.NoError(t, err)
		ist.WithPayment(paymentID)

		storno, err := StornoFor(ist, time.Now(), "chargeback")
		require.NoError(t, err)
		assert.Equal(t, EntryTypeStorno, storno.Type)
		assert.True(t, storno.Amount.Equal(ist.Amount))
		require.NotNil(t, storno.PaymentID)
		assert.Equal(t, paymentID, *storno.PaymentID)
	})

	t.Run("storno reopens the debt in the saldo", func(t *testing.T) {
		soll := mustEntry(t, orgID, tenantID, EntryTypeSoll, 500)
		ist, err := NewEntry(orgID, tenantID, EntryTypeIst, decimal.NewFromInt(500), time.Now(), "")
		require.NoError(t, err)
		ist.WithPayment(paymentID)

		settled := ComputeSaldo([]Entry{soll, *ist})
		assert.True(t, settled.IsZero())

		storno, err := StornoFor(ist, time.Now(), "")
		require.NoError(t, err)
		reopened := ComputeSaldo([]Entry{soll, *ist, *storno})
		assert.True(t, reopened.Equal(decimal.NewFromInt(500)))
	})

	t.Run("only ist entries are reversible", func(t *testing.T) {
		soll := mustEntry(t, orgID, tenantID, EntryTypeSoll, 100)
		_, err := StornoFor(&soll, time.Now(), "")
		assert.Error(t, err)
	})

	t.Run("nil original is not found", func(t *testing.T) {
		_, err := StornoFor(nil, time.Now(), "")
		assert.Error(t, err)
	})
}
