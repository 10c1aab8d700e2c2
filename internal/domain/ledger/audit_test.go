package ledger

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildChain(t *testing.T, orgID uuid.UUID, n int) []AuditRecord {
	t.Helper()
	records := make([]AuditRecord, 0, n)
	prevHash := ""
	for i := 0; i < n; i++ {
		snapshot, err := json.Marshal(map[string]int{"amount": 100 + i})
		require.NoError(t, err)
		rec, err := NewAuditRecord(orgID, AuditOperationInsert, "invoice_line", uuid.New(), nil, snapshot, "system", "run-1", prevHash)
		require.NoError(t, err)
		records = append(records, *rec)
		prevHash = rec.Hash
	}
	return records
}

func TestVerifyChain(t *testing.T) {
	orgID := uuid.New()

	t.Run("intact chain verifies", func(t *testing.T) {
		chain := buildChain(t, orgID, 5)
		result := VerifyChain(chain)
		assert.True(t, result.Valid)
		assert.Equal(t, -1, result.FirstInvalid)
		assert.Equal(t, 5, result.Checked)
	})

	t.Run("empty chain is valid", func(t *testing.T) {
		assert.True(t, VerifyChain(nil).Valid)
	})

	t.Run("tampered snapshot breaks chain at that index", func(t *testing.T) {
		chain := buildChain(t, orgID, 6)
		chain[3].NewSnapshot = json.RawMessage(`{"amount":999999}`)

		result := VerifyChain(chain)
		assert.False(t, result.Valid)
		assert.Equal(t, 3, result.FirstInvalid)
	})

	t.Run("tampering the first record invalidates everything", func(t *testing.T) {
		chain := buildChain(t, orgID, 4)
		chain[0].Actor = "intruder"

		result := VerifyChain(chain)
		assert.False(t, result.Valid)
		assert.Equal(t, 0, result.FirstInvalid)
	})

	t.Run("rewriting the run id breaks the chain", func(t *testing.T) {
		chain := buildChain(t, orgID, 3)
		chain[1].RunID = "run-99"

		result := VerifyChain(chain)
		assert.False(t, result.Valid)
		assert.Equal(t, 1, result.FirstInvalid)
	})

	t.Run("swapping hashes is detected", func(t *testing.T) {
		chain := buildChain(t, orgID, 4)
		chain[1].Hash, chain[2].Hash = chain[2].Hash, chain[1].Hash

		result := VerifyChain(chain)
		assert.False(t, result.Valid)
		assert.Equal(t, 1, result.FirstInvalid)
	})

	t.Run("recomputed hash is stable", func(t *testing.T) {
		chain := buildChain(t, orgID, 1)
		assert.Equal(t, chain[0].Hash, chain[0].ComputeHash())
		assert.Equal(t, chain[0].Hash, chain[0].ComputeHash())
	})
}

func TestNewAuditRecord(t *testing.T) {
	t.Run("requires an entity reference", func(t *testing.T) {
		_, err := NewAuditRecord(uuid.New(), AuditOperationUpdate, "", uuid.New(), nil, nil, "a", "", "")
		assert.Error(t, err)
		_, err = NewAuditRecord(uuid.New(), AuditOperationUpdate, "invoice", uuid.Nil, nil, nil, "a", "", "")
		assert.Error(t, err)
	})

	t.Run("links prev hash into own hash", func(t *testing.T) {
		orgID := uuid.New()
		first, err := NewAuditRecord(orgID, AuditOperationInsert, "payment", uuid.New(), nil, nil, "op", "", "")
		require.NoError(t, err)
		second, err := NewAuditRecord(orgID, AuditOperationUpdate, "payment", uuid.New(), nil, nil, "op", "", first.Hash)
		require.NoError(t, err)

		assert.Equal(t, first.Hash, second.PrevHash)
		assert.NotEqual(t, first.Hash, second.Hash)
	})
}
