package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/immoflow/backend/internal/domain/shared"
)

// AuditOperation classifies what an audit record documents
type AuditOperation string

const (
	AuditOperationInsert AuditOperation = "insert"
	AuditOperationUpdate AuditOperation = "update"
	AuditOperationStorno AuditOperation = "storno"

	// Repair-run operations: one record per payment the reassign tool
	// touched, tagged by what happened to it.
	AuditOperationReassignDryRun  AuditOperation = "reassign_payment_dryrun"
	AuditOperationReassignApplied AuditOperation = "reassign_payment_applied"
	AuditOperationReassignError   AuditOperation = "reassign_payment_error"
)

// AuditRecord is one link of the tamper-evident audit chain. Each record's
// hash covers its own content plus the previous record's hash, so editing
// any historical record invalidates every hash from that point forward.
// Rows are technically updatable in the store; the chain is what makes the
// trail trustworthy anyway.
type AuditRecord struct {
	shared.BaseEntity
	OrgID       uuid.UUID       `json:"org_id"`
	RunID       string          `json:"run_id,omitempty"`
	Operation   AuditOperation  `json:"operation"`
	EntityType  string          `json:"entity_type"`
	EntityID    uuid.UUID       `json:"entity_id"`
	OldSnapshot json.RawMessage `json:"old_snapshot,omitempty"`
	NewSnapshot json.RawMessage `json:"new_snapshot,omitempty"`
	Actor       string          `json:"actor,omitempty"`
	RecordedAt  time.Time       `json:"recorded_at"`
	PrevHash    string          `json:"prev_hash"`
	Hash        string          `json:"hash"`
}

// NewAuditRecord creates an audit record chained onto prevHash
func NewAuditRecord(orgID uuid.UUID, op AuditOperation, entityType string, entityID uuid.UUID, oldSnapshot, newSnapshot json.RawMessage, actor, runID, prevHash string) (*AuditRecord, error) {
	if orgID == uuid.Nil {
		return nil, shared.NewDomainError("VALIDATION", "organization ID cannot be empty")
	}
	if entityType == "" || entityID == uuid.Nil {
		return nil, shared.NewDomainError("VALIDATION", "audit record requires an entity reference")
	}
	rec := &AuditRecord{
		BaseEntity:  shared.NewBaseEntity(),
		OrgID:       orgID,
		RunID:       runID,
		Operation:   op,
		EntityType:  entityType,
		EntityID:    entityID,
		OldSnapshot: oldSnapshot,
		NewSnapshot: newSnapshot,
		Actor:       actor,
		RecordedAt:  time.Now().UTC(),
		PrevHash:    prevHash,
	}
	rec.Hash = rec.ComputeHash()
	return rec, nil
}

// ComputeHash derives the record's hash from its content and PrevHash.
// The timestamp enters at second precision so that recomputation from a
// round-tripped database row stays stable.
func (r *AuditRecord) ComputeHash() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%s|%s|%s|%s|%s|%s",
		r.ID,
		r.RunID,
		r.Operation,
		r.EntityType,
		r.EntityID,
		string(r.OldSnapshot),
		string(r.NewSnapshot),
		r.Actor,
		r.RecordedAt.UTC().Format(time.RFC3339),
		r.PrevHash,
	)
	return hex.EncodeToString(h.Sum(nil))
}

// ChainVerification is the outcome of verifying an audit chain
type ChainVerification struct {
	Valid bool `json:"valid"`
	// FirstInvalid is the index of the first record whose stored hash does
	// not match recomputation; records from this index on are untrusted.
	// -1 when the chain is intact.
	FirstInvalid int `json:"first_invalid"`
	Checked      int `json:"checked"`
}

// VerifyChain recomputes every hash in order and compares against the
// stored values. Records must be passed in chain order (oldest first).
func VerifyChain(records []AuditRecord) ChainVerification {
	prevHash := ""
	for i := range records {
		rec := records[i]
		if rec.PrevHash != prevHash {
			return ChainVerification{Valid: false, FirstInvalid: i, Checked: len(records)}
		}
		if rec.ComputeHash() != rec.Hash {
			return ChainVerification{Valid: false, FirstInvalid: i, Checked: len(records)}
		}
		prevHash = rec.Hash
	}
	return ChainVerification{Valid: true, FirstInvalid: -1, Checked: len(records)}
}
