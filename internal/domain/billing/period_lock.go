package billing

import (
	"time"

	"github.com/google/uuid"

	"github.com/immoflow/backend/internal/domain/shared"
)

// PeriodLock freezes an accounting period for one organization. Once a
// lock exists, no allocation, settlement, or ledger posting may write
// into that period. The check is a hard precondition, not a convention:
// writers must consult the lock inside the same transaction as the write.
type PeriodLock struct {
	shared.BaseEntity
	OrgID    uuid.UUID `json:"org_id"`
	Period   Period    `json:"period"`
	LockedBy string    `json:"locked_by"`
	LockedAt time.Time `json:"locked_at"`
	Reason   string    `json:"reason,omitempty"`
}

// NewPeriodLock creates a lock for the given organization and period
func NewPeriodLock(orgID uuid.UUID, period Period, lockedBy, reason string) (*PeriodLock, error) {
	if orgID == uuid.Nil {
		return nil, shared.NewDomainError("VALIDATION", "organization ID cannot be empty")
	}
	if lockedBy == "" {
		return nil, shared.NewDomainError("VALIDATION", "locked-by actor cannot be empty")
	}
	return &PeriodLock{
		BaseEntity: shared.NewBaseEntity(),
		OrgID:      orgID,
		Period:     period,
		LockedBy:   lockedBy,
		LockedAt:   time.Now(),
		Reason:     reason,
	}, nil
}
