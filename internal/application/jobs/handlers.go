package jobs

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	batchapp "github.com/immoflow/backend/internal/application/batch"
	dunningapp "github.com/immoflow/backend/internal/application/dunning"
	settlementapp "github.com/immoflow/backend/internal/application/settlement"
	"github.com/immoflow/backend/internal/domain/job"
	"github.com/immoflow/backend/internal/domain/settlement"
	"github.com/immoflow/backend/internal/domain/shared"
)

// DunningRunPayload is the payload of a scheduled dunning run
type DunningRunPayload struct {
	OrgID uuid.UUID `json:"org_id"`
	AsOf  time.Time `json:"as_of,omitempty"`
	Actor string    `json:"actor,omitempty"`
}

// DunningRunHandler executes scheduled dunning runs off the job queue
type DunningRunHandler struct {
	svc    *dunningapp.DunningService
	logger *zap.Logger
}

// NewDunningRunHandler creates a new DunningRunHandler
func NewDunningRunHandler(svc *dunningapp.DunningService, logger *zap.Logger) *DunningRunHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DunningRunHandler{svc: svc, logger: logger}
}

// Type returns the job type this handler serves
func (h *DunningRunHandler) Type() job.Type {
	return job.TypeDunningRun
}

// Handle runs the dunning check for the payload's organization
func (h *DunningRunHandler) Handle(ctx context.Context, j *job.Job) (json.RawMessage, error) {
	var payload DunningRunPayload
	if err := json.Unmarshal(j.Payload, &payload); err != nil {
		return nil, shared.NewDomainErrorf("VALIDATION", "invalid dunning run payload: %v", err)
	}
	asOf := payload.AsOf
	if asOf.IsZero() {
		asOf = time.Now()
	}
	actor := payload.Actor
	if actor == "" {
		actor = "scheduler"
	}

	summary, err := h.svc.Run(ctx, payload.OrgID, asOf, actor)
	if err != nil {
		return nil, err
	}
	return json.Marshal(summary)
}

// BulkUpsertPayload is the payload of a queued CSV invoice-line batch.
// The CSV content travels inline; batches are bounded by the HTTP upload
// limit long before they strain a jsonb column.
type BulkUpsertPayload struct {
	OrgID    uuid.UUID `json:"org_id"`
	RunID    string    `json:"run_id"`
	FileName string    `json:"file_name"`
	CSV      string    `json:"csv"`
	Actor    string    `json:"actor,omitempty"`
}

// BulkUpsertHandler executes queued CSV invoice-line batches
type BulkUpsertHandler struct {
	svc    *batchapp.BulkUpsertService
	logger *zap.Logger
}

// NewBulkUpsertHandler creates a new BulkUpsertHandler
func NewBulkUpsertHandler(svc *batchapp.BulkUpsertService, logger *zap.Logger) *BulkUpsertHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BulkUpsertHandler{svc: svc, logger: logger}
}

// Type returns the job type this handler serves
func (h *BulkUpsertHandler) Type() job.Type {
	return job.TypeBulkInvoiceUpsert
}

// Handle applies the batch. The run ID in the payload keeps a retried job
// from booking its rows twice: the replay returns the recorded outcome.
func (h *BulkUpsertHandler) Handle(ctx context.Context, j *job.Job) (json.RawMessage, error) {
	var payload BulkUpsertPayload
	if err := json.Unmarshal(j.Payload, &payload); err != nil {
		return nil, shared.NewDomainErrorf("VALIDATION", "invalid bulk upsert payload: %v", err)
	}

	run, err := h.svc.Upsert(ctx, batchapp.UpsertRequest{
		OrgID:    payload.OrgID,
		RunID:    payload.RunID,
		FileName: payload.FileName,
		FileSize: int64(len(payload.CSV)),
		Data:     strings.NewReader(payload.CSV),
		Actor:    payload.Actor,
	})
	if err != nil {
		return nil, err
	}
	return json.Marshal(run)
}

// SettlementRunPayload is the payload of a queued settlement calculation.
// The unit roster travels inline; the caller decides whether the run is
// finalized immediately after distribution.
type SettlementRunPayload struct {
	RunID    uuid.UUID         `json:"run_id"`
	Units    []settlement.Unit `json:"units"`
	Finalize bool              `json:"finalize,omitempty"`
	Actor    string            `json:"actor,omitempty"`
}

// SettlementRunResult is the recorded outcome of a settlement job
type SettlementRunResult struct {
	RunID       uuid.UUID       `json:"run_id"`
	Shares      int             `json:"shares"`
	TenantTotal decimal.Decimal `json:"tenant_total"`
	OwnerTotal  decimal.Decimal `json:"owner_total"`
	Finalized   bool            `json:"finalized"`
}

// SettlementRunHandler executes queued settlement calculations
type SettlementRunHandler struct {
	svc    *settlementapp.SettlementService
	logger *zap.Logger
}

// NewSettlementRunHandler creates a new SettlementRunHandler
func NewSettlementRunHandler(svc *settlementapp.SettlementService, logger *zap.Logger) *SettlementRunHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettlementRunHandler{svc: svc, logger: logger}
}

// Type returns the job type this handler serves
func (h *SettlementRunHandler) Type() job.Type {
	return job.TypeSettlementRun
}

// Handle distributes the run's expense pool and, when requested,
// finalizes it in the same job
func (h *SettlementRunHandler) Handle(ctx context.Context, j *job.Job) (json.RawMessage, error) {
	var payload SettlementRunPayload
	if err := json.Unmarshal(j.Payload, &payload); err != nil {
		return nil, shared.NewDomainErrorf("VALIDATION", "invalid settlement run payload: %v", err)
	}
	if payload.RunID == uuid.Nil {
		return nil, shared.NewDomainError("VALIDATION", "settlement run payload requires a run ID")
	}
	actor := payload.Actor
	if actor == "" {
		actor = "scheduler"
	}

	dist, err := h.svc.Distribute(ctx, payload.RunID, payload.Units, actor)
	if err != nil {
		return nil, err
	}
	result := SettlementRunResult{
		RunID:       payload.RunID,
		Shares:      len(dist.Shares),
		TenantTotal: dist.TenantTotal,
		OwnerTotal:  dist.OwnerTotal,
	}
	if payload.Finalize {
		if _, err := h.svc.Finalize(ctx, payload.RunID, actor); err != nil {
			return nil, err
		}
		result.Finalized = true
	}
	return json.Marshal(result)
}
