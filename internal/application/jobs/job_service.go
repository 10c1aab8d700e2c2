package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/immoflow/backend/internal/domain/job"
	"github.com/immoflow/backend/internal/domain/settlement"
)

// JobService enqueues background jobs and exposes their state
type JobService struct {
	repo   job.Repository
	logger *zap.Logger
}

// NewJobService creates a new JobService
func NewJobService(repo job.Repository, logger *zap.Logger) *JobService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JobService{repo: repo, logger: logger}
}

// Enqueue schedules a job for execution at the given time.
// A zero scheduledFor means as soon as a worker picks it up.
func (s *JobService) Enqueue(ctx context.Context, orgID uuid.UUID, jobType job.Type, payload json.RawMessage, scheduledFor time.Time) (*job.Job, error) {
	if scheduledFor.IsZero() {
		scheduledFor = time.Now()
	}
	j, err := job.New(orgID, jobType, payload, scheduledFor, job.DefaultMaxRetries)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, j); err != nil {
		return nil, err
	}
	s.logger.Info("job enqueued",
		zap.String("job_id", j.ID.String()),
		zap.String("type", string(jobType)),
		zap.Time("scheduled_for", scheduledFor),
	)
	return j, nil
}

// EnqueueDunningRun schedules a dunning run for an organization
func (s *JobService) EnqueueDunningRun(ctx context.Context, orgID uuid.UUID, asOf time.Time, actor string) (*job.Job, error) {
	payload, err := json.Marshal(DunningRunPayload{OrgID: orgID, AsOf: asOf, Actor: actor})
	if err != nil {
		return nil, err
	}
	return s.Enqueue(ctx, orgID, job.TypeDunningRun, payload, time.Time{})
}

// EnqueueBulkUpsert schedules a CSV invoice-line batch
func (s *JobService) EnqueueBulkUpsert(ctx context.Context, orgID uuid.UUID, runID, fileName, csv, actor string) (*job.Job, error) {
	payload, err := json.Marshal(BulkUpsertPayload{
		OrgID:    orgID,
		RunID:    runID,
		FileName: fileName,
		CSV:      csv,
		Actor:    actor,
	})
	if err != nil {
		return nil, err
	}
	return s.Enqueue(ctx, orgID, job.TypeBulkInvoiceUpsert, payload, time.Time{})
}

// EnqueueSettlementRun schedules the distribution of a settlement run
func (s *JobService) EnqueueSettlementRun(ctx context.Context, orgID, runID uuid.UUID, units []settlement.Unit, finalize bool, actor string) (*job.Job, error) {
	payload, err := json.Marshal(SettlementRunPayload{
		RunID:    runID,
		Units:    units,
		Finalize: finalize,
		Actor:    actor,
	})
	if err != nil {
		return nil, err
	}
	return s.Enqueue(ctx, orgID, job.TypeSettlementRun, payload, time.Time{})
}

// Find returns a job by ID
func (s *JobService) Find(ctx context.Context, id uuid.UUID) (*job.Job, error) {
	return s.repo.FindByID(ctx, id)
}
