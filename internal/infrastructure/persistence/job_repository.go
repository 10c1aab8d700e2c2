package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/immoflow/backend/internal/domain/job"
	"github.com/immoflow/backend/internal/domain/shared"
	"github.com/immoflow/backend/internal/infrastructure/persistence/models"
)

// GormJobRepository implements job.Repository using GORM
type GormJobRepository struct {
	db *gorm.DB
}

// NewGormJobRepository creates a new GormJobRepository
func NewGormJobRepository(db *gorm.DB) *GormJobRepository {
	return &GormJobRepository{db: db}
}

// FindByID finds a job by its ID
func (r *GormJobRepository) FindByID(ctx context.Context, id uuid.UUID) (*job.Job, error) {
	var model models.JobModel
	if err := conn(ctx, r.db).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ClaimNext atomically claims up to limit due jobs. Rows are locked with
// FOR UPDATE SKIP LOCKED and flipped to processing inside one transaction,
// so concurrent workers never claim the same job. An empty result means
// the queue is drained.
func (r *GormJobRepository) ClaimNext(ctx context.Context, limit int) ([]*job.Job, error) {
	var claimed []*job.Job

	err := conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		var jobModels []models.JobModel
		now := time.Now()

		if err := tx.
			Clauses(clause.Locking{
				Strength: "UPDATE",
				Options:  "SKIP LOCKED",
			}).
			Where("status IN ? AND scheduled_for <= ?",
				[]job.Status{job.StatusPending, job.StatusRetrying}, now).
			Order("scheduled_for ASC").
			Limit(limit).
			Find(&jobModels).Error; err != nil {
			return err
		}

		if len(jobModels) == 0 {
			return nil
		}

		ids := make([]uuid.UUID, len(jobModels))
		for i, m := range jobModels {
			ids[i] = m.ID
		}

		if err := tx.Model(&models.JobModel{}).
			Where("id IN ?", ids).
			Updates(map[string]interface{}{
				"status":     job.StatusProcessing,
				"started_at": now,
				"updated_at": now,
			}).Error; err != nil {
			return err
		}

		claimed = make([]*job.Job, len(jobModels))
		for i := range jobModels {
			j := jobModels[i].ToDomain()
			j.Status = job.StatusProcessing
			j.StartedAt = &now
			j.UpdatedAt = now
			claimed[i] = j
		}
		return nil
	})

	return claimed, err
}

// Save creates a new job
func (r *GormJobRepository) Save(ctx context.Context, j *job.Job) error {
	model := &models.JobModel{}
	model.FromDomain(j)
	return conn(ctx, r.db).Create(model).Error
}

// Update persists the job with optimistic locking
func (r *GormJobRepository) Update(ctx context.Context, j *job.Job) error {
	model := &models.JobModel{}
	model.FromDomain(j)
	result := conn(ctx, r.db).
		Model(model).
		Where("id = ? AND version = ?", j.ID, j.Version-1).
		Select("*").
		Updates(model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}
