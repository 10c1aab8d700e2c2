package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/immoflow/backend/internal/domain/job"
	"github.com/immoflow/backend/internal/infrastructure/telemetry"
)

// Handler executes one job type. Implementations live in the application
// layer; the processor only dispatches.
type Handler interface {
	Type() job.Type
	Handle(ctx context.Context, j *job.Job) (json.RawMessage, error)
}

// Config holds configuration for the job processor
type Config struct {
	BatchSize    int
	PollInterval time.Duration
	JobTimeout   time.Duration
}

// DefaultConfig returns default processor configuration
func DefaultConfig() Config {
	return Config{
		BatchSize:    10,
		PollInterval: 5 * time.Second,
		JobTimeout:   10 * time.Minute,
	}
}

// Processor polls the job queue and executes claimed jobs in the
// background. Claiming uses SKIP LOCKED, so any number of processors can
// run against the same queue.
type Processor struct {
	repo     job.Repository
	handlers map[job.Type]Handler
	config   Config
	logger   *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewProcessor creates a new job processor
func NewProcessor(repo job.Repository, config Config, logger *zap.Logger) *Processor {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultConfig().BatchSize
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultConfig().PollInterval
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = DefaultConfig().JobTimeout
	}
	return &Processor{
		repo:     repo,
		handlers: make(map[job.Type]Handler),
		config:   config,
		logger:   logger,
	}
}

// Register adds a handler for its job type. Registering the same type
// twice is a wiring bug and panics at startup.
func (p *Processor) Register(h Handler) {
	if _, exists := p.handlers[h.Type()]; exists {
		panic(fmt.Sprintf("handler for job type %s already registered", h.Type()))
	}
	p.handlers[h.Type()] = h
}

// Start starts the background polling loop
func (p *Processor) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(1)
	go p.pollLoop(ctx)

	p.logger.Info("job processor started",
		zap.Int("batch_size", p.config.BatchSize),
		zap.Duration("poll_interval", p.config.PollInterval),
		zap.Int("handlers", len(p.handlers)),
	)
	return nil
}

// Stop gracefully stops the processor, waiting for running jobs
func (p *Processor) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("job processor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Processor) pollLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.ProcessBatch(ctx)
		}
	}
}

// ProcessBatch claims and executes one batch of due jobs. Exposed so
// tests and one-shot commands can drive the queue without the loop.
// An empty queue is a silent no-op.
func (p *Processor) ProcessBatch(ctx context.Context) {
	claimed, err := p.repo.ClaimNext(ctx, p.config.BatchSize)
	if err != nil {
		p.logger.Error("failed to claim jobs", zap.Error(err))
		return
	}

	for _, j := range claimed {
		p.execute(ctx, j)
	}
}

func (p *Processor) execute(ctx context.Context, j *job.Job) {
	ctx, span := telemetry.StartSpan(ctx, "job."+string(j.Type),
		telemetry.WithAttribute("job_id", j.ID),
		telemetry.WithAttribute("retry_count", j.RetryCount),
	)
	defer span.End()

	jobLogger := p.logger.With(
		zap.String("job_id", j.ID.String()),
		zap.String("job_type", string(j.Type)),
		zap.Int("retry_count", j.RetryCount),
	)

	handler, ok := p.handlers[j.Type]
	if !ok {
		// No retry can fix a missing handler
		jobLogger.Error("no handler registered for job type")
		j.RetryCount = j.MaxRetries - 1
		telemetry.RecordError(span, fmt.Errorf("no handler registered for job type %s", j.Type))
		p.fail(ctx, j, fmt.Sprintf("no handler registered for job type %s", j.Type), jobLogger)
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, p.config.JobTimeout)
	defer cancel()

	result, err := handler.Handle(jobCtx, j)
	if err != nil {
		jobLogger.Warn("job failed", zap.Error(err))
		telemetry.RecordError(span, err)
		p.fail(ctx, j, err.Error(), jobLogger)
		return
	}

	if err := j.MarkCompleted(time.Now(), result); err != nil {
		jobLogger.Error("failed to mark job completed", zap.Error(err))
		return
	}
	if err := p.repo.Update(ctx, j); err != nil {
		jobLogger.Error("failed to persist completed job", zap.Error(err))
		return
	}
	jobLogger.Info("job completed")
}

func (p *Processor) fail(ctx context.Context, j *job.Job, errMsg string, jobLogger *zap.Logger) {
	if err := j.MarkFailed(time.Now(), errMsg); err != nil {
		jobLogger.Error("failed to mark job failed", zap.Error(err))
		return
	}
	if err := p.repo.Update(ctx, j); err != nil {
		jobLogger.Error("failed to persist failed job", zap.Error(err))
		return
	}
	if j.Exhausted() {
		jobLogger.Error("job exhausted all retries", zap.String("last_error", errMsg))
	} else {
		jobLogger.Info("job rescheduled", zap.Time("scheduled_for", j.ScheduledFor))
	}
}
