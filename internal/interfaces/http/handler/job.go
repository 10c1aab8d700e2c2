package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	jobsapp "github.com/immoflow/backend/internal/application/jobs"
	"github.com/immoflow/backend/internal/domain/job"
	"github.com/immoflow/backend/internal/interfaces/http/dto"
)

// JobHandler exposes background job enqueueing and status lookups.
type JobHandler struct {
	BaseHandler
	jobs *jobsapp.JobService
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(jobs *jobsapp.JobService) *JobHandler {
	return &JobHandler{jobs: jobs}
}

// EnqueueJobRequest is the request body for enqueueing a job.
type EnqueueJobRequest struct {
	Type         string          `json:"type" binding:"required"`
	Payload      json.RawMessage `json:"payload"`
	ScheduledFor *time.Time      `json:"scheduled_for"`
}

// Enqueue accepts an arbitrary typed job. Unknown job types are rejected
// here; a known type with no registered worker handler fails terminally
// when the worker claims it.
func (h *JobHandler) Enqueue(c *gin.Context) {
	orgID, ok := h.requireOrg(c)
	if !ok {
		return
	}

	var req EnqueueJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	jobType := job.Type(req.Type)
	if !jobType.IsValid() {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeValidation, "unknown job type "+req.Type)
		return
	}

	scheduledFor := time.Now()
	if req.ScheduledFor != nil {
		scheduledFor = *req.ScheduledFor
	}

	queued, err := h.jobs.Enqueue(c.Request.Context(), orgID, jobType, req.Payload, scheduledFor)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Accepted(c, queued)
}

// Get returns one job with its status, result and retry state.
func (h *JobHandler) Get(c *gin.Context) {
	if _, ok := h.requireOrg(c); !ok {
		return
	}
	jobID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	found, err := h.jobs.Find(c.Request.Context(), jobID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, found)
}

// RegisterRoutes registers job routes.
func (h *JobHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/jobs", h.Enqueue)
	rg.GET("/jobs/:id", h.Get)
}
