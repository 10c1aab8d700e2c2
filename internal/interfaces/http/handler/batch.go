package handler

import (
	"io"
	"strconv"

	"github.com/gin-gonic/gin"

	batchapp "github.com/immoflow/backend/internal/application/batch"
	jobsapp "github.com/immoflow/backend/internal/application/jobs"
	"github.com/immoflow/backend/internal/domain/billing"
)

// BatchHandler exposes bulk CSV imports and the variance reconciliation.
type BatchHandler struct {
	BaseHandler
	upserts   *batchapp.BulkUpsertService
	variances *batchapp.VarianceService
	jobs      *jobsapp.JobService
}

// NewBatchHandler creates a new BatchHandler.
func NewBatchHandler(upserts *batchapp.BulkUpsertService, variances *batchapp.VarianceService, jobs *jobsapp.JobService) *BatchHandler {
	return &BatchHandler{upserts: upserts, variances: variances, jobs: jobs}
}

// Upsert ingests a CSV of invoice lines. The file is posted as the
// "file" field of a multipart form together with a caller-chosen
// "run_id"; repeating the same run ID replays the recorded result
// instead of booking the rows twice. "async" hands the import to the
// job queue.
func (h *BatchHandler) Upsert(c *gin.Context) {
	orgID, ok := h.requireOrg(c)
	if !ok {
		return
	}

	runID := c.PostForm("run_id")
	if runID == "" {
		h.BadRequest(c, "run_id form field is required")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		h.BadRequest(c, "file form field is required")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		h.BadRequest(c, "cannot open uploaded file")
		return
	}
	defer file.Close()

	if c.PostForm("async") == "true" {
		csv, err := io.ReadAll(file)
		if err != nil {
			h.BadRequest(c, "cannot read uploaded file")
			return
		}
		job, err := h.jobs.EnqueueBulkUpsert(c.Request.Context(), orgID, runID, fileHeader.Filename, string(csv), getActor(c))
		if err != nil {
			h.HandleError(c, err)
			return
		}
		h.Accepted(c, job)
		return
	}

	run, err := h.upserts.Upsert(c.Request.Context(), batchapp.UpsertRequest{
		OrgID:    orgID,
		RunID:    runID,
		FileName: fileHeader.Filename,
		FileSize: fileHeader.Size,
		Data:     file,
		Actor:    getActor(c),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, run)
}

// GetRun returns one import run by its run ID.
func (h *BatchHandler) GetRun(c *gin.Context) {
	orgID, ok := h.requireOrg(c)
	if !ok {
		return
	}
	runID := c.Param("runId")

	run, err := h.upserts.Run(c.Request.Context(), orgID, runID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, run)
}

// ListRuns returns the organization's import runs, newest first.
func (h *BatchHandler) ListRuns(c *gin.Context) {
	orgID, ok := h.requireOrg(c)
	if !ok {
		return
	}

	runs, err := h.upserts.Runs(c.Request.Context(), orgID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, runs)
}

// Variances reconciles invoice paid amounts against their allocations
// for one accounting period. "exclude_seed" leaves migration-seeded
// allocations out of the comparison.
func (h *BatchHandler) Variances(c *gin.Context) {
	orgID, ok := h.requireOrg(c)
	if !ok {
		return
	}

	year, errY := strconv.Atoi(c.Query("year"))
	month, errM := strconv.Atoi(c.Query("month"))
	if errY != nil || errM != nil {
		h.BadRequest(c, "year and month query parameters are required")
		return
	}
	period, err := billing.NewPeriod(year, month)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	excludeSeed := c.Query("exclude_seed") == "true"

	report, err := h.variances.Reconcile(c.Request.Context(), orgID, period, excludeSeed)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, report)
}

// RegisterRoutes registers import and reconciliation routes.
func (h *BatchHandler) RegisterRoutes(rg *gin.RouterGroup) {
	imports := rg.Group("/imports")
	{
		imports.GET("", h.ListRuns)
		imports.POST("", h.Upsert)
		imports.GET("/:runId", h.GetRun)
	}

	rg.GET("/reconciliation/variances", h.Variances)
}
