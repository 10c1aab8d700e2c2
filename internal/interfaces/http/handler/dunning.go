package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	dunningapp "github.com/immoflow/backend/internal/application/dunning"
	jobsapp "github.com/immoflow/backend/internal/application/jobs"
)

// DunningHandler exposes the dunning run and its open cases.
type DunningHandler struct {
	BaseHandler
	dunning *dunningapp.DunningService
	jobs    *jobsapp.JobService
}

// NewDunningHandler creates a new DunningHandler.
func NewDunningHandler(dunning *dunningapp.DunningService, jobs *jobsapp.JobService) *DunningHandler {
	return &DunningHandler{dunning: dunning, jobs: jobs}
}

// DunningRunRequest triggers a dunning run.
type DunningRunRequest struct {
	// AsOf defaults to now; a past date replays escalation as of that day.
	AsOf *time.Time `json:"as_of"`
	// Async hands the run to the job queue instead of running inline.
	Async bool `json:"async"`
}

// Run escalates every overdue invoice of the organization. With async
// set the run is enqueued and the job returned instead.
func (h *DunningHandler) Run(c *gin.Context) {
	orgID, ok := h.requireOrg(c)
	if !ok {
		return
	}

	var req DunningRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	asOf := time.Now()
	if req.AsOf != nil {
		asOf = *req.AsOf
	}

	if req.Async {
		job, err := h.jobs.EnqueueDunningRun(c.Request.Context(), orgID, asOf, getActor(c))
		if err != nil {
			h.HandleError(c, err)
			return
		}
		h.Accepted(c, job)
		return
	}

	summary, err := h.dunning.Run(c.Request.Context(), orgID, asOf, getActor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, summary)
}

// OpenCases lists the organization's open dunning cases.
func (h *DunningHandler) OpenCases(c *gin.Context) {
	orgID, ok := h.requireOrg(c)
	if !ok {
		return
	}

	cases, err := h.dunning.OpenCases(c.Request.Context(), orgID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, cases)
}

// ClearCase closes the dunning case of an invoice, normally after an
// out-of-band settlement of the debt.
func (h *DunningHandler) ClearCase(c *gin.Context) {
	if _, ok := h.requireOrg(c); !ok {
		return
	}
	invoiceID, ok := h.parseIDParam(c, "invoiceId")
	if !ok {
		return
	}

	if err := h.dunning.ClearCase(c.Request.Context(), invoiceID, getActor(c)); err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, gin.H{"invoice_id": invoiceID, "cleared": true})
}

// RegisterRoutes registers dunning routes.
func (h *DunningHandler) RegisterRoutes(rg *gin.RouterGroup) {
	dunning := rg.Group("/dunning")
	{
		dunning.POST("/run", h.Run)
		dunning.GET("/cases", h.OpenCases)
		dunning.POST("/cases/:invoiceId/clear", h.ClearCase)
	}
}
