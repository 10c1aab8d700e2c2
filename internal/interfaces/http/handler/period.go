package handler

import (
	"github.com/gin-gonic/gin"

	billingapp "github.com/immoflow/backend/internal/application/billing"
)

// PeriodHandler exposes accounting period locks.
type PeriodHandler struct {
	BaseHandler
	periods *billingapp.PeriodService
}

// NewPeriodHandler creates a new PeriodHandler.
func NewPeriodHandler(periods *billingapp.PeriodService) *PeriodHandler {
	return &PeriodHandler{periods: periods}
}

// LockPeriodRequest closes an accounting period for bookings.
type LockPeriodRequest struct {
	Year   int    `json:"year" binding:"required,min=2000"`
	Month  int    `json:"month" binding:"required,min=1,max=12"`
	Reason string `json:"reason" binding:"required"`
}

// Lock closes a period. There is no unlock; a locked period stays
// locked.
func (h *PeriodHandler) Lock(c *gin.Context) {
	orgID, ok := h.requireOrg(c)
	if !ok {
		return
	}

	var req LockPeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	lock, err := h.periods.LockPeriod(c.Request.Context(), orgID, req.Year, req.Month, getActor(c), req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, lock)
}

// List returns the organization's period locks.
func (h *PeriodHandler) List(c *gin.Context) {
	orgID, ok := h.requireOrg(c)
	if !ok {
		return
	}

	locks, err := h.periods.ListLocks(c.Request.Context(), orgID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, locks)
}

// RegisterRoutes registers period lock routes.
func (h *PeriodHandler) RegisterRoutes(rg *gin.RouterGroup) {
	locks := rg.Group("/period-locks")
	{
		locks.GET("", h.List)
		locks.POST("", h.Lock)
	}
}
