package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	settlementapp "github.com/immoflow/backend/internal/application/settlement"
	"github.com/immoflow/backend/internal/domain/settlement"
)

// SettlementHandler exposes the annual operating-cost settlement.
type SettlementHandler struct {
	BaseHandler
	settlements *settlementapp.SettlementService
}

// NewSettlementHandler creates a new SettlementHandler.
func NewSettlementHandler(settlements *settlementapp.SettlementService) *SettlementHandler {
	return &SettlementHandler{settlements: settlements}
}

// CreateSettlementRunRequest opens a settlement run for a property year.
type CreateSettlementRunRequest struct {
	PropertyID   string  `json:"property_id" binding:"required,uuid"`
	Year         int     `json:"year" binding:"required,min=2000"`
	Key          string  `json:"key" binding:"required,distribution_key"`
	TotalExpense float64 `json:"total_expense" binding:"required,gt=0"`
}

// SettlementUnit is one unit in a distribution request.
type SettlementUnit struct {
	ID       string  `json:"id" binding:"required,uuid"`
	Name     string  `json:"name" binding:"required"`
	Area     float64 `json:"area" binding:"min=0"`
	MEA      float64 `json:"mea" binding:"min=0"`
	Persons  int     `json:"persons" binding:"min=0"`
	Fixed    float64 `json:"fixed" binding:"min=0"`
	Vacant   bool    `json:"vacant"`
	TenantID *string `json:"tenant_id" binding:"omitempty,uuid"`
}

// DistributeRequest distributes the run's total over the given units.
type DistributeRequest struct {
	Units []SettlementUnit `json:"units" binding:"required,min=1,dive"`
}

// CreateRun opens a new settlement run. Runs whose statutory billing
// window has already closed are rejected.
func (h *SettlementHandler) CreateRun(c *gin.Context) {
	orgID, ok := h.requireOrg(c)
	if !ok {
		return
	}

	var req CreateSettlementRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	propertyID, err := uuid.Parse(req.PropertyID)
	if err != nil {
		h.BadRequest(c, "invalid property_id")
		return
	}

	run, err := h.settlements.CreateRun(c.Request.Context(), settlementapp.CreateRunRequest{
		OrgID:        orgID,
		PropertyID:   propertyID,
		Year:         req.Year,
		Key:          settlement.DistributionKey(req.Key),
		TotalExpense: decimal.NewFromFloat(req.TotalExpense),
		Actor:        getActor(c),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, run)
}

// Distribute computes and stores the per-unit shares of a run. Calling
// it again replaces the previous distribution.
func (h *SettlementHandler) Distribute(c *gin.Context) {
	if _, ok := h.requireOrg(c); !ok {
		return
	}
	runID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	var req DistributeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	units, err := h.toUnits(req.Units)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	dist, err := h.settlements.Distribute(c.Request.Context(), runID, units, getActor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dist)
}

// Finalize locks the run's distribution in.
func (h *SettlementHandler) Finalize(c *gin.Context) {
	if _, ok := h.requireOrg(c); !ok {
		return
	}
	runID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	run, err := h.settlements.Finalize(c.Request.Context(), runID, getActor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, run)
}

// GetRun returns a run with its distribution entries.
func (h *SettlementHandler) GetRun(c *gin.Context) {
	if _, ok := h.requireOrg(c); !ok {
		return
	}
	runID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	run, entries, err := h.settlements.RunWithEntries(c.Request.Context(), runID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, gin.H{"run": run, "entries": entries})
}

// ListRuns returns all runs of a property.
func (h *SettlementHandler) ListRuns(c *gin.Context) {
	orgID, ok := h.requireOrg(c)
	if !ok {
		return
	}
	propertyID, err := uuid.Parse(c.Query("property_id"))
	if err != nil {
		h.BadRequest(c, "invalid or missing property_id query parameter")
		return
	}

	runs, err := h.settlements.RunsForProperty(c.Request.Context(), orgID, propertyID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, runs)
}

func (h *SettlementHandler) toUnits(in []SettlementUnit) ([]settlement.Unit, error) {
	units := make([]settlement.Unit, 0, len(in))
	for _, u := range in {
		id, err := uuid.Parse(u.ID)
		if err != nil {
			return nil, err
		}
		unit := settlement.Unit{
			ID:      id,
			Name:    u.Name,
			Area:    decimal.NewFromFloat(u.Area),
			MEA:     decimal.NewFromFloat(u.MEA),
			Persons: u.Persons,
			Fixed:   decimal.NewFromFloat(u.Fixed),
			Vacant:  u.Vacant,
		}
		if u.TenantID != nil {
			tenantID, err := uuid.Parse(*u.TenantID)
			if err != nil {
				return nil, err
			}
			unit.TenantID = &tenantID
		}
		units = append(units, unit)
	}
	return units, nil
}

// RegisterRoutes registers settlement routes.
func (h *SettlementHandler) RegisterRoutes(rg *gin.RouterGroup) {
	runs := rg.Group("/settlement-runs")
	{
		runs.GET("", h.ListRuns)
		runs.POST("", h.CreateRun)
		runs.GET("/:id", h.GetRun)
		runs.POST("/:id/distribute", h.Distribute)
		runs.POST("/:id/finalize", h.Finalize)
	}
}
