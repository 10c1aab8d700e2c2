package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	billingapp "github.com/immoflow/backend/internal/application/billing"
	ledgerapp "github.com/immoflow/backend/internal/application/ledger"
	"github.com/immoflow/backend/internal/domain/billing"
)

// PaymentHandler exposes payment booking, allocation and the tenant
// ledger view.
type PaymentHandler struct {
	BaseHandler
	allocations *billingapp.AllocationService
	ledger      *ledgerapp.LedgerService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(allocations *billingapp.AllocationService, ledger *ledgerapp.LedgerService) *PaymentHandler {
	return &PaymentHandler{allocations: allocations, ledger: ledger}
}

// RecordPaymentRequest books an incoming payment.
type RecordPaymentRequest struct {
	TenantID    string    `json:"tenant_id" binding:"required,uuid"`
	Amount      float64   `json:"amount" binding:"required,gt=0"`
	BookingDate time.Time `json:"booking_date" binding:"required"`
	Source      string    `json:"source" binding:"required,payment_source"`
	Reference   string    `json:"reference"`
}

// AllocateRequest applies a payment to invoices.
type AllocateRequest struct {
	Mode      string  `json:"mode" binding:"required,allocation_mode"`
	InvoiceID *string `json:"invoice_id" binding:"omitempty,uuid"`
}

// ReverseRequest reverses a booked payment.
type ReverseRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// ReassignRequest re-plans an already allocated payment.
type ReassignRequest struct {
	Mode      string  `json:"mode" binding:"required,allocation_mode"`
	InvoiceID *string `json:"invoice_id" binding:"omitempty,uuid"`
	RunID     string  `json:"run_id"`
}

// SaldoResponse is the tenant's current balance. Negative means the
// tenant owes money.
type SaldoResponse struct {
	TenantID string `json:"tenant_id"`
	Saldo    string `json:"saldo"`
}

// RecordPayment books a payment and immediately allocates it FIFO over
// the tenant's open invoices.
func (h *PaymentHandler) RecordPayment(c *gin.Context) {
	orgID, ok := h.requireOrg(c)
	if !ok {
		return
	}

	var req RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	tenantID, err := uuid.Parse(req.TenantID)
	if err != nil {
		h.BadRequest(c, "invalid tenant_id")
		return
	}

	result, err := h.allocations.RecordPayment(c.Request.Context(), billingapp.RecordPaymentRequest{
		OrgID:       orgID,
		TenantID:    tenantID,
		Amount:      decimal.NewFromFloat(req.Amount),
		BookingDate: req.BookingDate,
		Source:      billing.PaymentSource(req.Source),
		Reference:   req.Reference,
		Actor:       getActor(c),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, result)
}

// Allocate runs an allocation over a payment that has none yet.
func (h *PaymentHandler) Allocate(c *gin.Context) {
	if _, ok := h.requireOrg(c); !ok {
		return
	}
	paymentID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	var req AllocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	invoiceID, ok := h.optionalInvoiceID(c, req.InvoiceID)
	if !ok {
		return
	}

	result, err := h.allocations.Allocate(c.Request.Context(), paymentID, billing.AllocationMode(req.Mode), invoiceID, getActor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// Reverse stornos a payment: allocations are removed, the affected
// invoices reopen and a storno entry lands in the ledger.
func (h *PaymentHandler) Reverse(c *gin.Context) {
	if _, ok := h.requireOrg(c); !ok {
		return
	}
	paymentID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	var req ReverseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	if err := h.allocations.Reverse(c.Request.Context(), paymentID, req.Reason, getActor(c)); err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, gin.H{"payment_id": paymentID, "reversed": true})
}

// Reassign deletes a payment's allocations and re-plans them under the
// requested mode. Safe to repeat; a second run converges to the same
// allocation.
func (h *PaymentHandler) Reassign(c *gin.Context) {
	if _, ok := h.requireOrg(c); !ok {
		return
	}
	paymentID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	var req ReassignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	invoiceID, ok := h.optionalInvoiceID(c, req.InvoiceID)
	if !ok {
		return
	}

	result, err := h.allocations.Reassign(c.Request.Context(), paymentID, billing.AllocationMode(req.Mode), invoiceID, getActor(c), req.RunID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// Saldo returns the tenant's current balance from the ledger.
func (h *PaymentHandler) Saldo(c *gin.Context) {
	orgID, ok := h.requireOrg(c)
	if !ok {
		return
	}
	tenantID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	saldo, err := h.ledger.Saldo(c.Request.Context(), orgID, tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, SaldoResponse{
		TenantID: tenantID.String(),
		Saldo:    saldo.StringFixed(2),
	})
}

// LedgerEntries returns the tenant's ledger entries, oldest first.
func (h *PaymentHandler) LedgerEntries(c *gin.Context) {
	orgID, ok := h.requireOrg(c)
	if !ok {
		return
	}
	tenantID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	entries, err := h.ledger.Entries(c.Request.Context(), orgID, tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, entries)
}

func (h *PaymentHandler) optionalInvoiceID(c *gin.Context, raw *string) (*uuid.UUID, bool) {
	if raw == nil {
		return nil, true
	}
	id, err := uuid.Parse(*raw)
	if err != nil {
		h.BadRequest(c, "invalid invoice_id")
		return nil, false
	}
	return &id, true
}

// RegisterRoutes registers payment and tenant ledger routes.
func (h *PaymentHandler) RegisterRoutes(rg *gin.RouterGroup) {
	payments := rg.Group("/payments")
	{
		payments.POST("", h.RecordPayment)
		payments.POST("/:id/allocate", h.Allocate)
		payments.POST("/:id/reverse", h.Reverse)
		payments.POST("/:id/reassign", h.Reassign)
	}

	tenants := rg.Group("/tenants")
	{
		tenants.GET("/:id/saldo", h.Saldo)
		tenants.GET("/:id/ledger", h.LedgerEntries)
	}
}
