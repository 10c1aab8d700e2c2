package handler

import (
	"github.com/gin-gonic/gin"

	ledgerapp "github.com/immoflow/backend/internal/application/ledger"
)

// AuditHandler exposes the audit hash chain verification.
type AuditHandler struct {
	BaseHandler
	ledger *ledgerapp.LedgerService
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(ledger *ledgerapp.LedgerService) *AuditHandler {
	return &AuditHandler{ledger: ledger}
}

// Verify recomputes the organization's audit hash chain. An invalid
// result names the first record whose hash no longer matches.
func (h *AuditHandler) Verify(c *gin.Context) {
	orgID, ok := h.requireOrg(c)
	if !ok {
		return
	}

	verification, err := h.ledger.VerifyChain(c.Request.Context(), orgID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, verification)
}

// RegisterRoutes registers audit routes.
func (h *AuditHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/audit/verify", h.Verify)
}
