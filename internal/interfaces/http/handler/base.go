package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/immoflow/backend/internal/domain/shared"
	"github.com/immoflow/backend/internal/interfaces/http/dto"
	"github.com/immoflow/backend/internal/interfaces/http/middleware"
)

// OrgIDHeader names the managing organization the request acts for.
// Resolution from an authenticated principal is the gateway's job; this
// service trusts the header.
const OrgIDHeader = "X-Org-ID"

// ActorHeader names the user on whose behalf the request runs. The actor
// ends up in audit records, so a missing header falls back to "api"
// rather than an empty string.
const ActorHeader = "X-Actor"

// BaseHandler provides the response and error helpers shared by all
// endpoint handlers.
type BaseHandler struct{}

func getRequestID(c *gin.Context) string {
	return c.GetString(middleware.RequestIDKey)
}

func getOrgID(c *gin.Context) (uuid.UUID, error) {
	raw := c.GetHeader(OrgIDHeader)
	if raw == "" {
		return uuid.Nil, errors.New("missing " + OrgIDHeader + " header")
	}
	return uuid.Parse(raw)
}

func getActor(c *gin.Context) string {
	if actor := c.GetHeader(ActorHeader); actor != "" {
		return actor
	}
	return "api"
}

// Success sends a 200 response.
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 response.
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Accepted sends a 202 response for work handed to the job queue.
func (h *BaseHandler) Accepted(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, dto.NewSuccessResponse(data))
}

// Error sends an error response with an explicit status code.
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// BadRequest sends a 400 response.
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// Unauthorized sends a 401 response.
func (h *BaseHandler) Unauthorized(c *gin.Context, message string) {
	h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, message)
}

// NotFound sends a 404 response.
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// InternalError sends a 500 response.
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// HandleError maps domain errors onto API error codes and HTTP statuses.
// Anything that is not a shared.DomainError surfaces as a 500 without
// leaking the internal message.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		h.Error(c, dto.GetHTTPStatus(code), code, domainErr.Message)
		return
	}

	h.InternalError(c, "An unexpected error occurred")
}

// requireOrg extracts the org ID or answers 401 and reports failure.
func (h *BaseHandler) requireOrg(c *gin.Context) (uuid.UUID, bool) {
	orgID, err := getOrgID(c)
	if err != nil || orgID == uuid.Nil {
		h.Unauthorized(c, "missing or invalid organization context")
		return uuid.Nil, false
	}
	return orgID, true
}

// parseIDParam parses a UUID path parameter or answers 400.
func (h *BaseHandler) parseIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		h.BadRequest(c, "invalid "+name+" path parameter")
		return uuid.Nil, false
	}
	return id, true
}
