package dto

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeErrorCode(t *testing.T) {
	assert.Equal(t, ErrCodePeriodLocked, NormalizeErrorCode("PERIOD_LOCKED"))
	assert.Equal(t, ErrCodeDeadlineExceeded, NormalizeErrorCode("DEADLINE_EXCEEDED"))
	assert.Equal(t, ErrCodeNotFound, NormalizeErrorCode("NOT_FOUND"))

	// unknown codes pass through
	assert.Equal(t, "SOMETHING_ELSE", NormalizeErrorCode("SOMETHING_ELSE"))
}

func TestGetHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusConflict, GetHTTPStatus(ErrCodePeriodLocked))
	assert.Equal(t, http.StatusConflict, GetHTTPStatus(ErrCodeConcurrencyConflict))
	assert.Equal(t, http.StatusUnprocessableEntity, GetHTTPStatus(ErrCodeDeadlineExceeded))
	assert.Equal(t, http.StatusUnprocessableEntity, GetHTTPStatus(ErrCodeInvalidState))
	assert.Equal(t, http.StatusNotFound, GetHTTPStatus(ErrCodeNotFound))
	assert.Equal(t, http.StatusBadRequest, GetHTTPStatus(ErrCodeValidation))

	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus("NO_SUCH_CODE"))
}

func TestErrorResponseEnvelope(t *testing.T) {
	resp := NewErrorResponseWithRequestID(ErrCodePeriodLocked, "period 2026-03 is locked", "req-1")
	assert.False(t, resp.Success)
	assert.Equal(t, ErrCodePeriodLocked, resp.Error.Code)
	assert.Equal(t, "req-1", resp.Error.RequestID)
	assert.Nil(t, resp.Data)
}
