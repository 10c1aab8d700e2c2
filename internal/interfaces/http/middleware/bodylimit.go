package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/immoflow/backend/internal/interfaces/http/dto"
)

// DefaultMaxBodySize caps request bodies at 10 MiB. Bulk CSV uploads are
// the largest payloads the API accepts; a 10 MiB file is roughly 100k
// invoice lines, well past any realistic import batch.
const DefaultMaxBodySize int64 = 10 << 20

// BodyLimit rejects requests whose declared Content-Length exceeds the
// limit and truncates chunked bodies via MaxBytesReader so a lying client
// cannot stream past it either.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodySize
	}
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, dto.NewErrorResponseWithRequestID(
				dto.ErrCodePayloadTooLarge,
				"request body too large",
				c.GetString(RequestIDKey),
			))
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
