package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/intlshop/backend/internal/interfaces/http/dto"
)

const (
	// IdempotencyKeyHeader is the optional client retry key of mutating calls
	IdempotencyKeyHeader = "Idempotency-Key"
	// MaxIdempotencyKeyLength bounds the accepted key
	MaxIdempotencyKeyLength = 128

	idempotencyKeyContextKey = "idempotency_key"
)

// IdempotencyKey echoes a client supplied Idempotency-Key on the response.
// Keys longer than MaxIdempotencyKeyLength are rejected.
func IdempotencyKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyKeyHeader)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > MaxIdempotencyKeyLength {
			c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeBadRequest, "Idempotency-Key is too long", GetRequestID(c)))
			return
		}
		c.Set(idempotencyKeyContextKey, key)
		c.Writer.Header().Set(IdempotencyKeyHeader, key)
		c.Next()
	}
}

// GetIdempotencyKey returns the key accepted by IdempotencyKey, if any
func GetIdempotencyKey(c *gin.Context) string {
	return c.GetString(idempotencyKeyContextKey)
}
