package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type contextKey string

const (
	RequestIDKey    contextKey = "request_id"
	HeaderRequestID            = "X-Request-ID"
)

// RequestID assigns every request an id, reusing the caller's when present,
// and stores it both in the gin context and in the request context so
// outbound calls and published events can carry it.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}

		c.Set(string(RequestIDKey), id)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), RequestIDKey, id))
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// RequestIDFromContext returns the request id or "" outside a request.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}
