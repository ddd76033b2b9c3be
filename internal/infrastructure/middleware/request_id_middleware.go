package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"streampay/pkg/logger"
)

const RequestIDHeader = "X-Request-ID"

// RequestIDMiddleware propagates the caller's request id or assigns one.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Header(RequestIDHeader, id)
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}
