package middleware

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"streampay/pkg/logger"
	"streampay/pkg/tracing"
)

// TracingMiddleware opens a server span per request, named by route.
func TracingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		ctx, span := tracing.TraceHTTPRequest(c.Request.Context(), c.Request.Method, route)
		defer span.End()

		span.SetAttributes(
			attribute.String("http.host", c.Request.Host),
			attribute.String("http.user_agent", c.Request.UserAgent()),
			attribute.String("http.client_ip", c.ClientIP()),
		)
		if id := logger.RequestIDFromContext(ctx); id != "" {
			span.SetAttributes(attribute.String("request.id", id))
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		if signer := logger.SignerFromContext(c.Request.Context()); signer != "" {
			span.SetAttributes(tracing.SignerKey.String(signer))
		}
		span.SetAttributes(
			attribute.Int("http.status_code", c.Writer.Status()),
			attribute.Int("http.response_size", c.Writer.Size()),
		)
		if c.Writer.Status() >= 400 {
			span.SetStatus(codes.Error, c.Errors.String())
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}
}
