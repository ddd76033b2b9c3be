package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"streampay/internal/core/services"
	"streampay/pkg/errors"
	"streampay/pkg/logger"
)

// SignerKey is the gin context key holding the authenticated domain.Address.
const SignerKey = "signer"

func bearerToken(c *gin.Context) (string, bool) {
	parts := strings.Split(c.GetHeader("Authorization"), " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// AuthMiddleware requires a valid access token and binds its signer to the
// request context.
func AuthMiddleware(authService services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.Error(errors.NewUnauthorizedError("authorization header required"))
			c.Abort()
			return
		}
		token, ok := bearerToken(c)
		if !ok {
			c.Error(errors.NewUnauthorizedError("invalid authorization header format"))
			c.Abort()
			return
		}

		claims, err := authService.ValidateToken(token)
		if err != nil {
			c.Error(errors.NewUnauthorizedError(err.Error()))
			c.Abort()
			return
		}

		c.Set(SignerKey, claims.Signer)
		c.Request = c.Request.WithContext(logger.WithSigner(c.Request.Context(), claims.Signer.String()))
		c.Next()
	}
}

// OptionalAuthMiddleware binds a signer when a valid token is present and
// lets anonymous requests through.
func OptionalAuthMiddleware(authService services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c); ok {
			if claims, err := authService.ValidateToken(token); err == nil {
				c.Set(SignerKey, claims.Signer)
				c.Request = c.Request.WithContext(logger.WithSigner(c.Request.Context(), claims.Signer.String()))
			}
		}
		c.Next()
	}
}
