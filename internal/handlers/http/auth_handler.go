package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"streampay/internal/core/services"
	"streampay/pkg/errors"
)

type AuthHandler struct {
	authService    services.AuthService
	accessTokenTTL time.Duration
}

func NewAuthHandler(authService services.AuthService, accessTokenTTL time.Duration) *AuthHandler {
	return &AuthHandler{
		authService:    authService,
		accessTokenTTL: accessTokenTTL,
	}
}

func (h *AuthHandler) SetupRoutes(rg *gin.RouterGroup) {
	api := rg.Group("/auth")
	{
		api.POST("/refresh", h.RefreshToken)
	}
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required,max=2048"`
}

func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	claims, err := h.authService.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		c.Error(errors.NewUnauthorizedError("invalid refresh token"))
		return
	}

	accessToken, err := h.authService.GenerateToken(claims.Signer)
	if err != nil {
		c.Error(errors.NewInternalError("failed to generate token"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"signer":       claims.Signer.String(),
		"access_token": accessToken,
		"expires_in":   int(h.accessTokenTTL / time.Second),
	})
}
