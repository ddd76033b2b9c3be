package ports

import "github.com/gin-gonic/gin"

type HTTPHandler interface {
	SetupRoutes(rg *gin.RouterGroup)
}
