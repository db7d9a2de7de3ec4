package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SetupRoutes registers the payment endpoint and health check
func SetupRoutes(router *gin.Engine, handler *Handler) {
	router.HandleMethodNotAllowed = true
	router.NoMethod(func(c *gin.Context) {
		c.Header("Allow", "GET, POST")
		respondWithError(c, http.StatusMethodNotAllowed, errCodeBadRequest, "Method not allowed")
	})

	router.GET("/health", handler.HealthCheck)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/mint", handler.GetPaymentRequirements)
		v1.POST("/mint", handler.ConfirmPayment)
	}
}
