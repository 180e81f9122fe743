package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes registers the advisory routes under rg.
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	worlds := rg.Group("/worlds/:world")
	{
		worlds.POST("/select", handlers.HandleSelect)
		worlds.POST("/path", handlers.HandlePath)

		worlds.POST("/outcomes", handlers.HandleOutcome)
		worlds.POST("/trips/:trip/depleted", handlers.HandleDepleted)
		worlds.GET("/trips/accessible", handlers.HandleAccessible)

		worlds.GET("/staleness", handlers.HandleStaleness)
		worlds.POST("/rebuild", handlers.HandleRebuild)
	}
}

// NewRouter builds the full engine: /v1 routes, /healthz and /metrics.
func NewRouter(handlers *Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", handlers.HandleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	RegisterRoutes(v1, handlers)
	return router
}
