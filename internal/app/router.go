package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"dispatch/internal/handler"
	"dispatch/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	OrderHandler    *handler.OrderHandler
	DriverHandler   *handler.DriverHandler
	MatchingHandler *handler.MatchingHandler
	InboxHandler    *handler.InboxHandler
	RedisClient     *redis.Client
	NewRelicApp     *newrelic.Application
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORSMiddleware())

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes.
	v1 := router.Group("/v1")
	{
		orders := v1.Group("/orders")
		{
			orders.POST("", deps.OrderHandler.Create)
			orders.GET("/:id", deps.OrderHandler.Get)
		}

		drivers := v1.Group("/drivers")
		{
			drivers.POST("/register", deps.DriverHandler.Register)
			drivers.POST("/:id/location", deps.DriverHandler.UpdateLocation)
			drivers.POST("/:id/status", deps.DriverHandler.UpdateStatus)
			drivers.GET("/:id/route", deps.DriverHandler.Route)
			drivers.GET("/:id/inbox", deps.InboxHandler.Connect)
			drivers.GET("/:id/assignments/offered", deps.DriverHandler.OfferedAssignments)

			// Idempotency only guards the mutating accept/reject calls a
			// retried driver request could otherwise double-apply.
			assignments := drivers.Group("/assignments")
			assignments.Use(middleware.IdempotencyMiddleware(deps.RedisClient))
			{
				assignments.POST("/:id/accept", deps.MatchingHandler.AcceptAssignment)
				assignments.POST("/:id/reject", deps.MatchingHandler.RejectAssignment)
			}
		}

		matching := v1.Group("/matching")
		matching.Use(middleware.IdempotencyMiddleware(deps.RedisClient))
		{
			matching.POST("/optimize", deps.MatchingHandler.Optimize)
			matching.POST("/accept-all", deps.MatchingHandler.AcceptAll)
			matching.POST("/reject-all", deps.MatchingHandler.RejectAll)
		}
	}

	return router
}
