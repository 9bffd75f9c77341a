package routes

import (
	"time"

	"go_edge_gateway/controllers"
	"go_edge_gateway/middleware"
	"go_edge_gateway/services/alerts"
	"go_edge_gateway/services/gateway"
	"go_edge_gateway/services/notify"
	"go_edge_gateway/services/syncqueue"

	"github.com/gin-gonic/gin"
)

// Dependencies carries the constructed engines into route wiring
type Dependencies struct {
	Engine     *gateway.Engine
	Queues     *syncqueue.Manager
	Dispatcher *notify.Dispatcher
	Hub        *notify.Hub
	Alerts     *alerts.Engine
	JWTSecret  string
}

// SetupRoutes sets up the internal API surface and the intercepting proxy
func SetupRoutes(router *gin.Engine, deps *Dependencies) {
	// Initialize controllers
	syncController := controllers.NewSyncController(deps.Queues)
	pushController := controllers.NewPushController(deps.Dispatcher, deps.Alerts)
	windowController := controllers.NewWindowController(deps.Hub, deps.Dispatcher)

	limiter := middleware.NewRateLimiter(120, time.Minute)

	internal := router.Group("/internal")
	internal.Use(limiter.Middleware())
	{
		// Optimistic writes and background-sync signals
		internal.POST("/queues/:queue", syncController.Enqueue)
		internal.POST("/sync/:queue", syncController.TriggerSync)

		// Window attachment and notification surface
		internal.GET("/windows", windowController.Attach)
		internal.GET("/notifications", windowController.Recent)
		internal.POST("/notifications/click", windowController.Click)

		// Host-driven signals, guarded: only the push service and ops
		// tooling may fire these
		guarded := internal.Group("")
		guarded.Use(middleware.BearerAuthMiddleware(deps.JWTSecret))
		{
			guarded.POST("/push", pushController.Receive)
			guarded.POST("/periodic-sync", pushController.TriggerEvaluation)
		}
	}

	// Everything else is intercepted traffic: the catch-all proxy applies
	// the per-request caching strategy.
	router.NoRoute(deps.Engine.Handle)
}
