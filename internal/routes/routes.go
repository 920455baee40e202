package routes

import (
	"github.com/Cyvadra/tv-dispatch/internal/config"
	"github.com/Cyvadra/tv-dispatch/internal/handlers"
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all the routes for the application
func SetupRoutes(r *gin.Engine) {
	// Get the configured handler
	webhookHandler := handlers.GetGlobalHandler()
	if webhookHandler == nil {
		// Fallback to creating a new handler if global handler is not set
		webhookHandler = handlers.NewWebhookHandler(config.DefaultDispatchConfig())
	}

	// API routes
	api := r.Group("/api/v1")
	{
		// TradingView webhook endpoint
		api.POST("/webhook/tradingview", webhookHandler.HandleTradingViewAlert)

		// Dispatch audit endpoints
		api.GET("/dispatches/:delivery_id", webhookHandler.GetDispatch)
		api.GET("/alerts", webhookHandler.GetAlerts)

		// Bot lifecycle endpoints
		bots := api.Group("/bots")
		{
			bots.POST("", webhookHandler.CreateBot)
			bots.POST("/:uuid/start", webhookHandler.SetBotActive(true))
			bots.POST("/:uuid/stop", webhookHandler.SetBotActive(false))
			bots.DELETE("/:uuid", webhookHandler.DeleteBot)
		}

		// Subscription lifecycle endpoints
		subs := api.Group("/subscriptions")
		{
			subs.POST("", webhookHandler.CreateSubscription)
			subs.POST("/:uuid/start", webhookHandler.SetSubscriptionActive(true))
			subs.POST("/:uuid/stop", webhookHandler.SetSubscriptionActive(false))
			subs.DELETE("/:uuid", webhookHandler.DeleteSubscription)
		}

		// Bulk user operations
		users := api.Group("/users")
		{
			users.POST("/:uuid/bots/start-all", webhookHandler.SetAllBotsActive(true))
			users.POST("/:uuid/bots/stop-all", webhookHandler.SetAllBotsActive(false))
			users.POST("/:uuid/subscriptions/start-all", webhookHandler.SetAllSubscriptionsActive(true))
			users.POST("/:uuid/subscriptions/stop-all", webhookHandler.SetAllSubscriptionsActive(false))
		}
	}

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "tv-dispatch",
		})
	})

	// Root endpoint
	r.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "TradingView Signal Dispatcher",
			"version": "1.0.0",
			"endpoints": gin.H{
				"webhook":    "/api/v1/webhook/tradingview",
				"dispatches": "/api/v1/dispatches/:delivery_id",
				"health":     "/health",
			},
		})
	})
}
