package main

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/brandsentry/internal/middleware"
	"github.com/huangang/brandsentry/pkg/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	// Middleware
	r.Use(logger.GinLogger("/health", "/metrics"), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS())

	// Record hooks from the complaint and rating services, limited per client and route
	triggerLimiter := middleware.NewRateLimiter(20, 40, middleware.RouteKey)

	r.GET("/health", svc.healthHandler.CheckHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		triggers := api.Group("/triggers", triggerLimiter.Middleware())
		{
			triggers.POST("/complaints", svc.triggerHandler.ComplaintCreated)
			triggers.POST("/ratings", svc.triggerHandler.RatingCreated)
		}

		// Sentiment read API
		brands := api.Group("/brands/:id")
		{
			brands.GET("/sentiment/events", svc.sentimentHandler.ListEvents)
			brands.GET("/sentiment/daily", svc.sentimentHandler.ListDaily)
			brands.POST("/sentiment/recompute", svc.sentimentHandler.Recompute)
			brands.GET("/trust-score", svc.trustScoreHandler.GetBrand)

			// Notification center
			brands.GET("/notifications", svc.notificationHandler.List)
			brands.GET("/alert-preferences", svc.notificationHandler.GetPreferences)
			brands.PUT("/alert-preferences", svc.notificationHandler.UpdatePreferences)
			brands.POST("/notify", svc.notificationHandler.Notify)
		}
		api.GET("/trust-score/platform", svc.trustScoreHandler.GetPlatform)
		api.POST("/notifications/:id/read", svc.notificationHandler.MarkRead)

		// SSE Events
		api.GET("/events/notifications", svc.sseHandler.StreamNotifications)

		// Admin
		admin := api.Group("/admin")
		{
			admin.POST("/sentiment/backfill", svc.backfillHandler.Run)
		}

		api.GET("/system-logs", svc.systemLogHandler.List)
		api.GET("/ai-usage/stats", svc.aiUsageHandler.GetStats)
	}
}
