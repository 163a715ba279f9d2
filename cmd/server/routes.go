package main

import (
	"github.com/gin-gonic/gin"
	"github.com/trackwell/issuetracker/internal/handlers"
	"github.com/trackwell/issuetracker/internal/middleware"
	"github.com/trackwell/issuetracker/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	r.Use(logger.GinLogger(), logger.GinRecovery(), middleware.Metrics())
	r.Use(middleware.CORS(svc.cfg.Server.AllowOrigins))

	r.GET("/health", svc.healthHandler.CheckHealth)
	r.GET("/metrics", handlers.Metrics())

	api := r.Group("/api")
	api.Use(middleware.Authenticate(svc.authService))
	{
		auth := api.Group("/auth")
		{
			auth.POST("/login", svc.authLimiter.Middleware(), svc.authHandler.Login)
			auth.POST("/refresh", svc.authLimiter.Middleware(), svc.authHandler.Refresh)
			auth.GET("/config", svc.authHandler.Config)
			auth.GET("/me", middleware.AuthRequired(), svc.authHandler.Me)
			auth.POST("/logout", middleware.AuthRequired(), svc.authHandler.Logout)
		}

		// Reads are public. Mutations authenticate and authorize in the
		// service layer so that every outcome comes from one place.
		issues := api.Group("/issues")
		issues.Use(middleware.MutationsOnly(svc.mutationLimiter.Middleware()))
		{
			issues.GET("", svc.issueHandler.List)
			issues.POST("", svc.issueHandler.Create)
			issues.GET("/:id", svc.issueHandler.Get)
			issues.PATCH("/:id", svc.issueHandler.Update)
			issues.DELETE("/:id", svc.issueHandler.Delete)

			issues.GET("/:id/activities", svc.activityHandler.List)
			issues.GET("/:id/comments", svc.commentHandler.List)
			issues.POST("/:id/comments", svc.commentHandler.Create)
		}

		protected := api.Group("")
		protected.Use(middleware.AuthRequired())
		{
			protected.GET("/users", svc.userHandler.List)
		}

		admin := api.Group("")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired(svc.users), middleware.AuditLog())
		{
			admin.PUT("/users/:id/role", svc.userHandler.UpdateRole)

			admin.GET("/system-logs", svc.systemLogHandler.List)
			admin.GET("/system-logs/retention", svc.systemLogHandler.GetRetentionDays)
			admin.PUT("/system-logs/retention", svc.systemLogHandler.SetRetentionDays)
			admin.POST("/system-logs/cleanup", svc.systemLogHandler.Cleanup)
		}
	}
}
