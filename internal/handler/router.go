package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/quotedesk/approval-api/internal/middleware"
	"github.com/quotedesk/approval-api/internal/models"
	"github.com/quotedesk/approval-api/internal/service"
)

// RouterConfig bundles the handlers and cross-cutting services the
// route table needs.
type RouterConfig struct {
	Auth      *AuthHandler
	Workflows *WorkflowHandler
	Metrics   *MetricsHandler
	AuthSvc   *service.AuthService
	APIPrefix string
}

// Register mounts all routes onto the engine. Auth endpoints are
// public; everything under /workflows requires a valid token.
// Approvers act on steps and read their queue; admins own patching,
// deletion, and exports; creation is open to admins and Deal Desk.
func Register(r *gin.Engine, cfg RouterConfig) {
	r.GET("/health", cfg.Metrics.Health)
	r.GET("/ready", cfg.Metrics.Health)
	r.GET("/metrics", cfg.Metrics.Prometheus)

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", cfg.Auth.Login)
		auth.POST("/refresh", cfg.Auth.Refresh)
		auth.GET("/me", middleware.JWT(cfg.AuthSvc), cfg.Auth.Me)
	}

	workflows := api.Group("/workflows")
	workflows.Use(middleware.JWT(cfg.AuthSvc))
	{
		workflows.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleDealDesk), cfg.Workflows.Create)
		workflows.GET("", cfg.Workflows.List)
		workflows.GET("/queue", middleware.RequireApprover(), cfg.Workflows.Queue)
		workflows.GET("/export", middleware.RequireRoles(models.RoleAdmin), cfg.Workflows.Export)
		workflows.GET("/:id", cfg.Workflows.Get)
		workflows.PUT("/:id", middleware.RequireRoles(models.RoleAdmin), cfg.Workflows.Update)
		workflows.PUT("/:id/step/:stepNumber", middleware.RequireApprover(), cfg.Workflows.UpdateStep)
		workflows.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), cfg.Workflows.Delete)
	}
}
