// Package router assembles the gin engine.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/danielolaszy/codefair/internal/http/middleware"
	"github.com/danielolaszy/codefair/internal/http/webhook"
)

// RouterConfig configures the engine.
type RouterConfig struct {
	WebhookPath string
	// ServiceName names the server spans. Empty disables tracing middleware.
	ServiceName string
}

// New builds the engine with middleware and routes.
func New(cfg RouterConfig, github *webhook.GitHubWebhookHandler) *gin.Engine {
	router := gin.New()

	// OTel creates the span first so Recovery and Logger see its context.
	if cfg.ServiceName != "" {
		router.Use(otelgin.Middleware(cfg.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	SetupRoutes(router, github, cfg)
	return router
}

// SetupRoutes registers the health check and the webhook route.
func SetupRoutes(router *gin.Engine, github *webhook.GitHubWebhookHandler, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.POST(cfg.WebhookPath, github.HandleEvent)
}
