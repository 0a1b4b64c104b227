package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/prasenjit/go-gateway/internal/gateway"
	"github.com/prasenjit/go-gateway/internal/tracing"
)

// Router handles HTTP routing
type Router struct {
	engine  *gin.Engine
	gateway *gateway.Gateway
	handler *Handler
	logger  *slog.Logger
}

// NewRouter creates a new router. Requests outside /_api go to the
// gateway's mounted specifications.
func NewRouter(g *gateway.Gateway, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}

	r := &Router{
		engine:  gin.New(),
		gateway: g,
		handler: NewHandler(g),
		logger:  logger,
	}

	// Setup middleware
	r.engine.Use(gin.Recovery())
	r.engine.Use(corsMiddleware())
	r.engine.Use(gin.Logger())

	r.setupRoutes()

	return r
}

// setupRoutes configures all routes
func (r *Router) setupRoutes() {
	api := r.engine.Group("/_api")
	{
		// Specifications
		api.GET("/specs", r.handler.ListSpecs)
		api.POST("/specs", r.handler.RegisterSpec)
		api.GET("/specs/:id", r.handler.GetSpec)
		api.DELETE("/specs/:id", r.handler.DeleteSpec)
		api.GET("/specs/:id/endpoints", r.handler.ListEndpoints)
		api.GET("/specs/:id/dtos", r.handler.GenerateDTOs)
		api.GET("/specs/:id/validate", r.handler.Validate)
		api.GET("/specs/:id/routes", r.handler.GetRoutes)
		api.POST("/specs/:id/call", r.handler.CallByPath)

		// Endpoints
		api.GET("/endpoints/:id", r.handler.GetEndpoint)
		api.POST("/endpoints/:id/call", r.handler.CallByEndpoint)

		// Auth configs
		api.PUT("/auth-configs", r.handler.UpsertAuthConfig)
		api.GET("/auth-configs", r.handler.ListAuthConfigs)
		api.GET("/auth-configs/:id", r.handler.GetAuthConfig)
		api.DELETE("/auth-configs/:id", r.handler.DeleteAuthConfig)

		api.GET("/registry", r.handler.GetRegistry)
		api.GET("/mounts", r.handler.GetMounts)

		// Statistics
		api.GET("/stats", r.handler.GetGlobalStats)
		api.GET("/stats/specs/:id", r.handler.GetSpecStats)
		api.GET("/stats/endpoints/:id", r.handler.GetEndpointStats)
		api.POST("/stats/reset", r.handler.ResetStats)

		// Call logs
		api.GET("/calls", r.handler.ListCalls)
		api.GET("/calls/:id", r.handler.GetCall)
		api.DELETE("/calls", r.handler.ClearCalls)

		// Health
		api.GET("/health", r.handler.HealthCheck)
	}

	// WebSocket for live call logs
	ws := tracing.NewWebSocketHandler(r.gateway.Calls(), r.logger)
	r.engine.GET("/_api/calls/stream", gin.WrapH(ws))

	// Everything else is live traffic for mounted specifications
	mounts := r.gateway.Mounts()
	r.engine.NoRoute(func(c *gin.Context) {
		mounts.ServeHTTP(c.Writer, c.Request)
	})
}

// Handler returns the http.Handler
func (r *Router) Handler() http.Handler {
	return r.engine
}

// corsMiddleware adds CORS headers to admin responses. Mounted traffic,
// preflights included, passes through untouched.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !strings.HasPrefix(c.Request.URL.Path, "/_api") {
			c.Next()
			return
		}

		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, PATCH")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
