// routes.go - Route registration helpers
package api

import (
	"github.com/labstack/echo/v4"
	"github.com/whenitworks/backend/internal/config"
	"github.com/whenitworks/backend/internal/metrics"
	"github.com/whenitworks/backend/internal/session"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Config   *config.AppConfig
	Sessions *session.Manager
	Metrics  *metrics.Metrics // nil disables /metrics
}

// Handlers holds all handler instances
type Handlers struct {
	Health    HealthHandler
	Upload    UploadHandler
	WebSocket StreamHandler
	metrics   *metrics.Metrics
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	cfg := deps.Config
	return &Handlers{
		Health: NewHealthHandler(cfg.App.Name, cfg.App.Version, deps.Sessions.Count),
		Upload: NewUploadHandler(deps.Sessions, cfg.Session.CookieName, cfg.App),
		WebSocket: NewWebSocketHandler(
			deps.Sessions,
			cfg.Session.CookieName,
			int64(cfg.Advanced.WebSocketMaxMessageSize)*1024,
			cfg.Advanced.WebSocketSelectsPerSec,
		),
		metrics: deps.Metrics,
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	e.GET("/health", handlers.Health.HandleHealth)

	apiGroup := e.Group("/api")
	apiGroup.GET("/health", handlers.Health.HandleHealth)
	apiGroup.GET("/config", handlers.Upload.HandleGetConfig)
	apiGroup.POST("/upload", handlers.Upload.HandleUpload)

	stateGroup := apiGroup.Group("/state")
	stateGroup.GET("", handlers.Upload.HandleGetState)
	stateGroup.DELETE("", handlers.Upload.HandleClearState)
	stateGroup.GET("/msgpack", handlers.Upload.HandleGetStateMsgpack)
	stateGroup.GET("/stream", handlers.Upload.HandleStateStream)

	if handlers.metrics != nil {
		e.GET("/metrics", echo.WrapHandler(handlers.metrics.Handler()))
	}
}

// RegisterWebSocketRoutes registers WebSocket routes
func RegisterWebSocketRoutes(e *echo.Echo, handlers *Handlers) {
	e.GET("/api/ws", handlers.WebSocket.HandleWebSocket)
}

// SetupMiddleware configures the API error handling
func SetupMiddleware(e *echo.Echo, cfg *config.AppConfig) {
	e.HTTPErrorHandler = ErrorHandler
	ShowErrorDetails = cfg.Advanced.LogLevel == "debug"
}
