// Package server assembles the echo instance: middleware, page, API and
// WebSocket routes, and the background session cleanup.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/whenitworks/backend/internal/api"
	"github.com/whenitworks/backend/internal/config"
	"github.com/whenitworks/backend/internal/metrics"
	"github.com/whenitworks/backend/internal/session"
	"github.com/whenitworks/backend/internal/upload"
	"github.com/whenitworks/backend/internal/web"
)

const shutdownTimeout = 10 * time.Second

// Server is a configured, not yet listening, HTTP service.
type Server struct {
	cfg      *config.AppConfig
	echo     *echo.Echo
	sessions *session.Manager
	metrics  *metrics.Metrics
}

// New wires every component from cfg.
func New(cfg *config.AppConfig) (*Server, error) {
	policy, err := cfg.Policy()
	if err != nil {
		return nil, fmt.Errorf("invalid upload policy: %w", err)
	}

	log.SetLevel(cfg.LogLevel())

	var m *metrics.Metrics
	var observers []upload.Observer
	if cfg.Advanced.EnableMetrics {
		m = metrics.New()
		observers = append(observers, m)
	}

	sessions := session.NewManager(policy, cfg.Session.MaxSessions, observers...)
	if m != nil {
		m.TrackSessions(sessions.Count)
	}

	renderer, err := web.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetLevel(cfg.LogLevel())
	e.Renderer = renderer
	api.SetupMiddleware(e, cfg)

	s := &Server{cfg: cfg, echo: e, sessions: sessions, metrics: m}
	s.configureMiddleware()

	handlers := api.NewHandlers(&api.Dependencies{
		Config:   cfg,
		Sessions: sessions,
		Metrics:  m,
	})
	api.RegisterRoutes(e, handlers)
	api.RegisterWebSocketRoutes(e, handlers)

	web.NewPageHandler(sessions, cfg.Session.CookieName, cfg.App).Register(e)
	if err := web.RegisterStaticRoutes(e); err != nil {
		return nil, fmt.Errorf("failed to register static routes: %w", err)
	}

	return s, nil
}

// Echo exposes the router, mostly for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Sessions returns the page session manager.
func (s *Server) Sessions() *session.Manager {
	return s.sessions
}

func (s *Server) configureMiddleware() {
	cfg := s.cfg
	e := s.echo

	if s.metrics != nil {
		e.Use(s.metrics.Middleware())
	}

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			if !cfg.Server.EnableRequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return path == "/health" ||
				path == "/api/health" ||
				path == "/metrics" ||
				strings.HasPrefix(path, "/static/")
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))

	e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return isStreaming(c) ||
				strings.Contains(path, "/upload")
		},
		ErrorMessage: "Request timeout",
	}))

	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Skipper: isStreaming,
	}))

	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	origins := cfg.Server.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))
}

// isStreaming matches the SSE and WebSocket endpoints, which must not be
// buffered or cut off by a timeout.
func isStreaming(c echo.Context) bool {
	path := c.Request().URL.Path
	return path == "/api/ws" ||
		strings.HasSuffix(path, "/stream") ||
		c.Request().Header.Get("Accept") == "text/event-stream"
}

// Run listens until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	cfg := s.cfg

	cleanupCtx, stopCleanup := context.WithCancel(ctx)
	defer stopCleanup()
	go s.cleanupLoop(cleanupCtx,
		time.Duration(cfg.Session.CleanupIntervalMinutes)*time.Minute,
		time.Duration(cfg.Session.TimeoutMinutes)*time.Minute,
	)

	srv := s.echo.Server
	srv.ReadTimeout = time.Duration(cfg.Server.ReadTimeout) * time.Second
	srv.WriteTimeout = time.Duration(cfg.Server.WriteTimeout) * time.Second
	srv.IdleTimeout = time.Duration(cfg.Server.IdleTimeout) * time.Second

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.Start(cfg.GetServerAddr())
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Infof("[Server] Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// cleanupLoop drops idle page sessions every interval.
func (s *Server) cleanupLoop(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.sessions.CleanupOldSessions(maxAge); n > 0 {
				log.Infof("[Sessions] Removed %d idle sessions (%d active)", n, s.sessions.Count())
			}
		}
	}
}

// PrintBanner writes the startup summary.
func PrintBanner(cfg *config.AppConfig, configPath string) {
	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║  %-57s║\n", cfg.App.Name)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", cfg.App.Version)
	fmt.Printf("║  Accepts:    %-45s║\n", strings.Join(cfg.Upload.AcceptedFileTypes, ", "))
	fmt.Printf("║  Config:     %-45s║\n", configPath)
	fmt.Printf("║  Listen:     http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")
}
