// ABOUTME: HTTP API exposing live and computed solar time over gin
// ABOUTME: Bundles routes, request logging, CORS, and graceful shutdown

// Package server serves the solar time provider over HTTP and WebSocket.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/harper/shichen/internal/clock"
	"github.com/harper/shichen/internal/geo"
	"github.com/harper/shichen/internal/logger"
	"github.com/harper/shichen/internal/provider"
	"github.com/harper/shichen/internal/solar"
	"github.com/harper/shichen/internal/storage"
)

const (
	requestTimeout  = 10 * time.Second
	shutdownTimeout = 10 * time.Second
)

// Config holds the server's dependencies. Repo may be nil, in which case
// the history routes answer 404.
type Config struct {
	Listen   string
	Provider provider.SituationProvider[solar.SolarTimeData]
	Locator  geo.Locator
	Repo     storage.PositionRepository
	Clock    clock.Clock
	Zone     func() *time.Location
	Logger   *log.Logger
}

// Server bundles router and dependencies for the API.
type Server struct {
	cfg    Config
	log    *log.Logger
	engine *gin.Engine
}

// New constructs a server with routes and middleware.
func New(cfg Config) *Server {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Zone == nil {
		cfg.Zone = func() *time.Location { return time.Local }
	}
	l := logger.Or(cfg.Logger).With("component", "http")

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(l))
	engine.Use(corsMiddleware())

	s := &Server{cfg: cfg, log: l, engine: engine}
	s.registerRoutes()
	return s
}

// Engine exposes the underlying gin engine (for tests).
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", s.cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := s.engine.Group("/api")
	api.GET("/solar-time", s.handleSolarTime)
	api.GET("/solar-time/compute", s.handleCompute)
	api.GET("/shichen", s.handleBranches)
	api.GET("/shichen/table", s.handleDayTable)
	api.GET("/locator/status", s.handleLocatorStatus)
	api.POST("/locator/permission", s.handleRequestPermission)
	api.GET("/history", s.handleHistory)

	s.engine.GET("/ws", s.handleWebSocket)
}

// requestLogger logs each request through the structured logger.
func requestLogger(l *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		l.Debug("request",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client", c.ClientIP())
		if len(c.Errors) > 0 {
			l.Warn("request errors", "path", path, "errors", c.Errors.String())
		}
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
