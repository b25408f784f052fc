// Package api exposes the workflow engine over HTTP: thread management,
// message submission, and read access to workflow state.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pressflow/pressflow/pkg/config"
	"github.com/pressflow/pressflow/pkg/engine"
	"github.com/pressflow/pressflow/pkg/observability"
	threadrepo "github.com/pressflow/pressflow/pkg/repository/thread"
	"github.com/pressflow/pressflow/pkg/templates"
)

// Server is the HTTP front end of the engine
type Server struct {
	router *gin.Engine
	server *http.Server
	logger observability.Logger
}

// NewServer wires the API routes onto a gin router
func NewServer(
	eng *engine.Engine,
	threads threadrepo.Repository,
	registry *templates.Registry,
	cfg config.APIConfig,
	logger observability.Logger,
) *Server {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	logger = logger.WithPrefix("api")

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(logger))
	if cfg.EnableCORS {
		router.Use(CORSMiddleware())
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	NewThreadAPI(eng, threads, registry, logger).RegisterRoutes(v1)

	return &Server{
		router: router,
		server: &http.Server{
			Addr:         cfg.ListenAddress,
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		logger: logger,
	}
}

// Router exposes the gin engine, mainly for tests
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start runs the HTTP server until it fails or is shut down
func (s *Server) Start() error {
	s.logger.Info("API server listening", map[string]interface{}{
		"address": s.server.Addr,
	})
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// RequestLogger logs one line per request
func RequestLogger(logger observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("Request", map[string]interface{}{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		})
	}
}

// CORSMiddleware allows cross-origin access for browser clients
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
