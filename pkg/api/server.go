// Package api exposes the editor helpers over a local HTTP JSON API.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"scope/pkg/api/middleware"
	"scope/pkg/artifact"
	"scope/pkg/build"
	"scope/pkg/logger"
	"scope/pkg/notify"
	"scope/pkg/theme"
	"scope/pkg/workspace"
)

// ErrNoWorkspace is returned when a request needs a workspace root and the
// workspace has no folders.
var ErrNoWorkspace = errors.New("no workspace folder is open")

// Server encapsulates the HTTP API server and its dependencies.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	logger     *zap.Logger
	validator  *middleware.Validator

	workspace     workspace.Context
	locator       *artifact.Locator
	builds        *build.Runner
	notifications *notify.Feed
	theme         *theme.Reader
	buildCommand  string
}

// Config holds API server configuration.
type Config struct {
	Port          string
	Workspace     workspace.Context
	Locator       *artifact.Locator
	Builds        *build.Runner
	Notifications *notify.Feed
	Theme         *theme.Reader
	BuildCommand  string
	APIToken      string
	ServiceName   string
	Logger        *zap.Logger
}

// NewServer creates a new API server with all dependencies.
func NewServer(cfg Config) *Server {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "scope"
	}
	log := logger.OrGlobal(cfg.Logger).Named("api")

	router := gin.New()

	// Middleware stack (order matters)
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.TracingMiddleware(cfg.ServiceName))
	router.Use(requestLogger(log))
	router.Use(middleware.BodySizeLimitMiddleware(1 << 20))
	router.Use(middleware.TokenAuthMiddleware(middleware.TokenAuthConfig{
		Token:     cfg.APIToken,
		SkipPaths: []string{"/health", "/metrics"},
	}))

	s := &Server{
		router:        router,
		logger:        log,
		validator:     middleware.NewValidator(middleware.DefaultValidatorConfig()),
		workspace:     cfg.Workspace,
		locator:       cfg.Locator,
		builds:        cfg.Builds,
		notifications: cfg.Notifications,
		theme:         cfg.Theme,
		buildCommand:  cfg.BuildCommand,
	}

	s.registerRoutes()

	s.httpServer = &http.Server{
		Addr:        "127.0.0.1:" + cfg.Port,
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		// Builds hold the request open until the terminal closes.
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("Starting server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/api/v1")
	{
		artifacts := v1.Group("/artifacts")
		{
			artifacts.GET("", s.listArtifacts)
			artifacts.GET("/content", s.getArtifactContent)
			artifacts.GET("/summary", s.getArtifactSummary)
		}

		v1.POST("/builds", s.runBuild)

		notifications := v1.Group("/notifications")
		{
			notifications.GET("", s.listNotifications)
			notifications.POST("/:id/dismiss", s.dismissNotification)
		}

		v1.GET("/theme", s.getTheme)
	}
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		log.Info("Request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", c.GetString(middleware.ContextRequestIDKey)),
		)
	}
}

// healthCheck reports which helpers are wired. A missing workspace folder
// degrades the service: every artifact lookup would come back empty.
func (s *Server) healthCheck(c *gin.Context) {
	_, hasRoot := s.workspace.Root()
	deps := map[string]bool{
		"workspace": hasRoot,
		"locator":   s.locator != nil,
		"builds":    s.builds != nil,
		"theme":     s.theme != nil,
	}

	healthy := true
	for _, ok := range deps {
		if !ok {
			healthy = false
			break
		}
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, gin.H{
		"status":       status,
		"dependencies": deps,
		"timestamp":    time.Now().UTC(),
	})
}

func abortWithError(c *gin.Context, code int, err error) {
	c.AbortWithStatusJSON(code, gin.H{"error": err.Error()})
}
