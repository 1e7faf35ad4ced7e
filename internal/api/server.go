package api

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/quotamail/quotamail/internal/config"
	"github.com/quotamail/quotamail/internal/errors"
	"github.com/quotamail/quotamail/internal/logging"
	"github.com/quotamail/quotamail/internal/metrics"
	"github.com/quotamail/quotamail/internal/models"
	"github.com/quotamail/quotamail/internal/pipeline"
	"github.com/quotamail/quotamail/internal/store"
)

// Server represents the HTTP API server
type Server struct {
	router     *gin.Engine
	config     config.ServerConfig
	apiConfig  config.APIConfig
	pipeline   *pipeline.Pipeline
	store      store.HistoryStore
	metrics    *metrics.Metrics
	logger     *logging.Logger
	httpServer *http.Server
}

// Router returns the gin router for testing purposes
func (s *Server) Router() *gin.Engine {
	return s.router
}

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, apiCfg config.APIConfig, p *pipeline.Pipeline, st store.HistoryStore, m *metrics.Metrics, logger *logging.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	if m == nil {
		m = metrics.NewMetrics("quotamail")
	}
	if logger == nil {
		logger = logging.NewLogger()
	}

	server := &Server{
		router:    gin.New(),
		config:    cfg,
		apiConfig: apiCfg,
		pipeline:  p,
		store:     st,
		metrics:   m,
		logger:    logger,
	}
	server.router.HandleMethodNotAllowed = true

	server.router.Use(gin.Recovery())
	server.router.Use(bodyLimitMiddleware(1 << 20))
	server.router.Use(metrics.Middleware(m, logger))
	server.router.Use(loggingMiddleware(logger))

	server.setupRoutes()
	return server
}

// loggingMiddleware provides structured logging for all requests
func loggingMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		correlationID := c.GetHeader("X-Correlation-ID")
		if correlationID == "" {
			correlationID = logging.GenerateCorrelationID()
		}

		ctx := logging.WithCorrelationID(c.Request.Context(), correlationID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		duration := time.Since(start).Seconds()
		logger.InfoWithContext(ctx, "request completed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_seconds", duration,
		)
	}
}

// bodyLimitMiddleware limits the size of request bodies
func bodyLimitMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		}
		c.Next()
	}
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	// Prometheus metrics endpoint - NO authentication required
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	// Health check - NO authentication required
	s.router.GET("/healthz", s.handleHealth)

	authMiddleware := APIKeyAuth(s.apiConfig.Auth.APIKeys, s.apiConfig.Auth.HeaderName, s.logger)

	v1 := s.router.Group(s.apiConfig.BasePath)
	v1.Use(authMiddleware)
	{
		v1.POST("/usage", s.handleUsage)
		v1.GET("/history/:user", s.handleHistory)
		v1.GET("/users", s.handleUsers)
		v1.GET("/stats", s.handleStats)
	}
}

// Run starts the HTTP server
func (s *Server) Run() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.HTTPPort)

	if s.httpServer == nil {
		s.httpServer = NewHTTPServer(addr, s.router)
	}

	s.logger.Info("starting HTTP server", "addr", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return &errors.ErrServerStart{Addr: addr, Err: err}
	}
	return nil
}

// Shutdown gracefully shuts down the server and its components
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("initiating graceful shutdown")

	var wg sync.WaitGroup
	errs := make(chan error, 2)

	if s.httpServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.logger.Info("shutting down HTTP server")
			if err := s.httpServer.Shutdown(ctx); err != nil {
				s.logger.Error("HTTP server shutdown error", "error", err.Error())
				errs <- &errors.ErrServerShutdown{Err: err}
			}
		}()
	}

	if s.store != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.store.Close(); err != nil {
				errs <- fmt.Errorf("store close: %w", err)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	close(errs)
	var errList []error
	for err := range errs {
		if err != nil {
			errList = append(errList, err)
		}
	}
	if len(errList) > 0 {
		return fmt.Errorf("shutdown errors: %v", errList)
	}

	s.logger.Info("graceful shutdown completed")
	return nil
}

// handleHealth returns health status
func (s *Server) handleHealth(c *gin.Context) {
	stats, err := s.store.Stats()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	s.metrics.SetHistoryEntries(stats.ChangeCount)
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"users":     stats.UserCount,
		"changes":   stats.ChangeCount,
	})
}

// CrossingView is the API representation of one dimension's crossing decision
type CrossingView struct {
	Outcome string  `json:"outcome"`
	Ratio   float64 `json:"ratio"`
	Percent int     `json:"percent"`
}

// UsageResponse represents the result of processing a usage update
type UsageResponse struct {
	Notified  bool                    `json:"notified"`
	Crossings map[string]CrossingView `json:"crossings"`
}

// handleUsage processes an inbound quota usage update
func (s *Server) handleUsage(c *gin.Context) {
	var update models.UsageUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.pipeline.OnUsageUpdate(c.Request.Context(), update)
	if err != nil {
		s.logger.ErrorWithContext(c.Request.Context(), "usage update failed",
			"user", update.User,
			"error", err.Error(),
		)

		var deliveryErr *errors.ErrMailDelivery
		var persistErr *errors.ErrHistoryPersistence
		switch {
		case stderrors.As(err, &deliveryErr):
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		case stderrors.As(err, &persistErr):
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}

	resp := UsageResponse{
		Notified:  result.Notified,
		Crossings: make(map[string]CrossingView, len(result.Crossings)),
	}
	for dim, crossing := range result.Crossings {
		resp.Crossings[string(dim)] = CrossingView{
			Outcome: string(crossing.Outcome),
			Ratio:   crossing.Threshold.Ratio(),
			Percent: crossing.Threshold.Percent(),
		}
	}

	c.JSON(http.StatusOK, resp)
}

// HistoryEntry is the API representation of one recorded threshold change
type HistoryEntry struct {
	Dimension string    `json:"dimension"`
	Ratio     float64   `json:"ratio"`
	Percent   int       `json:"percent"`
	At        time.Time `json:"at"`
}

// handleHistory returns the recorded threshold changes for a user
func (s *Server) handleHistory(c *gin.Context) {
	user := c.Param("user")

	dimensions := models.Dimensions
	if q := c.Query("dimension"); q != "" {
		dim := models.Dimension(q)
		if !dim.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown dimension: %s", q)})
			return
		}
		dimensions = []models.Dimension{dim}
	}

	entries := make([]HistoryEntry, 0)
	for _, dim := range dimensions {
		history, err := s.store.Retrieve(user, dim)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		for _, change := range history.Changes() {
			entries = append(entries, HistoryEntry{
				Dimension: string(dim),
				Ratio:     change.Threshold.Ratio(),
				Percent:   change.Threshold.Percent(),
				At:        change.At,
			})
		}
	}

	c.JSON(http.StatusOK, gin.H{"user": user, "changes": entries})
}

// handleUsers returns all users with recorded history
func (s *Server) handleUsers(c *gin.Context) {
	users, err := s.store.ListUsers()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if users == nil {
		users = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// handleStats returns store statistics
func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.store.Stats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	s.metrics.SetHistoryEntries(stats.ChangeCount)
	c.JSON(http.StatusOK, gin.H{
		"users":   stats.UserCount,
		"changes": stats.ChangeCount,
	})
}
