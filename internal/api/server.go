// Package api exposes the trading engine over HTTP and WebSocket.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"footprint-trading-bot/internal/engine"
	"footprint-trading-bot/internal/events"
	"footprint-trading-bot/internal/footprint"
	"footprint-trading-bot/internal/store"
)

// RateLimiter provides simple in-memory rate limiting per endpoint.
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	limit    int
	window   time.Duration
}

// NewRateLimiter creates a rate limiter allowing limit requests per window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow checks if a request is allowed for the given key.
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-r.window)

	var recent []time.Time
	for _, t := range r.requests[key] {
		if t.After(windowStart) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}

	r.requests[key] = append(recent, now)
	return true
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host           string
	Port           int
	ProductionMode bool
	AllowOrigins   []string
}

// Server is the HTTP API in front of the trading engine.
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	engine      *engine.Engine
	scheduler   *engine.Scheduler
	store       store.Store
	setups      *footprint.Manager
	bias        *footprint.BiasEvaluator
	hub         *WSHub
	rateLimiter *RateLimiter
	config      ServerConfig
	logger      zerolog.Logger
}

// NewServer wires the API around the engine and its collaborators. The
// scheduler may be nil when strategy scheduling is disabled; its routes
// then return 404.
func NewServer(
	config ServerConfig,
	eng *engine.Engine,
	scheduler *engine.Scheduler,
	st store.Store,
	setups *footprint.Manager,
	bias *footprint.BiasEvaluator,
	bus *events.EventBus,
	logger zerolog.Logger,
) *Server {
	if config.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(config.AllowOrigins) > 0 {
		corsConfig.AllowOrigins = config.AllowOrigins
	} else {
		corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:      router,
		engine:      eng,
		scheduler:   scheduler,
		store:       st,
		setups:      setups,
		bias:        bias,
		hub:         NewWSHub(bus, logger),
		rateLimiter: NewRateLimiter(120, time.Minute),
		config:      config,
		logger:      logger.With().Str("component", "api_server").Logger(),
	}

	server.setupRoutes()
	return server
}

// venueRateLimit throttles endpoints whose handlers call out to the venue.
func (s *Server) venueRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		if !s.rateLimiter.Allow(path) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   true,
				"message": "rate limit exceeded, slow down",
				"path":    path,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api")
	{
		api.POST("/engine/start", s.handleStartEngine)
		api.POST("/engine/stop", s.handleStopEngine)
		api.GET("/engine/status", s.handleEngineStatus)
		api.GET("/engine/performance", s.handlePerformance)

		api.GET("/trades/active", s.handleActiveTrades)
		api.GET("/trades/history", s.handleTradeHistory)
		api.POST("/trades/:id/close", s.venueRateLimit(), s.handleCloseTrade)

		api.GET("/setups", s.handleListSetups)
		api.GET("/setups/:id", s.handleGetSetup)

		api.GET("/bias/:instrument", s.handleGetBias)

		api.GET("/strategies", s.handleListStrategies)
		api.POST("/strategies", s.handleAddStrategy)
		api.DELETE("/strategies/:id", s.handleRemoveStrategy)
		api.GET("/strategies/:id/executions", s.handleStrategyExecutions)
	}

	s.router.GET("/ws", s.handleWebSocket)
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.hub.Start()
	s.logger.Info().Str("addr", addr).Msg("HTTP server listening")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server and the WebSocket hub.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down HTTP server")
	s.hub.Stop()
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// Router exposes the gin engine for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":   true,
		"message": message,
	})
}

func successResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}
