package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	appconfig "market-structure-analyzer/config"
	"market-structure-analyzer/internal/auth"
	"market-structure-analyzer/internal/cache"
	"market-structure-analyzer/internal/database"
	"market-structure-analyzer/internal/events"
	"market-structure-analyzer/internal/pipeline"
	"market-structure-analyzer/internal/vault"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RateLimiter provides simple in-memory rate limiting per client
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	limit    int           // max requests
	window   time.Duration // time window
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow checks if a request is allowed for the given key
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-r.window)

	// Filter out old requests
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

// Server represents the HTTP API server
type Server struct {
	router       *gin.Engine
	httpServer   *http.Server
	repo         *database.Repository
	cacheService *cache.CacheService // nil when Redis is disabled
	eventBus     *events.EventBus
	authService  *auth.Service
	jwtManager   *auth.JWTManager
	vaultClient  *vault.Client
	config       *appconfig.Config
	rateLimiter  *RateLimiter
	hub          *WSHub
	logger       zerolog.Logger
}

// NewServer creates a new API server
func NewServer(
	cfg *appconfig.Config,
	repo *database.Repository,
	cacheService *cache.CacheService,
	eventBus *events.EventBus,
	authService *auth.Service,
	jwtManager *auth.JWTManager,
	vaultClient *vault.Client,
	logger zerolog.Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Middleware
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// CORS middleware
	corsConfig := cors.DefaultConfig()
	if cfg.Server.AllowedOrigins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = strings.Split(cfg.Server.AllowedOrigins, ",")
		corsConfig.AllowCredentials = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsConfig.ExposeHeaders = []string{"Content-Length"}
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:       router,
		repo:         repo,
		cacheService: cacheService,
		eventBus:     eventBus,
		authService:  authService,
		jwtManager:   jwtManager,
		vaultClient:  vaultClient,
		config:       cfg,
		rateLimiter:  NewRateLimiter(cfg.Server.RateLimitPerMinute, time.Minute),
		logger:       logger.With().Str("component", "APIServer").Logger(),
	}

	server.setupRoutes()

	// WebSocket hub bridging bus events to connected clients
	server.hub = InitWebSocket(eventBus)

	return server
}

// rateLimitMiddleware limits requests per client IP
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.rateLimiter.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "RATE_LIMITED",
				"message": "too many requests, please slow down",
			})
			return
		}
		c.Next()
	}
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	// Health check
	s.router.GET("/health", s.handleHealth)

	// WebSocket endpoint
	s.router.GET("/ws", s.handleWebSocket)

	// Auth routes (public)
	authGroup := s.router.Group("/api/v1/auth")
	authGroup.Use(s.rateLimitMiddleware())
	{
		authGroup.POST("/login", s.handleLogin)
		authGroup.POST("/refresh", s.handleRefresh)
	}

	// Analysis routes (JWT protected)
	v1 := s.router.Group("/api/v1")
	v1.Use(s.rateLimitMiddleware())
	v1.Use(auth.Middleware(s.jwtManager))
	{
		v1.POST("/runs", s.handleCreateRun)
		v1.GET("/runs", s.handleListRuns)
		v1.GET("/runs/:id", s.handleGetRun)
		v1.GET("/runs/:id/swings", s.handleGetRunSwings)
		v1.GET("/runs/:id/signals", s.handleGetRunSignals)
		v1.GET("/runs/:id/outcomes", s.handleGetRunOutcomes)
	}
}

// newPipeline builds a pipeline instance with the configured analysis
// parameters, optionally overriding the outcome horizon.
func (s *Server) newPipeline(horizon int) *pipeline.Pipeline {
	a := s.config.Analysis
	if horizon <= 0 {
		horizon = a.Horizon
	}
	return pipeline.New(pipeline.Config{
		MalformedPolicy: a.MalformedPolicy,
		PriceBreakFirst: a.PriceBreakFirst,
		Horizon:         horizon,
		SMAShort:        a.SMAShort,
		SMALong:         a.SMALong,
		TwelveBarWindow: a.TwelveBarWindow,
	}, s.eventBus, s.logger)
}

// Start begins listening for HTTP requests and blocks until the server stops
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	s.logger.Info().Str("addr", addr).Msg("HTTP server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
