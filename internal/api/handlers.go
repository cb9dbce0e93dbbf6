package api

import (
	"errors"
	"net/http"
	"strconv"

	"market-structure-analyzer/internal/auth"
	"market-structure-analyzer/internal/cache"
	"market-structure-analyzer/internal/database"
	"market-structure-analyzer/internal/marketdata"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
)

type barInput struct {
	Index *int    `json:"index,omitempty"`
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

type createRunRequest struct {
	Symbol  string     `json:"symbol" binding:"required"`
	Bars    []barInput `json:"bars" binding:"required"`
	Horizon int        `json:"horizon"`
}

// runResponse is a persisted run bundle plus a flag saying whether it was
// served from a previous analysis of the same series.
type runResponse struct {
	database.RunBundle
	Cached bool `json:"cached"`
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx := c.Request.Context()

	dbHealthy := s.repo.HealthCheck(ctx) == nil
	vaultHealthy := s.vaultClient == nil || s.vaultClient.Health(ctx) == nil
	cacheHealthy := s.cacheService != nil && s.cacheService.IsHealthy()

	status := http.StatusOK
	if !dbHealthy {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status":   map[bool]string{true: "ok", false: "degraded"}[dbHealthy],
		"database": dbHealthy,
		"cache":    cacheHealthy,
		"vault":    vaultHealthy,
	})
}

func (s *Server) handleLogin(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "BAD_REQUEST", "message": err.Error()})
		return
	}

	pair, err := s.authService.Login(req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": auth.ErrInvalidCredentials.Code, "message": auth.ErrInvalidCredentials.Message})
		return
	}

	c.JSON(http.StatusOK, pair)
}

func (s *Server) handleRefresh(c *gin.Context) {
	var req auth.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "BAD_REQUEST", "message": err.Error()})
		return
	}

	pair, err := s.authService.Refresh(req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": auth.ErrInvalidToken.Code, "message": auth.ErrInvalidToken.Message})
		return
	}

	c.JSON(http.StatusOK, pair)
}

func (s *Server) handleCreateRun(c *gin.Context) {
	var req createRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "BAD_REQUEST", "message": err.Error()})
		return
	}

	if len(req.Bars) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "BAD_REQUEST", "message": "bars must not be empty"})
		return
	}
	if max := s.config.Server.MaxBarsPerRequest; len(req.Bars) > max {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "BAD_REQUEST",
			"message": "bar count exceeds limit",
			"limit":   max,
		})
		return
	}

	bars := make([]marketdata.Bar, len(req.Bars))
	for i, b := range req.Bars {
		index := i
		if b.Index != nil {
			index = *b.Index
		}
		bars[i] = marketdata.Bar{
			Index: index,
			Open:  b.Open,
			High:  b.High,
			Low:   b.Low,
			Close: b.Close,
		}
	}

	ctx := c.Request.Context()

	// Idempotence check against the series fingerprint before running the
	// pipeline. Fingerprinting needs a validated series; validation errors
	// map the same way a pipeline abort would.
	var series *marketdata.Series
	var err error
	if s.config.Analysis.MalformedPolicy == "skip" {
		series, _, err = marketdata.NewSeriesSkipMalformed(req.Symbol, bars)
	} else {
		series, err = marketdata.NewSeries(req.Symbol, bars)
	}
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "INVALID_SERIES", "message": err.Error()})
		return
	}
	horizon := req.Horizon
	if horizon <= 0 {
		horizon = s.config.Analysis.Horizon
	}
	if resp, ok := s.findExistingRun(c, series.Fingerprint(), horizon); ok {
		c.JSON(http.StatusOK, resp)
		return
	}

	pipe := s.newPipeline(horizon)
	result, err := pipe.Run(ctx, req.Symbol, bars)
	if err != nil {
		if errors.Is(err, marketdata.ErrSequenceViolation) || errors.Is(err, marketdata.ErrMalformedBar) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "INVALID_SERIES", "message": err.Error()})
			return
		}
		s.logger.Error().Err(err).Str("symbol", req.Symbol).Msg("pipeline run failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL", "message": "analysis failed"})
		return
	}

	bundle := database.BundleFromResult(result, horizon)

	if err := s.repo.SaveRun(ctx, bundle); err != nil {
		s.logger.Error().Err(err).Str("run_id", bundle.Run.ID).Msg("failed to persist run")
		s.eventBus.PublishError("api", "failed to persist run", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL", "message": "failed to persist run"})
		return
	}

	s.cacheBundle(c, bundle)

	c.JSON(http.StatusCreated, runResponse{RunBundle: *bundle, Cached: false})
}

// findExistingRun resolves a fingerprint and horizon to an already-analyzed
// run, cache first with repository fallback. A hit measured under a
// different horizon does not count; the caller runs the pipeline fresh.
func (s *Server) findExistingRun(c *gin.Context, fingerprint string, horizon int) (*runResponse, bool) {
	ctx := c.Request.Context()

	if s.cacheService != nil {
		var runID string
		if err := s.cacheService.GetJSON(ctx, cache.FingerprintKey(fingerprint, horizon), &runID); err == nil {
			if bundle, err := s.loadBundle(c, runID); err == nil && bundle.Run.Horizon == horizon {
				return &runResponse{RunBundle: *bundle, Cached: true}, true
			}
		}
	}

	run, err := s.repo.GetRunByFingerprint(ctx, fingerprint, horizon)
	if err != nil {
		return nil, false
	}
	bundle, err := s.repo.GetRunBundle(ctx, run.ID)
	if err != nil {
		return nil, false
	}
	s.cacheBundle(c, bundle)
	return &runResponse{RunBundle: *bundle, Cached: true}, true
}

// cacheBundle stores the bundle and its fingerprint mapping. Cache failures
// are logged and otherwise ignored.
func (s *Server) cacheBundle(c *gin.Context, bundle *database.RunBundle) {
	if s.cacheService == nil {
		return
	}
	ctx := c.Request.Context()
	if err := s.cacheService.SetJSON(ctx, cache.RunKey(bundle.Run.ID), bundle, s.cacheService.RunTTL()); err != nil {
		s.logger.Warn().Err(err).Str("run_id", bundle.Run.ID).Msg("failed to cache run")
		return
	}
	if err := s.cacheService.SetJSON(ctx, cache.FingerprintKey(bundle.Run.Fingerprint, bundle.Run.Horizon), bundle.Run.ID, s.cacheService.FingerprintTTL()); err != nil {
		s.logger.Warn().Err(err).Str("run_id", bundle.Run.ID).Msg("failed to cache fingerprint")
	}
}

// loadBundle fetches a run bundle, cache first with repository fallback.
func (s *Server) loadBundle(c *gin.Context, runID string) (*database.RunBundle, error) {
	ctx := c.Request.Context()

	if s.cacheService != nil {
		var bundle database.RunBundle
		if err := s.cacheService.GetJSON(ctx, cache.RunKey(runID), &bundle); err == nil {
			return &bundle, nil
		}
	}

	bundle, err := s.repo.GetRunBundle(ctx, runID)
	if err != nil {
		return nil, err
	}
	s.cacheBundle(c, bundle)
	return bundle, nil
}

func (s *Server) handleListRuns(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	runs, err := s.repo.ListRuns(c.Request.Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list runs")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL", "message": "failed to list runs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) handleGetRun(c *gin.Context) {
	bundle, err := s.loadBundle(c, c.Param("id"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "NOT_FOUND", "message": "run not found"})
			return
		}
		s.logger.Error().Err(err).Str("run_id", c.Param("id")).Msg("failed to load run")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL", "message": "failed to load run"})
		return
	}

	c.JSON(http.StatusOK, runResponse{RunBundle: *bundle, Cached: true})
}

func (s *Server) handleGetRunSwings(c *gin.Context) {
	s.handleRunSection(c, func(bundle *database.RunBundle) interface{} { return bundle.Swings })
}

func (s *Server) handleGetRunSignals(c *gin.Context) {
	s.handleRunSection(c, func(bundle *database.RunBundle) interface{} { return bundle.Signals })
}

func (s *Server) handleGetRunOutcomes(c *gin.Context) {
	s.handleRunSection(c, func(bundle *database.RunBundle) interface{} { return bundle.Outcomes })
}

func (s *Server) handleRunSection(c *gin.Context, section func(*database.RunBundle) interface{}) {
	bundle, err := s.loadBundle(c, c.Param("id"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "NOT_FOUND", "message": "run not found"})
			return
		}
		s.logger.Error().Err(err).Str("run_id", c.Param("id")).Msg("failed to load run")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL", "message": "failed to load run"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"run_id": bundle.Run.ID, "data": section(bundle)})
}
