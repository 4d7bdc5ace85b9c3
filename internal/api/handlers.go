package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"footprint-trading-bot/internal/engine"
	"footprint-trading-bot/internal/footprint"
	"footprint-trading-bot/internal/store"
)

func (s *Server) handleHealth(c *gin.Context) {
	status := s.engine.Status()
	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"engine_running": status.IsRunning,
		"clients":        s.hub.ClientCount(),
	})
}

func (s *Server) handleStartEngine(c *gin.Context) {
	if err := s.engine.Start(c.Request.Context()); err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	if s.scheduler != nil {
		s.scheduler.Start()
	}
	successResponse(c, s.engine.Status())
}

func (s *Server) handleStopEngine(c *gin.Context) {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	s.engine.Stop()
	successResponse(c, s.engine.Status())
}

func (s *Server) handleEngineStatus(c *gin.Context) {
	successResponse(c, s.engine.Status())
}

func (s *Server) handlePerformance(c *gin.Context) {
	perf, err := s.engine.Performance(c.Request.Context())
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "failed to load performance: "+err.Error())
		return
	}
	successResponse(c, perf)
}

func (s *Server) handleActiveTrades(c *gin.Context) {
	successResponse(c, s.engine.ActiveTrades())
}

func (s *Server) handleTradeHistory(c *gin.Context) {
	trades, err := s.store.ClosedTrades(c.Request.Context())
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "failed to load trade history: "+err.Error())
		return
	}
	successResponse(c, trades)
}

func (s *Server) handleCloseTrade(c *gin.Context) {
	id := c.Param("id")
	err := s.engine.CloseTrade(c.Request.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		errorResponse(c, http.StatusNotFound, "trade not found or already closed")
	case err != nil:
		errorResponse(c, http.StatusBadGateway, "failed to close trade: "+err.Error())
	default:
		successResponse(c, gin.H{"trade_id": id, "closed": true})
	}
}

func (s *Server) handleListSetups(c *gin.Context) {
	var setups []*footprint.Setup
	switch c.Query("status") {
	case "waiting":
		setups = s.setups.Waiting()
	case "active":
		setups = s.setups.Active()
	case "":
		setups = append(s.setups.Waiting(), s.setups.Active()...)
	default:
		errorResponse(c, http.StatusBadRequest, "status must be waiting or active")
		return
	}
	successResponse(c, setups)
}

func (s *Server) handleGetSetup(c *gin.Context) {
	id := c.Param("id")
	if setup, ok := s.setups.Get(id); ok {
		successResponse(c, setup)
		return
	}

	// Terminal setups fall out of the manager over restarts; the store
	// keeps them.
	setup, err := s.store.GetSetup(c.Request.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		errorResponse(c, http.StatusNotFound, "setup not found")
	case err != nil:
		errorResponse(c, http.StatusInternalServerError, "failed to load setup: "+err.Error())
	default:
		successResponse(c, setup)
	}
}

func (s *Server) handleGetBias(c *gin.Context) {
	instrument := c.Param("instrument")
	bias, ok := s.bias.Bias(instrument)
	if !ok {
		errorResponse(c, http.StatusNotFound, "no bias computed for "+instrument)
		return
	}
	successResponse(c, bias)
}

func (s *Server) handleListStrategies(c *gin.Context) {
	if s.scheduler == nil {
		errorResponse(c, http.StatusNotFound, "strategy scheduling is disabled")
		return
	}
	successResponse(c, s.scheduler.Strategies())
}

func (s *Server) handleAddStrategy(c *gin.Context) {
	if s.scheduler == nil {
		errorResponse(c, http.StatusNotFound, "strategy scheduling is disabled")
		return
	}

	var cfg engine.StrategyConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid strategy config: "+err.Error())
		return
	}
	if cfg.Instrument == "" || cfg.Timeframe == "" || cfg.Type == "" {
		errorResponse(c, http.StatusBadRequest, "instrument, timeframe and type are required")
		return
	}

	id := s.scheduler.AddStrategy(cfg)
	successResponse(c, gin.H{"strategy_id": id})
}

func (s *Server) handleRemoveStrategy(c *gin.Context) {
	if s.scheduler == nil {
		errorResponse(c, http.StatusNotFound, "strategy scheduling is disabled")
		return
	}
	id := c.Param("id")
	s.scheduler.RemoveStrategy(id)
	successResponse(c, gin.H{"strategy_id": id, "removed": true})
}

func (s *Server) handleStrategyExecutions(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			errorResponse(c, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	execs, err := s.store.Executions(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "failed to load executions: "+err.Error())
		return
	}
	successResponse(c, execs)
}
