package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"footprint-trading-bot/config"
	"footprint-trading-bot/internal/api"
	"footprint-trading-bot/internal/engine"
	"footprint-trading-bot/internal/events"
	"footprint-trading-bot/internal/footprint"
	"footprint-trading-bot/internal/logging"
	"footprint-trading-bot/internal/market"
	"footprint-trading-bot/internal/risk"
	"footprint-trading-bot/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(logging.Config{
		Level:      cfg.Logging.Level,
		JSONFormat: cfg.Logging.JSONFormat,
	})
	logger.Info().Msg("Configuration loaded")

	eventBus := events.NewEventBus()

	ctx := context.Background()
	var st store.Store
	if cfg.Database.Enabled {
		pg, err := store.NewPostgres(ctx, store.PostgresConfig{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Database: cfg.Database.Name,
			SSLMode:  cfg.Database.SSLMode,
		}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to database")
		}
		st = pg
		logger.Info().Str("host", cfg.Database.Host).Msg("Postgres store initialized")
	} else {
		st = store.NewMemory()
		logger.Warn().Msg("Database disabled, state will not survive restarts")
	}
	defer st.Close()

	var gateway market.Gateway
	if cfg.Binance.MockMode {
		gateway = market.NewMockGateway()
		logger.Warn().Msg("Mock mode enabled, no venue calls will be made")
	} else {
		binanceGW := market.NewBinanceGateway(market.BinanceConfig{
			APIKey:    cfg.Binance.APIKey,
			SecretKey: cfg.Binance.SecretKey,
			TestNet:   cfg.Binance.TestNet,
		}, logger)
		gateway = market.NewPacedGateway(binanceGW, market.NewPacer(market.DefaultMinInterval))
	}

	var biasCache *footprint.BiasCache
	if cfg.Redis.Enabled {
		biasCache = footprint.NewBiasCache(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, logger)
		defer biasCache.Close()
	}
	biasEval := footprint.NewBiasEvaluator(biasCache)
	setups := footprint.NewManager(gateway, biasEval, logger)

	riskMgr := risk.NewManager(risk.Config{
		MaxRiskPerTrade: cfg.Risk.MaxRiskPerTrade,
		MaxOpenTrades:   cfg.Risk.MaxOpenTrades,
		Leverage:        cfg.Risk.Leverage,
	}, logger)

	eng := engine.New(gateway, st, riskMgr, setups, eventBus, engine.Config{
		Instruments:  cfg.Engine.Instruments,
		Interval:     cfg.Engine.Interval,
		BaseCurrency: cfg.Engine.BaseCurrency,
	}, logger)
	scheduler := engine.NewScheduler(eng, logger)

	if cfg.Engine.AutoStart {
		if err := eng.Start(ctx); err != nil {
			logger.Fatal().Err(err).Msg("Failed to start trading engine")
		}
		scheduler.Start()
	}

	server := api.NewServer(api.ServerConfig{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		ProductionMode: cfg.Server.ProductionMode,
		AllowOrigins:   cfg.Server.AllowOrigins,
	}, eng, scheduler, st, setups, biasEval, eventBus, logger)

	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info().Str("signal", sig.String()).Msg("Shutting down")

	scheduler.Stop()
	eng.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	logger.Info().Msg("Shutdown complete")
}
