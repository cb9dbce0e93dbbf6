package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"market-structure-analyzer/config"
	"market-structure-analyzer/internal/api"
	"market-structure-analyzer/internal/auth"
	"market-structure-analyzer/internal/cache"
	"market-structure-analyzer/internal/database"
	"market-structure-analyzer/internal/events"
	"market-structure-analyzer/internal/logging"
	"market-structure-analyzer/internal/vault"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "generate-config" {
		filename := "config.json"
		if len(os.Args) > 2 {
			filename = os.Args[2]
		}
		if err := config.GenerateSampleConfig(filename); err != nil {
			log.Fatalf("Failed to generate sample config: %v", err)
		}
		log.Printf("Sample configuration written to %s", filename)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(cfg.Logging)
	logger.Info().Str("version", "1.0.0").Msg("Starting market structure analyzer")

	// Vault supplies secrets when enabled; config values act as fallback.
	vaultClient, err := vault.NewClient(cfg.Vault)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize Vault client")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	secrets, err := vaultClient.GetServiceSecrets(ctx, vault.ServiceSecrets{
		DatabasePassword: cfg.Database.Password,
		JWTSecret:        cfg.Auth.JWTSecret,
		AuthPassword:     cfg.Auth.Password,
	})
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to resolve service secrets")
	}
	cfg.Database.Password = secrets.DatabasePassword

	db, err := database.NewDB(cfg.Database.ConnString())
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	migCtx, migCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.RunMigrations(migCtx); err != nil {
		migCancel()
		logger.Fatal().Err(err).Msg("Failed to run migrations")
	}
	migCancel()
	logger.Info().Msg("Database migrations applied")

	repo := database.NewRepository(db)

	var cacheService *cache.CacheService
	if cfg.Redis.Enabled {
		cacheService, err = cache.NewCacheService(cfg.Redis)
		if err != nil {
			// The cache is an accelerator, not a dependency.
			logger.Warn().Err(err).Msg("Redis unavailable, continuing without cache")
			cacheService = nil
		} else {
			defer cacheService.Close()
			logger.Info().Str("address", cfg.Redis.Address).Msg("Redis cache connected")
		}
	}

	eventBus := events.NewEventBus()

	jwtManager := auth.NewJWTManager(secrets.JWTSecret, cfg.Auth.AccessTokenDuration, cfg.Auth.RefreshTokenDuration)
	authService, err := auth.NewService(jwtManager, cfg.Auth.Username, secrets.AuthPassword)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize auth service")
	}

	server := api.NewServer(cfg, repo, cacheService, eventBus, authService, jwtManager, vaultClient, logger)

	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("HTTP server listening")
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info().Str("signal", sig.String()).Msg("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
	}
	logger.Info().Msg("Shutdown complete")
}
