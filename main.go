package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/believeinme/background-check-service/internal/backgroundcheck"
	"github.com/believeinme/background-check-service/internal/checkr"
	"github.com/believeinme/background-check-service/internal/config"
	"github.com/believeinme/background-check-service/internal/logger"
	"github.com/believeinme/background-check-service/internal/salesforce"
	"github.com/believeinme/background-check-service/internal/server"
	"github.com/believeinme/background-check-service/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.NewStructured("info", "json").Error("Failed to load configuration", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	log := logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format).WithFields(map[string]interface{}{
		"environment": cfg.Environment,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize storage
	store, err := storage.NewStorage(ctx, cfg.Storage)
	if err != nil {
		log.Error("Failed to initialize storage", map[string]interface{}{"error": err.Error(), "type": cfg.Storage.Type})
		os.Exit(1)
	}
	defer store.Close()

	var tokenCache salesforce.TokenCache
	if cfg.Salesforce.TokenCache.Enabled {
		rdb := salesforce.NewRedisClient(cfg.Redis)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("Redis unavailable, token cache misses will re-authenticate", map[string]interface{}{"error": err.Error()})
		}
		tokenCache = salesforce.NewRedisTokenCache(rdb, cfg.Salesforce.TokenCache.TTL)
	}

	crm := salesforce.NewClient(cfg.Salesforce, tokenCache, log)
	provider := checkr.NewClient(cfg.Checkr)

	workflow := backgroundcheck.NewService(backgroundcheck.Config{
		OrganizationID: cfg.Salesforce.OrgID,
		Package:        cfg.Checkr.Package,
	}, store, provider, crm, log)

	httpServer := server.NewServer(cfg.Server, workflow, log)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info("Starting HTTP server", map[string]interface{}{"port": cfg.Server.Port, "storage": cfg.Storage.Type})
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", map[string]interface{}{"error": err.Error()})
			sigChan <- syscall.SIGTERM
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Info("Shutdown signal received, gracefully shutting down...", nil)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", map[string]interface{}{"error": err.Error()})
	}

	cancel()
	log.Info("Shutdown complete", nil)
}
