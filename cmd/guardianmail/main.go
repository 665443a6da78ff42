package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/guardianmail/guardianmail/internal/adapters/smtpin"
	"github.com/guardianmail/guardianmail/internal/api"
	"github.com/guardianmail/guardianmail/internal/config"
	"github.com/guardianmail/guardianmail/internal/core"
	"github.com/guardianmail/guardianmail/internal/di"
	"github.com/guardianmail/guardianmail/internal/store"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	cfg *config.Config,
	logger *zap.Logger,
	server *api.Server,
	smtpServer *smtpin.Server,
	mailbox *store.Store,
	model core.ModelClient,
	cache core.RiskCacheRepository,
) error {
	defer logger.Sync()

	// Start the HTTP server
	if err := server.Start(); err != nil {
		logger.Fatal("Failed to start HTTP server", zap.Error(err))
		return err
	}

	// Start the SMTP ingestion server if enabled
	smtpEnabled := cfg.GetSMTP().Enabled
	if smtpEnabled {
		if err := smtpServer.Start(); err != nil {
			logger.Fatal("Failed to start SMTP server", zap.Error(err))
			return err
		}
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("Failed to stop HTTP server", zap.Error(err))
	}
	if smtpEnabled {
		if err := smtpServer.Stop(); err != nil {
			logger.Error("Failed to stop SMTP server", zap.Error(err))
		}
	}

	// Close any resources that need closing
	if closer, ok := model.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close model client", zap.Error(err))
		}
	}

	// Stop the cache if needed
	if stopper, ok := cache.(interface{ Stop() }); ok {
		stopper.Stop()
	}

	if err := mailbox.Close(); err != nil {
		logger.Error("Failed to close mailbox store", zap.Error(err))
	}

	logger.Info("Shutdown complete")
	return nil
}
