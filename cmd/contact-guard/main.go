package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mikey/contact-guard/internal/core"
	"github.com/mikey/contact-guard/internal/di"
	"github.com/mikey/contact-guard/internal/ports"
	"github.com/mikey/contact-guard/internal/worker"
	"go.uber.org/dig"
	"go.uber.org/zap"
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

type runParams struct {
	dig.In

	Logger    *zap.Logger
	Server    ports.ContactServer
	Pool      *worker.Pool
	Log       core.SubmissionLog
	Screening *core.Screening
}

// run is the main application function that gets all dependencies injected
func run(p runParams) error {
	logger := p.Logger
	defer logger.Sync()

	// Start the server
	if err := p.Server.Start(); err != nil {
		logger.Error("Failed to start server", zap.Error(err))
		return err
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Shutting down...")

	if err := p.Server.Stop(); err != nil {
		logger.Error("Failed to stop server", zap.Error(err))
	}

	// Let queued notifications finish before closing their dependencies
	p.Pool.Shutdown()

	if p.Screening != nil {
		if closer, ok := p.Screening.Screener.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				logger.Error("Failed to close screener", zap.Error(err))
			}
		}
	}

	if closer, ok := p.Log.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close submission log", zap.Error(err))
		}
	}

	logger.Info("Shutdown complete")
	return nil
}
