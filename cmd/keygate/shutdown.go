package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/vyrodovalexey/keygate/internal/config"
	"github.com/vyrodovalexey/keygate/internal/observability"
)

const defaultShutdownTimeout = 30 * time.Second

// run starts the servers and blocks until SIGINT or SIGTERM.
func run(app *application, configPath string, logger observability.Logger) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.start(ctx); err != nil {
		app.shutdown(context.Background())
		fatalWithSync(logger, "failed to start servers", observability.Error(err))
		return
	}

	watcher := startConfigWatcher(ctx, app, configPath)

	<-ctx.Done()
	logger.Info("received shutdown signal")

	waitForShutdown(app, watcher, logger)
}

// waitForShutdown performs the graceful shutdown.
func waitForShutdown(app *application, watcher *config.Watcher, logger observability.Logger) {
	timeout := app.config.Server.ShutdownTimeout.Duration()
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if watcher != nil {
		_ = watcher.Stop()
	}

	app.shutdown(shutdownCtx)

	logger.Info("keygate stopped")
}
