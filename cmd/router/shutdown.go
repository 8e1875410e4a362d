package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/polyroute/polyroute/internal/observability"
)

// runRouter starts the route file watcher, the tenant server, and
// the ops server, then blocks until a shutdown signal or a server
// failure.
func runRouter(app *application, logger observability.Logger) {
	ctx := context.Background()

	if app.fileStore != nil && app.config.RouteFileWatch {
		if err := app.fileStore.Watch(ctx); err != nil {
			logger.Warn("failed to start route file watcher",
				observability.Error(err))
		}
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- app.server.Start(ctx)
	}()

	startOpsServerIfEnabled(app, logger)

	waitForShutdown(app, serverErr, logger)
}

func waitForShutdown(app *application, serverErr <-chan error, logger observability.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal",
			observability.String("signal", sig.String()))
	case err := <-serverErr:
		if err != nil {
			logger.Error("server failed", observability.Error(err))
		}
	}

	// Flip readiness first so load balancers stop sending new work
	// while in-flight requests drain.
	app.healthChecker.SetDraining(true)

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		app.config.ShutdownTimeout.Duration())
	defer cancel()

	if err := app.server.Stop(shutdownCtx); err != nil {
		logger.Error("failed to stop server gracefully",
			observability.Error(err))
	}

	if err := app.cache.Close(); err != nil {
		logger.Error("failed to close route cache",
			observability.Error(err))
	}

	// Closing the store also stops the file watcher when that
	// backend is active.
	if err := app.store.Close(); err != nil {
		logger.Error("failed to close route store",
			observability.Error(err))
	}

	if app.tracer != nil {
		if err := app.tracer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shut down tracer",
				observability.Error(err))
		}
	}

	// The ops server stops last so the probes keep answering while
	// everything else drains.
	if app.opsServer != nil {
		if err := app.opsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to stop ops server gracefully",
				observability.Error(err))
		}
	}

	logger.Info("router stopped")
	_ = logger.Sync()
}
