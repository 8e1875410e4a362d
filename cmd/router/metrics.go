package main

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/polyroute/polyroute/internal/observability"
)

// createOpsServer builds the operational HTTP server carrying the
// Prometheus endpoint and the health probes. It listens on its own
// port so operations traffic never competes with tenant routing.
func createOpsServer(app *application) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(app.config.MetricsPath, app.metrics.Handler())
	mux.Handle("/health", app.healthChecker.HealthHandler())
	mux.Handle("/ready", app.healthChecker.ReadinessHandler())
	mux.Handle("/live", app.healthChecker.LivenessHandler())

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", app.config.MetricsPort),
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

func runOpsServer(srv *http.Server, logger observability.Logger) {
	logger.Info("ops server listening",
		observability.String("address", srv.Addr))

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("ops server failed", observability.Error(err))
	}
}

func startOpsServerIfEnabled(app *application, logger observability.Logger) {
	if !app.config.MetricsEnabled {
		return
	}

	app.opsServer = createOpsServer(app)
	go runOpsServer(app.opsServer, logger)
}
