package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	httpadapter "github.com/kirillkom/historical-text-analysis/internal/adapters/http"
	"github.com/kirillkom/historical-text-analysis/internal/bootstrap"
	"github.com/kirillkom/historical-text-analysis/internal/config"
	"github.com/kirillkom/historical-text-analysis/internal/observability/logging"
	"github.com/kirillkom/historical-text-analysis/internal/observability/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_error", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.NewJSONLogger("api", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics("api")
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Service: "api", Registry: httpMetrics.Registry()})
	if err != nil {
		slog.Error("bootstrap_error", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	executionDone := make(chan struct{})
	if app.InProcess() {
		go func() {
			defer close(executionDone)
			if err := app.RunExecution(ctx); err != nil {
				slog.Error("analysis_execution_stopped", "error", err)
			}
		}()
	} else {
		close(executionDone)
	}

	router := httpadapter.NewRouter(
		cfg,
		app.AnalysisUC,
		app.ResultsUC,
		app.MaintenanceUC,
		app.Access,
		app.Storage,
		httpMetrics,
	).Handler()
	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      h2c.NewHandler(router, &http2.Server{}),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("api_listening", "port", cfg.APIPort, "dispatch_mode", cfg.DispatchMode)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("api_server_error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api_shutdown_error", "error", err)
	}
	<-executionDone
}
