package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/historical-text-analysis/internal/adapters/mcp"
	"github.com/kirillkom/historical-text-analysis/internal/bootstrap"
	"github.com/kirillkom/historical-text-analysis/internal/config"
	"github.com/kirillkom/historical-text-analysis/internal/observability/logging"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_error", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, "mcp", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Service: "mcp"})
	if err != nil {
		slog.Error("bootstrap_error", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if app.InProcess() {
		go func() {
			if err := app.RunExecution(ctx); err != nil {
				slog.Error("analysis_execution_stopped", "error", err)
			}
		}()
	}

	tools := mcpadapter.NewTools(app.AnalysisUC, app.ResultsUC, cfg.MCPUserID)
	if err := server.ServeStdio(tools.NewServer(version)); err != nil {
		slog.Error("mcp_server_error", "error", err)
		os.Exit(1)
	}
}
