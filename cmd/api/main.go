package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/protectedvision/backend/internal/adapters/http"
	"github.com/protectedvision/backend/internal/bootstrap"
	"github.com/protectedvision/backend/internal/config"
	"github.com/protectedvision/backend/internal/observability/logging"
	"github.com/protectedvision/backend/internal/observability/metrics"
)

const serviceName = "protected-vision-api"

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	httpMetrics := metrics.NewHTTPServerMetrics(serviceName)
	router := httpadapter.NewRouter(
		serviceName,
		app.IngestUC,
		app.ScanUC,
		app.Docs,
		app.Jobs,
		app.Scans,
		app.Registry,
		app.Stats,
		httpMetrics,
	)

	server := &http.Server{
		Addr: ":" + cfg.APIPort,
		Handler: router.Handler(httpadapter.HandlerOptions{
			APIKey:                cfg.APIKey,
			RateLimitRPS:          cfg.RateLimitRPS,
			RateLimitBurst:        cfg.RateLimitBurst,
			MaxConcurrentRequests: cfg.MaxConcurrentRequests,
		}),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api_listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("api_server_error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_error", "error", err)
	}
}
