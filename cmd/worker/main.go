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

	"github.com/kirillkom/shopping-assistant/internal/bootstrap"
	"github.com/kirillkom/shopping-assistant/internal/config"
	"github.com/kirillkom/shopping-assistant/internal/core/domain"
	"github.com/kirillkom/shopping-assistant/internal/observability/logging"
	"github.com/kirillkom/shopping-assistant/internal/observability/metrics"
)

const service = "worker"

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger(service, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(service)
	app, err := bootstrap.New(ctx, cfg, bootstrap.WithQueue(), bootstrap.WithResilienceObserver(workerMetrics))
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	slog.Info("worker_subscribed", "subject", cfg.NATSRequestSubject, "max_in_flight", cfg.NATSMaxInFlight)
	err = app.Queue.ServeSearchRequests(ctx, func(handlerCtx context.Context, req domain.SearchRequest) (*domain.SearchResponse, error) {
		workerMetrics.StartSearch()
		start := time.Now()
		resp, err := app.SearchUC.Search(handlerCtx, req)
		workerMetrics.FinishSearch(service, metrics.SearchOutcome(err), time.Since(start))
		return resp, err
	})
	if err != nil {
		slog.Error("worker_serve_failed", "error", err)
	}
}
