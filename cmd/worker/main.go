package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kirillkom/site-mapper/internal/bootstrap"
	"github.com/kirillkom/site-mapper/internal/config"
	"github.com/kirillkom/site-mapper/internal/core/domain"
	"github.com/kirillkom/site-mapper/internal/core/ports"
	"github.com/kirillkom/site-mapper/internal/observability/metrics"
)

const service = "sitemapper-worker"

func main() {
	cfg, err := config.Load(os.Getenv("SETTINGS_FILE"), ".env")
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Service: service})
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()
	logger := app.Logger

	if app.Bus == nil {
		logger.Fatal("worker needs NATS_URL")
	}

	workerMetrics := metrics.NewWorkerMetrics(service, app.Registry)
	if cfg.WorkerMetricsPort != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", workerMetrics.Handler())
		metricsServer := &http.Server{
			Addr:              config.Address(cfg.WorkerMetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("worker metrics server error", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	}

	logger.Info("worker subscribed", zap.String("subject", cfg.NATSInventorySubject))
	err = app.Bus.SubscribeInventoryUpdated(ctx, func(handlerCtx context.Context, evt domain.InventoryUpdated) error {
		runCtx, cancel := context.WithTimeout(handlerCtx, 10*time.Minute)
		defer cancel()

		workerMetrics.StartEvent()
		started := time.Now()
		report, err := app.Mapper.Run(runCtx, ports.RunOptions{Sites: evt.Sites, DryRun: evt.DryRun})
		if err == nil && len(report.Failed()) > 0 {
			logger.Warn("inventory update mapped with failures",
				zap.String("run_id", report.RunID),
				zap.Int("failed", len(report.Failed())),
			)
		}
		workerMetrics.FinishEvent(service, time.Since(started), err)
		return err
	})
	if err != nil {
		logger.Error("worker subscribe error", zap.Error(err))
	}
}
