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

	httpadapter "github.com/kirillkom/site-mapper/internal/adapters/http"
	"github.com/kirillkom/site-mapper/internal/bootstrap"
	"github.com/kirillkom/site-mapper/internal/config"
	"github.com/kirillkom/site-mapper/internal/observability/metrics"
)

const service = "sitemapper-api"

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

	router := httpadapter.NewRouter(app.Mapper, app.History, httpadapter.Options{
		Service:        service,
		RateLimitRPS:   cfg.APIRateLimitRPS,
		RateLimitBurst: cfg.APIRateLimitBurst,
		Metrics:        metrics.NewHTTPServerMetrics(service, app.Registry),
		Logger:         logger,
	}).Handler()
	server := &http.Server{
		Addr:         config.Address(cfg.APIPort),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("api server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown error", zap.Error(err))
	}
}
