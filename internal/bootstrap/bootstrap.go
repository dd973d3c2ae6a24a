package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kirillkom/site-mapper/internal/config"
	"github.com/kirillkom/site-mapper/internal/core/ports"
	"github.com/kirillkom/site-mapper/internal/core/usecase"
	"github.com/kirillkom/site-mapper/internal/infrastructure/inventory/drive"
	"github.com/kirillkom/site-mapper/internal/infrastructure/inventory/jsonfile"
	"github.com/kirillkom/site-mapper/internal/infrastructure/queue/nats"
	"github.com/kirillkom/site-mapper/internal/infrastructure/report/xlsx"
	"github.com/kirillkom/site-mapper/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/site-mapper/internal/infrastructure/resilience"
	"github.com/kirillkom/site-mapper/internal/infrastructure/storage/gcs"
	"github.com/kirillkom/site-mapper/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/site-mapper/internal/observability/logging"
	"github.com/kirillkom/site-mapper/internal/observability/metrics"
)

type Options struct {
	Service string
	// LogOutput defaults to stdout.
	LogOutput io.Writer
}

type App struct {
	Config   config.Config
	Logger   *zap.Logger
	Registry *prometheus.Registry

	Mapper    *usecase.MappingRunUseCase
	Inventory *jsonfile.Source
	Reports   *xlsx.Writer
	// History is nil when no PostgreSQL DSN is configured.
	History ports.RunHistory
	// Bus is nil when no NATS URL is configured.
	Bus *nats.Bus

	auditOnce sync.Once
	auditor   *usecase.AuditUseCase
	auditErr  error

	mu       sync.Mutex
	closeFns []func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	out := opts.LogOutput
	if out == nil {
		out = os.Stdout
	}
	logger := logging.New(opts.Service, cfg.LogLevel, out)

	app := &App{
		Config:    cfg,
		Logger:    logger,
		Registry:  prometheus.NewRegistry(),
		Inventory: jsonfile.New(cfg.InventoryPath, logger),
		Reports:   xlsx.New(),
	}
	app.onClose(func() { _ = logger.Sync() })

	local, err := localfs.New(cfg.SitesDir)
	if err != nil {
		return nil, fmt.Errorf("init sites dir: %w", err)
	}
	stores := []ports.SiteDataStore{local}

	deps := usecase.MappingRunDeps{
		Configs:     config.NewSitesFile(cfg.SitesConfig, logger),
		Inventory:   app.Inventory,
		Metrics:     metrics.NewMapperMetrics(opts.Service, app.Registry),
		Engine:      usecase.NewSiteEngine(logger),
		Concurrency: cfg.RunConcurrency,
		Logger:      logger,
	}

	if strings.TrimSpace(cfg.GCSBucket) != "" {
		bucket, err := gcs.New(ctx, gcs.Options{
			Bucket:          cfg.GCSBucket,
			Prefix:          cfg.GCSPrefix,
			CredentialsFile: cfg.GoogleCredentials,
			Executor:        resilience.NewExecutor(resilience.DefaultConfig(), logger),
			Logger:          logger,
		})
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("init gcs storage: %w", err)
		}
		app.onClose(func() { _ = bucket.Close() })
		stores = append(stores, bucket)
	}
	deps.Stores = stores

	if strings.TrimSpace(cfg.PostgresDSN) != "" {
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		app.onClose(func() { _ = db.Close() })
		repo := postgres.NewRunRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			app.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		deps.Ledger = repo
		app.History = repo
	}

	if strings.TrimSpace(cfg.NATSURL) != "" {
		bus, err := nats.New(cfg.NATSURL, nats.Options{
			InventorySubject:   cfg.NATSInventorySubject,
			SiteSubject:        cfg.NATSSiteSubject,
			ResilienceExecutor: resilience.NewExecutor(resilience.DefaultConfig(), logger),
			Logger:             logger,
		})
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("init message bus: %w", err)
		}
		app.onClose(bus.Close)
		deps.Events = bus
		app.Bus = bus
	}

	app.Mapper = usecase.NewMappingRunUseCase(deps)
	return app, nil
}

// Auditor builds the Drive-backed audit use case on first use so commands
// that never audit do not need Google credentials.
func (a *App) Auditor(ctx context.Context) (*usecase.AuditUseCase, error) {
	a.auditOnce.Do(func() {
		lister, err := drive.New(ctx, drive.Options{
			CredentialsFile: a.Config.GoogleCredentials,
			RateLimitRPS:    a.Config.DriveRateLimitRPS,
			Executor:        resilience.NewExecutor(resilience.DriveConfig(), a.Logger),
			Logger:          a.Logger,
		})
		if err != nil {
			a.auditErr = err
			return
		}
		a.auditor = usecase.NewAuditUseCase(lister, a.Inventory, a.Reports, a.Logger)
	})
	return a.auditor, a.auditErr
}

func (a *App) onClose(fn func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closeFns = append(a.closeFns, fn)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	a.mu.Lock()
	fns := a.closeFns
	a.closeFns = nil
	a.mu.Unlock()

	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}
