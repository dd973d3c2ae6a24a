package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/site-mapper/internal/core/domain"
	"github.com/kirillkom/site-mapper/internal/core/ports"
)

const defaultRunConcurrency = 4

// MappingRunDeps wires the mapping run. Stores, Ledger, Events and Metrics
// are optional.
type MappingRunDeps struct {
	Configs     ports.SitesConfigSource
	Inventory   ports.InventorySource
	Stores      []ports.SiteDataStore
	Ledger      ports.RunLedger
	Events      ports.EventPublisher
	Metrics     ports.RunMetrics
	Engine      *SiteEngine
	Concurrency int
	Logger      *zap.Logger
}

type MappingRunUseCase struct {
	configs     ports.SitesConfigSource
	inventory   ports.InventorySource
	stores      []ports.SiteDataStore
	ledger      ports.RunLedger
	events      ports.EventPublisher
	metrics     ports.RunMetrics
	engine      *SiteEngine
	concurrency int
	logger      *zap.Logger

	now   func() time.Time
	newID func() string
}

func NewMappingRunUseCase(deps MappingRunDeps) *MappingRunUseCase {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	engine := deps.Engine
	if engine == nil {
		engine = NewSiteEngine(logger)
	}
	concurrency := deps.Concurrency
	if concurrency <= 0 {
		concurrency = defaultRunConcurrency
	}
	return &MappingRunUseCase{
		configs:     deps.Configs,
		inventory:   deps.Inventory,
		stores:      deps.Stores,
		ledger:      deps.Ledger,
		events:      deps.Events,
		metrics:     deps.Metrics,
		engine:      engine,
		concurrency: concurrency,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
	}
}

// Run maps every selected site. Config and inventory failures abort the run;
// a failing site is reported in its SiteResult and never stops the others.
func (uc *MappingRunUseCase) Run(ctx context.Context, opts ports.RunOptions) (*domain.RunReport, error) {
	cfg, err := uc.loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	files, err := uc.loadInventory(ctx)
	if err != nil {
		return nil, err
	}

	report := &domain.RunReport{
		RunID:     uc.newID(),
		DryRun:    opts.DryRun,
		StartedAt: uc.now(),
	}
	logger := uc.logger.With(zap.String("run_id", report.RunID), zap.Bool("dry_run", opts.DryRun))

	sites, rejected := selectSites(cfg, opts.Sites)
	results := make([]domain.SiteResult, len(sites))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.concurrency)
	for i, site := range sites {
		g.Go(func() error {
			results[i] = uc.runSite(gctx, logger, report.RunID, cfg.Global, site, files, opts.DryRun)
			return nil
		})
	}
	_ = g.Wait()

	report.Sites = append(rejected, results...)
	report.FinishedAt = uc.now()
	for _, failed := range report.Failed() {
		logger.Error("site failed", zap.String("site", failed.Slug), zap.Error(failed.Err))
	}
	if uc.metrics != nil {
		uc.metrics.ObserveRun(*report)
	}
	logger.Info("mapping run finished",
		zap.Int("sites", len(report.Sites)),
		zap.Int("failed", len(report.Failed())),
		zap.Duration("duration", report.FinishedAt.Sub(report.StartedAt)),
	)
	return report, nil
}

// Preview maps one site without writing, recording or publishing anything.
func (uc *MappingRunUseCase) Preview(ctx context.Context, slug string, files []domain.FileRecord) (*domain.SiteResult, error) {
	cfg, err := uc.loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	for _, rejected := range cfg.Rejected {
		if rejected.Slug == slug {
			return nil, rejected.Err
		}
	}
	site, ok := cfg.Site(slug)
	if !ok {
		return nil, domain.WrapError(domain.ErrSiteNotFound, "preview site", fmt.Errorf("slug=%s", slug))
	}
	if files == nil {
		files, err = uc.loadInventory(ctx)
		if err != nil {
			return nil, err
		}
	}
	result := uc.engine.BuildSite(site, cfg.Global, files)
	return &result, nil
}

func (uc *MappingRunUseCase) Sites(ctx context.Context) (*domain.SitesConfig, error) {
	return uc.loadConfig(ctx)
}

func (uc *MappingRunUseCase) runSite(
	ctx context.Context,
	logger *zap.Logger,
	runID string,
	global domain.GlobalConfig,
	site domain.SiteConfig,
	files []domain.FileRecord,
	dryRun bool,
) domain.SiteResult {
	started := uc.now()
	result := uc.engine.BuildSite(site, global, files)

	if dryRun {
		logger.Info("dry run: site data not written",
			zap.String("site", site.Slug),
			zap.Int("plans", len(result.Data.Plans)),
			zap.Int("lots", len(result.Data.Lots)),
			zap.Int("project_docs", len(result.Data.ProjectDocs)),
		)
	} else if err := uc.persist(ctx, &result); err != nil {
		result.Err = err
	}

	if uc.metrics != nil {
		uc.metrics.ObserveSite(result)
	}
	uc.record(ctx, logger, runID, dryRun, started, result)
	if !dryRun && result.Err == nil {
		uc.publish(ctx, logger, runID, result)
	}
	return result
}

func (uc *MappingRunUseCase) persist(ctx context.Context, result *domain.SiteResult) error {
	payload, err := EncodeSiteData(*result.Data)
	if err != nil {
		return err
	}
	for _, store := range uc.stores {
		location, err := store.SaveSiteData(ctx, result.Slug, payload)
		if err != nil {
			return fmt.Errorf("save site data: %w", err)
		}
		result.Outputs = append(result.Outputs, location)
	}
	return nil
}

func (uc *MappingRunUseCase) record(
	ctx context.Context,
	logger *zap.Logger,
	runID string,
	dryRun bool,
	started time.Time,
	result domain.SiteResult,
) {
	if uc.ledger == nil {
		return
	}
	rec := SiteRunRecordFrom(runID, dryRun, started, uc.now(), result)
	if err := uc.ledger.RecordSiteRun(ctx, rec); err != nil {
		logger.Warn("record site run", zap.String("site", result.Slug), zap.Error(err))
	}
}

func (uc *MappingRunUseCase) publish(ctx context.Context, logger *zap.Logger, runID string, result domain.SiteResult) {
	if uc.events == nil {
		return
	}
	evt := domain.SiteDataUpdated{
		RunID:        runID,
		Slug:         result.Slug,
		Outputs:      result.Outputs,
		Lots:         len(result.Data.Lots),
		CompleteLots: result.CompleteLots(),
		UpdatedAt:    uc.now(),
	}
	if err := uc.events.PublishSiteDataUpdated(ctx, evt); err != nil {
		logger.Warn("publish site data updated", zap.String("site", result.Slug), zap.Error(err))
	}
}

func (uc *MappingRunUseCase) loadConfig(ctx context.Context) (*domain.SitesConfig, error) {
	cfg, err := uc.configs.LoadSites(ctx)
	if err != nil {
		if domain.IsKind(err, domain.ErrConfig) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrConfig, "load sites config", err)
	}
	return cfg, nil
}

func (uc *MappingRunUseCase) loadInventory(ctx context.Context) ([]domain.FileRecord, error) {
	files, err := uc.inventory.Load(ctx)
	if err != nil {
		if domain.IsKind(err, domain.ErrInventory) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrInventory, "load inventory", err)
	}
	return files, nil
}

// selectSites returns the valid sites to run plus failed results for the
// rejected or unknown ones among the selection.
func selectSites(cfg *domain.SitesConfig, slugs []string) ([]domain.SiteConfig, []domain.SiteResult) {
	wanted := make(map[string]bool, len(slugs))
	for _, slug := range slugs {
		wanted[slug] = true
	}
	selected := func(slug string) bool { return len(wanted) == 0 || wanted[slug] }

	rejected := make([]domain.SiteResult, 0)
	known := make(map[string]bool)
	for _, r := range cfg.Rejected {
		known[r.Slug] = true
		if selected(r.Slug) {
			rejected = append(rejected, domain.SiteResult{Slug: r.Slug, Err: r.Err})
		}
	}

	sites := make([]domain.SiteConfig, 0, len(cfg.Sites))
	for _, site := range cfg.Sites {
		known[site.Slug] = true
		if selected(site.Slug) {
			sites = append(sites, site)
		}
	}

	for _, slug := range slugs {
		if !known[slug] {
			rejected = append(rejected, domain.SiteResult{
				Slug: slug,
				Err:  domain.WrapError(domain.ErrSiteNotFound, "select site", errors.New("slug="+slug)),
			})
			known[slug] = true
		}
	}
	return sites, rejected
}

// SiteRunRecordFrom summarizes a site result for the run ledger.
func SiteRunRecordFrom(runID string, dryRun bool, started, finished time.Time, result domain.SiteResult) domain.SiteRunRecord {
	rec := domain.SiteRunRecord{
		RunID:             runID,
		Slug:              result.Slug,
		Status:            result.Status(),
		DryRun:            dryRun,
		FilesTotal:        len(result.Files),
		FilesUnclassified: result.UnclassifiedCount(),
		LotsTotal:         len(result.Aggregated),
		LotsComplete:      result.CompleteLots(),
		AvgCompleteness:   result.AverageCompleteness(),
		StartedAt:         started,
		FinishedAt:        finished,
	}
	if result.Data != nil {
		rec.LotsEmitted = len(result.Data.Lots)
	}
	if result.Err != nil {
		rec.Error = result.Err.Error()
	}
	return rec
}
