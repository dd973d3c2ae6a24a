package usecase

import (
	"sort"

	"go.uber.org/zap"

	"github.com/kirillkom/site-mapper/internal/core/domain"
)

// SiteEngine runs the pure mapping pipeline for one site:
// match -> resolve -> doc refs -> completeness -> emit.
type SiteEngine struct {
	matcher    *PatternMatcher
	resolver   *CategoryResolver
	aggregator *CompletenessAggregator
	emitter    *SiteDataEmitter
	logger     *zap.Logger
}

func NewSiteEngine(logger *zap.Logger) *SiteEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SiteEngine{
		matcher:    NewPatternMatcher(logger),
		resolver:   NewCategoryResolver(logger),
		aggregator: NewCompletenessAggregator(logger),
		emitter:    NewSiteDataEmitter(logger),
		logger:     logger,
	}
}

// ClassifyFiles classifies every record and returns them sorted by name,
// then id.
func (e *SiteEngine) ClassifyFiles(files []domain.FileRecord) []domain.ClassifiedFile {
	out := make([]domain.ClassifiedFile, 0, len(files))
	for _, f := range files {
		out = append(out, e.resolver.Resolve(f, e.matcher.Classify(f.Name)))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].File.Name != out[j].File.Name {
			return out[i].File.Name < out[j].File.Name
		}
		return out[i].File.ID < out[j].File.ID
	})
	return out
}

// BuildSite maps one site. The result carries every aggregated lot, including
// lots the emitted document hides.
func (e *SiteEngine) BuildSite(site domain.SiteConfig, global domain.GlobalConfig, inventory []domain.FileRecord) domain.SiteResult {
	logger := e.logger.With(zap.String("site", site.Slug))
	classified := e.ClassifyFiles(site.FilterFiles(inventory))

	lots := e.lotNumbers(logger, site, global, classified)
	aggregated := make([]domain.LotCompleteness, 0, len(lots))
	for _, lot := range lots {
		slots := ResolveLotSlots(lot, site, classified)
		aggregated = append(aggregated, e.aggregator.Aggregate(lot, site, slots))
	}

	data := e.emitter.Emit(site, global, classified, aggregated)
	logger.Info("site mapped",
		zap.Int("files", len(classified)),
		zap.Int("plans", len(data.Plans)),
		zap.Int("lots", len(aggregated)),
		zap.Int("lots_emitted", len(data.Lots)),
		zap.Int("project_docs", len(data.ProjectDocs)),
		zap.Int("photos", len(data.Photos)),
	)

	return domain.SiteResult{
		Slug:       site.Slug,
		Data:       &data,
		Files:      classified,
		Aggregated: aggregated,
	}
}

// lotNumbers decides which lots the site shows. Lot files win; configured
// lot details join them. Without lot files every lot up to lot_count is
// listed when a shared platmap backs them or strict mode is off.
func (e *SiteEngine) lotNumbers(logger *zap.Logger, site domain.SiteConfig, global domain.GlobalConfig, files []domain.ClassifiedFile) []int {
	numbers := make([]int, 0, site.LotCount)
	for _, f := range files {
		n, ok := f.LotNumber()
		if !ok || containsInt(numbers, n) {
			continue
		}
		if n > site.LotCount {
			logger.Warn("lot file beyond lot_count",
				zap.String("file", f.File.Name),
				zap.Int("lot", n),
				zap.Int("lot_count", site.LotCount),
			)
		}
		numbers = append(numbers, n)
	}

	if len(numbers) > 0 {
		for n := range site.LotDetails {
			if !containsInt(numbers, n) {
				numbers = append(numbers, n)
			}
		}
		sort.Ints(numbers)
		return numbers
	}

	_, hasPlatmap := firstSharedFile(files, domain.CategoryPlatmap)
	if !hasPlatmap && global.StrictMode {
		if site.LotCount > 0 {
			logger.Warn("no lot files or platmap found; lots hidden in strict mode")
		}
		return nil
	}
	for n := 1; n <= site.LotCount; n++ {
		numbers = append(numbers, n)
	}
	return numbers
}
