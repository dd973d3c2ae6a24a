package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/kirillkom/site-mapper/internal/core/domain"
)

func intPtr(v int) *int { return &v }

func TestResolvePicksHighestScore(t *testing.T) {
	r := NewCategoryResolver(nil)
	got := r.Resolve(domain.FileRecord{ID: "f1", Name: "x.pdf"}, []domain.Classification{
		{Category: domain.CategoryLLCInfo, DocType: "llc_info", Score: 60},
		{Category: domain.CategoryPlatmap, DocType: "platmap", Score: 90},
	})
	assert.Equal(t, domain.CategoryPlatmap, got.Classification.Category)
	assert.Len(t, got.Candidates, 2)
}

func TestResolveTieBrokenByPriority(t *testing.T) {
	r := NewCategoryResolver(nil)
	got := r.Resolve(domain.FileRecord{ID: "f1"}, []domain.Classification{
		{Category: domain.CategoryPlan, Number: intPtr(2), Score: 70},
		{Category: domain.CategoryLot, Number: intPtr(3), Score: 70},
	})
	assert.Equal(t, domain.CategoryLot, got.Classification.Category)
	assert.Equal(t, 3, got.Classification.NumberValue())
}

func TestResolveBelowThresholdIsUnclassified(t *testing.T) {
	r := NewCategoryResolver(nil)
	got := r.Resolve(domain.FileRecord{ID: "f1"}, []domain.Classification{
		{Category: domain.CategoryPhoto, DocType: "photo", Score: 29.9},
	})
	assert.True(t, got.IsUnclassified())
	assert.Equal(t, domain.Unclassified(), got.Classification)

	atThreshold := r.Resolve(domain.FileRecord{ID: "f2"}, []domain.Classification{
		{Category: domain.CategoryPhoto, DocType: "photo", Score: domain.MinClassificationScore},
	})
	assert.Equal(t, domain.CategoryPhoto, atThreshold.Classification.Category)

	none := r.Resolve(domain.FileRecord{ID: "f3"}, nil)
	assert.True(t, none.IsUnclassified())
}

func TestResolveLotTakesDocTypeFacet(t *testing.T) {
	engine := NewSiteEngine(nil)
	files := engine.ClassifyFiles([]domain.FileRecord{{ID: "f1", Name: "Lot 5 Permit.pdf"}})
	require.Len(t, files, 1)

	got := files[0]
	assert.Equal(t, domain.CategoryLot, got.Classification.Category)
	assert.Equal(t, "entitlements", got.Classification.DocType)
	assert.True(t, got.HasDocType("entitlements"))
	lot, ok := got.LotNumber()
	assert.True(t, ok)
	assert.Equal(t, 5, lot)
}

func TestResolveLotFacetSurvivesLosingLot(t *testing.T) {
	engine := NewSiteEngine(nil)
	files := engine.ClassifyFiles([]domain.FileRecord{{ID: "f1", Name: "Lot 2 Grading Plan.pdf"}})
	require.Len(t, files, 1)

	assert.Equal(t, domain.CategoryGrading, files[0].Classification.Category)
	lot, ok := files[0].LotNumber()
	assert.True(t, ok)
	assert.Equal(t, 2, lot)
}

func TestResolveCrossCategoryTieLogsAmbiguity(t *testing.T) {
	logger, logs := observedLogger(zapcore.WarnLevel)
	r := NewCategoryResolver(logger)
	name := "Plan 2 Lot 3.pdf"
	got := r.Resolve(domain.FileRecord{ID: "f1", Name: name}, NewPatternMatcher(nil).Classify(name))

	assert.Equal(t, domain.CategoryLot, got.Classification.Category)
	assert.True(t, got.Ambiguous())
	entries := logs.FilterMessage("classification ambiguity").All()
	require.Len(t, entries, 1)
	assert.Equal(t, string(domain.CategoryLot), entries[0].ContextMap()["category"])
	assert.Equal(t, string(domain.CategoryPlan), entries[0].ContextMap()["runner_up"])

	logs.TakeAll()
	r.Resolve(domain.FileRecord{ID: "f2", Name: "Lot 2 Grading Plan.pdf"}, NewPatternMatcher(nil).Classify("Lot 2 Grading Plan.pdf"))
	assert.Zero(t, logs.FilterMessage("classification ambiguity").Len())
}

func TestResolveIsIdempotent(t *testing.T) {
	m := NewPatternMatcher(nil)
	r := NewCategoryResolver(nil)
	file := domain.FileRecord{ID: "f1", Name: "Lot 7 Tentative Map.pdf"}
	candidates := m.Classify(file.Name)

	first := r.Resolve(file, candidates)
	second := r.Resolve(file, candidates)
	assert.Equal(t, first, second)
}
