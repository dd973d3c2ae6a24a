package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kirillkom/site-mapper/internal/core/domain"
)

func observedLogger(level zapcore.Level) (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return zap.New(core), logs
}

func candidateFor(t *testing.T, candidates []domain.Classification, category domain.Category) domain.Classification {
	t.Helper()
	for _, c := range candidates {
		if c.Category == category {
			return c
		}
	}
	t.Fatalf("no %s candidate in %+v", category, candidates)
	return domain.Classification{}
}

func TestNormalizeFilename(t *testing.T) {
	cases := map[string]string{
		"PLAN #4.pdf":               "plan 4",
		"plan 4":                    "plan 4",
		"Lancaster_Plat-Map.PDF":    "lancaster plat map",
		"Tenative Map (v2).pdf":     "tentative map v2",
		"  Lot 12   Grading .docx ": "lot 12 grading",
		"report.final.version":      "report final version",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeFilename(in), in)
	}
}

func TestClassifyPlanScores(t *testing.T) {
	m := NewPatternMatcher(nil)

	plain := candidateFor(t, m.Classify("Lancaster Plan 1.pdf"), domain.CategoryPlan)
	require.True(t, plain.HasNumber())
	assert.Equal(t, 1, plain.NumberValue())
	assert.Equal(t, 70.0, plain.Score)

	filler := candidateFor(t, m.Classify("Plan No 5.pdf"), domain.CategoryPlan)
	assert.Equal(t, 5, filler.NumberValue())
	assert.Equal(t, 60.0, filler.Score)

	padded := candidateFor(t, m.Classify("unit007.pdf"), domain.CategoryPlan)
	assert.Equal(t, 7, padded.NumberValue())
}

func TestClassifyHashNumberEqualsPlainNumber(t *testing.T) {
	m := NewPatternMatcher(nil)
	assert.Equal(t, m.Classify("plan 4"), m.Classify("PLAN #4.pdf"))
}

func TestClassifyDocTypes(t *testing.T) {
	m := NewPatternMatcher(nil)

	platmap := candidateFor(t, m.Classify("Lancaster Plat Map.pdf"), domain.CategoryPlatmap)
	assert.Equal(t, 90.0, platmap.Score)
	assert.Equal(t, "platmap", platmap.DocType)

	joined := candidateFor(t, m.Classify("platmap.pdf"), domain.CategoryPlatmap)
	assert.Equal(t, 90.0, joined.Score)

	llc := candidateFor(t, m.Classify("Lancaster LLC Info.pdf"), domain.CategoryLLCInfo)
	assert.Equal(t, 60.0, llc.Score)

	misspelled := candidateFor(t, m.Classify("Tentitive Map.pdf"), domain.CategoryPlatmap)
	assert.Equal(t, 90.0, misspelled.Score)
}

func TestClassifyAdjacentNumberBonus(t *testing.T) {
	m := NewPatternMatcher(nil)
	candidates := m.Classify("Lot 2 Grading Plan.pdf")

	lot := candidateFor(t, candidates, domain.CategoryLot)
	assert.Equal(t, 2, lot.NumberValue())
	assert.Equal(t, 70.0, lot.Score)

	grading := candidateFor(t, candidates, domain.CategoryGrading)
	assert.Equal(t, 100.0, grading.Score)
}

func TestClassifyNothingMatches(t *testing.T) {
	m := NewPatternMatcher(nil)
	assert.Empty(t, m.Classify("budget summary.xlsx"))
	assert.Empty(t, m.Classify(""))
	// "lot" must start a word.
	assert.Empty(t, m.Classify("pilot 3.pdf"))
}

func TestClassifyAmbiguousNumbersLogsAndKeepsFirst(t *testing.T) {
	logger, logs := observedLogger(zapcore.WarnLevel)
	m := NewPatternMatcher(logger)

	plan := candidateFor(t, m.Classify("Plan 1 vs Plan 2.pdf"), domain.CategoryPlan)
	assert.Equal(t, 1, plan.NumberValue())

	entries := logs.FilterMessage("classification ambiguity").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "plan", entries[0].ContextMap()["category"])
}
