package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"

	"github.com/kirillkom/site-mapper/internal/core/domain"
)

func TestCompletenessPercent(t *testing.T) {
	cases := []struct {
		available, required, want int
	}{
		{0, 3, 0},
		{1, 3, 33},
		{2, 3, 67},
		{3, 3, 100},
		{1, 2, 50},
		{1, 8, 13},
		{0, 0, 100},
		{5, 3, 100},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CompletenessPercent(tc.available, tc.required), "%d/%d", tc.available, tc.required)
	}
}

func TestAggregateCountsResolvedSlots(t *testing.T) {
	site := domain.SiteConfig{
		Slug: "demo",
		LotRequirements: domain.LotRequirements{
			RequiredDocs: []string{domain.SlotTitleReport, domain.SlotGrading, domain.SlotPlatmap},
		},
	}
	slots := map[string]*domain.DocRef{
		domain.SlotGrading: {SlotKey: domain.SlotGrading, FileID: "g"},
		domain.SlotPlatmap: {SlotKey: domain.SlotPlatmap, FileID: "p"},
	}

	got := NewCompletenessAggregator(nil).Aggregate(1, site, slots)
	assert.Equal(t, 67, got.Completeness)
	assert.Equal(t, []string{domain.SlotGrading, domain.SlotPlatmap}, got.Available)
	assert.Equal(t, []string{domain.SlotTitleReport}, got.Missing)
	assert.False(t, got.Complete())
}

func TestAggregateWithoutRequirementsIsComplete(t *testing.T) {
	got := NewCompletenessAggregator(nil).Aggregate(1, domain.SiteConfig{}, nil)
	assert.Equal(t, 100, got.Completeness)
	assert.Empty(t, got.Missing)
	assert.True(t, got.Complete())
}

func TestAggregateFlagWithoutDocRefCountsAndWarns(t *testing.T) {
	logger, logs := observedLogger(zapcore.WarnLevel)
	site := domain.SiteConfig{
		Slug: "demo",
		LotDetails: map[int]domain.LotDetail{
			4: {HasTitleReport: true},
		},
		LotRequirements: domain.LotRequirements{
			RequiredDocs: []string{domain.SlotTitleReport, domain.SlotGrading, domain.SlotTitleReport},
		},
	}

	got := NewCompletenessAggregator(logger).Aggregate(4, site, map[string]*domain.DocRef{})
	assert.Equal(t, []string{domain.SlotTitleReport, domain.SlotGrading}, got.Required)
	assert.Equal(t, 50, got.Completeness)
	assert.Equal(t, []string{domain.SlotGrading}, got.Missing)

	entries := logs.FilterMessage("flag/docref mismatch").All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, domain.SlotTitleReport, entries[0].ContextMap()["slot"])
		assert.Equal(t, int64(4), entries[0].ContextMap()["lot"])
	}
}
