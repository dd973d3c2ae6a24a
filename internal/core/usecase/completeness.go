package usecase

import (
	"go.uber.org/zap"

	"github.com/kirillkom/site-mapper/internal/core/domain"
)

// CompletenessAggregator scores a lot against the site's required documents.
type CompletenessAggregator struct {
	logger *zap.Logger
}

func NewCompletenessAggregator(logger *zap.Logger) *CompletenessAggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CompletenessAggregator{logger: logger}
}

// Aggregate computes completeness for one lot. A slot is available when it
// resolved to a DocRef or when its has_* flag is set; a flag without a DocRef
// still counts and is logged as a mismatch. Missing is always filled; whether
// it is shown is decided at emit time.
func (a *CompletenessAggregator) Aggregate(lot int, site domain.SiteConfig, slots map[string]*domain.DocRef) domain.LotCompleteness {
	detail := site.Lot(lot)
	required := uniqueStrings(site.LotRequirements.RequiredDocs)

	out := domain.LotCompleteness{
		Lot:       lot,
		Required:  required,
		Available: make([]string, 0, len(required)),
		Missing:   make([]string, 0),
		Slots:     make(map[string]*domain.DocRef, len(slots)),
	}
	for key, ref := range slots {
		out.Slots[key] = ref
	}

	for _, slot := range required {
		switch {
		case slots[slot] != nil:
			out.Available = append(out.Available, slot)
		case detail.Flag(slot):
			a.logger.Warn("flag/docref mismatch",
				zap.String("site", site.Slug),
				zap.Int("lot", lot),
				zap.String("slot", slot),
			)
			out.Available = append(out.Available, slot)
		default:
			out.Missing = append(out.Missing, slot)
		}
	}

	out.Completeness = CompletenessPercent(len(out.Available), len(required))
	return out
}

// CompletenessPercent is 100*available/required rounded half up, and 100 when
// nothing is required.
func CompletenessPercent(available, required int) int {
	if required <= 0 {
		return 100
	}
	if available > required {
		available = required
	}
	return (200*available + required) / (2 * required)
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
