package usecase

import (
	"sort"

	"go.uber.org/zap"

	"github.com/kirillkom/site-mapper/internal/core/domain"
)

// CategoryResolver picks the authoritative classification of a file from
// the matcher's candidates.
type CategoryResolver struct {
	threshold float64
	logger    *zap.Logger
}

func NewCategoryResolver(logger *zap.Logger) *CategoryResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CategoryResolver{
		threshold: domain.MinClassificationScore,
		logger:    logger,
	}
}

// Resolve selects the highest scoring candidate, breaking exact ties by
// category priority and logging them as ambiguous. Files without a candidate
// at or above the threshold are unclassified. A winning lot also takes the
// best docType facet so that a lot-specific document can fill the matching
// lot slot.
func (r *CategoryResolver) Resolve(file domain.FileRecord, candidates []domain.Classification) domain.ClassifiedFile {
	out := domain.ClassifiedFile{
		File:           file,
		Classification: domain.Unclassified(),
		Candidates:     append([]domain.Classification(nil), candidates...),
	}

	accepted := make([]domain.Classification, 0, len(candidates))
	for _, c := range candidates {
		if c.Score >= r.threshold && c.Category.Valid() {
			accepted = append(accepted, c)
		}
	}
	if len(accepted) == 0 {
		return out
	}

	sort.SliceStable(accepted, func(i, j int) bool {
		if accepted[i].Score != accepted[j].Score {
			return accepted[i].Score > accepted[j].Score
		}
		return accepted[i].Category.Priority() < accepted[j].Category.Priority()
	})

	winner := accepted[0]
	if len(accepted) > 1 && accepted[1].Score == winner.Score {
		r.logger.Warn("classification ambiguity",
			zap.String("file", file.Name),
			zap.String("category", string(winner.Category)),
			zap.String("runner_up", string(accepted[1].Category)),
			zap.Float64("score", winner.Score),
		)
	}

	if winner.Category == domain.CategoryLot && winner.DocType == "" {
		for _, c := range accepted[1:] {
			if c.DocType != "" {
				winner.DocType = c.DocType
				break
			}
		}
	}

	out.Classification = winner
	return out
}
