package usecase

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kirillkom/site-mapper/internal/core/domain"
)

const (
	phraseScore      = 90.0
	keywordScore     = 60.0
	adjacentBonus    = 10.0
	maxScore         = 100.0
	numberedBaseline = keywordScore
)

// synonyms fixes known misspellings before any pattern runs.
var synonyms = map[string]string{
	"tenative":     "tentative",
	"tentitive":    "tentative",
	"entitlment":   "entitlement",
	"entitlments":  "entitlements",
	"presentaion":  "presentation",
	"gradding":     "grading",
	"topographic":  "topograph",
	"topography":   "topograph",
	"corperate":    "corporate",
	"buisness":     "business",
	"elevaton":     "elevation",
	"elevatons":    "elevations",
	"aproval":      "approval",
	"aprovals":     "approvals",
	"presentatoin": "presentation",
}

var (
	nonAlphanumeric = regexp.MustCompile(`[^\p{L}\p{N}]+`)
	fileExtension   = regexp.MustCompile(`^\.[A-Za-z0-9]{1,5}$`)
	numberToken     = regexp.MustCompile(`^\d+$`)
)

// numberedGroup matches a keyword followed by an ordinal, e.g. "plan 4".
type numberedGroup struct {
	category domain.Category
	pattern  *regexp.Regexp
}

// docTypeGroup matches phrase or keyword variants of one document type.
type docTypeGroup struct {
	category domain.Category
	phrases  []*regexp.Regexp
	keywords []*regexp.Regexp
}

func newNumberedGroup(category domain.Category, keywords ...string) numberedGroup {
	// Submatches: 1 keyword, 2 optional filler word, 3 ordinal without leading zeros.
	expr := `\b(` + strings.Join(keywords, "|") + `)\s?(?:(no|num|number)\s)?0*(\d+)\b`
	return numberedGroup{category: category, pattern: regexp.MustCompile(expr)}
}

func newDocTypeGroup(category domain.Category, variants ...string) docTypeGroup {
	group := docTypeGroup{category: category}
	for _, variant := range variants {
		words := strings.Fields(variant)
		expr := `\b` + strings.Join(words, `\s?`)
		if len(words) > 1 {
			group.phrases = append(group.phrases, regexp.MustCompile(expr))
			continue
		}
		group.keywords = append(group.keywords, regexp.MustCompile(expr))
	}
	return group
}

var (
	numberedGroups = []numberedGroup{
		newNumberedGroup(domain.CategoryPlan, "plan", "model", "unit", "type"),
		newNumberedGroup(domain.CategoryLot, "lot", "parcel"),
	}
	docTypeGroups = []docTypeGroup{
		newDocTypeGroup(domain.CategoryPlatmap, "plat map", "tentative map", "lot map", "site map"),
		newDocTypeGroup(domain.CategoryEntitlements, "entitlement", "permit", "approval", "zoning"),
		newDocTypeGroup(domain.CategoryGrading, "grading plan", "grading", "elevation", "topograph"),
		newDocTypeGroup(domain.CategoryLLCInfo, "llc", "company", "corporate", "business"),
		newDocTypeGroup(domain.CategoryPresentation, "presentation", "slide", "deck", "overview"),
		newDocTypeGroup(domain.CategoryPhoto, "photo", "image", "picture", "render"),
	}
)

// PatternMatcher turns a file name into scored candidate classifications.
// It holds no mutable state and is safe for concurrent use.
type PatternMatcher struct {
	logger *zap.Logger
}

func NewPatternMatcher(logger *zap.Logger) *PatternMatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PatternMatcher{logger: logger}
}

// Classify returns every candidate classification for filename. Candidates
// come in a fixed group order: plan, lot, then document types.
func (m *PatternMatcher) Classify(filename string) []domain.Classification {
	normalized := NormalizeFilename(filename)
	if normalized == "" {
		return nil
	}

	out := make([]domain.Classification, 0, 2)
	for _, group := range numberedGroups {
		if c, ok := m.matchNumbered(filename, normalized, group); ok {
			out = append(out, c)
		}
	}
	for _, group := range docTypeGroups {
		if c, ok := matchDocType(normalized, group); ok {
			out = append(out, c)
		}
	}
	return out
}

func (m *PatternMatcher) matchNumbered(filename, normalized string, group numberedGroup) (domain.Classification, bool) {
	matches := group.pattern.FindAllStringSubmatchIndex(normalized, -1)
	var (
		first   *domain.Classification
		numbers []int
	)
	for _, idx := range matches {
		n, err := strconv.Atoi(normalized[idx[6]:idx[7]])
		if err != nil || n <= 0 {
			continue
		}
		if !containsInt(numbers, n) {
			numbers = append(numbers, n)
		}
		if first != nil {
			continue
		}
		score := numberedBaseline
		if idx[4] < 0 {
			score += adjacentBonus
		}
		number := n
		first = &domain.Classification{
			Category: group.category,
			Number:   &number,
			Score:    score,
		}
	}
	if first == nil {
		return domain.Classification{}, false
	}
	if len(numbers) > 1 {
		m.logger.Warn("classification ambiguity",
			zap.String("file", filename),
			zap.String("category", string(group.category)),
			zap.Ints("numbers", numbers),
			zap.Int("chosen", *first.Number),
		)
	}
	return *first, true
}

func matchDocType(normalized string, group docTypeGroup) (domain.Classification, bool) {
	best := 0.0
	for _, re := range group.phrases {
		for _, idx := range re.FindAllStringIndex(normalized, -1) {
			best = maxFloat(best, scoreMatch(normalized, idx, phraseScore))
		}
	}
	for _, re := range group.keywords {
		for _, idx := range re.FindAllStringIndex(normalized, -1) {
			best = maxFloat(best, scoreMatch(normalized, idx, keywordScore))
		}
	}
	if best == 0 {
		return domain.Classification{}, false
	}
	return domain.Classification{
		Category: group.category,
		DocType:  string(group.category),
		Score:    best,
	}, true
}

// scoreMatch adds the adjacency bonus when a number token sits right before
// or after the matched word.
func scoreMatch(normalized string, idx []int, base float64) float64 {
	start, end := idx[0], idx[1]
	for end < len(normalized) && normalized[end] != ' ' {
		end++
	}
	before := strings.Fields(normalized[:start])
	after := strings.Fields(normalized[end:])
	adjacent := (len(before) > 0 && numberToken.MatchString(before[len(before)-1])) ||
		(len(after) > 0 && numberToken.MatchString(after[0]))
	if adjacent {
		base += adjacentBonus
	}
	if base > maxScore {
		return maxScore
	}
	return base
}

// NormalizeFilename lowercases the name without its extension, replaces
// punctuation with spaces, fixes known misspellings and collapses whitespace.
// "PLAN #4.pdf" and "plan 4" normalize identically.
func NormalizeFilename(name string) string {
	base := strings.TrimSpace(name)
	if ext := filepath.Ext(base); fileExtension.MatchString(ext) {
		base = strings.TrimSuffix(base, ext)
	}
	base = strings.ToLower(base)
	base = nonAlphanumeric.ReplaceAllString(base, " ")

	words := strings.Fields(base)
	for i, word := range words {
		if fixed, ok := synonyms[word]; ok {
			words[i] = fixed
		}
	}
	return strings.Join(words, " ")
}

func containsInt(values []int, v int) bool {
	for _, existing := range values {
		if existing == v {
			return true
		}
	}
	return false
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
