package domain

import "fmt"

type Category string

const (
	CategoryLot          Category = "lot"
	CategoryPlan         Category = "plan"
	CategoryPlatmap      Category = "platmap"
	CategoryEntitlements Category = "entitlements"
	CategoryGrading      Category = "grading"
	CategoryLLCInfo      Category = "llc_info"
	CategoryPresentation Category = "presentation"
	CategoryPhoto        Category = "photo"
	CategoryMisc         Category = "misc"
)

// categoryPriority is the tie-break order: numbered categories first, then
// document types from most to least specific.
var categoryPriority = []Category{
	CategoryLot,
	CategoryPlan,
	CategoryPlatmap,
	CategoryEntitlements,
	CategoryGrading,
	CategoryLLCInfo,
	CategoryPresentation,
	CategoryPhoto,
	CategoryMisc,
}

// Priority returns the tie-break rank of the category, lower wins.
func (c Category) Priority() int {
	for i, candidate := range categoryPriority {
		if candidate == c {
			return i
		}
	}
	return len(categoryPriority)
}

func (c Category) Valid() bool {
	return c.Priority() < len(categoryPriority)
}

// Numbered reports whether files of this category carry a plan or lot ordinal.
func (c Category) Numbered() bool {
	return c == CategoryLot || c == CategoryPlan
}

// ProjectDocCategories lists the categories rendered as project documents,
// in output order. Misc documents follow them separately.
func ProjectDocCategories() []Category {
	return []Category{
		CategoryPlatmap,
		CategoryEntitlements,
		CategoryGrading,
		CategoryLLCInfo,
		CategoryPresentation,
	}
}

// Description is the human readable blurb shown next to a file of this category.
func (c Category) Description(number *int) string {
	switch c {
	case CategoryPlan:
		if number != nil {
			return fmt.Sprintf("Floor plan %d", *number)
		}
		return "Floor plan details"
	case CategoryLot:
		if number != nil {
			return fmt.Sprintf("Lot %d information", *number)
		}
		return "Lot information"
	case CategoryPlatmap:
		return "Official lot layout and dimensions"
	case CategoryEntitlements:
		return "Development permissions and approvals"
	case CategoryGrading:
		return "Site grading and elevation plans"
	case CategoryLLCInfo:
		return "Company details and structure"
	case CategoryPresentation:
		return "Project overview presentation"
	case CategoryPhoto:
		if number != nil {
			return fmt.Sprintf("Site photo %d", *number)
		}
		return "Site photography"
	default:
		return "Project documentation"
	}
}

func (c Category) Icon() string {
	switch c {
	case CategoryPlatmap:
		return "🗺️"
	case CategoryEntitlements:
		return "📋"
	case CategoryGrading:
		return "📐"
	case CategoryLLCInfo:
		return "🏢"
	case CategoryPresentation:
		return "📊"
	default:
		return "📄"
	}
}
