package domain

import "time"

// MinClassificationScore is the lowest score a candidate may have to be
// accepted as a file's classification.
const MinClassificationScore = 30.0

// FileRecord is one entry of the external file-store inventory.
type FileRecord struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	MimeType     string    `json:"mimeType,omitempty"`
	Size         int64     `json:"size,omitempty"`
	ModifiedTime time.Time `json:"modifiedTime"`
	Location     string    `json:"location,omitempty"`
	MD5          string    `json:"md5,omitempty"`
}

type Classification struct {
	Category Category `json:"category"`
	Number   *int     `json:"number,omitempty"`
	DocType  string   `json:"docType,omitempty"`
	Score    float64  `json:"score"`
}

func (c Classification) HasNumber() bool {
	return c.Number != nil
}

// NumberValue returns the ordinal or 0 when the classification carries none.
func (c Classification) NumberValue() int {
	if c.Number == nil {
		return 0
	}
	return *c.Number
}

// Unclassified is the classification given to files that match nothing
// above MinClassificationScore.
func Unclassified() Classification {
	return Classification{Category: CategoryMisc}
}

// ClassifiedFile pairs an inventory record with its authoritative
// classification and every candidate the matcher produced for it.
type ClassifiedFile struct {
	File           FileRecord       `json:"file"`
	Classification Classification   `json:"classification"`
	Candidates     []Classification `json:"candidates,omitempty"`
}

// LotNumber reports the lot facet of the file: the winning lot number, or a
// lot candidate that cleared the threshold while another category won.
func (f ClassifiedFile) LotNumber() (int, bool) {
	return f.numberFacet(CategoryLot)
}

// PlanNumber reports the plan facet of the file, found the same way as the
// lot facet.
func (f ClassifiedFile) PlanNumber() (int, bool) {
	return f.numberFacet(CategoryPlan)
}

// Shared reports whether the file is tied to neither a lot nor a plan.
func (f ClassifiedFile) Shared() bool {
	if _, ok := f.LotNumber(); ok {
		return false
	}
	_, ok := f.PlanNumber()
	return !ok
}

func (f ClassifiedFile) numberFacet(category Category) (int, bool) {
	if f.Classification.Category == category && f.Classification.HasNumber() {
		return f.Classification.NumberValue(), true
	}
	for _, c := range f.Candidates {
		if c.Category == category && c.HasNumber() && c.Score >= MinClassificationScore {
			return c.NumberValue(), true
		}
	}
	return 0, false
}

// HasDocType reports whether the winner or any accepted candidate carries docType.
func (f ClassifiedFile) HasDocType(docType string) bool {
	if docType == "" {
		return false
	}
	if f.Classification.DocType == docType {
		return true
	}
	for _, c := range f.Candidates {
		if c.DocType == docType && c.Score >= MinClassificationScore {
			return true
		}
	}
	return false
}

func (f ClassifiedFile) IsUnclassified() bool {
	return f.Classification.Category == CategoryMisc
}

// Ambiguous reports whether more than one accepted candidate reached the
// winning score.
func (f ClassifiedFile) Ambiguous() bool {
	if f.IsUnclassified() {
		return false
	}
	n := 0
	for _, c := range f.Candidates {
		if c.Score >= MinClassificationScore && c.Score == f.Classification.Score {
			n++
		}
	}
	return n > 1
}
