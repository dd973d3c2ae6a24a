package domain

// Slot keys a lot can require.
const (
	SlotTitleReport    = "title_report"
	SlotGrading        = "grading"
	SlotPlanAssignment = "plan_assignment"
	SlotPlatmap        = "platmap"
	SlotEntitlements   = "entitlements"
)

// KnownSlots lists every slot key resolved for each lot, in output order.
func KnownSlots() []string {
	return []string{
		SlotTitleReport,
		SlotGrading,
		SlotPlanAssignment,
		SlotPlatmap,
		SlotEntitlements,
	}
}

// SlotDocType maps a slot to the docType facet a classified file must carry
// to satisfy it. Slots without a matching docType group resolve only through
// explicit doc_refs.
func SlotDocType(slot string) (string, bool) {
	switch slot {
	case SlotGrading:
		return string(CategoryGrading), true
	case SlotPlatmap:
		return string(CategoryPlatmap), true
	case SlotEntitlements:
		return string(CategoryEntitlements), true
	default:
		return "", false
	}
}

type DocRefOrigin string

const (
	OriginOverride DocRefOrigin = "override"
	OriginLotFile  DocRefOrigin = "lot_file"
	OriginShared   DocRefOrigin = "shared"
)

// DocRef binds a lot slot to a concrete file identifier.
type DocRef struct {
	SlotKey        string       `json:"slotKey"`
	FileID         string       `json:"fileId"`
	SourceCategory Category     `json:"sourceCategory"`
	Origin         DocRefOrigin `json:"origin"`
}

// LotCompleteness is the aggregation result for one lot. It is computed for
// every lot, including the ones later hidden from the emitted document.
type LotCompleteness struct {
	Lot          int                `json:"lot"`
	Completeness int                `json:"completeness"`
	Required     []string           `json:"required"`
	Available    []string           `json:"available"`
	Missing      []string           `json:"missing"`
	Slots        map[string]*DocRef `json:"slots"`
}

func (l LotCompleteness) Complete() bool {
	return l.Completeness >= 100
}
