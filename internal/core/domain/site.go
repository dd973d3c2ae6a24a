package domain

import (
	"sort"
	"strings"
)

// SitesConfig is the loaded site configuration with defaults already merged.
// Sites that failed validation are kept in Rejected so a batch run can report
// them without aborting the valid ones.
type SitesConfig struct {
	Global   GlobalConfig
	Sites    []SiteConfig
	Rejected []RejectedSite
}

type RejectedSite struct {
	Slug string
	Err  error
}

func (c *SitesConfig) Site(slug string) (SiteConfig, bool) {
	for _, site := range c.Sites {
		if site.Slug == slug {
			return site, true
		}
	}
	return SiteConfig{}, false
}

type GlobalConfig struct {
	DefaultBedrooms  int
	DefaultBathrooms float64
	DefaultSqft      int
	StrictMode       bool
	// MaxMiscDocs is nil when misc documents are not capped.
	MaxMiscDocs *int
}

// DefaultPlan is the plan detail used for plan numbers that only appear in
// the inventory.
func (g GlobalConfig) DefaultPlan() PlanDetail {
	return PlanDetail{
		Bedrooms:  g.DefaultBedrooms,
		Bathrooms: g.DefaultBathrooms,
		Sqft:      g.DefaultSqft,
		Stories:   1,
	}
}

type SiteConfig struct {
	Slug              string
	Name              string
	Aliases           []string
	LotCount          int
	LotDetails        map[int]LotDetail
	LotRequirements   LotRequirements
	PlanDetails       map[int]PlanDetail
	DocumentOverrides map[string]DocumentOverride

	DriveFolderID     string
	LotPages          map[int]int
	Overrides         map[string]string
	HideEmptySections bool
}

// Lot returns the configured details of a lot, or the zero value.
func (s SiteConfig) Lot(number int) LotDetail {
	return s.LotDetails[number]
}

// MatchesLocation reports whether an inventory location belongs to the site,
// comparing slug and aliases case-insensitively.
func (s SiteConfig) MatchesLocation(location string) bool {
	location = strings.TrimSpace(location)
	if location == "" {
		return false
	}
	if strings.EqualFold(location, s.Slug) {
		return true
	}
	for _, alias := range s.Aliases {
		if strings.EqualFold(location, strings.TrimSpace(alias)) {
			return true
		}
	}
	return false
}

// FilterFiles keeps the inventory entries located in the site's folder. An
// inventory without any such entry is used whole.
func (s SiteConfig) FilterFiles(files []FileRecord) []FileRecord {
	out := make([]FileRecord, 0, len(files))
	for _, f := range files {
		if s.MatchesLocation(f.Location) {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return append(out, files...)
	}
	return out
}

// SlotKeys returns the slot keys resolved for every lot of the site: required
// slots first, then the known slots, then any extra explicit doc_refs key.
func (s SiteConfig) SlotKeys() []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, 8)
	add := func(key string) {
		if key == "" {
			return
		}
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	for _, key := range s.LotRequirements.RequiredDocs {
		add(key)
	}
	for _, key := range KnownSlots() {
		add(key)
	}
	extra := make([]string, 0)
	for _, lot := range s.LotDetails {
		for key := range lot.DocRefs {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)
	for _, key := range extra {
		add(key)
	}
	return out
}

type LotDetail struct {
	APN               string
	Address           string
	Status            string
	Size              string
	HasTitleReport    bool
	HasGrading        bool
	HasPlanAssignment bool
	DocRefs           map[string]string
}

// Flag returns the has_* availability flag for a slot.
func (l LotDetail) Flag(slot string) bool {
	switch slot {
	case SlotTitleReport:
		return l.HasTitleReport
	case SlotGrading:
		return l.HasGrading
	case SlotPlanAssignment:
		return l.HasPlanAssignment
	default:
		return false
	}
}

type LotRequirements struct {
	ShowMissing      bool
	HideIncomplete   bool
	RequiredDocs     []string
	ShowStatusInSize bool
}

type PlanDetail struct {
	Bedrooms  int
	Bathrooms float64
	Sqft      int
	Stories   int
	GarageSF  int
}

type DocumentOverride struct {
	Title       string
	Description string
	Hide        bool
}
