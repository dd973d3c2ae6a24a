package usecase

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/kirillkom/site-mapper/internal/core/domain"
)

const (
	descriptionSeparator = " • "
	unknownLotSize       = "TBD"
	photoURLPrefix       = "https://drive.google.com/uc?export=view&id="
	miscOverridePrefix   = "misc-"
)

// SiteDataEmitter assembles the renderer document from classified files and
// aggregated lots.
type SiteDataEmitter struct {
	logger *zap.Logger
}

func NewSiteDataEmitter(logger *zap.Logger) *SiteDataEmitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SiteDataEmitter{logger: logger}
}

// Emit builds the site document. files must be sorted by name and lots by
// lot number; the output is then fully deterministic.
func (e *SiteDataEmitter) Emit(
	site domain.SiteConfig,
	global domain.GlobalConfig,
	files []domain.ClassifiedFile,
	lots []domain.LotCompleteness,
) domain.SiteData {
	out := domain.SiteData{
		SiteName:    site.Name,
		Plans:       e.buildPlans(site, global, files),
		ProjectDocs: e.buildProjectDocs(site, global, files),
		Photos:      buildPhotos(files),
	}
	out.Lots = e.buildLots(site, files, lots, defaultDocRefs(out.ProjectDocs))

	if site.HideEmptySections {
		out.Flags = map[string]bool{"hideEmptySections": true}
	}
	if site.DriveFolderID != "" {
		out.Drive = &domain.DriveInfo{FolderID: site.DriveFolderID}
	}
	return out
}

func (e *SiteDataEmitter) buildPlans(site domain.SiteConfig, global domain.GlobalConfig, files []domain.ClassifiedFile) []domain.PlanItem {
	numbers := make([]int, 0, len(site.PlanDetails))
	for n := range site.PlanDetails {
		numbers = append(numbers, n)
	}
	// A file won by the plan category is preferred over one that only
	// carries a plan facet.
	planFiles := make(map[int]domain.FileRecord)
	facetFiles := make(map[int]domain.FileRecord)
	for _, f := range files {
		n, ok := f.PlanNumber()
		if !ok {
			continue
		}
		target := facetFiles
		if f.Classification.Category == domain.CategoryPlan {
			target = planFiles
		}
		if _, seen := target[n]; !seen {
			target[n] = f.File
		}
		if !containsInt(numbers, n) {
			numbers = append(numbers, n)
		}
	}
	for n, file := range facetFiles {
		if _, ok := planFiles[n]; !ok {
			planFiles[n] = file
		}
	}
	sort.Ints(numbers)

	printer := message.NewPrinter(language.English)
	plans := make([]domain.PlanItem, 0, len(numbers))
	for _, n := range numbers {
		detail, ok := site.PlanDetails[n]
		if !ok {
			detail = global.DefaultPlan()
		}
		stories := detail.Stories
		if stories <= 0 {
			stories = 1
		}
		storyText := "Single Story"
		if stories != 1 {
			storyText = fmt.Sprintf("%d Story", stories)
		}

		features := make([]string, 0, 1)
		if detail.GarageSF > 0 {
			features = append(features, printer.Sprintf("%d sf garage", detail.GarageSF))
		}

		file := planFiles[n]
		plans = append(plans, domain.PlanItem{
			ID:    fmt.Sprintf("plan-%d", n),
			Name:  fmt.Sprintf("Plan %d", n),
			Title: fmt.Sprintf("Plan %d - %s", n, storyText),
			Description: printer.Sprintf("%d bd%s%s ba%s%d sqft",
				detail.Bedrooms, descriptionSeparator,
				formatBathrooms(detail.Bathrooms), descriptionSeparator,
				detail.Sqft,
			),
			Bedrooms:  detail.Bedrooms,
			Bathrooms: detail.Bathrooms,
			Sqft:      detail.Sqft,
			Stories:   stories,
			GarageSF:  detail.GarageSF,
			Features:  features,
			File:      file.ID,
			FileName:  file.Name,
			Photos:    []string{},
		})
	}
	return plans
}

func (e *SiteDataEmitter) buildLots(
	site domain.SiteConfig,
	files []domain.ClassifiedFile,
	lots []domain.LotCompleteness,
	defaults map[string]string,
) []domain.LotItem {
	sharedPlatmap, hasPlatmap := firstSharedFile(files, domain.CategoryPlatmap)
	req := site.LotRequirements

	out := make([]domain.LotItem, 0, len(lots))
	for _, agg := range lots {
		if req.HideIncomplete && !agg.Complete() {
			e.logger.Debug("lot hidden as incomplete",
				zap.String("site", site.Slug),
				zap.Int("lot", agg.Lot),
				zap.Int("completeness", agg.Completeness),
			)
			continue
		}

		detail := site.Lot(agg.Lot)
		item := domain.LotItem{
			ID:           fmt.Sprintf("lot-%d", agg.Lot),
			Number:       fmt.Sprintf("Lot %d", agg.Lot),
			Title:        fmt.Sprintf("Lot %d", agg.Lot),
			Size:         lotSize(detail, req.ShowStatusInSize),
			Description:  lotDescription(detail, agg.Completeness),
			Completeness: agg.Completeness,
			DocRefs:      lotDocRefs(agg, detail, defaults),
			Features:     lotFeatures(detail),
			Photos:       []string{},
			Status:       detail.Status,
			APN:          detail.APN,
			Address:      detail.Address,
		}
		if f, ok := lotFile(files, agg.Lot); ok {
			item.File, item.Name = f.ID, f.Name
		} else if hasPlatmap {
			item.File, item.Name = sharedPlatmap.File.ID, sharedPlatmap.File.Name
		}
		if page, ok := site.LotPages[agg.Lot]; ok {
			p := page
			item.Page = &p
		}
		if req.ShowMissing && len(agg.Missing) > 0 {
			item.Missing = append([]string(nil), agg.Missing...)
		}
		out = append(out, item)
	}
	return out
}

func (e *SiteDataEmitter) buildProjectDocs(site domain.SiteConfig, global domain.GlobalConfig, files []domain.ClassifiedFile) []domain.ProjectDoc {
	docs := make([]domain.ProjectDoc, 0)
	add := func(category domain.Category, f domain.ClassifiedFile) {
		docs = append(docs, domain.ProjectDoc{
			ID:          fmt.Sprintf("%s-%d", category, len(docs)+1),
			Title:       titleFromFilename(f.File.Name),
			Description: category.Description(f.Classification.Number),
			File:        f.File.ID,
			Icon:        category.Icon(),
			Name:        f.File.Name,
		})
	}

	for _, category := range domain.ProjectDocCategories() {
		for _, f := range files {
			if f.Classification.Category != category {
				continue
			}
			if !f.Shared() {
				continue
			}
			add(category, f)
		}
	}

	misc := make([]domain.ClassifiedFile, 0)
	for _, f := range files {
		if f.IsUnclassified() {
			misc = append(misc, f)
		}
	}
	sort.SliceStable(misc, func(i, j int) bool {
		return misc[i].File.Name < misc[j].File.Name
	})
	if global.MaxMiscDocs != nil && len(misc) > *global.MaxMiscDocs {
		limit := *global.MaxMiscDocs
		e.logger.Warn("misc documents truncated",
			zap.String("site", site.Slug),
			zap.Int("max_misc_docs", limit),
			zap.Int("dropped", len(misc)-limit),
		)
		misc = misc[:limit]
	}
	for _, f := range misc {
		add(domain.CategoryMisc, f)
	}

	docs = applySlotOverrides(docs, site.Overrides)
	return applyDocumentOverrides(docs, site.DocumentOverrides)
}

func buildPhotos(files []domain.ClassifiedFile) []domain.Photo {
	photos := make([]domain.Photo, 0)
	for _, f := range files {
		if f.Classification.Category != domain.CategoryPhoto {
			continue
		}
		photos = append(photos, domain.Photo{
			ID:      f.File.ID,
			URL:     photoURLPrefix + f.File.ID,
			Caption: domain.CategoryPhoto.Description(f.Classification.Number),
		})
	}
	return photos
}

// applySlotOverrides points matching project documents at a configured file,
// or appends a document for slots nothing matched.
func applySlotOverrides(docs []domain.ProjectDoc, overrides map[string]string) []domain.ProjectDoc {
	for _, slot := range sortedKeys(overrides) {
		fileID := overrides[slot]
		dashed := strings.ReplaceAll(slot, "_", "-")
		matched := false
		for i := range docs {
			if strings.Contains(docs[i].ID, slot) || strings.Contains(docs[i].ID, dashed) {
				docs[i].File = fileID
				matched = true
			}
		}
		if matched {
			continue
		}
		docs = append(docs, domain.ProjectDoc{
			ID:          slot,
			Title:       cases.Title(language.English).String(strings.ReplaceAll(dashed, "-", " ")),
			Description: "Configured override",
			File:        fileID,
			Icon:        domain.CategoryMisc.Icon(),
			Name:        "Override",
		})
	}
	return docs
}

// applyDocumentOverrides renames or hides project documents. Keys are a
// category name or "misc-<needle>" matched against name and title.
func applyDocumentOverrides(docs []domain.ProjectDoc, overrides map[string]domain.DocumentOverride) []domain.ProjectDoc {
	if len(overrides) == 0 {
		return docs
	}
	keys := sortedKeys(overrides)
	out := make([]domain.ProjectDoc, 0, len(docs))
	for _, doc := range docs {
		var (
			applied domain.DocumentOverride
			found   bool
		)
		for _, key := range keys {
			if overrideMatches(doc, key) {
				applied, found = overrides[key], true
			}
		}
		if !found {
			out = append(out, doc)
			continue
		}
		if applied.Hide {
			continue
		}
		if applied.Title != "" {
			doc.Title = applied.Title
		}
		if applied.Description != "" {
			doc.Description = applied.Description
		}
		out = append(out, doc)
	}
	return out
}

func overrideMatches(doc domain.ProjectDoc, key string) bool {
	category, _, _ := strings.Cut(doc.ID, "-")
	if strings.HasPrefix(key, miscOverridePrefix) {
		needle := strings.ToLower(strings.TrimPrefix(key, miscOverridePrefix))
		return needle != "" && (strings.Contains(strings.ToLower(doc.Name), needle) ||
			strings.Contains(strings.ToLower(doc.Title), needle))
	}
	return domain.Category(key).Valid() && category == key
}

// defaultDocRefs links lots to the first visible shared platmap,
// entitlements and grading documents. Project documents hold only files tied
// to no lot or plan.
func defaultDocRefs(docs []domain.ProjectDoc) map[string]string {
	out := make(map[string]string, 3)
	for _, slot := range []string{domain.SlotPlatmap, domain.SlotEntitlements, domain.SlotGrading} {
		for _, doc := range docs {
			if strings.HasPrefix(doc.ID, slot+"-") {
				out[slot] = doc.File
				break
			}
		}
	}
	return out
}

// lotDocRefs layers default links, resolved slots and explicit doc_refs, in
// increasing precedence.
func lotDocRefs(agg domain.LotCompleteness, detail domain.LotDetail, defaults map[string]string) map[string]string {
	out := make(map[string]string, len(defaults)+len(agg.Slots))
	for key, fileID := range defaults {
		out[key] = fileID
	}
	for key, ref := range agg.Slots {
		if ref != nil {
			out[key] = ref.FileID
		}
	}
	for key, fileID := range detail.DocRefs {
		if fileID != "" {
			out[key] = fileID
		}
	}
	return out
}

func lotFile(files []domain.ClassifiedFile, lot int) (domain.FileRecord, bool) {
	for _, f := range files {
		if n, ok := f.LotNumber(); ok && n == lot {
			return f.File, true
		}
	}
	return domain.FileRecord{}, false
}

func lotSize(detail domain.LotDetail, withStatus bool) string {
	size := strings.TrimSpace(detail.Size)
	if size == "" {
		size = unknownLotSize
	}
	if withStatus && detail.Status != "" {
		return size + descriptionSeparator + detail.Status
	}
	return size
}

func lotDescription(detail domain.LotDetail, completeness int) string {
	parts := make([]string, 0, 4)
	if detail.APN != "" {
		parts = append(parts, "APN "+detail.APN)
	}
	if size := strings.TrimSpace(detail.Size); size != "" && size != unknownLotSize {
		parts = append(parts, size)
	}
	if detail.Status != "" {
		parts = append(parts, detail.Status)
	}
	parts = append(parts, fmt.Sprintf("%d%% complete", completeness))
	return strings.Join(parts, descriptionSeparator)
}

func lotFeatures(detail domain.LotDetail) []string {
	features := make([]string, 0, 2)
	if detail.APN != "" {
		features = append(features, "APN "+detail.APN)
	}
	if detail.Status != "" {
		features = append(features, detail.Status)
	}
	return features
}

func titleFromFilename(name string) string {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	return cases.Title(language.English).String(stem)
}

// formatBathrooms renders 2 as "2" and 2.5 as "2.5".
func formatBathrooms(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// EncodeSiteData renders the document as indented JSON. HTML escaping is off
// so names with "&" stay readable; map keys are sorted by encoding/json.
func EncodeSiteData(data domain.SiteData) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return nil, fmt.Errorf("encode site data: %w", err)
	}
	return buf.Bytes(), nil
}
