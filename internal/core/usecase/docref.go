package usecase

import (
	"strings"

	"github.com/kirillkom/site-mapper/internal/core/domain"
)

// ResolveSlot binds a lot slot to a file. The first step that succeeds wins:
// an explicit doc_refs entry, a file carrying both the lot facet and the
// slot's docType, the project-wide platmap (platmap slot only), or nothing.
// files must be in a stable order; the first match of a step is used.
func ResolveSlot(lot int, slotKey string, site domain.SiteConfig, files []domain.ClassifiedFile) *domain.DocRef {
	if fileID := strings.TrimSpace(site.Lot(lot).DocRefs[slotKey]); fileID != "" {
		return &domain.DocRef{
			SlotKey:        slotKey,
			FileID:         fileID,
			SourceCategory: categoryOfFile(fileID, files),
			Origin:         domain.OriginOverride,
		}
	}

	if docType, ok := domain.SlotDocType(slotKey); ok {
		for _, f := range files {
			number, hasLot := f.LotNumber()
			if hasLot && number == lot && f.HasDocType(docType) {
				return &domain.DocRef{
					SlotKey:        slotKey,
					FileID:         f.File.ID,
					SourceCategory: f.Classification.Category,
					Origin:         domain.OriginLotFile,
				}
			}
		}
	}

	if slotKey == domain.SlotPlatmap {
		if f, ok := firstSharedFile(files, domain.CategoryPlatmap); ok {
			return &domain.DocRef{
				SlotKey:        slotKey,
				FileID:         f.File.ID,
				SourceCategory: domain.CategoryPlatmap,
				Origin:         domain.OriginShared,
			}
		}
	}

	return nil
}

// ResolveLotSlots resolves every slot key of the site for one lot. Unresolved
// slots map to nil.
func ResolveLotSlots(lot int, site domain.SiteConfig, files []domain.ClassifiedFile) map[string]*domain.DocRef {
	keys := site.SlotKeys()
	out := make(map[string]*domain.DocRef, len(keys))
	for _, key := range keys {
		out[key] = ResolveSlot(lot, key, site, files)
	}
	return out
}

// firstSharedFile returns the first file won by category that is not tied to a lot.
func firstSharedFile(files []domain.ClassifiedFile, category domain.Category) (domain.ClassifiedFile, bool) {
	for _, f := range files {
		if f.Classification.Category != category {
			continue
		}
		if !f.Shared() {
			continue
		}
		return f, true
	}
	return domain.ClassifiedFile{}, false
}

func categoryOfFile(fileID string, files []domain.ClassifiedFile) domain.Category {
	for _, f := range files {
		if f.File.ID == fileID {
			return f.Classification.Category
		}
	}
	return domain.CategoryMisc
}
