package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/kirillkom/site-mapper/internal/core/domain"
	"github.com/kirillkom/site-mapper/internal/core/ports"
)

// AuditUseCase lists a file-store folder, writes it as the inventory and
// renders a duplicate report.
type AuditUseCase struct {
	lister    ports.FolderLister
	inventory ports.InventoryWriter
	reports   ports.AuditReportWriter
	logger    *zap.Logger
}

func NewAuditUseCase(lister ports.FolderLister, inventory ports.InventoryWriter, reports ports.AuditReportWriter, logger *zap.Logger) *AuditUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditUseCase{lister: lister, inventory: inventory, reports: reports, logger: logger}
}

func (uc *AuditUseCase) Audit(ctx context.Context, req ports.AuditRequest) (*ports.AuditResult, error) {
	folderID := strings.TrimSpace(req.FolderID)
	if folderID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "audit folder", fmt.Errorf("folder id is required"))
	}

	files, err := uc.lister.ListTree(ctx, folderID)
	if err != nil {
		return nil, err
	}
	duplicates := FindDuplicates(files)

	if req.InventoryPath != "" {
		if err := uc.inventory.Write(ctx, req.InventoryPath, files); err != nil {
			return nil, fmt.Errorf("write inventory: %w", err)
		}
	}
	if req.ReportPath != "" && uc.reports != nil {
		if err := uc.reports.WriteAuditReport(ctx, req.ReportPath, files, duplicates); err != nil {
			return nil, fmt.Errorf("write audit report: %w", err)
		}
	}

	uc.logger.Info("inventory audited",
		zap.String("folder_id", folderID),
		zap.Int("files", len(files)),
		zap.Int("duplicate_sets", len(duplicates)),
	)
	return &ports.AuditResult{Files: files, Duplicates: duplicates}, nil
}

// FindDuplicates groups files by checksum, or by lowercased name and size
// when the checksum is unknown. Only groups of two or more are returned,
// ordered by key.
func FindDuplicates(files []domain.FileRecord) []domain.DuplicateSet {
	groups := make(map[string][]domain.FileRecord)
	for _, f := range files {
		groups[duplicateKey(f)] = append(groups[duplicateKey(f)], f)
	}

	out := make([]domain.DuplicateSet, 0)
	for key, group := range groups {
		if len(group) < 2 {
			continue
		}
		sort.Slice(group, func(i, j int) bool { return group[i].ID < group[j].ID })
		out = append(out, domain.DuplicateSet{Key: key, Files: group})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func duplicateKey(f domain.FileRecord) string {
	if md5 := strings.ToLower(strings.TrimSpace(f.MD5)); md5 != "" {
		return "md5:" + md5
	}
	return fmt.Sprintf("name:%s|%d", strings.ToLower(strings.TrimSpace(f.Name)), f.Size)
}
