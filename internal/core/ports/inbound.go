package ports

import (
	"context"

	"github.com/kirillkom/site-mapper/internal/core/domain"
)

// RunOptions narrows a mapping run.
type RunOptions struct {
	DryRun bool
	// Sites limits the run to these slugs; empty means every configured site.
	Sites []string
}

// SiteMapper runs the mapping pipeline.
type SiteMapper interface {
	Run(ctx context.Context, opts RunOptions) (*domain.RunReport, error)
	// Preview maps one site without writing anything. Nil files means the
	// configured inventory.
	Preview(ctx context.Context, slug string, files []domain.FileRecord) (*domain.SiteResult, error)
	Sites(ctx context.Context) (*domain.SitesConfig, error)
}

// RunHistory lists past runs of a site.
type RunHistory interface {
	ListSiteRuns(ctx context.Context, slug string, limit int) ([]domain.SiteRunRecord, error)
}

// InventoryAuditor lists a file-store folder into an inventory and audit report.
type InventoryAuditor interface {
	Audit(ctx context.Context, req AuditRequest) (*AuditResult, error)
}

type AuditRequest struct {
	FolderID      string
	InventoryPath string
	ReportPath    string
}

type AuditResult struct {
	Files      []domain.FileRecord
	Duplicates []domain.DuplicateSet
}
