package ports

import (
	"context"

	"github.com/kirillkom/site-mapper/internal/core/domain"
)

// SitesConfigSource loads the declarative site configuration.
type SitesConfigSource interface {
	LoadSites(ctx context.Context) (*domain.SitesConfig, error)
}

// InventorySource loads the flat file-store inventory.
type InventorySource interface {
	Load(ctx context.Context) ([]domain.FileRecord, error)
}

// SiteDataStore persists a rendered site document and returns where it went.
type SiteDataStore interface {
	SaveSiteData(ctx context.Context, slug string, data []byte) (string, error)
}

// RunLedger keeps per-site run summaries.
type RunLedger interface {
	RecordSiteRun(ctx context.Context, rec domain.SiteRunRecord) error
	ListSiteRuns(ctx context.Context, slug string, limit int) ([]domain.SiteRunRecord, error)
}

// EventPublisher announces regenerated site data.
type EventPublisher interface {
	PublishSiteDataUpdated(ctx context.Context, evt domain.SiteDataUpdated) error
}

// InventorySubscriber delivers inventory change notifications.
type InventorySubscriber interface {
	SubscribeInventoryUpdated(ctx context.Context, handler func(context.Context, domain.InventoryUpdated) error) error
}

// RunMetrics records mapping outcomes.
type RunMetrics interface {
	ObserveSite(result domain.SiteResult)
	ObserveRun(report domain.RunReport)
}

// RunReportWriter renders a run report to a file.
type RunReportWriter interface {
	WriteRunReport(ctx context.Context, path string, report domain.RunReport) error
}

// AuditReportWriter renders an inventory audit to a file.
type AuditReportWriter interface {
	WriteAuditReport(ctx context.Context, path string, files []domain.FileRecord, duplicates []domain.DuplicateSet) error
}

// FolderLister walks a file-store folder tree.
type FolderLister interface {
	ListTree(ctx context.Context, folderID string) ([]domain.FileRecord, error)
}

// InventoryWriter persists an inventory listing.
type InventoryWriter interface {
	Write(ctx context.Context, path string, files []domain.FileRecord) error
}
