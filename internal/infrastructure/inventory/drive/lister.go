package drive

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	gdrive "google.golang.org/api/drive/v3"

	"github.com/kirillkom/site-mapper/internal/core/domain"
	"github.com/kirillkom/site-mapper/internal/infrastructure/gcloud"
	"github.com/kirillkom/site-mapper/internal/infrastructure/resilience"
)

const (
	folderMimeType = "application/vnd.google-apps.folder"
	pageSize       = 1000
	listFields     = "nextPageToken, files(id, name, mimeType, size, modifiedTime, md5Checksum)"
)

// pageFunc fetches one page of a folder's direct children.
type pageFunc func(ctx context.Context, folderID, pageToken string) (*gdrive.FileList, error)

// Lister walks a Drive folder tree into inventory records. A file's location
// is the name of the top-level folder it sits under, which is what site
// slugs and aliases are matched against.
type Lister struct {
	listPage pageFunc
	limiter  *rate.Limiter
	executor *resilience.Executor
	logger   *zap.Logger
}

type Options struct {
	CredentialsFile string
	RateLimitRPS    float64
	Executor        *resilience.Executor
	Logger          *zap.Logger
}

func New(ctx context.Context, opts Options) (*Lister, error) {
	svc, err := gdrive.NewService(ctx, gcloud.ClientOptions(opts.CredentialsFile, gdrive.DriveReadonlyScope)...)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInventory, "create drive client", err)
	}
	return newLister(func(ctx context.Context, folderID, pageToken string) (*gdrive.FileList, error) {
		call := svc.Files.List().
			Q(fmt.Sprintf("'%s' in parents and trashed = false", folderID)).
			Fields(listFields).
			PageSize(pageSize).
			SupportsAllDrives(true).
			IncludeItemsFromAllDrives(true).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		return call.Do()
	}, opts), nil
}

func newLister(listPage pageFunc, opts Options) *Lister {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	rps := opts.RateLimitRPS
	if rps <= 0 {
		rps = 8
	}
	executor := opts.Executor
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DriveConfig(), logger)
	}
	return &Lister{
		listPage: listPage,
		limiter:  rate.NewLimiter(rate.Limit(rps), max(1, int(rps))),
		executor: executor,
		logger:   logger,
	}
}

// ListTree lists every non-folder file below folderID. Failures after retries
// are returned as domain.ErrInventory.
func (l *Lister) ListTree(ctx context.Context, folderID string) ([]domain.FileRecord, error) {
	files := make([]domain.FileRecord, 0)
	if err := l.walk(ctx, folderID, "", &files); err != nil {
		return nil, domain.WrapError(domain.ErrInventory, "list drive folder "+folderID, err)
	}
	sort.SliceStable(files, func(i, j int) bool {
		if files[i].Location != files[j].Location {
			return files[i].Location < files[j].Location
		}
		return files[i].Name < files[j].Name
	})
	l.logger.Info("drive folder listed", zap.String("folder_id", folderID), zap.Int("files", len(files)))
	return files, nil
}

func (l *Lister) walk(ctx context.Context, folderID, location string, out *[]domain.FileRecord) error {
	pageToken := ""
	for {
		page, err := l.fetch(ctx, folderID, pageToken)
		if err != nil {
			return err
		}
		for _, f := range page.Files {
			if f.MimeType == folderMimeType {
				child := location
				if child == "" {
					child = strings.TrimSpace(f.Name)
				}
				if err := l.walk(ctx, f.Id, child, out); err != nil {
					return err
				}
				continue
			}
			*out = append(*out, toFileRecord(f, location))
		}
		if page.NextPageToken == "" {
			return nil
		}
		pageToken = page.NextPageToken
	}
}

func (l *Lister) fetch(ctx context.Context, folderID, pageToken string) (*gdrive.FileList, error) {
	return resilience.Do(ctx, l.executor, "drive.files.list", func(ctx context.Context) (*gdrive.FileList, error) {
		if err := l.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		page, err := l.listPage(ctx, folderID, pageToken)
		return page, gcloud.Wrap("drive files.list", err)
	}, gcloud.ClassifyError)
}

func toFileRecord(f *gdrive.File, location string) domain.FileRecord {
	rec := domain.FileRecord{
		ID:       f.Id,
		Name:     f.Name,
		MimeType: f.MimeType,
		Size:     f.Size,
		Location: location,
		MD5:      f.Md5Checksum,
	}
	if t, err := time.Parse(time.RFC3339, f.ModifiedTime); err == nil {
		rec.ModifiedTime = t.UTC()
	}
	return rec
}
