package gcs

import (
	"context"
	"fmt"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/kirillkom/site-mapper/internal/infrastructure/gcloud"
	"github.com/kirillkom/site-mapper/internal/infrastructure/resilience"
)

const siteDataContentType = "application/json; charset=utf-8"

// Storage publishes site documents to gs://{bucket}/{prefix}/{slug}/data.json.
type Storage struct {
	client   *storage.Client
	bucket   string
	prefix   string
	executor *resilience.Executor
	logger   *zap.Logger
}

type Options struct {
	Bucket          string
	Prefix          string
	CredentialsFile string
	Executor        *resilience.Executor
	Logger          *zap.Logger
}

func New(ctx context.Context, opts Options) (*Storage, error) {
	if strings.TrimSpace(opts.Bucket) == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}
	client, err := storage.NewClient(ctx, gcloud.ClientOptions(opts.CredentialsFile)...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	executor := opts.Executor
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig(), logger)
	}
	return &Storage{
		client:   client,
		bucket:   opts.Bucket,
		prefix:   strings.Trim(opts.Prefix, "/"),
		executor: executor,
		logger:   logger,
	}, nil
}

func (s *Storage) Close() error {
	return s.client.Close()
}

func (s *Storage) SaveSiteData(ctx context.Context, slug string, data []byte) (string, error) {
	object := ObjectName(s.prefix, slug)
	err := s.executor.Execute(ctx, "gcs.write", func(ctx context.Context) error {
		w := s.client.Bucket(s.bucket).Object(object).NewWriter(ctx)
		w.ContentType = siteDataContentType
		w.CacheControl = "no-cache"
		if _, err := w.Write(data); err != nil {
			_ = w.Close()
			return gcloud.Wrap("gcs write", err)
		}
		return gcloud.Wrap("gcs close", w.Close())
	}, gcloud.ClassifyError)
	if err != nil {
		return "", fmt.Errorf("publish %s to gcs: %w", slug, err)
	}

	location := fmt.Sprintf("gs://%s/%s", s.bucket, object)
	s.logger.Debug("site data published", zap.String("site", slug), zap.String("location", location))
	return location, nil
}

// ObjectName is the object key of a site document.
func ObjectName(prefix, slug string) string {
	return path.Join(strings.Trim(prefix, "/"), slug, "data.json")
}
