package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/kirillkom/site-mapper/internal/core/domain"
)

const (
	siteDataFile = "data.json"
	backupSuffix = ".bak"
)

// Storage writes site documents under {base}/{slug}/data.json. The previous
// document is kept as data.json.bak.
type Storage struct {
	basePath string
}

func New(basePath string) (*Storage, error) {
	if basePath == "" {
		basePath = "sites"
	}
	// The directory is created on first write so dry runs leave no trace.
	if info, err := os.Stat(basePath); err == nil && !info.IsDir() {
		return nil, fmt.Errorf("sites dir %s is not a directory", basePath)
	}
	return &Storage{basePath: basePath}, nil
}

func (s *Storage) SaveSiteData(_ context.Context, slug string, data []byte) (string, error) {
	dir, err := s.siteDir(slug)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create site dir: %w", err)
	}

	path := filepath.Join(dir, siteDataFile)
	if err := backup(path); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(dir, siteDataFile+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write site data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close site data: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("replace site data: %w", err)
	}
	return path, nil
}

func (s *Storage) OpenSiteData(_ context.Context, slug string) (io.ReadCloser, error) {
	dir, err := s.siteDir(slug)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(dir, siteDataFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.WrapError(domain.ErrSiteNotFound, "open site data", err)
		}
		return nil, fmt.Errorf("open site data: %w", err)
	}
	return f, nil
}

func (s *Storage) siteDir(slug string) (string, error) {
	if slug == "" || slug == "." || slug == ".." || strings.ContainsAny(slug, `/\`) {
		return "", domain.WrapError(domain.ErrInvalidInput, "site dir", fmt.Errorf("unsafe slug %q", slug))
	}
	return filepath.Join(s.basePath, slug), nil
}

func backup(path string) error {
	current, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read previous site data: %w", err)
	}
	if err := os.WriteFile(path+backupSuffix, current, 0o644); err != nil {
		return fmt.Errorf("write site data backup: %w", err)
	}
	return nil
}
