package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kirillkom/site-mapper/internal/core/domain"
)

// record accepts both the exported inventory field names and the ones written
// by older audit runs.
type record struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	CurrentName  string      `json:"current_name"`
	MimeType     string      `json:"mimeType"`
	MimeTypeAlt  string      `json:"mime_type"`
	Size         json.Number `json:"size"`
	SizeMB       json.Number `json:"size_mb"`
	ModifiedTime string      `json:"modifiedTime"`
	Modified     string      `json:"modified"`
	Location     string      `json:"location"`
	MD5          string      `json:"md5"`
	MD5Checksum  string      `json:"md5Checksum"`
}

type document struct {
	Files []record `json:"files"`
}

// Source loads the inventory from a JSON file on every call.
type Source struct {
	path   string
	logger *zap.Logger
}

func New(path string, logger *zap.Logger) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{path: path, logger: logger}
}

func (s *Source) Path() string {
	return s.path
}

func (s *Source) Load(_ context.Context) ([]domain.FileRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInventory, "read inventory", err)
	}
	records, err := decode(data)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInventory, "parse inventory "+s.path, err)
	}

	files := make([]domain.FileRecord, 0, len(records))
	for i, rec := range records {
		file, ok := rec.toFileRecord()
		if !ok {
			s.logger.Warn("inventory record skipped", zap.Int("index", i), zap.String("id", rec.ID))
			continue
		}
		files = append(files, file)
	}
	s.logger.Debug("inventory loaded", zap.String("path", s.path), zap.Int("files", len(files)))
	return files, nil
}

// decode accepts {"files": [...]} or a bare list.
func decode(data []byte) ([]record, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var records []record
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, err
		}
		return records, nil
	}
	var doc document
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, err
	}
	return doc.Files, nil
}

func (r record) toFileRecord() (domain.FileRecord, bool) {
	name := strings.TrimSpace(firstNonEmpty(r.Name, r.CurrentName))
	id := strings.TrimSpace(r.ID)
	if id == "" || name == "" {
		return domain.FileRecord{}, false
	}
	return domain.FileRecord{
		ID:           id,
		Name:         name,
		MimeType:     firstNonEmpty(r.MimeType, r.MimeTypeAlt),
		Size:         r.sizeBytes(),
		ModifiedTime: parseTime(firstNonEmpty(r.ModifiedTime, r.Modified)),
		Location:     strings.TrimSpace(r.Location),
		MD5:          firstNonEmpty(r.MD5, r.MD5Checksum),
	}, true
}

func (r record) sizeBytes() int64 {
	if n, err := r.Size.Int64(); err == nil {
		return n
	}
	if mb, err := r.SizeMB.Float64(); err == nil {
		return int64(math.Round(mb * 1024 * 1024))
	}
	return 0
}

func parseTime(v string) time.Time {
	v = strings.TrimSpace(v)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// Write stores files as {"files": [...]} sorted by location then name,
// replacing path atomically.
func (s *Source) Write(_ context.Context, path string, files []domain.FileRecord) error {
	if path == "" {
		path = s.path
	}
	sorted := append([]domain.FileRecord(nil), files...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Location != sorted[j].Location {
			return sorted[i].Location < sorted[j].Location
		}
		return sorted[i].Name < sorted[j].Name
	})

	data, err := json.MarshalIndent(struct {
		Files []domain.FileRecord `json:"files"`
	}{Files: sorted}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode inventory: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create inventory dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp inventory: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write inventory: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close inventory: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace inventory: %w", err)
	}
	return nil
}
