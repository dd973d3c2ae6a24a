package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/site-mapper/internal/core/domain"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "file-mapping.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAcceptsBothFieldStyles(t *testing.T) {
	path := writeFile(t, `{"files": [
		{"id": "a", "name": "Plan 1.pdf", "mimeType": "application/pdf", "size": 2048, "modifiedTime": "2024-03-01T10:00:00Z", "location": "lancaster"},
		{"id": "b", "current_name": "Plat Map.pdf", "mime_type": "application/pdf", "size_mb": 1.5, "modified": "2024-03-02 08:30:00", "md5Checksum": "abc"},
		{"id": "", "name": "orphan.pdf"},
		{"id": "c"}
	]}`)

	files, err := New(path, nil).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, files, 2)

	assert.Equal(t, domain.FileRecord{
		ID:           "a",
		Name:         "Plan 1.pdf",
		MimeType:     "application/pdf",
		Size:         2048,
		ModifiedTime: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		Location:     "lancaster",
	}, files[0])
	assert.Equal(t, "Plat Map.pdf", files[1].Name)
	assert.Equal(t, int64(1572864), files[1].Size)
	assert.Equal(t, "abc", files[1].MD5)
	assert.Equal(t, time.Date(2024, 3, 2, 8, 30, 0, 0, time.UTC), files[1].ModifiedTime)
}

func TestLoadAcceptsBareList(t *testing.T) {
	path := writeFile(t, `[{"id": "a", "name": "Plan 1.pdf"}]`)

	files, err := New(path, nil).Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestLoadErrorsAreInventoryKind(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing.json"), nil).Load(context.Background())
	assert.True(t, domain.IsKind(err, domain.ErrInventory))

	_, err = New(writeFile(t, `{"files": [`), nil).Load(context.Background())
	assert.True(t, domain.IsKind(err, domain.ErrInventory))
}

func TestWriteSortsAndRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "file-mapping.json")
	src := New(path, nil)

	err := src.Write(context.Background(), "", []domain.FileRecord{
		{ID: "2", Name: "b.pdf", Location: "lancaster"},
		{ID: "1", Name: "a.pdf", Location: "lancaster"},
		{ID: "0", Name: "z.pdf", Location: "harbor"},
	})
	require.NoError(t, err)

	files, err := src.Load(context.Background())
	require.NoError(t, err)
	ids := []string{files[0].ID, files[1].ID, files[2].ID}
	assert.Equal(t, []string{"0", "1", "2"}, ids)
}
