package localfs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/site-mapper/internal/core/domain"
)

func TestSaveSiteDataWritesAndBacksUp(t *testing.T) {
	base := t.TempDir()
	store, err := New(base)
	require.NoError(t, err)
	ctx := context.Background()

	path, err := store.SaveSiteData(ctx, "lancaster", []byte(`{"v":1}`))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "lancaster", "data.json"), path)
	_, err = os.Stat(path + ".bak")
	assert.True(t, os.IsNotExist(err))

	_, err = store.SaveSiteData(ctx, "lancaster", []byte(`{"v":2}`))
	require.NoError(t, err)

	backup, err := os.ReadFile(path + ".bak")
	require.NoError(t, err)
	assert.Equal(t, `{"v":1}`, string(backup))

	rc, err := store.OpenSiteData(ctx, "lancaster")
	require.NoError(t, err)
	defer rc.Close()
	current, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, `{"v":2}`, string(current))

	entries, err := os.ReadDir(filepath.Join(base, "lancaster"))
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestSaveSiteDataRejectsUnsafeSlug(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	for _, slug := range []string{"", "..", "../x", `a\b`} {
		_, err := store.SaveSiteData(context.Background(), slug, []byte("{}"))
		assert.True(t, domain.IsKind(err, domain.ErrInvalidInput), slug)
	}
}

func TestOpenSiteDataMissing(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = store.OpenSiteData(context.Background(), "nowhere")
	assert.True(t, domain.IsKind(err, domain.ErrSiteNotFound))
}

func TestNewDoesNotCreateDir(t *testing.T) {
	base := filepath.Join(t.TempDir(), "sites")
	_, err := New(base)
	require.NoError(t, err)
	_, err = os.Stat(base)
	assert.True(t, os.IsNotExist(err))

	file := filepath.Join(t.TempDir(), "plain")
	require.NoError(t, os.WriteFile(file, nil, 0o600))
	_, err = New(file)
	assert.Error(t, err)
}
