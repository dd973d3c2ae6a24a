package drive

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gdrive "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"

	"github.com/kirillkom/site-mapper/internal/core/domain"
	"github.com/kirillkom/site-mapper/internal/infrastructure/resilience"
)

type fakeDrive struct {
	pages map[string]*gdrive.FileList
	calls int
	fail  []error
}

func (f *fakeDrive) list(_ context.Context, folderID, pageToken string) (*gdrive.FileList, error) {
	f.calls++
	if len(f.fail) > 0 {
		err := f.fail[0]
		f.fail = f.fail[1:]
		return nil, err
	}
	page, ok := f.pages[folderID+"|"+pageToken]
	if !ok {
		return &gdrive.FileList{}, nil
	}
	return page, nil
}

func testOptions() Options {
	return Options{
		RateLimitRPS: 1000,
		Executor: resilience.NewExecutor(resilience.Config{
			RetryMaxAttempts:    3,
			RetryInitialBackoff: time.Millisecond,
			RetryMaxBackoff:     time.Millisecond,
		}, nil),
	}
}

func TestListTreeWalksFoldersAndPages(t *testing.T) {
	fake := &fakeDrive{pages: map[string]*gdrive.FileList{
		"root|": {
			Files: []*gdrive.File{
				{Id: "lan", Name: "Lancaster", MimeType: folderMimeType},
				{Id: "top", Name: "Readme.pdf", MimeType: "application/pdf", Size: 10},
			},
			NextPageToken: "p2",
		},
		"root|p2": {Files: []*gdrive.File{{Id: "late", Name: "Zeta.pdf"}}},
		"lan|": {Files: []*gdrive.File{
			{Id: "plans", Name: "Plans", MimeType: folderMimeType},
			{Id: "pm", Name: "Plat Map.pdf", Md5Checksum: "abc", ModifiedTime: "2024-05-01T12:00:00Z"},
		}},
		"plans|": {Files: []*gdrive.File{{Id: "p1", Name: "Plan 1.pdf"}}},
	}}
	lister := newLister(fake.list, testOptions())

	files, err := lister.ListTree(context.Background(), "root")
	require.NoError(t, err)

	got := make([]string, 0, len(files))
	for _, f := range files {
		got = append(got, f.Location+"/"+f.Name)
	}
	assert.Equal(t, []string{"/Readme.pdf", "/Zeta.pdf", "Lancaster/Plan 1.pdf", "Lancaster/Plat Map.pdf"}, got)
	assert.Equal(t, "abc", files[3].MD5)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), files[3].ModifiedTime)
}

func TestListTreeRetriesRateLimits(t *testing.T) {
	fake := &fakeDrive{
		pages: map[string]*gdrive.FileList{"root|": {Files: []*gdrive.File{{Id: "a", Name: "a.pdf"}}}},
		fail:  []error{&googleapi.Error{Code: http.StatusTooManyRequests}},
	}
	lister := newLister(fake.list, testOptions())

	files, err := lister.ListTree(context.Background(), "root")
	require.NoError(t, err)
	assert.Len(t, files, 1)
	assert.Equal(t, 2, fake.calls)
}

func TestListTreeSurfacesFailuresAsInventoryErrors(t *testing.T) {
	fake := &fakeDrive{fail: []error{&googleapi.Error{Code: http.StatusForbidden}}}
	lister := newLister(fake.list, testOptions())

	_, err := lister.ListTree(context.Background(), "root")
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.ErrInventory))
	var apiErr *googleapi.Error
	assert.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 1, fake.calls)
}
