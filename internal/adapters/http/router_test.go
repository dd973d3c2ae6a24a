package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/site-mapper/internal/core/domain"
	"github.com/kirillkom/site-mapper/internal/core/ports"
	"github.com/kirillkom/site-mapper/internal/observability/metrics"
)

type fakeMapper struct {
	sites      *domain.SitesConfig
	report     *domain.RunReport
	runErr     error
	lastRun    ports.RunOptions
	lastFiles  []domain.FileRecord
	previewErr error
}

func (f *fakeMapper) Run(_ context.Context, opts ports.RunOptions) (*domain.RunReport, error) {
	f.lastRun = opts
	if f.runErr != nil {
		return nil, f.runErr
	}
	return f.report, nil
}

func (f *fakeMapper) Preview(_ context.Context, slug string, files []domain.FileRecord) (*domain.SiteResult, error) {
	f.lastFiles = files
	if f.previewErr != nil {
		return nil, f.previewErr
	}
	if _, ok := f.sites.Site(slug); !ok {
		return nil, domain.WrapError(domain.ErrSiteNotFound, "preview site", fmt.Errorf("slug=%s", slug))
	}
	return &domain.SiteResult{
		Slug: slug,
		Data: &domain.SiteData{},
		Aggregated: []domain.LotCompleteness{
			{Lot: 1, Completeness: 100},
		},
	}, nil
}

func (f *fakeMapper) Sites(context.Context) (*domain.SitesConfig, error) {
	return f.sites, nil
}

type fakeHistory struct {
	slug  string
	limit int
}

func (f *fakeHistory) ListSiteRuns(_ context.Context, slug string, limit int) ([]domain.SiteRunRecord, error) {
	f.slug, f.limit = slug, limit
	return []domain.SiteRunRecord{{RunID: "run-1", Slug: slug, Status: domain.RunStatusSuccess}}, nil
}

func newFakeMapper() *fakeMapper {
	return &fakeMapper{
		sites: &domain.SitesConfig{
			Sites: []domain.SiteConfig{{Slug: "lancaster", Name: "Lancaster", LotCount: 12}},
			Rejected: []domain.RejectedSite{
				{Slug: "broken", Err: domain.WrapError(domain.ErrConfig, "site broken", errors.New("lot 13 beyond lot_count 12"))},
			},
		},
		report: &domain.RunReport{
			RunID: "run-1",
			Sites: []domain.SiteResult{
				{Slug: "lancaster", Outputs: []string{"sites/lancaster/data.json"}},
			},
		},
	}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func TestHealthzAndRequestID(t *testing.T) {
	handler := NewRouter(newFakeMapper(), nil, Options{}).Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get(requestIDHeader); got != "req-42" {
		t.Fatalf("expected request id echoed, got %q", got)
	}
}

func TestListSites(t *testing.T) {
	handler := NewRouter(newFakeMapper(), nil, Options{}).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sites", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	body := decodeBody(t, rec)
	sites := body["sites"].([]any)
	if len(sites) != 1 || sites[0].(map[string]any)["slug"] != "lancaster" {
		t.Fatalf("unexpected sites: %v", sites)
	}
	rejected := body["rejected"].([]any)
	if len(rejected) != 1 || !strings.Contains(rejected[0].(map[string]any)["error"].(string), "lot_count") {
		t.Fatalf("unexpected rejected sites: %v", rejected)
	}
}

func TestPreviewSite(t *testing.T) {
	mapper := newFakeMapper()
	handler := NewRouter(mapper, nil, Options{}).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sites/lancaster/preview", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if mapper.lastFiles != nil {
		t.Fatalf("GET preview must use the configured inventory")
	}

	body := `{"files":[{"id":"f1","name":"Lot 1 Title.pdf"}]}`
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/sites/lancaster/preview", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(mapper.lastFiles) != 1 || mapper.lastFiles[0].ID != "f1" {
		t.Fatalf("expected posted inventory, got %+v", mapper.lastFiles)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/sites/lancaster/preview", strings.NewReader("{")))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid json, got %d", rec.Code)
	}
}

func TestPreviewErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{name: "not found", err: domain.WrapError(domain.ErrSiteNotFound, "preview", errors.New("x")), want: http.StatusNotFound},
		{name: "config", err: domain.WrapError(domain.ErrConfig, "load", errors.New("x")), want: http.StatusUnprocessableEntity},
		{name: "inventory", err: domain.WrapError(domain.ErrInventory, "load", errors.New("x")), want: http.StatusUnprocessableEntity},
		{name: "temporary", err: domain.WrapError(domain.ErrTemporary, "drive", errors.New("x")), want: http.StatusServiceUnavailable},
		{name: "unknown", err: errors.New("boom"), want: http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mapper := newFakeMapper()
			mapper.previewErr = tc.err
			handler := NewRouter(mapper, nil, Options{}).Handler()

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sites/lancaster/preview", nil))
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}

	handler := NewRouter(newFakeMapper(), nil, Options{}).Handler()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sites/unknown/preview", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown site, got %d", rec.Code)
	}
}

func TestListSiteRuns(t *testing.T) {
	history := &fakeHistory{}
	handler := NewRouter(newFakeMapper(), history, Options{}).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sites/lancaster/runs?limit=5", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if history.slug != "lancaster" || history.limit != 5 {
		t.Fatalf("unexpected history call: %+v", history)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sites/lancaster/runs?limit=zero", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", rec.Code)
	}

	noLedger := NewRouter(newFakeMapper(), nil, Options{}).Handler()
	rec = httptest.NewRecorder()
	noLedger.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sites/lancaster/runs", nil))
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501 without ledger, got %d", rec.Code)
	}
}

func TestStartRun(t *testing.T) {
	mapper := newFakeMapper()
	handler := NewRouter(mapper, nil, Options{}).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/runs", strings.NewReader(`{"sites":["lancaster"],"dry_run":true}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !mapper.lastRun.DryRun || len(mapper.lastRun.Sites) != 1 {
		t.Fatalf("unexpected run options: %+v", mapper.lastRun)
	}
	body := decodeBody(t, rec)
	if body["run_id"] != "run-1" {
		t.Fatalf("unexpected run id: %v", body["run_id"])
	}

	mapper.report.Sites = append(mapper.report.Sites, domain.SiteResult{Slug: "bad", Err: errors.New("write failed")})
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/runs", nil))
	if rec.Code != http.StatusMultiStatus {
		t.Fatalf("expected 207 with a failed site, got %d", rec.Code)
	}

	mapper.runErr = domain.WrapError(domain.ErrInventory, "load inventory", errors.New("bad json"))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/runs", strings.NewReader(`{}`)))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for inventory failure, got %d", rec.Code)
	}
}

func TestRateLimitMiddlewareReturns429(t *testing.T) {
	handler := NewRouter(newFakeMapper(), nil, Options{
		RateLimitRPS:   1,
		RateLimitBurst: 1,
		Metrics:        metrics.NewHTTPServerMetrics("api", nil),
	}).Handler()

	res1 := httptest.NewRecorder()
	handler.ServeHTTP(res1, httptest.NewRequest(http.MethodGet, "/v1/sites", nil))
	if res1.Code != http.StatusOK {
		t.Fatalf("first request expected 200, got %d", res1.Code)
	}

	res2 := httptest.NewRecorder()
	handler.ServeHTTP(res2, httptest.NewRequest(http.MethodGet, "/v1/sites", nil))
	if res2.Code != http.StatusTooManyRequests {
		t.Fatalf("second request expected 429, got %d", res2.Code)
	}
	if res2.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header for 429 response")
	}

	health := httptest.NewRecorder()
	handler.ServeHTTP(health, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if health.Code != http.StatusOK {
		t.Fatalf("health probe must bypass the limiter, got %d", health.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	handler := NewRouter(newFakeMapper(), nil, Options{
		Metrics: metrics.NewHTTPServerMetrics("api", nil),
	}).Handler()

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/sites", nil))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `path="/v1/sites"`) {
		t.Fatalf("expected request counted in metrics output")
	}
}
