package httpadapter

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kirillkom/site-mapper/internal/core/domain"
	"github.com/kirillkom/site-mapper/internal/core/ports"
	"github.com/kirillkom/site-mapper/internal/observability/metrics"
)

const maxPreviewBody = 8 << 20

type Options struct {
	Service        string
	RateLimitRPS   float64
	RateLimitBurst int
	// Metrics is optional; when set the router counts requests and serves /metrics.
	Metrics *metrics.HTTPServerMetrics
	Logger  *zap.Logger
}

type Router struct {
	mapper  ports.SiteMapper
	history ports.RunHistory
	opts    Options
	logger  *zap.Logger
}

// NewRouter builds the API router. history may be nil when no run ledger is
// configured.
func NewRouter(mapper ports.SiteMapper, history ports.RunHistory, opts Options) *Router {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Service == "" {
		opts.Service = "api"
	}
	return &Router{
		mapper:  mapper,
		history: history,
		opts:    opts,
		logger:  logger,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /v1/sites", rt.listSites)
	mux.HandleFunc("GET /v1/sites/{slug}/preview", rt.previewSite)
	mux.HandleFunc("POST /v1/sites/{slug}/preview", rt.previewSite)
	mux.HandleFunc("GET /v1/sites/{slug}/runs", rt.listSiteRuns)
	mux.HandleFunc("POST /v1/runs", rt.startRun)

	var handler http.Handler = mux
	var onLimited func(*http.Request)
	if m := rt.opts.Metrics; m != nil {
		mux.Handle("GET /metrics", m.Handler())
		handler = m.Middleware(rt.opts.Service, handler)
		onLimited = func(r *http.Request) { m.RecordRateLimited(rt.opts.Service, r.URL.Path) }
	}
	handler = rateLimitMiddleware(handler, rt.opts.RateLimitRPS, rt.opts.RateLimitBurst, onLimited)
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type siteSummary struct {
	Slug     string   `json:"slug"`
	Name     string   `json:"name,omitempty"`
	Aliases  []string `json:"aliases,omitempty"`
	LotCount int      `json:"lot_count,omitempty"`
	Error    string   `json:"error,omitempty"`
}

func (rt *Router) listSites(w http.ResponseWriter, r *http.Request) {
	cfg, err := rt.mapper.Sites(r.Context())
	if err != nil {
		rt.writeErr(w, r, err)
		return
	}

	sites := make([]siteSummary, 0, len(cfg.Sites))
	for _, site := range cfg.Sites {
		sites = append(sites, siteSummary{
			Slug:     site.Slug,
			Name:     site.Name,
			Aliases:  site.Aliases,
			LotCount: site.LotCount,
		})
	}
	rejected := make([]siteSummary, 0, len(cfg.Rejected))
	for _, site := range cfg.Rejected {
		rejected = append(rejected, siteSummary{Slug: site.Slug, Error: site.Err.Error()})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sites":    sites,
		"rejected": rejected,
	})
}

type previewResponse struct {
	Slug       string                   `json:"slug"`
	Data       *domain.SiteData         `json:"data,omitempty"`
	Files      []domain.ClassifiedFile  `json:"files"`
	Aggregated []domain.LotCompleteness `json:"aggregated"`
}

// previewSite maps one site without writing. POST bodies carry the inventory
// to map ({"files": [...]}); GET uses the configured inventory.
func (rt *Router) previewSite(w http.ResponseWriter, r *http.Request) {
	slug := strings.TrimSpace(r.PathValue("slug"))
	if slug == "" {
		writeError(w, http.StatusBadRequest, "site slug is required")
		return
	}

	var files []domain.FileRecord
	if r.Method == http.MethodPost {
		var req struct {
			Files []domain.FileRecord `json:"files"`
		}
		if err := json.NewDecoder(io.LimitReader(r.Body, maxPreviewBody)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if req.Files == nil {
			req.Files = []domain.FileRecord{}
		}
		files = req.Files
	}

	result, err := rt.mapper.Preview(r.Context(), slug, files)
	if err == nil && result.Err != nil {
		err = result.Err
	}
	if err != nil {
		rt.writeErr(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, previewResponse{
		Slug:       result.Slug,
		Data:       result.Data,
		Files:      result.Files,
		Aggregated: result.Aggregated,
	})
}

func (rt *Router) listSiteRuns(w http.ResponseWriter, r *http.Request) {
	if rt.history == nil {
		writeError(w, http.StatusNotImplemented, "run history is not configured")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	runs, err := rt.history.ListSiteRuns(r.Context(), r.PathValue("slug"), limit)
	if err != nil {
		rt.writeErr(w, r, err)
		return
	}
	if runs == nil {
		runs = []domain.SiteRunRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

type runSiteResponse struct {
	Slug                string   `json:"slug"`
	Status              string   `json:"status"`
	Outputs             []string `json:"outputs,omitempty"`
	Files               int      `json:"files"`
	Unclassified        int      `json:"unclassified"`
	Lots                int      `json:"lots"`
	CompleteLots        int      `json:"complete_lots"`
	AverageCompleteness float64  `json:"avg_completeness"`
	Error               string   `json:"error,omitempty"`
}

func (rt *Router) startRun(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Sites  []string `json:"sites"`
		DryRun bool     `json:"dry_run"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	report, err := rt.mapper.Run(r.Context(), ports.RunOptions{DryRun: req.DryRun, Sites: req.Sites})
	if err != nil {
		rt.writeErr(w, r, err)
		return
	}

	sites := make([]runSiteResponse, 0, len(report.Sites))
	for _, site := range report.Sites {
		item := runSiteResponse{
			Slug:                site.Slug,
			Status:              string(site.Status()),
			Outputs:             site.Outputs,
			Files:               len(site.Files),
			Unclassified:        site.UnclassifiedCount(),
			Lots:                len(site.Aggregated),
			CompleteLots:        site.CompleteLots(),
			AverageCompleteness: site.AverageCompleteness(),
		}
		if site.Err != nil {
			item.Error = site.Err.Error()
		}
		sites = append(sites, item)
	}

	status := http.StatusOK
	if len(report.Failed()) > 0 {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, map[string]any{
		"run_id":      report.RunID,
		"dry_run":     report.DryRun,
		"started_at":  report.StartedAt,
		"finished_at": report.FinishedAt,
		"sites":       sites,
	})
}

func (rt *Router) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= 500 {
		rt.logger.Error("request failed",
			zap.String("request_id", requestIDFromContext(r.Context())),
			zap.Error(err),
		)
	}
	writeError(w, status, err.Error())
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
