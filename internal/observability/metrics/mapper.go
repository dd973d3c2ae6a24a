package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/site-mapper/internal/core/domain"
)

// MapperMetrics records mapping outcomes. It satisfies ports.RunMetrics.
type MapperMetrics struct {
	service string

	filesClassified *prometheus.CounterVec
	unclassified    *prometheus.CounterVec
	ambiguous       *prometheus.CounterVec
	siteRuns        *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	lotCompleteness *prometheus.HistogramVec
}

func NewMapperMetrics(service string, registry *prometheus.Registry) *MapperMetrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	filesClassified := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mapper",
			Name:      "files_classified_total",
			Help:      "Files classified by winning category.",
		},
		[]string{"service", "category"},
	)
	unclassified := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mapper",
			Name:      "files_unclassified_total",
			Help:      "Files that matched no category above the threshold.",
		},
		[]string{"service", "site"},
	)
	ambiguous := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mapper",
			Name:      "ambiguous_classifications_total",
			Help:      "Files whose winning score was tied by another candidate.",
		},
		[]string{"service", "site"},
	)
	siteRuns := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mapper",
			Name:      "site_runs_total",
			Help:      "Site mappings by status.",
		},
		[]string{"service", "status"},
	)
	runDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "mapper",
			Name:      "run_duration_seconds",
			Help:      "Whole mapping run duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "dry_run"},
	)
	lotCompleteness := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "mapper",
			Name:      "lot_completeness_percent",
			Help:      "Distribution of lot completeness percentages.",
			Buckets:   []float64{0, 25, 50, 75, 99, 100},
		},
		[]string{"service"},
	)

	registry.MustRegister(filesClassified, unclassified, ambiguous, siteRuns, runDuration, lotCompleteness)

	return &MapperMetrics{
		service:         service,
		filesClassified: filesClassified,
		unclassified:    unclassified,
		ambiguous:       ambiguous,
		siteRuns:        siteRuns,
		runDuration:     runDuration,
		lotCompleteness: lotCompleteness,
	}
}

func (m *MapperMetrics) ObserveSite(result domain.SiteResult) {
	m.siteRuns.WithLabelValues(m.service, string(result.Status())).Inc()

	for _, file := range result.Files {
		m.filesClassified.WithLabelValues(m.service, string(file.Classification.Category)).Inc()
		if file.IsUnclassified() {
			m.unclassified.WithLabelValues(m.service, result.Slug).Inc()
		}
		if file.Ambiguous() {
			m.ambiguous.WithLabelValues(m.service, result.Slug).Inc()
		}
	}
	for _, lot := range result.Aggregated {
		m.lotCompleteness.WithLabelValues(m.service).Observe(float64(lot.Completeness))
	}
}

func (m *MapperMetrics) ObserveRun(report domain.RunReport) {
	dryRun := "false"
	if report.DryRun {
		dryRun = "true"
	}
	m.runDuration.WithLabelValues(m.service, dryRun).Observe(report.FinishedAt.Sub(report.StartedAt).Seconds())
}
