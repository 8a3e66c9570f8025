// Package metrics publishes Prometheus instrumentation for buildshift runs.
// The serve command exposes the registry over /metrics; fetch runs feed the
// counters through an instrumented fetcher and the end-of-run stats.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matzehuels/buildshift/pkg/backend"
	"github.com/matzehuels/buildshift/pkg/mirror"
	"github.com/matzehuels/buildshift/pkg/resolver"
)

// Fetch outcome label values.
const (
	fetchOutcomeOK          = "ok"
	fetchOutcomeNotFound    = "not_found"
	fetchOutcomeUnavailable = "unavailable"
)

// Recorder publishes Prometheus metrics for fetch and cache activity.
type Recorder struct {
	gatherer prometheus.Gatherer
	handler  http.Handler

	fetchRequests *prometheus.CounterVec
	fetchLatency  *prometheus.HistogramVec

	resolveRuns prometheus.Counter
	resolveRows *prometheus.CounterVec
	evictions   prometheus.Counter

	cacheEntries   prometheus.Gauge
	entriesByLabel *prometheus.GaugeVec
}

// NewRecorder constructs a Prometheus-backed Recorder. When reg is nil a
// dedicated registry is created so multiple recorders can coexist without
// conflicting with the global default registerer.
func NewRecorder(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	reg.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	fetchRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "buildshift",
		Subsystem: "fetch",
		Name:      "requests_total",
		Help:      "Mirror content requests issued by the resolver.",
	}, []string{"outcome"})

	fetchLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "buildshift",
		Subsystem: "fetch",
		Name:      "request_duration_seconds",
		Help:      "Latency distribution for mirror content requests.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"outcome"})

	resolveRuns := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "buildshift",
		Subsystem: "resolve",
		Name:      "runs_total",
		Help:      "Completed incremental resolver runs.",
	})

	resolveRows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "buildshift",
		Subsystem: "resolve",
		Name:      "rows_total",
		Help:      "Dataset rows handled per resolver run, by result.",
	}, []string{"result"})

	evictions := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "buildshift",
		Subsystem: "cache",
		Name:      "evictions_total",
		Help:      "Cache entries dropped because the dataset no longer references them.",
	})

	cacheEntries := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "buildshift",
		Subsystem: "cache",
		Name:      "entries",
		Help:      "Resolved hashes currently held by the cache.",
	})

	entriesByLabel := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "buildshift",
		Subsystem: "cache",
		Name:      "entries_by_backend",
		Help:      "Cache entries per normalized backend label.",
	}, []string{"backend"})

	reg.MustRegister(fetchRequests, fetchLatency, resolveRuns, resolveRows,
		evictions, cacheEntries, entriesByLabel)

	return &Recorder{
		gatherer:       reg,
		handler:        promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		fetchRequests:  fetchRequests,
		fetchLatency:   fetchLatency,
		resolveRuns:    resolveRuns,
		resolveRows:    resolveRows,
		evictions:      evictions,
		cacheEntries:   cacheEntries,
		entriesByLabel: entriesByLabel,
	}
}

// Handler exposes the Prometheus HTTP handler for the recorder's registry.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "metrics unavailable", http.StatusServiceUnavailable)
		})
	}
	return r.handler
}

// Gatherer returns the underlying Prometheus gatherer for tests and advanced
// integrations.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.gatherer
}

// ObserveRun folds a completed run's stats into the counters.
func (r *Recorder) ObserveRun(stats resolver.Stats) {
	if r == nil {
		return
	}
	r.resolveRuns.Inc()
	r.resolveRows.WithLabelValues("resolved").Add(float64(stats.Resolved))
	r.resolveRows.WithLabelValues("skipped").Add(float64(stats.Skipped))
	r.resolveRows.WithLabelValues("failed").Add(float64(stats.Failed))
	r.evictions.Add(float64(stats.Reconciled))
}

// SetCacheEntries replaces the cache gauges with the current entry counts,
// grouped by normalized backend label.
func (r *Recorder) SetCacheEntries(entries map[string]string) {
	if r == nil {
		return
	}
	r.cacheEntries.Set(float64(len(entries)))
	r.entriesByLabel.Reset()
	for _, label := range entries {
		r.entriesByLabel.WithLabelValues(backend.Normalize(label)).Inc()
	}
}

// InstrumentFetcher wraps next so every content request is counted and timed.
// A nil recorder returns next unchanged.
func (r *Recorder) InstrumentFetcher(next resolver.Fetcher) resolver.Fetcher {
	if r == nil {
		return next
	}
	return &instrumentedFetcher{rec: r, next: next}
}

type instrumentedFetcher struct {
	rec  *Recorder
	next resolver.Fetcher
}

func (f *instrumentedFetcher) FetchText(ctx context.Context, repository uint32, path string) (string, error) {
	start := time.Now()
	text, err := f.next.FetchText(ctx, repository, path)
	outcome := fetchOutcomeOK
	switch {
	case err == nil:
	case errors.Is(err, mirror.ErrNotFound):
		outcome = fetchOutcomeNotFound
	default:
		outcome = fetchOutcomeUnavailable
	}
	f.rec.fetchRequests.WithLabelValues(outcome).Inc()
	f.rec.fetchLatency.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	return text, err
}
