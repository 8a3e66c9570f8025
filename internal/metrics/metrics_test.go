package metrics

import (
	"context"
	"net/http/httptest"
	"testing"

	dto "github.com/prometheus/client_model/go"

	"github.com/matzehuels/buildshift/pkg/mirror"
	"github.com/matzehuels/buildshift/pkg/resolver"
)

type staticFetcher struct {
	text string
	err  error
}

func (f staticFetcher) FetchText(context.Context, uint32, string) (string, error) {
	return f.text, f.err
}

func TestRecorderObserveRun(t *testing.T) {
	rec := NewRecorder(nil)
	rec.ObserveRun(resolver.Stats{
		Processed:  10,
		Resolved:   5,
		Skipped:    3,
		Failed:     2,
		Reconciled: 4,
	})

	families := gather(t, rec, "buildshift_resolve_runs_total",
		"buildshift_resolve_rows_total", "buildshift_cache_evictions_total")

	runs := families["buildshift_resolve_runs_total"][0]
	if got := runs.GetCounter().GetValue(); got != 1 {
		t.Errorf("runs counter = %v, want 1", got)
	}
	for result, want := range map[string]float64{"resolved": 5, "skipped": 3, "failed": 2} {
		m := findMetric(t, families["buildshift_resolve_rows_total"], map[string]string{"result": result})
		if got := m.GetCounter().GetValue(); got != want {
			t.Errorf("rows{result=%q} = %v, want %v", result, got, want)
		}
	}
	evictions := families["buildshift_cache_evictions_total"][0]
	if got := evictions.GetCounter().GetValue(); got != 4 {
		t.Errorf("evictions counter = %v, want 4", got)
	}
}

func TestRecorderInstrumentFetcher(t *testing.T) {
	rec := NewRecorder(nil)
	ctx := context.Background()

	ok := rec.InstrumentFetcher(staticFetcher{text: "content"})
	if _, err := ok.FetchText(ctx, 1, "a"); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	missing := rec.InstrumentFetcher(staticFetcher{err: mirror.ErrNotFound})
	if _, err := missing.FetchText(ctx, 1, "b"); err == nil {
		t.Fatal("want error from missing fetcher")
	}
	down := rec.InstrumentFetcher(staticFetcher{err: mirror.ErrUnavailable})
	if _, err := down.FetchText(ctx, 1, "c"); err == nil {
		t.Fatal("want error from unavailable fetcher")
	}

	families := gather(t, rec, "buildshift_fetch_requests_total",
		"buildshift_fetch_request_duration_seconds")

	for outcome := range map[string]bool{"ok": true, "not_found": true, "unavailable": true} {
		m := findMetric(t, families["buildshift_fetch_requests_total"], map[string]string{"outcome": outcome})
		if got := m.GetCounter().GetValue(); got != 1 {
			t.Errorf("requests{outcome=%q} = %v, want 1", outcome, got)
		}
	}
	hist := findMetric(t, families["buildshift_fetch_request_duration_seconds"],
		map[string]string{"outcome": "ok"}).GetHistogram()
	if hist.GetSampleCount() != 1 {
		t.Errorf("latency sample count = %d, want 1", hist.GetSampleCount())
	}
}

func TestRecorderSetCacheEntries(t *testing.T) {
	rec := NewRecorder(nil)
	rec.SetCacheEntries(map[string]string{
		"h1": "setuptools.build_meta",
		"h2": "DEFAULT",
		"h3": "poetry.core.masonry.api",
		"h4": "PARSING_ERROR",
	})

	families := gather(t, rec, "buildshift_cache_entries", "buildshift_cache_entries_by_backend")

	total := families["buildshift_cache_entries"][0]
	if got := total.GetGauge().GetValue(); got != 4 {
		t.Errorf("entries gauge = %v, want 4", got)
	}
	// DEFAULT normalizes to setuptools alongside setuptools.build_meta.
	for label, want := range map[string]float64{"setuptools": 2, "poetry": 1, "PARSING_ERROR": 1} {
		m := findMetric(t, families["buildshift_cache_entries_by_backend"], map[string]string{"backend": label})
		if got := m.GetGauge().GetValue(); got != want {
			t.Errorf("entries_by_backend{backend=%q} = %v, want %v", label, got, want)
		}
	}

	// A second snapshot replaces the gauges instead of accumulating.
	rec.SetCacheEntries(map[string]string{"h1": "hatchling.build"})
	families = gather(t, rec, "buildshift_cache_entries", "buildshift_cache_entries_by_backend")
	if got := families["buildshift_cache_entries"][0].GetGauge().GetValue(); got != 1 {
		t.Errorf("entries gauge after reset = %v, want 1", got)
	}
	for _, m := range families["buildshift_cache_entries_by_backend"] {
		for _, label := range m.GetLabel() {
			if label.GetName() == "backend" && label.GetValue() == "poetry" {
				t.Error("stale backend gauge survived reset")
			}
		}
	}
}

func TestRecorderHandler(t *testing.T) {
	rec := NewRecorder(nil)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)

	rec.Handler().ServeHTTP(rr, req)

	if rr.Code != 200 {
		t.Fatalf("expected 200 response, got %d", rr.Code)
	}
	if rr.Body.Len() == 0 {
		t.Fatal("expected response body")
	}
}

func TestNilRecorder(t *testing.T) {
	var rec *Recorder
	rec.ObserveRun(resolver.Stats{Resolved: 1})
	rec.SetCacheEntries(map[string]string{"h": "flit_core"})

	inner := staticFetcher{text: "x"}
	if got := rec.InstrumentFetcher(inner); got != inner {
		t.Error("nil recorder should return the fetcher unchanged")
	}

	rr := httptest.NewRecorder()
	rec.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	if rr.Code != 503 {
		t.Errorf("nil recorder handler status = %d, want 503", rr.Code)
	}
}

func gather(t *testing.T, rec *Recorder, names ...string) map[string][]*dto.Metric {
	t.Helper()
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[name] = true
	}
	families, err := rec.Gatherer().Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	collected := make(map[string][]*dto.Metric, len(names))
	for _, mf := range families {
		if !wanted[mf.GetName()] {
			continue
		}
		collected[mf.GetName()] = append(collected[mf.GetName()], mf.GetMetric()...)
	}
	for _, name := range names {
		if len(collected[name]) == 0 {
			t.Fatalf("metric %q not collected", name)
		}
	}
	return collected
}

func findMetric(t *testing.T, metrics []*dto.Metric, labels map[string]string) *dto.Metric {
	t.Helper()
	for _, metric := range metrics {
		if matchLabels(metric, labels) {
			return metric
		}
	}
	t.Fatalf("metric with labels %v not found", labels)
	return nil
}

func matchLabels(metric *dto.Metric, labels map[string]string) bool {
	for key, expected := range labels {
		found := false
		for _, label := range metric.GetLabel() {
			if label.GetName() == key && label.GetValue() == expected {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
