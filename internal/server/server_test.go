package server

import (
	"context"
	"encoding/json"
	"errors"
	"maps"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/matzehuels/buildshift/internal/metrics"
)

type fakeStore struct {
	entries map[string]string
	err     error
}

func (s *fakeStore) Load(context.Context) (map[string]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[string]string, len(s.entries))
	maps.Copy(out, s.entries)
	return out, nil
}

func (s *fakeStore) Save(context.Context, map[string]string) error { return nil }
func (s *fakeStore) Close() error                                  { return nil }

func newTestServer(t *testing.T, store *fakeStore, dir string) *Server {
	t.Helper()
	s, err := New(Options{
		Addr:      "127.0.0.1:0",
		OutputDir: dir,
		Store:     store,
		Recorder:  metrics.NewRecorder(nil),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	s.routes().ServeHTTP(rr, httptest.NewRequest("GET", path, nil))
	return rr
}

func TestServerIndex(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"relative.svg", "absolute.svg", "counts.csv", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write artifact: %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "archive"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	rr := get(t, newTestServer(t, &fakeStore{}, dir), "/")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{"relative.svg", "absolute.svg", "counts.csv"} {
		if !strings.Contains(body, want) {
			t.Errorf("index missing link to %s", want)
		}
	}
	if strings.Contains(body, "notes.txt") {
		t.Error("index should list chart artifacts only")
	}
	if strings.Contains(body, "archive") {
		t.Error("index should skip directories")
	}
}

func TestServerIndexEmpty(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "never-created")
	rr := get(t, newTestServer(t, &fakeStore{}, dir), "/")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "No reports yet") {
		t.Error("empty state message missing")
	}
}

func TestServerChart(t *testing.T) {
	dir := t.TempDir()
	content := `<svg xmlns="http://www.w3.org/2000/svg"></svg>`
	if err := os.WriteFile(filepath.Join(dir, "relative.svg"), []byte(content), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	s := newTestServer(t, &fakeStore{}, dir)

	rr := get(t, s, "/charts/relative.svg")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if rr.Body.String() != content {
		t.Errorf("body = %q", rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); !strings.Contains(ct, "svg") {
		t.Errorf("content type = %q", ct)
	}

	if rr := get(t, s, "/charts/missing.svg"); rr.Code != http.StatusNotFound {
		t.Errorf("missing file status = %d, want 404", rr.Code)
	}
	if rr := get(t, s, "/charts/%2e%2e%2fsecret"); rr.Code == http.StatusOK {
		t.Errorf("traversal attempt status = %d, want a rejection", rr.Code)
	}
	if rr := get(t, s, "/charts/.hidden"); rr.Code != http.StatusNotFound {
		t.Errorf("dotfile status = %d, want 404", rr.Code)
	}
}

func TestServerStats(t *testing.T) {
	store := &fakeStore{entries: map[string]string{
		"h1": "setuptools.build_meta",
		"h2": "DEFAULT",
		"h3": "PARSING_ERROR",
		"h4": "poetry.core.masonry.api",
	}}
	rr := get(t, newTestServer(t, store, t.TempDir()), "/stats.json")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}

	var payload statsPayload
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if payload.Total != 4 {
		t.Errorf("total = %d, want 4", payload.Total)
	}
	want := map[string]int{"setuptools": 2, "PARSING_ERROR": 1, "poetry": 1}
	if !maps.Equal(payload.Labels, want) {
		t.Errorf("labels = %v, want %v", payload.Labels, want)
	}
}

func TestServerStatsUnavailable(t *testing.T) {
	store := &fakeStore{err: errors.New("redis down")}
	rr := get(t, newTestServer(t, store, t.TempDir()), "/stats.json")
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rr.Code)
	}
}

func TestServerHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, &fakeStore{}, t.TempDir())

	rr := get(t, s, "/healthz")
	if rr.Code != http.StatusOK || rr.Body.String() != "ok\n" {
		t.Errorf("healthz = %d %q", rr.Code, rr.Body.String())
	}

	rr = get(t, s, "/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status = %d, want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "buildshift_cache_entries") {
		t.Error("metrics exposition missing cache gauge")
	}
}

func TestServerOptionValidation(t *testing.T) {
	store := &fakeStore{}
	cases := []Options{
		{OutputDir: "reports", Store: store},
		{Addr: ":0", Store: store},
		{Addr: ":0", OutputDir: "reports"},
	}
	for i, opts := range cases {
		if _, err := New(opts); err == nil {
			t.Errorf("case %d: want error for incomplete options", i)
		}
	}
}

func TestServerRunStopsOnCancel(t *testing.T) {
	s := newTestServer(t, &fakeStore{entries: map[string]string{"h": "flit_core"}}, t.TempDir())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
