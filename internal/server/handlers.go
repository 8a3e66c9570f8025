package server

import (
	"encoding/json"
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/buildshift/pkg/backend"
)

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>buildshift reports</title>
  <style>
    body { font-family: 'Helvetica Neue', Arial, sans-serif; margin: 2em; color: #333; }
    a { color: #0173B2; }
  </style>
</head>
<body>
  <h1>buildshift reports</h1>
  {{if .Files}}
  <ul>
    {{range .Files}}<li><a href="/charts/{{.}}">{{.}}</a></li>
    {{end}}
  </ul>
  {{else}}
  <p>No reports yet. Run <code>buildshift analyze</code> first.</p>
  {{end}}
  <p><a href="/stats.json">stats.json</a> &middot; <a href="/metrics">metrics</a></p>
</body>
</html>
`))

// handleIndex lists the artifacts in the output directory. A missing
// directory renders the empty state rather than an error.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	var files []string
	dirents, err := os.ReadDir(s.opts.OutputDir)
	if err != nil && !os.IsNotExist(err) {
		http.Error(w, "reading output directory", http.StatusInternalServerError)
		return
	}
	for _, d := range dirents {
		if d.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(d.Name())) {
		case ".svg", ".png", ".csv":
			files = append(files, d.Name())
		}
	}
	sort.Strings(files)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, struct{ Files []string }{files}); err != nil {
		s.opts.Logger.Error("render index", "err", err)
	}
}

// handleChart serves one artifact by base name. Anything that is not a plain
// file name is rejected so the handler cannot escape the output directory.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "file")
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, filepath.Join(s.opts.OutputDir, name))
}

type statsPayload struct {
	Total  int            `json:"total"`
	Labels map[string]int `json:"labels"`
}

// handleStats reloads the cache on every request so long-running servers
// report fetch progress made by other processes.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	entries, err := s.opts.Store.Load(r.Context())
	if err != nil {
		http.Error(w, "loading cache", http.StatusInternalServerError)
		return
	}
	payload := statsPayload{Total: len(entries), Labels: make(map[string]int)}
	for _, label := range entries {
		payload.Labels[backend.Normalize(label)]++
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.opts.Logger.Error("encode stats", "err", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}
