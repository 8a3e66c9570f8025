// Package server exposes generated reports and cache statistics over HTTP.
// It is the viewing surface for the analyze phase: an HTML index of the
// output directory, the chart artifacts themselves, live cache stats, and
// the Prometheus registry.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/buildshift/internal/metrics"
	"github.com/matzehuels/buildshift/pkg/resolver"
)

// Options carries the server's collaborators. Addr, OutputDir, and Store are
// required; a nil Logger discards output and a nil Recorder serves 503 on
// /metrics.
type Options struct {
	Addr      string
	OutputDir string
	Store     resolver.Store
	Recorder  *metrics.Recorder
	Logger    *log.Logger
}

// Server owns the HTTP lifecycle and shuts down gracefully on ctx
// cancellation.
type Server struct {
	opts       Options
	httpServer *http.Server
	once       sync.Once
}

// New validates the options and assembles the router.
func New(opts Options) (*Server, error) {
	if opts.Addr == "" {
		return nil, errors.New("server: addr required")
	}
	if opts.OutputDir == "" {
		return nil, errors.New("server: output dir required")
	}
	if opts.Store == nil {
		return nil, errors.New("server: store required")
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}

	s := &Server{opts: opts}
	s.httpServer = &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

// Run serves until ctx is canceled, then drains in-flight requests before
// returning ctx's error. Listen errors surface immediately.
func (s *Server) Run(ctx context.Context) error {
	if entries, err := s.opts.Store.Load(ctx); err == nil {
		s.opts.Recorder.SetCacheEntries(entries)
		s.opts.Logger.Info("cache loaded", "entries", len(entries))
	} else {
		s.opts.Logger.Warn("cache unavailable", "err", err)
	}

	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		s.opts.Logger.Info("http listener starting", "address", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server: serve: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// shutdown collapses the listener once so cascading cancellations do not
// repeat the drain.
func (s *Server) shutdown(ctx context.Context) error {
	var shutdownErr error
	s.once.Do(func() {
		s.opts.Logger.Info("http listener shutting down")
		shutdownErr = s.httpServer.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/", s.handleIndex)
	r.Get("/charts/{file}", s.handleChart)
	r.Get("/stats.json", s.handleStats)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.opts.Recorder.Handler())

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.opts.Logger.Debug("request",
			"method", r.Method, "path", r.URL.Path,
			"status", ww.Status(), "duration", time.Since(start))
	})
}
