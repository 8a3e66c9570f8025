// Package resolver maintains the persistent hash-to-backend map that the
// analysis stage reads.
//
// A run walks the dataset rows in upload order, skips every hash already
// present in the store, fetches the remaining pyproject.toml files one by
// one and classifies each into a backend label. The map is checkpointed
// on a fixed cadence, so an interrupted run loses at most one batch of
// work and the next run picks up where it stopped.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/matzehuels/buildshift/pkg/backend"
	"github.com/matzehuels/buildshift/pkg/dataset"
	"github.com/matzehuels/buildshift/pkg/mirror"
)

// DefaultBatchSize is the number of processed rows between checkpoint saves.
const DefaultBatchSize = 500

// Fetcher retrieves one pyproject.toml from a mirror repository.
type Fetcher interface {
	FetchText(ctx context.Context, repository uint32, path string) (string, error)
}

// Options tune a resolving run.
type Options struct {
	BatchSize int                  // processed rows between checkpoint saves (default: 500)
	Classify  func(string) string  // maps file text to a backend label (default: backend.Classify)
	Logger    func(string, ...any) // progress/error callback (optional)
}

// WithDefaults returns a copy of Options with zero values replaced by defaults.
func (o Options) WithDefaults() Options {
	opts := o
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Classify == nil {
		opts.Classify = backend.Classify
	}
	if opts.Logger == nil {
		opts.Logger = func(string, ...any) {}
	}
	return opts
}

// Stats summarizes one resolving run.
type Stats struct {
	Processed   int // rows examined
	Skipped     int // rows whose hash was already resolved
	Resolved    int // rows fetched and classified this run
	Failed      int // rows whose fetch failed
	NotFound    int // failed rows the mirror no longer serves
	Unavailable int // failed rows behind transport or server errors
	Reconciled  int // stale entries dropped before fetching
}

// Resolver drives incremental runs against a Store.
type Resolver struct {
	fetcher Fetcher
	store   Store
	opts    Options
}

// New creates a Resolver that fetches through f and persists through store.
func New(f Fetcher, store Store, opts Options) *Resolver {
	return &Resolver{fetcher: f, store: store, opts: opts.WithDefaults()}
}

// Reconcile drops entries whose hash does not appear in valid and returns
// the number removed. The map is modified in place.
func Reconcile(entries map[string]string, valid map[string]bool) int {
	removed := 0
	for hash := range entries {
		if !valid[hash] {
			delete(entries, hash)
			removed++
		}
	}
	return removed
}

// Run resolves every unresolved hash in rows.
//
// Rows sharing a hash are fetched once; later occurrences count as
// skipped. Failed fetches are logged and left unresolved so the next run
// retries them. The store is saved at the start of every batch, once
// more after the last row, and on context cancellation before the
// context error is returned.
func (r *Resolver) Run(ctx context.Context, rows []dataset.Row) (Stats, error) {
	stats := Stats{Processed: len(rows)}

	entries, err := r.store.Load(ctx)
	if err != nil {
		return stats, fmt.Errorf("load store: %w", err)
	}

	valid := make(map[string]bool, len(rows))
	for _, row := range rows {
		valid[row.Hash] = true
	}
	stats.Reconciled = Reconcile(entries, valid)
	if stats.Reconciled > 0 {
		r.opts.Logger("dropped %d entries no longer in the dataset", stats.Reconciled)
	}

	pending := make([]dataset.Row, 0, len(rows))
	for _, row := range rows {
		if _, ok := entries[row.Hash]; ok {
			stats.Skipped++
			continue
		}
		pending = append(pending, row)
	}
	preSkipped := stats.Skipped

	runID := uuid.NewString()
	r.opts.Logger("run %s: %d rows, %d already resolved, %d to fetch",
		runID, len(rows), preSkipped, len(pending))

	for i, row := range pending {
		if err := ctx.Err(); err != nil {
			if saveErr := r.store.Save(context.WithoutCancel(ctx), entries); saveErr != nil {
				r.opts.Logger("save on interrupt failed: %v", saveErr)
			}
			return stats, err
		}

		if i%r.opts.BatchSize == 0 {
			if err := r.store.Save(ctx, entries); err != nil {
				return stats, fmt.Errorf("checkpoint: %w", err)
			}
			r.opts.Logger("%d/%d (%.2f%%) [%s]",
				preSkipped+i, len(rows),
				float64(preSkipped+i)/float64(len(rows))*100,
				row.UploadedOn.Format(time.DateOnly))
		}

		// Duplicate hashes resolved earlier in this run.
		if _, ok := entries[row.Hash]; ok {
			stats.Skipped++
			continue
		}

		text, err := r.fetcher.FetchText(ctx, row.Repository, row.Path)
		if err != nil {
			stats.Failed++
			switch {
			case errors.Is(err, mirror.ErrNotFound):
				stats.NotFound++
			case errors.Is(err, mirror.ErrUnavailable):
				stats.Unavailable++
			}
			r.opts.Logger("fetch failed: %s: %v", row.Path, err)
			continue
		}

		entries[row.Hash] = r.opts.Classify(text)
		stats.Resolved++
	}

	if err := r.store.Save(ctx, entries); err != nil {
		return stats, fmt.Errorf("save store: %w", err)
	}
	r.opts.Logger("run %s done: %d resolved, %d skipped, %d failed",
		runID, stats.Resolved, stats.Skipped, stats.Failed)
	return stats, nil
}
