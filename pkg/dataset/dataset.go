// Package dataset loads the candidate rows the resolver and reporter
// work on.
//
// The authoritative source is a directory of columnar index files, one
// per mirror repository. Scanning them is slow, so the projected result
// is persisted as a compressed CSV snapshot and later runs read the
// snapshot verbatim.
package dataset

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/afero"
)

// Row identifies one pyproject.toml upload in the upstream dataset.
//
// Rows with equal Hash carry identical file content and resolve as one
// unit, no matter how many paths or repositories they appear under.
type Row struct {
	Path       string    // archive path, five "/"-delimited segments
	Hash       string    // content digest, lowercase hex
	UploadedOn time.Time // upload date at UTC midnight
	Repository uint32    // mirror repository number
}

// Loader reads rows from the snapshot, falling back to the columnar
// source on the first run.
type Loader struct {
	dir      string
	snapshot string
	fs       afero.Fs
	logf     func(string, ...any)
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithSnapshotFs overrides the filesystem the snapshot is read from and
// written to. The columnar source always lives on the OS filesystem.
func WithSnapshotFs(fsys afero.Fs) LoaderOption {
	return func(l *Loader) { l.fs = fsys }
}

// WithLogger sets a progress callback.
func WithLogger(logf func(string, ...any)) LoaderOption {
	return func(l *Loader) { l.logf = logf }
}

// NewLoader creates a Loader over the columnar files in dir with the
// snapshot at snapshot.
func NewLoader(dir, snapshot string, opts ...LoaderOption) *Loader {
	l := &Loader{
		dir:      dir,
		snapshot: snapshot,
		fs:       afero.NewOsFs(),
		logf:     func(string, ...any) {},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load returns the candidate rows in upload order.
//
// An existing snapshot is returned verbatim, with no validation against
// the source files. Otherwise the source directory is queried and the
// snapshot written exactly once before returning.
func (l *Loader) Load(ctx context.Context) ([]Row, error) {
	if ok, _ := afero.Exists(l.fs, l.snapshot); ok {
		rows, err := ReadSnapshot(l.fs, l.snapshot)
		if err != nil {
			return nil, fmt.Errorf("read snapshot: %w", err)
		}
		l.logf("loaded %d rows from snapshot %s", len(rows), l.snapshot)
		return rows, nil
	}

	rows, err := Query(ctx, l.dir)
	if err != nil {
		return nil, err
	}
	if err := WriteSnapshot(l.fs, l.snapshot, rows); err != nil {
		return nil, err
	}
	l.logf("queried %d rows from %s, snapshot written to %s", len(rows), l.dir, l.snapshot)
	return rows, nil
}
