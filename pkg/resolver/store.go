package resolver

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/gzip"
	"github.com/spf13/afero"
)

// ErrInvalidEntry is returned by Save when the map contains an empty hash
// or an empty label. Such entries would poison every later run, so the
// whole save is refused.
var ErrInvalidEntry = errors.New("invalid entry")

// Store persists the hash-to-backend map between runs.
type Store interface {
	// Load reads the full map. A store that has never been written yields
	// an empty map so a run can start cold.
	Load(ctx context.Context) (map[string]string, error)

	// Save replaces the stored map with entries. Implementations must
	// validate entries and leave the previous state intact on failure.
	Save(ctx context.Context, entries map[string]string) error

	Close() error
}

// blobVersion is bumped when the envelope layout changes incompatibly.
// Older blobs then load as empty and the map is rebuilt.
const blobVersion = 1

type blobEnvelope struct {
	Version  int
	Checksum uint64
	Entries  map[string]string
}

// BlobStore keeps the map in a single gzip-compressed gob file.
//
// Writes go through a temp file and a rename, so a crash mid-save leaves
// the previous blob untouched. Load treats every failure mode the same
// way: a missing file, a truncated blob, a version bump, or a checksum
// mismatch all yield an empty map, and the resolver rebuilds from there.
type BlobStore struct {
	fs   afero.Fs
	path string
	logf func(string, ...any)
}

// BlobOption configures a BlobStore.
type BlobOption func(*BlobStore)

// WithFs overrides the filesystem the store reads and writes.
func WithFs(fsys afero.Fs) BlobOption {
	return func(s *BlobStore) { s.fs = fsys }
}

// WithLogger sets a callback for load diagnostics.
func WithLogger(logf func(string, ...any)) BlobOption {
	return func(s *BlobStore) { s.logf = logf }
}

// NewBlobStore creates a store backed by the blob file at path.
func NewBlobStore(path string, opts ...BlobOption) *BlobStore {
	s := &BlobStore{
		fs:   afero.NewOsFs(),
		path: path,
		logf: func(string, ...any) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the blob file path.
func (s *BlobStore) Path() string { return s.path }

// Load reads the blob. Any failure yields an empty map.
func (s *BlobStore) Load(ctx context.Context) (map[string]string, error) {
	f, err := s.fs.Open(s.path)
	if err != nil {
		return map[string]string{}, nil
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		s.logf("store %s is not a gzip blob, starting empty: %v", s.path, err)
		return map[string]string{}, nil
	}
	defer zr.Close()

	var env blobEnvelope
	if err := gob.NewDecoder(zr).Decode(&env); err != nil {
		s.logf("store %s failed to decode, starting empty: %v", s.path, err)
		return map[string]string{}, nil
	}
	if env.Version != blobVersion {
		s.logf("store %s has version %d, want %d, starting empty", s.path, env.Version, blobVersion)
		return map[string]string{}, nil
	}
	if env.Checksum != checksum(env.Entries) {
		s.logf("store %s failed checksum, starting empty", s.path)
		return map[string]string{}, nil
	}
	if env.Entries == nil {
		return map[string]string{}, nil
	}
	return env.Entries, nil
}

// Save writes entries as a new blob and renames it over the old one.
func (s *BlobStore) Save(ctx context.Context, entries map[string]string) error {
	if err := validate(entries); err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}

	tmp, err := afero.TempFile(s.fs, dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp store: %w", err)
	}
	tmpName := tmp.Name()

	env := blobEnvelope{Version: blobVersion, Checksum: checksum(entries), Entries: entries}
	zw := gzip.NewWriter(tmp)
	err = gob.NewEncoder(zw).Encode(env)
	if cerr := zw.Close(); err == nil {
		err = cerr
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("write store: %w", err)
	}

	if err := s.fs.Rename(tmpName, s.path); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("replace store: %w", err)
	}
	return nil
}

func (s *BlobStore) Close() error { return nil }

var _ Store = (*BlobStore)(nil)

// checksum hashes entries in sorted key order so equal maps always hash
// equal regardless of insertion order.
func checksum(entries map[string]string) uint64 {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := xxhash.New()
	for _, k := range keys {
		h.WriteString(k)
		h.WriteString("\x00")
		h.WriteString(entries[k])
		h.WriteString("\x00")
	}
	return h.Sum64()
}

func validate(entries map[string]string) error {
	for hash, label := range entries {
		if hash == "" {
			return fmt.Errorf("%w: empty hash", ErrInvalidEntry)
		}
		if label == "" {
			return fmt.Errorf("%w: empty label for hash %s", ErrInvalidEntry, hash)
		}
	}
	return nil
}
