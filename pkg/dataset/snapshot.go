package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/spf13/afero"
)

var snapshotHeader = []string{"path", "hash", "uploaded_on", "repository"}

// WriteSnapshot persists rows as a gzip-compressed CSV with a header
// line, dates formatted as 2006-01-02.
func WriteSnapshot(fsys afero.Fs, path string, rows []Row) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := fsys.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot dir: %w", err)
		}
	}
	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}

	zw := gzip.NewWriter(f)
	w := csv.NewWriter(zw)

	err = w.Write(snapshotHeader)
	for _, row := range rows {
		if err != nil {
			break
		}
		err = w.Write([]string{
			row.Path,
			row.Hash,
			row.UploadedOn.Format(time.DateOnly),
			strconv.FormatUint(uint64(row.Repository), 10),
		})
	}
	w.Flush()
	if err == nil {
		err = w.Error()
	}
	if cerr := zw.Close(); err == nil {
		err = cerr
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		fsys.Remove(path)
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot loads a snapshot written by WriteSnapshot. The first
// record is the header and is skipped without inspection.
func ReadSnapshot(fsys afero.Fs, path string) ([]Row, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer zr.Close()

	r := csv.NewReader(zr)
	r.FieldsPerRecord = len(snapshotHeader)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	if len(records) == 0 {
		return nil, errors.New("snapshot has no header")
	}

	rows := make([]Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		uploaded, err := time.ParseInLocation(time.DateOnly, rec[2], time.UTC)
		if err != nil {
			return nil, fmt.Errorf("parse snapshot date %q: %w", rec[2], err)
		}
		repo, err := strconv.ParseUint(rec[3], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("parse snapshot repository %q: %w", rec[3], err)
		}
		rows = append(rows, Row{
			Path:       rec[0],
			Hash:       rec[1],
			UploadedOn: uploaded,
			Repository: uint32(repo),
		})
	}
	return rows, nil
}
