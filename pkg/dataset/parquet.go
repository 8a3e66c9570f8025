package dataset

import (
	"context"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
)

// FileName is the final path segment a candidate row must carry.
const FileName = "pyproject.toml"

// pathSegments is the exact segment count of a release file path:
// project/version/release/archive/file.
const pathSegments = 5

// sourceRow mirrors the projected columns of the upstream index files.
// The files carry more columns; unlisted ones are ignored on read.
type sourceRow struct {
	Path       string    `parquet:"path,optional"`
	Hash       []byte    `parquet:"hash,optional"`
	UploadedOn time.Time `parquet:"uploaded_on,optional"`
	Repository uint32    `parquet:"repository,optional"`
}

// Query scans every parquet file in dir and projects the matching rows,
// ordered by upload date ascending.
func Query(ctx context.Context, dir string) ([]Row, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.parquet"))
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", dir, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no parquet files in %s", dir)
	}
	sort.Strings(paths)

	var rows []Row
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		source, err := parquet.ReadFile[sourceRow](p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		for _, s := range source {
			if !keep(s.Path) {
				continue
			}
			rows = append(rows, Row{
				Path:       s.Path,
				Hash:       hex.EncodeToString(s.Hash),
				UploadedOn: truncateToDate(s.UploadedOn),
				Repository: s.Repository,
			})
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].UploadedOn.Equal(rows[j].UploadedOn) {
			return rows[i].UploadedOn.Before(rows[j].UploadedOn)
		}
		return rows[i].Path < rows[j].Path
	})
	return rows, nil
}

func keep(path string) bool {
	parts := strings.Split(path, "/")
	return len(parts) == pathSegments && strings.EqualFold(parts[pathSegments-1], FileName)
}

func truncateToDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
