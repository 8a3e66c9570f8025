// Package pkg provides the core libraries behind the buildshift CLI.
//
// # Overview
//
// Buildshift answers one question: which build backends do Python projects
// declare in pyproject.toml, and how has that changed over time? The pkg
// directory splits the answer into small, composable pieces:
//
//  1. [dataset] - Columnar upload metadata (parquet shards + csv.gz snapshot)
//  2. [mirror] - Raw file content from the pypi-data GitHub mirrors
//  3. [backend] - TOML classification of pyproject.toml into backend labels
//  4. [resolver] - Incremental hash-keyed resolving with a persistent cache
//  5. [report] - Time-bucketed aggregation and SVG/PNG/CSV rendering
//  6. [buildinfo] - Build-time version information
//
// # Architecture
//
// The typical data flow through buildshift:
//
//	PyPI upload metadata (data/*.parquet, results.csv.gz)
//	         |
//	    [dataset] package (load, dedupe, snapshot)
//	         |
//	    [resolver] package (fetch via [mirror], classify via [backend],
//	                        persist hash -> label in a blob or Redis store)
//	         |
//	    [report] package (join, bucket, rank, render)
//	         |
//	    relative.svg / absolute.svg / counts.csv
//
// # Quick Start
//
// Resolve backends for new uploads and render the charts:
//
//	rows, _ := dataset.NewLoader("data", "results.csv.gz").Load(ctx)
//
//	store := resolver.NewBlobStore("backends.gob.gz")
//	defer store.Close()
//
//	res := resolver.New(mirror.NewClient(), store, resolver.Options{})
//	stats, _ := res.Run(ctx, rows)
//	fmt.Printf("resolved %d new hashes\n", stats.Resolved)
//
//	entries, _ := store.Load(ctx)
//	rep, _ := report.Build(rows, entries, report.Options{})
//	os.WriteFile("relative.svg", report.RenderRelative(rep), 0o644)
//
// Interrupting Run is safe: the cache is persisted after every batch, and the
// next Run picks up where the last one stopped.
//
// # Testing
//
// Run tests:
//
//	go test ./...                 # All tests
//	go test ./pkg/resolver/...    # Specific package
//
// [dataset]: https://pkg.go.dev/github.com/matzehuels/buildshift/pkg/dataset
// [mirror]: https://pkg.go.dev/github.com/matzehuels/buildshift/pkg/mirror
// [backend]: https://pkg.go.dev/github.com/matzehuels/buildshift/pkg/backend
// [resolver]: https://pkg.go.dev/github.com/matzehuels/buildshift/pkg/resolver
// [report]: https://pkg.go.dev/github.com/matzehuels/buildshift/pkg/report
// [buildinfo]: https://pkg.go.dev/github.com/matzehuels/buildshift/pkg/buildinfo
package pkg
