package report

import (
	"strings"
	"testing"
	"time"

	"github.com/matzehuels/buildshift/pkg/dataset"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func rowsFor(dates map[string]time.Time) []dataset.Row {
	rows := make([]dataset.Row, 0, len(dates))
	for hash, date := range dates {
		rows = append(rows, dataset.Row{
			Path:       "packages/x/x/x-1.0/pyproject.toml",
			Hash:       hash,
			UploadedOn: date,
			Repository: 1,
		})
	}
	return rows
}

func TestBuildJoinsAndNormalizes(t *testing.T) {
	entries := map[string]string{
		"h1": "setuptools.build_meta:__legacy__",
		"h2": "DEFAULT",
		"h3": "poetry.core.masonry.api",
	}
	rows := rowsFor(map[string]time.Time{
		"h1": day(2020, 3, 1),
		"h2": day(2020, 3, 2),
		"h3": day(2020, 3, 3),
		"h4": day(2020, 3, 4), // unresolved, dropped by the join
	})

	r, err := Build(rows, entries, Options{})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if r.Total != 3 {
		t.Errorf("Total = %d, want 3 joined rows", r.Total)
	}
	if len(r.Labels) != 2 {
		t.Fatalf("Labels = %v, want setuptools and poetry", r.Labels)
	}
	if r.Labels[0] != "setuptools" || r.Labels[1] != "poetry" {
		t.Errorf("Labels = %v, want [setuptools poetry]", r.Labels)
	}

	// The legacy declaration and the fallback sentinel land on the same
	// normalized label.
	if got := r.Buckets[0].Counts["setuptools"]; got != 2 {
		t.Errorf("setuptools count = %d, want 2", got)
	}

	wantTotals := []LabelCount{{"setuptools", 2}, {"poetry", 1}}
	if len(r.Totals) != len(wantTotals) {
		t.Fatalf("Totals = %v, want %v", r.Totals, wantTotals)
	}
	for i, want := range wantTotals {
		if r.Totals[i] != want {
			t.Errorf("Totals[%d] = %v, want %v", i, r.Totals[i], want)
		}
	}
}

func TestBuildCollapsesBeyondTop(t *testing.T) {
	entries := map[string]string{}
	dates := map[string]time.Time{}
	add := func(label string, n int) {
		for i := 0; i < n; i++ {
			hash := label + string(rune('a'+i))
			entries[hash] = label
			dates[hash] = day(2021, 1, 1)
		}
	}
	add("setuptools", 5)
	add("poetry", 4)
	add("hatchling", 3)
	add("flit", 2)
	add("pdm", 1)

	r, err := Build(rowsFor(dates), entries, Options{Top: 4})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	want := []string{"setuptools", "poetry", "hatchling", "flit", OtherLabel}
	if len(r.Labels) != len(want) {
		t.Fatalf("Labels = %v, want %v", r.Labels, want)
	}
	for i := range want {
		if r.Labels[i] != want[i] {
			t.Errorf("Labels[%d] = %q, want %q", i, r.Labels[i], want[i])
		}
	}
	if got := r.Buckets[0].Counts[OtherLabel]; got != 1 {
		t.Errorf("other count = %d, want the collapsed pdm upload", got)
	}

	// Totals keep every label, including those collapsed in the buckets.
	if len(r.Totals) != 5 {
		t.Fatalf("Totals = %v, want all five labels", r.Totals)
	}
	if last := r.Totals[4]; last.Label != "pdm" || last.Count != 1 {
		t.Errorf("Totals[4] = %v, want {pdm 1}", last)
	}
}

func TestBuildAppliesDateCutoff(t *testing.T) {
	entries := map[string]string{
		"old": "setuptools",
		"new": "setuptools",
	}
	rows := rowsFor(map[string]time.Time{
		"old": day(2016, 6, 1),
		"new": day(2019, 6, 1),
	})

	r, err := Build(rows, entries, Options{})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	// Pre-cutoff rows count toward the headline total but not the buckets.
	if r.Total != 2 {
		t.Errorf("Total = %d, want 2", r.Total)
	}
	sum := 0
	for _, b := range r.Buckets {
		sum += b.Total
	}
	if sum != 1 {
		t.Errorf("bucketed uploads = %d, want 1", sum)
	}
	if !r.Start.Equal(day(2019, 6, 1)) {
		t.Errorf("Start = %v, want the first kept date", r.Start)
	}
}

func TestBuildBucketBoundaries(t *testing.T) {
	entries := map[string]string{
		"h1": "setuptools",
		"h2": "setuptools",
		"h3": "setuptools",
	}
	rows := rowsFor(map[string]time.Time{
		"h1": day(2021, 1, 1),  // day 0, bucket 0
		"h2": day(2021, 1, 28), // day 27, last of bucket 0
		"h3": day(2021, 1, 29), // day 28, first of bucket 1
	})

	r, err := Build(rows, entries, Options{})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if len(r.Buckets) != 2 {
		t.Fatalf("got %d buckets, want 2", len(r.Buckets))
	}
	if r.Buckets[0].Total != 2 || r.Buckets[1].Total != 1 {
		t.Errorf("bucket totals = %d and %d, want 2 and 1",
			r.Buckets[0].Total, r.Buckets[1].Total)
	}
	if !r.Buckets[1].Start.Equal(day(2021, 1, 29)) {
		t.Errorf("second bucket starts %v, want 2021-01-29", r.Buckets[1].Start)
	}
}

func TestBucketPercent(t *testing.T) {
	b := Bucket{Counts: map[string]int{"setuptools": 3, "poetry": 1}, Total: 4}
	if got := b.Percent("setuptools"); got != 75 {
		t.Errorf("Percent(setuptools) = %v, want 75", got)
	}
	if got := b.Percent("poetry"); got != 25 {
		t.Errorf("Percent(poetry) = %v, want 25", got)
	}
	if got := (Bucket{}).Percent("setuptools"); got != 0 {
		t.Errorf("Percent on an empty bucket = %v, want 0", got)
	}
}

func TestBuildErrors(t *testing.T) {
	rows := []dataset.Row{{Hash: "h1", UploadedOn: day(2020, 1, 1)}}

	if _, err := Build(rows, map[string]string{}, Options{}); err == nil {
		t.Error("expected an error when nothing joins")
	}

	entries := map[string]string{"h1": "setuptools"}
	old := []dataset.Row{{Hash: "h1", UploadedOn: day(2015, 1, 1)}}
	if _, err := Build(old, entries, Options{}); err == nil {
		t.Error("expected an error when every upload predates the cutoff")
	}
}

func TestWriteCSV(t *testing.T) {
	entries := map[string]string{
		"h1": "setuptools",
		"h2": "setuptools",
		"h3": "poetry",
	}
	rows := rowsFor(map[string]time.Time{
		"h1": day(2021, 1, 1),
		"h2": day(2021, 1, 2),
		"h3": day(2021, 1, 3),
	})
	r, err := Build(rows, entries, Options{})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	var buf strings.Builder
	if err := r.WriteCSV(&buf); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("CSV has %d lines, want header and one bucket:\n%s", len(lines), buf.String())
	}
	if lines[0] != "bucket_start,setuptools,poetry,total" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != "2021-01-01,2,1,3" {
		t.Errorf("bucket line = %q", lines[1])
	}
}
