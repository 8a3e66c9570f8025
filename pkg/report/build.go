// Package report joins the resolved backend map against the dataset and
// renders how backend share develops over time.
//
// The join, normalization and bucketing here are presentation logic. The
// stored map keeps full declared labels; this package decides how they
// are grouped and displayed.
package report

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/matzehuels/buildshift/pkg/backend"
	"github.com/matzehuels/buildshift/pkg/dataset"
)

// OtherLabel absorbs every normalized label outside the top ranks.
const OtherLabel = "other"

// Defaults for Options.
const (
	DefaultTop     = 4
	DefaultBinDays = 28
)

// DefaultMinDate cuts off the early years in which uploads are too
// sparse to bucket meaningfully.
var DefaultMinDate = time.Date(2018, time.January, 1, 0, 0, 0, 0, time.UTC)

// Options tune the aggregation.
type Options struct {
	Top     int       // labels kept before collapsing into other (default: 4)
	BinDays int       // bucket width in days (default: 28)
	MinDate time.Time // inclusive lower bound on upload dates (default: 2018-01-01)
}

// WithDefaults returns a copy of Options with zero values replaced by defaults.
func (o Options) WithDefaults() Options {
	opts := o
	if opts.Top <= 0 {
		opts.Top = DefaultTop
	}
	if opts.BinDays <= 0 {
		opts.BinDays = DefaultBinDays
	}
	if opts.MinDate.IsZero() {
		opts.MinDate = DefaultMinDate
	}
	return opts
}

// Bucket is one time window of uploads.
type Bucket struct {
	Start  time.Time // inclusive window start
	Counts map[string]int
	Total  int
}

// Percent returns label's share of the bucket in percent.
func (b Bucket) Percent(label string) float64 {
	if b.Total == 0 {
		return 0
	}
	return 100 * float64(b.Counts[label]) / float64(b.Total)
}

// LabelCount pairs a normalized label with its total uploads.
type LabelCount struct {
	Label string
	Count int
}

// Report is the bucketed view of backend share over time.
type Report struct {
	Labels  []string     // most frequent first, OtherLabel ranked like any other
	Totals  []LabelCount // every label over the full joined set, rank order
	Buckets []Bucket     // contiguous windows of BinDays, first anchored at Start
	Start   time.Time
	BinDays int
	Total   int // joined observations, counted before the date cutoff
}

// Build joins rows against entries and buckets the result.
//
// Which labels survive collapsing is decided over the full joined set,
// before the date cutoff, so a backend dominant only in the early years
// still claims its own rank. Rows whose hash has no entry are dropped.
func Build(rows []dataset.Row, entries map[string]string, opts Options) (*Report, error) {
	opts = opts.WithDefaults()

	type pair struct {
		date  time.Time
		label string
	}
	joined := make([]pair, 0, len(rows))
	for _, row := range rows {
		label, ok := entries[row.Hash]
		if !ok {
			continue
		}
		joined = append(joined, pair{date: row.UploadedOn, label: backend.Normalize(label)})
	}
	if len(joined) == 0 {
		return nil, errors.New("no dataset rows match resolved entries")
	}
	total := len(joined)

	freq := make(map[string]int)
	for _, p := range joined {
		freq[p.label]++
	}
	totals := make([]LabelCount, 0, len(freq))
	for _, label := range rankLabels(freq, len(freq)) {
		totals = append(totals, LabelCount{Label: label, Count: freq[label]})
	}
	top := make(map[string]bool, opts.Top)
	for _, label := range rankLabels(freq, opts.Top) {
		top[label] = true
	}

	kept := joined[:0]
	for _, p := range joined {
		if p.date.Before(opts.MinDate) {
			continue
		}
		if !top[p.label] {
			p.label = OtherLabel
		}
		kept = append(kept, p)
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("no uploads on or after %s", opts.MinDate.Format(time.DateOnly))
	}

	counts := make(map[string]int)
	start, end := kept[0].date, kept[0].date
	for _, p := range kept {
		counts[p.label]++
		if p.date.Before(start) {
			start = p.date
		}
		if p.date.After(end) {
			end = p.date
		}
	}

	buckets := make([]Bucket, bucketIndex(start, end, opts.BinDays)+1)
	for i := range buckets {
		buckets[i].Start = start.AddDate(0, 0, i*opts.BinDays)
		buckets[i].Counts = make(map[string]int)
	}
	for _, p := range kept {
		b := &buckets[bucketIndex(start, p.date, opts.BinDays)]
		b.Counts[p.label]++
		b.Total++
	}

	return &Report{
		Labels:  rankLabels(counts, len(counts)),
		Totals:  totals,
		Buckets: buckets,
		Start:   start,
		BinDays: opts.BinDays,
		Total:   total,
	}, nil
}

// bucketIndex maps a date to its window, with windows anchored at start.
// Dates are UTC midnights, so the day arithmetic is exact.
func bucketIndex(start, date time.Time, binDays int) int {
	return int(date.Sub(start).Hours()) / 24 / binDays
}

// rankLabels returns at most n labels ordered by frequency, most common
// first. Ties break alphabetically so the ranking is deterministic.
func rankLabels(freq map[string]int, n int) []string {
	labels := make([]string, 0, len(freq))
	for label := range freq {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		if freq[labels[i]] != freq[labels[j]] {
			return freq[labels[i]] > freq[labels[j]]
		}
		return labels[i] < labels[j]
	})
	if len(labels) > n {
		labels = labels[:n]
	}
	return labels
}
