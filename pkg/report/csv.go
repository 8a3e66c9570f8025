package report

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"
)

// WriteCSV writes the bucket counts as CSV: one record per bucket, one
// column per label plus a total, so the numbers behind the charts stay
// inspectable without re-running the aggregation.
func (r *Report) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	header := make([]string, 0, len(r.Labels)+2)
	header = append(header, "bucket_start")
	header = append(header, r.Labels...)
	header = append(header, "total")
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, b := range r.Buckets {
		rec := make([]string, 0, len(header))
		rec = append(rec, b.Start.Format(time.DateOnly))
		for _, label := range r.Labels {
			rec = append(rec, strconv.Itoa(b.Counts[label]))
		}
		rec = append(rec, strconv.Itoa(b.Total))
		if err := cw.Write(rec); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
