package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/matzehuels/buildshift/internal/config"
	"github.com/matzehuels/buildshift/pkg/dataset"
	"github.com/matzehuels/buildshift/pkg/report"
)

// pngScale is the rasterization factor for chart PNG exports.
const pngScale = 2.0

// newAnalyzeCmd creates the analyze command, the subcommand spelling of
// --analyze.
func newAnalyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze",
		Short: "Aggregate resolved backends into charts",
		Long: `Analyze joins the dataset against the cached resolutions, buckets the
uploads over time, and writes the relative and absolute distribution
charts plus a per-bucket CSV into the output directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context(), configFromContext(cmd.Context()))
		},
	}
}

// runAnalyze builds the report and writes every artifact.
func runAnalyze(ctx context.Context, cfg config.Config) error {
	logger := loggerFromContext(ctx)
	prog := newProgress(logger)

	rows, err := dataset.NewLoader(cfg.Data.Dir, cfg.Data.Snapshot,
		dataset.WithLogger(logger.Debugf)).Load(ctx)
	if err != nil {
		return err
	}

	store, err := newStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.Load(ctx)
	if err != nil {
		return err
	}
	logger.Infof("Joining %d uploads against %d resolved hashes", len(rows), len(entries))

	rep, err := report.Build(rows, entries, report.Options{
		Top:     cfg.Report.Top,
		BinDays: cfg.Report.BinDays,
		MinDate: cfg.Report.MinDateTime(),
	})
	if err != nil {
		return err
	}

	printSummary(rep)

	if err := os.MkdirAll(cfg.Report.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := writeArtifacts(rep, cfg.Report.OutputDir, cfg.Report.PNG); err != nil {
		return err
	}

	prog.done(fmt.Sprintf("Analyzed %d uploads", rep.Total))
	return nil
}

// printSummary mirrors the chart ranking on stdout: total joined uploads and
// the per-backend counts over the full joined range.
func printSummary(rep *report.Report) {
	printNewline()
	fmt.Println(StyleTitle.Render(fmt.Sprintf("%d uploads with resolved backends", rep.Total)))
	rows := make([][]string, 0, len(rep.Totals))
	for _, lc := range rep.Totals {
		share := 100 * float64(lc.Count) / float64(rep.Total)
		rows = append(rows, []string{lc.Label, strconv.Itoa(lc.Count), fmt.Sprintf("%.1f%%", share)})
	}
	fmt.Println(labelTable([]string{"BACKEND", "UPLOADS", "SHARE"}, rows))
}

// writeArtifacts renders both charts and the per-bucket counts into
// outputDir. PNG conversion failures degrade to a warning so hosts without
// librsvg still get the SVGs.
func writeArtifacts(rep *report.Report, outputDir string, png bool) error {
	relative := report.RenderRelative(rep)
	absolute := report.RenderAbsolute(rep)

	var csvBuf bytes.Buffer
	if err := rep.WriteCSV(&csvBuf); err != nil {
		return err
	}

	artifacts := []struct {
		name string
		data []byte
	}{
		{"relative.svg", relative},
		{"absolute.svg", absolute},
		{"counts.csv", csvBuf.Bytes()},
	}
	for _, a := range artifacts {
		if err := writeArtifact(filepath.Join(outputDir, a.name), a.data); err != nil {
			return err
		}
	}

	if !png {
		return nil
	}
	exports := []struct {
		name string
		svg  []byte
	}{
		{"relative.png", relative},
		{"absolute.png", absolute},
	}
	for _, e := range exports {
		data, err := report.ToPNG(e.svg, pngScale)
		if err != nil {
			printWarning("Skipping %s: %v", e.name, err)
			continue
		}
		if err := writeArtifact(filepath.Join(outputDir, e.name), data); err != nil {
			return err
		}
	}
	return nil
}

func writeArtifact(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	printFile(path)
	return nil
}
