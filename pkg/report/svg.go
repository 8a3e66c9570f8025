package report

import (
	"bytes"
	"encoding/xml"
	"fmt"
)

const (
	relativeWidth = 1200.0
	absoluteWidth = 1900.0
	chartHeight   = 600.0

	marginLeft   = 70.0
	marginTop    = 60.0
	marginBottom = 70.0
	legendWidth  = 170.0
	facetGap     = 30.0
	facetMargin  = 30.0

	fontFamily = "'Helvetica Neue', Arial, sans-serif"
)

// palette holds the colorblind-safe hues, assigned to labels by rank.
var palette = []string{
	"#0173B2", "#DE8F05", "#029E73", "#D55E00", "#CC78BC",
	"#CA9161", "#FBAFE4", "#949494", "#ECE133", "#56B4E9",
}

func colorFor(rank int) string { return palette[rank%len(palette)] }

type plotArea struct {
	x, y, w, h float64
}

// RenderRelative renders the share chart as a standalone SVG document.
// Every bucket column is stacked to 100%, so shifts in share stay
// readable even as total upload volume grows by orders of magnitude.
func RenderRelative(r *Report) []byte {
	var buf bytes.Buffer
	openSVG(&buf, relativeWidth, chartHeight)
	renderTitle(&buf, relativeWidth/2, fmt.Sprintf(
		"Relative distribution of build backends over time. (bin width=%d days, n=%.1e uploads)",
		r.BinDays, float64(r.Total)))

	plot := plotArea{
		x: marginLeft,
		y: marginTop,
		w: relativeWidth - marginLeft - legendWidth,
		h: chartHeight - marginTop - marginBottom,
	}
	renderPercentTicks(&buf, plot)

	colWidth := plot.w / float64(len(r.Buckets))
	for i, b := range r.Buckets {
		if b.Total == 0 {
			continue
		}
		x := plot.x + float64(i)*colWidth
		y := plot.y + plot.h
		for rank, label := range r.Labels {
			count := b.Counts[label]
			if count == 0 {
				continue
			}
			h := plot.h * float64(count) / float64(b.Total)
			y -= h
			fmt.Fprintf(&buf, `  <rect x="%.2f" y="%.2f" width="%.2f" height="%.2f" fill="%s"/>`+"\n",
				x, y, colWidth, h, colorFor(rank))
		}
	}

	renderDateTicks(&buf, plot, r.Buckets, 8)
	renderFrame(&buf, plot)
	renderLegend(&buf, r.Labels, plot.x+plot.w+24, plot.y+10)
	renderAxisTitles(&buf, plot)

	buf.WriteString("</svg>\n")
	return buf.Bytes()
}

// RenderAbsolute renders one facet per label, sharing x and y scales, so
// raw upload counts are comparable across backends.
func RenderAbsolute(r *Report) []byte {
	var buf bytes.Buffer
	openSVG(&buf, absoluteWidth, chartHeight)
	renderTitle(&buf, absoluteWidth/2, fmt.Sprintf(
		"Absolute distribution of build backends over time. (bin width=%d days, n=%.1e uploads)",
		r.BinDays, float64(r.Total)))

	maxCount := 1
	for _, b := range r.Buckets {
		for _, label := range r.Labels {
			if c := b.Counts[label]; c > maxCount {
				maxCount = c
			}
		}
	}

	n := len(r.Labels)
	span := plotArea{
		x: marginLeft,
		y: marginTop,
		w: absoluteWidth - marginLeft - facetMargin,
		h: chartHeight - marginTop - marginBottom,
	}
	facetWidth := (span.w - facetGap*float64(n-1)) / float64(n)

	for rank, label := range r.Labels {
		facet := plotArea{
			x: span.x + float64(rank)*(facetWidth+facetGap),
			y: span.y,
			w: facetWidth,
			h: span.h,
		}

		fmt.Fprintf(&buf, `  <text x="%.1f" y="%.1f" text-anchor="middle" font-size="14" fill="#333">%s</text>`+"\n",
			facet.x+facet.w/2, facet.y-12, escapeXML(label))

		colWidth := facet.w / float64(len(r.Buckets))
		for i, b := range r.Buckets {
			count := b.Counts[label]
			if count == 0 {
				continue
			}
			h := facet.h * float64(count) / float64(maxCount)
			fmt.Fprintf(&buf, `  <rect x="%.2f" y="%.2f" width="%.2f" height="%.2f" fill="%s"/>`+"\n",
				facet.x+float64(i)*colWidth, facet.y+facet.h-h, colWidth, h, colorFor(rank))
		}

		// The leftmost facet carries the count labels for the shared scale.
		renderCountTicks(&buf, facet, maxCount, rank == 0)
		renderDateTicks(&buf, facet, r.Buckets, 3)
		renderFrame(&buf, facet)
	}

	renderAxisTitles(&buf, span)
	buf.WriteString("</svg>\n")
	return buf.Bytes()
}

func openSVG(buf *bytes.Buffer, w, h float64) {
	fmt.Fprintf(buf, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.0f %.0f" width="%.0f" height="%.0f" font-family="%s">`+"\n",
		w, h, w, h, fontFamily)
	buf.WriteString(`  <rect width="100%" height="100%" fill="white"/>` + "\n")
}

func renderTitle(buf *bytes.Buffer, centerX float64, title string) {
	fmt.Fprintf(buf, `  <text x="%.1f" y="32" text-anchor="middle" font-size="18" fill="#333">%s</text>`+"\n",
		centerX, escapeXML(title))
}

func renderFrame(buf *bytes.Buffer, p plotArea) {
	fmt.Fprintf(buf, `  <rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="none" stroke="#999" stroke-width="1"/>`+"\n",
		p.x, p.y, p.w, p.h)
}

func renderPercentTicks(buf *bytes.Buffer, p plotArea) {
	for pct := 0; pct <= 100; pct += 20 {
		y := p.y + p.h*(1-float64(pct)/100)
		fmt.Fprintf(buf, `  <line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="#ddd" stroke-width="1"/>`+"\n",
			p.x, y, p.x+p.w, y)
		fmt.Fprintf(buf, `  <text x="%.1f" y="%.1f" text-anchor="end" font-size="12" fill="#666">%d%%</text>`+"\n",
			p.x-8, y+4, pct)
	}
}

func renderCountTicks(buf *bytes.Buffer, p plotArea, maxCount int, labeled bool) {
	for i := 0; i <= 4; i++ {
		count := maxCount * i / 4
		y := p.y + p.h*(1-float64(i)/4)
		fmt.Fprintf(buf, `  <line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="#ddd" stroke-width="1"/>`+"\n",
			p.x, y, p.x+p.w, y)
		if labeled {
			fmt.Fprintf(buf, `  <text x="%.1f" y="%.1f" text-anchor="end" font-size="12" fill="#666">%d</text>`+"\n",
				p.x-8, y+4, count)
		}
	}
}

func renderDateTicks(buf *bytes.Buffer, p plotArea, buckets []Bucket, ticks int) {
	if len(buckets) == 0 {
		return
	}
	step := len(buckets) / ticks
	if step < 1 {
		step = 1
	}
	colWidth := p.w / float64(len(buckets))
	for i := 0; i < len(buckets); i += step {
		x := p.x + (float64(i)+0.5)*colWidth
		fmt.Fprintf(buf, `  <line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="#999" stroke-width="1"/>`+"\n",
			x, p.y+p.h, x, p.y+p.h+5)
		fmt.Fprintf(buf, `  <text x="%.1f" y="%.1f" text-anchor="middle" font-size="12" fill="#666">%s</text>`+"\n",
			x, p.y+p.h+20, buckets[i].Start.Format(dateTickFormat))
	}
}

const dateTickFormat = "2006-01"

func renderLegend(buf *bytes.Buffer, labels []string, x, y float64) {
	for rank, label := range labels {
		rowY := y + float64(rank)*22
		fmt.Fprintf(buf, `  <rect x="%.1f" y="%.1f" width="13" height="13" fill="%s"/>`+"\n",
			x, rowY, colorFor(rank))
		fmt.Fprintf(buf, `  <text x="%.1f" y="%.1f" font-size="13" fill="#333">%s</text>`+"\n",
			x+20, rowY+11, escapeXML(label))
	}
}

func renderAxisTitles(buf *bytes.Buffer, p plotArea) {
	fmt.Fprintf(buf, `  <text x="%.1f" y="%.1f" text-anchor="middle" font-size="14" fill="#333">Upload date</text>`+"\n",
		p.x+p.w/2, chartHeight-18)
	cy := p.y + p.h/2
	fmt.Fprintf(buf, `  <text x="22" y="%.1f" text-anchor="middle" font-size="14" fill="#333" transform="rotate(-90 22 %.1f)">Uploads</text>`+"\n",
		cy, cy)
}

func escapeXML(s string) string {
	var buf bytes.Buffer
	xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
