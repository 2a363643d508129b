// Package chart renders report histograms and distributions to image files.
package chart

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"FlowSpectra/internal/report"
	"FlowSpectra/internal/stats"
)

// DefaultPattern names RTT spectrum images by day and time of day.
const DefaultPattern = "rtt_02150405.png"

var (
	width  = 8 * vg.Inch
	height = 6 * vg.Inch
	fill   = color.RGBA{R: 70, G: 110, B: 180, A: 255}
)

// Labels are the title and axis captions of a chart.
type Labels struct {
	Title string
	X     string
	Y     string
}

func newPlot(l Labels) *plot.Plot {
	p := plot.New()
	p.Title.Text = l.Title
	p.X.Label.Text = l.X
	p.Y.Label.Text = l.Y
	return p
}

// SaveHistogram draws h as bars over its fixed range and writes the image to
// path. The format follows the file extension.
func SaveHistogram(h *report.Histogram, l Labels, path string) error {
	if h == nil || len(h.Counts) == 0 {
		return errors.New("empty histogram")
	}
	bins := make([]plotter.HistogramBin, len(h.Counts))
	for i, c := range h.Counts {
		lo, hi := h.Edges(i)
		bins[i] = plotter.HistogramBin{Min: lo, Max: hi, Weight: c}
	}
	bars := &plotter.Histogram{
		Bins:      bins,
		Width:     h.Width(),
		FillColor: fill,
		LineStyle: plotter.DefaultLineStyle,
	}

	p := newPlot(l)
	p.Add(bars)
	p.X.Min = h.Lo
	p.X.Max = h.Hi
	p.Y.Min = 0
	if err := p.Save(width, height, path); err != nil {
		return fmt.Errorf("failed to save histogram %s: %w", path, err)
	}
	return nil
}

// SaveECDF draws the step function of e and writes the image to path.
func SaveECDF(e *stats.ECDF, l Labels, path string) error {
	xs, ys := e.Points()
	pts := make(plotter.XYs, len(xs))
	for i := range xs {
		pts[i].X = xs[i]
		pts[i].Y = ys[i]
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("failed to build ECDF line: %w", err)
	}
	line.StepStyle = plotter.PostStep
	line.Color = fill

	p := newPlot(l)
	p.Add(line, plotter.NewGrid())
	p.Y.Min = 0
	p.Y.Max = 1
	if err := p.Save(width, height, path); err != nil {
		return fmt.Errorf("failed to save ECDF %s: %w", path, err)
	}
	return nil
}

// FileName formats pattern (a time layout) with now and joins it to dir. When
// the file already exists a numeric suffix is added before the extension.
func FileName(dir, pattern string, now time.Time) string {
	name := filepath.Join(dir, now.Format(pattern))
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		if _, err := os.Stat(name); errors.Is(err, os.ErrNotExist) {
			return name
		}
		name = fmt.Sprintf("%s-%d%s", base, i, ext)
	}
}
