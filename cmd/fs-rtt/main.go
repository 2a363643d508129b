// Command fs-rtt plots minimum RTT spectra of a QoF-produced IPFIX file or of
// IPFIX streams received over TCP. One PNG is written per chunk of records.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"FlowSpectra/internal/app"
	"FlowSpectra/internal/chart"
	"FlowSpectra/internal/config"
	"FlowSpectra/internal/derive"
	"FlowSpectra/internal/report"
	"FlowSpectra/internal/source"
	"FlowSpectra/internal/stats"
	"FlowSpectra/internal/table"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		app.Exit(err)
	}
}

type rttPlotter struct {
	env  *app.Env
	ecdf bool
	trim bool
}

func run(args []string) error {
	fs := flag.NewFlagSet("fs-rtt", flag.ContinueOnError)
	var opts config.Options
	config.RegisterInputFlags(fs, &opts)
	config.RegisterCollectorFlags(fs, &opts)
	fs.IntVar(&opts.RotateRec, "rotate-rec", 0, "number of records per output file (default source.chunk_size)")
	fs.StringVar(&opts.OutDir, "out", ".", "write PNG files to directory")
	p := &rttPlotter{}
	fs.BoolVar(&p.ecdf, "ecdf", false, "also plot the RTT distribution function of each chunk")
	fs.BoolVar(&p.trim, "trim", false, "drop RTT outliers beyond 1.5 IQR before plotting")

	// 1. Parse flags and load configuration
	env, err := app.Parse(fs, &opts, args)
	if err != nil {
		return err
	}
	p.env = env
	if err := os.MkdirAll(opts.OutDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	ctx, stop := app.SignalContext()
	defer stop()

	// 2. Run as collector if requested
	if opts.Collect != "" {
		return env.Collect(ctx, p.stream)
	}

	// 3. Otherwise plot the input file
	in, err := env.OpenInput()
	if err != nil {
		return err
	}
	defer in.Close()
	rd, err := env.Reader(ctx, in)
	if err != nil {
		return err
	}
	return p.stream(ctx, rd)
}

func (p *rttPlotter) schema() []string {
	cfg := p.env.Config.Spectrum
	names := append([]string{}, derive.RTTSpectrumColumns...)
	names = append(names, cfg.Column)
	return append(names, cfg.WeightColumns...)
}

// stream plots every chunk of rd.
func (p *rttPlotter) stream(ctx context.Context, rd *source.Reader) error {
	st, err := table.LoadChunks(ctx, rd, p.schema(), p.env.Config.Source.ChunkSize, p.plot)
	p.env.Loaded(st)
	return err
}

func (p *rttPlotter) plot(t *table.Table) error {
	cfg := p.env.Config.Spectrum
	if p.trim {
		n := trimColumn(t, cfg.Column)
		p.env.Log.WithField("flows", n).Debug("Trimmed RTT outliers")
	}

	h, ok, err := report.SpectrumOf(t, cfg.Column, cfg.WeightColumns, cfg.Bins, cfg.Min, cfg.Max)
	if err != nil {
		return err
	}
	if !ok {
		p.env.Log.WithField("column", cfg.Column).Warn("Chunk lacks spectrum columns, skipping")
		return nil
	}

	path := chart.FileName(p.env.Opts.OutDir, cfg.FilePattern, time.Now())
	labels := chart.Labels{Title: "RTT spectrum", X: cfg.Column, Y: "packets"}
	if err := chart.SaveHistogram(h, labels, path); err != nil {
		return err
	}
	p.env.Log.WithFields(logrus.Fields{"file": path, "flows": t.Len()}).Info("Wrote RTT spectrum")

	if !p.ecdf {
		return nil
	}
	e, err := stats.NewECDF(columnFloats(t, cfg.Column))
	if err != nil {
		p.env.Log.WithError(err).Warn("No RTT samples for ECDF")
		return nil
	}
	ext := filepath.Ext(path)
	ecdfPath := strings.TrimSuffix(path, ext) + "_ecdf" + ext
	return chart.SaveECDF(e, chart.Labels{Title: "RTT distribution", X: cfg.Column, Y: "fraction of flows"}, ecdfPath)
}

func columnFloats(t *table.Table, col string) []float64 {
	vals, _ := t.Column(col)
	out := make([]float64, len(vals))
	for i, v := range vals {
		f, ok := table.Float(v)
		if !ok {
			f = math.NaN()
		}
		out[i] = f
	}
	return out
}

// trimColumn removes rows whose col value lies outside the Tukey fences.
func trimColumn(t *table.Table, col string) int {
	values := columnFloats(t, col)
	lo, hi, err := stats.Fences(values)
	if err != nil {
		return 0
	}
	return t.Filter(func(r int) bool { return values[r] >= lo && values[r] <= hi })
}
