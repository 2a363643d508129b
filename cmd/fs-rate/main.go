// Command fs-rate prints time series of data and packet rates of a QoF-produced
// IPFIX file as CSV.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"FlowSpectra/internal/app"
	"FlowSpectra/internal/config"
	"FlowSpectra/internal/derive"
	"FlowSpectra/internal/filter"
	"FlowSpectra/internal/report"
	"FlowSpectra/internal/table"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		app.Exit(err)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("fs-rate", flag.ContinueOnError)
	var opts config.Options
	config.RegisterInputFlags(fs, &opts)
	fs.IntVar(&opts.BinSize, "bin", 300, "bin to use for time series resampling in seconds")
	fs.IntVar(&opts.BinSize, "b", 300, "shorthand for -bin")
	fs.BoolVar(&opts.Uniflow, "uniflow", false, "assume uniflow input")
	fs.BoolVar(&opts.Sequence, "sequence", false, "measure sequence numbers and TCP loss")
	fs.BoolVar(&opts.ObsLoss, "obsloss", false, "measure observation loss")
	dropLossy := fs.Bool("drop-lossy", false, "ignore flows with observation loss (requires -obsloss)")

	// 1. Parse flags and load configuration
	env, err := app.Parse(fs, &opts, args)
	if err != nil {
		return err
	}
	if opts.BinSize <= 0 {
		return fmt.Errorf("bin size must be positive, got %d", opts.BinSize)
	}
	if err := checkDropLossy(&opts, *dropLossy); err != nil {
		return err
	}
	ctx, stop := app.SignalContext()
	defer stop()

	// 2. Load the flows
	t, err := env.LoadInput(ctx, derive.RateColumns(opts.Uniflow, opts.Sequence, opts.ObsLoss))
	if err != nil {
		return err
	}
	if *dropLossy {
		dropLossyFlows(t, env.Log)
	}

	// 3. Resample and print
	points, _, err := report.Throughput(t, time.Duration(opts.BinSize)*time.Second)
	if err != nil {
		return err
	}
	return report.WriteThroughputCSV(os.Stdout, points)
}

// checkDropLossy rejects -drop-lossy unless both loss columns will be loaded.
func checkDropLossy(opts *config.Options, drop bool) error {
	if !drop {
		return nil
	}
	if !opts.ObsLoss {
		return errors.New("-drop-lossy requires -obsloss")
	}
	if opts.Uniflow {
		return fmt.Errorf("-drop-lossy needs %s, which -uniflow does not load", filter.ColReverseSequenceLoss)
	}
	return nil
}

// dropLossyFlows removes lossy flows and warns when the loss columns are absent.
func dropLossyFlows(t *table.Table, log logrus.FieldLogger) int {
	if _, ok := filter.Lossy(t); !ok {
		log.WithField("columns", []string{filter.ColSequenceLoss, filter.ColReverseSequenceLoss}).Warn("Loss columns missing, lossy flows kept")
		return 0
	}
	n := filter.DropLossy(t)
	log.WithField("flows", n).Info("Dropped lossy flows")
	return n
}
