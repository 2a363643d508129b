// Command fs-obsloss reports on observation loss in a QoF-produced IPFIX file.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"FlowSpectra/internal/app"
	"FlowSpectra/internal/config"
	"FlowSpectra/internal/derive"
	"FlowSpectra/internal/report"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		app.Exit(err)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("fs-obsloss", flag.ContinueOnError)
	var opts config.Options
	config.RegisterInputFlags(fs, &opts)
	fs.IntVar(&opts.BinSize, "bin", 0, "also print a loss time series with bins of this many seconds")

	// 1. Parse flags and load configuration
	env, err := app.Parse(fs, &opts, args)
	if err != nil {
		return err
	}
	if opts.BinSize < 0 {
		return fmt.Errorf("bin size must not be negative, got %d", opts.BinSize)
	}
	ctx, stop := app.SignalContext()
	defer stop()

	// 2. Load the flows
	t, err := env.LoadInput(ctx, derive.ObsLossColumns)
	if err != nil {
		return err
	}

	// 3. Print the summary
	summary, _ := report.SummarizeLoss(t)
	fmt.Println(summary)
	if opts.BinSize == 0 {
		return nil
	}

	// 4. Print the series
	points, _, err := report.LossSeries(t, time.Duration(opts.BinSize)*time.Second)
	if err != nil {
		return err
	}
	fmt.Println()
	return report.WriteLossCSV(os.Stdout, points)
}
