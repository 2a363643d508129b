// Command fs-tcpopts reports on ECN and TCP option usage in a QoF-produced IPFIX file.
package main

import (
	"flag"
	"os"

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
	fs := flag.NewFlagSet("fs-tcpopts", flag.ContinueOnError)
	var opts config.Options
	config.RegisterInputFlags(fs, &opts)

	// 1. Parse flags and load configuration
	env, err := app.Parse(fs, &opts, args)
	if err != nil {
		return err
	}
	ctx, stop := app.SignalContext()
	defer stop()

	// 2. Load the flows
	t, err := env.LoadInput(ctx, derive.TCPOptionsColumns)
	if err != nil {
		return err
	}

	// 3. Print the report
	return report.TCPOptions(os.Stdout, t)
}
