// Package app holds the start-up and input plumbing shared by the fs-* commands.
package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"FlowSpectra/internal/config"
	"FlowSpectra/internal/derive"
	"FlowSpectra/internal/logging"
	"FlowSpectra/internal/metrics"
	"FlowSpectra/internal/source"
	"FlowSpectra/internal/table"
)

// Env is the resolved state of one command invocation.
type Env struct {
	Opts   *config.Options
	Config *config.Config
	Log    *logrus.Logger
	Dict   *source.Dictionary
}

// Parse parses args into fs and builds the environment. The options must have
// been registered on fs beforehand.
func Parse(fs *flag.FlagSet, o *config.Options, args []string) (*Env, error) {
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return New(o)
}

// New loads the configuration, the logger and the IE dictionary for o.
func New(o *config.Options) (*Env, error) {
	// 1. Load configuration
	cfg, err := o.Resolve()
	if err != nil {
		return nil, err
	}

	// 2. Set up logging
	log, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	// 3. Build the information element dictionary
	dict, err := source.NewDictionary(cfg.Source.SpecFiles...)
	if err != nil {
		return nil, fmt.Errorf("failed to load IE specs: %w", err)
	}
	log.WithField("elements", dict.Len()).Debug("Dictionary loaded")

	return &Env{Opts: o, Config: cfg, Log: log, Dict: dict}, nil
}

// DeriveOptions returns the network prefix lengths of the configuration.
func (e *Env) DeriveOptions() derive.Options {
	return derive.Options{
		IPv4PrefixLen: e.Config.Network.IPv4PrefixLen,
		IPv6PrefixLen: e.Config.Network.IPv6PrefixLen,
	}
}

// Reader wraps r in an IPFIX record reader.
func (e *Env) Reader(ctx context.Context, r io.Reader) (*source.Reader, error) {
	return source.NewReader(ctx, r, e.Dict, e.Config.Source.OmitRFC5610, e.Log)
}

// OpenInput opens the input file of the options, or stdin.
func (e *Env) OpenInput() (io.ReadCloser, error) {
	in, err := source.Open(e.Opts.File, e.Opts.Bzip2)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	return in, nil
}

// LoadInput reads the whole input into a table with the given schema.
func (e *Env) LoadInput(ctx context.Context, names []string) (*table.Table, error) {
	in, err := e.OpenInput()
	if err != nil {
		return nil, err
	}
	defer in.Close()

	rd, err := e.Reader(ctx, in)
	if err != nil {
		return nil, err
	}
	t, stats, err := table.Load(ctx, rd, names)
	e.Loaded(stats)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Loaded records the outcome of a load in the log and the metrics.
func (e *Env) Loaded(stats table.Stats) {
	metrics.RecordsSkipped.Add(float64(stats.Skipped))
	e.Log.WithFields(logrus.Fields{
		"loaded":  stats.Loaded,
		"skipped": stats.Skipped,
	}).Info("Input loaded")
}

// SignalContext returns a context cancelled by SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// Exit prints err and terminates the process. Flag errors have already been
// reported by the flag package.
func Exit(err error) {
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if errors.Is(err, config.ErrUnsupportedTransport) {
		// reported as a sentence: "Unsupported transport udp; must be 'tcp'"
		msg := err.Error()
		fmt.Fprintln(os.Stderr, strings.ToUpper(msg[:1])+msg[1:])
		os.Exit(2)
	}
	fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[0], err)
	os.Exit(1)
}
