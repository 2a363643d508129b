// Command fs-export converts an IPFIX file or stream into flow tables and hands
// them to the configured writers.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"FlowSpectra/internal/app"
	"FlowSpectra/internal/config"
	"FlowSpectra/internal/derive"
	"FlowSpectra/internal/filter"
	"FlowSpectra/internal/group"
	"FlowSpectra/internal/model"
	"FlowSpectra/internal/source"
	"FlowSpectra/internal/table"
	"FlowSpectra/internal/writer"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		app.Exit(err)
	}
}

type exporter struct {
	env     *app.Env
	names   []string
	grouper *group.Grouper
	writers []model.Writer
	stdout  *writer.CSVStream

	name           string
	derive         bool
	dropLossy      bool
	dropIncomplete bool
	chunks         int
}

func run(args []string) error {
	fs := flag.NewFlagSet("fs-export", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: fs-export [flags] ie [ie ...]\n")
		fs.PrintDefaults()
	}
	var opts config.Options
	config.RegisterInputFlags(fs, &opts)
	config.RegisterCollectorFlags(fs, &opts)
	fs.IntVar(&opts.RotateRec, "rotate-rec", 0, "number of records per exported table (default source.chunk_size)")
	ex := &exporter{}
	fs.StringVar(&ex.name, "table", "", "name of the exported table (default input file name)")
	fs.StringVar(&ex.name, "t", "", "shorthand for -table")
	fs.BoolVar(&ex.derive, "derive", true, "add derived columns")
	fs.BoolVar(&ex.dropLossy, "drop-lossy", false, "drop flows with observation loss")
	fs.BoolVar(&ex.dropIncomplete, "drop-incomplete", false, "drop flows without complete handshake and FIN")
	var gf groupFlags
	gf.register(fs)

	// 1. Parse flags and load configuration
	env, err := app.Parse(fs, &opts, args)
	if err != nil {
		return err
	}
	ex.env = env
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("at least one IE name is required")
	}
	ex.names = fs.Args()

	// 2. Set up the grouper
	ex.grouper, err = gf.grouper(env.Config)
	if err != nil {
		return err
	}
	if ex.grouper != nil {
		ex.names = append(ex.names, ex.grouper.KeyFields...)
		ex.names = append(ex.names, ex.grouper.TimeField)
	}

	// 3. Create the writers
	ex.writers, err = writer.Create(env.Config.Exporter.Writers, env.Log)
	if err != nil {
		return err
	}
	defer func() {
		if err := writer.CloseAll(ex.writers); err != nil {
			env.Log.WithError(err).Error("Failed to close writers")
		}
	}()
	if len(ex.writers) == 0 {
		env.Log.Info("No writers enabled, writing CSV to stdout")
		ex.stdout = writer.NewCSVStream(os.Stdout)
	}

	ctx, stop := app.SignalContext()
	defer stop()

	// 4. Export the collected streams or the input file
	if opts.Collect != "" {
		if ex.name == "" {
			ex.name = "stream"
		}
		return env.Collect(ctx, ex.stream)
	}
	if ex.name == "" {
		ex.name = inputName(opts.File)
	}
	in, err := env.OpenInput()
	if err != nil {
		return err
	}
	defer in.Close()
	rd, err := env.Reader(ctx, in)
	if err != nil {
		return err
	}
	return ex.stream(ctx, rd)
}

// groupFlags holds the grouping flags. The timeout is given in whole seconds.
type groupFlags struct {
	enabled bool
	keys    string
	timeCol string
	timeout int
}

func (gf *groupFlags) register(fs *flag.FlagSet) {
	fs.BoolVar(&gf.enabled, "group", false, "group flows by key and timeout")
	fs.StringVar(&gf.keys, "key", "", "comma-separated grouping key columns (default grouping.key_column)")
	fs.StringVar(&gf.timeCol, "time", "", "grouping time column (default grouping.time_column)")
	fs.IntVar(&gf.timeout, "timeout", -1, "grouping timeout in seconds (default grouping.timeout)")
}

// grouper returns nil when grouping was not requested.
func (gf *groupFlags) grouper(cfg *config.Config) (*group.Grouper, error) {
	if !gf.enabled && gf.keys == "" {
		return nil, nil
	}
	timeout := time.Duration(-1)
	if gf.timeout >= 0 {
		timeout = time.Duration(gf.timeout) * time.Second
	}
	return newGrouper(cfg, gf.keys, gf.timeCol, timeout)
}

func newGrouper(cfg *config.Config, keys, timeCol string, timeout time.Duration) (*group.Grouper, error) {
	if keys == "" {
		keys = cfg.Grouping.KeyColumn
	}
	if timeCol == "" {
		timeCol = cfg.Grouping.TimeColumn
	}
	if timeout < 0 {
		d, err := cfg.GroupTimeout()
		if err != nil {
			return nil, err
		}
		timeout = d
	}
	return group.NewGrouper(timeout, timeCol, strings.Split(keys, ",")...)
}

func inputName(file string) string {
	if file == "" || file == "-" {
		return "stdin"
	}
	base := filepath.Base(file)
	for ext := filepath.Ext(base); ext != ""; ext = filepath.Ext(base) {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}

func (ex *exporter) stream(ctx context.Context, rd *source.Reader) error {
	st, err := table.LoadChunks(ctx, rd, ex.names, ex.env.Config.Source.ChunkSize, func(t *table.Table) error {
		return ex.export(ctx, t)
	})
	ex.env.Loaded(st)
	return err
}

// export transforms one chunk and writes it. Chunks after the first get a
// numeric suffix.
func (ex *exporter) export(ctx context.Context, t *table.Table) error {
	if ex.dropLossy {
		filter.DropLossy(t)
	}
	if ex.dropIncomplete {
		filter.DropIncomplete(t)
	}
	if ex.derive {
		added := derive.Apply(t, ex.env.DeriveOptions())
		ex.env.Log.WithField("columns", added).Debug("Derived columns")
	}
	if ex.grouper != nil {
		g, err := ex.grouper.Group(t)
		if err != nil {
			return fmt.Errorf("failed to group flows: %w", err)
		}
		t = g
	}

	name := ex.name
	if ex.chunks > 0 {
		name = fmt.Sprintf("%s-%d", ex.name, ex.chunks)
	}
	ex.chunks++

	if ex.stdout != nil {
		return ex.stdout.Write(t)
	}
	ex.env.Log.WithFields(logrus.Fields{"table": name, "rows": t.Len()}).Info("Exporting table")
	return writer.WriteAll(ctx, ex.writers, model.Export{Name: name, Timestamp: time.Now(), Table: t})
}
