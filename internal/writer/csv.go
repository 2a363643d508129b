package writer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"FlowSpectra/internal/config"
	"FlowSpectra/internal/model"
	"FlowSpectra/internal/table"
)

// CSVWriter writes each exported table to rootPath/<timestamp>/<name>.csv.
type CSVWriter struct {
	rootPath string
	log      logrus.FieldLogger
}

func newCSV(def config.WriterDef, log logrus.FieldLogger) (model.Writer, error) {
	if def.CSV.RootPath == "" {
		return nil, errors.New("csv writer requires root_path")
	}
	return NewCSVWriter(def.CSV.RootPath, log), nil
}

// NewCSVWriter creates a writer storing tables under rootPath.
func NewCSVWriter(rootPath string, log logrus.FieldLogger) *CSVWriter {
	return &CSVWriter{rootPath: rootPath, log: log}
}

func (w *CSVWriter) Write(_ context.Context, e model.Export) error {
	dir := filepath.Join(w.rootPath, e.Timestamp.UTC().Format(timestampDirLayout))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}
	path := filepath.Join(dir, e.Name+".csv")
	if err := writeFile(path, func(f *os.File) error { return WriteCSV(f, e.Table) }); err != nil {
		return fmt.Errorf("failed to write csv table: %w", err)
	}
	w.log.WithFields(logrus.Fields{"file": path, "rows": e.Table.Len()}).Info("Wrote csv table")
	return nil
}

// Close is a no-op.
func (w *CSVWriter) Close() error { return nil }

// WriteCSV writes t with a header line of column names.
func WriteCSV(out io.Writer, t *table.Table) error {
	return writeCSV(out, t, true)
}

// CSVStream writes consecutive tables of the same schema to one output. Only
// the first table is preceded by a header line.
type CSVStream struct {
	out    io.Writer
	header bool
}

// NewCSVStream creates a stream writing to out.
func NewCSVStream(out io.Writer) *CSVStream {
	return &CSVStream{out: out}
}

// Write appends the rows of t.
func (s *CSVStream) Write(t *table.Table) error {
	if err := writeCSV(s.out, t, !s.header); err != nil {
		return err
	}
	s.header = true
	return nil
}

func writeCSV(out io.Writer, t *table.Table, header bool) error {
	cw := csv.NewWriter(out)
	cols := t.Columns()
	if header {
		if err := cw.Write(cols); err != nil {
			return err
		}
	}
	rec := make([]string, len(cols))
	for r := 0; r < t.Len(); r++ {
		for i, v := range t.Row(r) {
			rec[i] = formatCell(v)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
