package writer

import (
	"context"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"FlowSpectra/internal/config"
	"FlowSpectra/internal/group"
	"FlowSpectra/internal/model"
	"FlowSpectra/internal/table"
)

func init() {
	// Register the concrete cell types for gob encoding/decoding.
	gob.Register(time.Time{})
	gob.Register(netip.Addr{})
	gob.Register(netip.Prefix{})
}

// tableFile is the on-disk form of a table.
type tableFile struct {
	Columns []string
	Rows    [][]any
}

// SummaryData holds the metadata of one exported table.
type SummaryData struct {
	Name      string   `json:"name"`
	Rows      int      `json:"rows"`
	Columns   []string `json:"columns"`
	Groups    uint64   `json:"groups,omitempty"`
	Timestamp string   `json:"timestamp"`
}

// GobWriter writes each exported table to disk in gob format next to a
// summary.json file.
type GobWriter struct {
	rootPath string
	log      logrus.FieldLogger
}

func newGob(def config.WriterDef, log logrus.FieldLogger) (model.Writer, error) {
	if def.Gob.RootPath == "" {
		return nil, errors.New("gob writer requires root_path")
	}
	return NewGobWriter(def.Gob.RootPath, log), nil
}

// NewGobWriter creates a writer storing tables under rootPath.
func NewGobWriter(rootPath string, log logrus.FieldLogger) *GobWriter {
	return &GobWriter{rootPath: rootPath, log: log}
}

// Write stores e under rootPath/<timestamp>/<name>.
func (w *GobWriter) Write(_ context.Context, e model.Export) error {
	// 1. Create timestamped directory
	dir := filepath.Join(w.rootPath, e.Timestamp.UTC().Format(timestampDirLayout), e.Name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	// 2. Encode the table
	tf := tableFile{Columns: e.Table.Columns(), Rows: make([][]any, e.Table.Len())}
	for r := range tf.Rows {
		tf.Rows[r] = e.Table.Row(r)
	}
	if err := writeFile(filepath.Join(dir, "table.gob"), func(f *os.File) error {
		return gob.NewEncoder(f).Encode(tf)
	}); err != nil {
		return fmt.Errorf("failed to encode table to gob: %w", err)
	}

	// 3. Write the summary
	summary := SummaryData{
		Name:      e.Name,
		Rows:      e.Table.Len(),
		Columns:   tf.Columns,
		Groups:    groupCount(e.Table),
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
	}
	if err := writeFile(filepath.Join(dir, "summary.json"), func(f *os.File) error {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}); err != nil {
		return fmt.Errorf("failed to encode summary to json: %w", err)
	}

	w.log.WithFields(logrus.Fields{"dir": dir, "rows": summary.Rows}).Info("Wrote gob table")
	return nil
}

// Close is a no-op.
func (w *GobWriter) Close() error { return nil }

// ReadGob loads a table written by GobWriter.
func ReadGob(path string) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var tf tableFile
	if err := gob.NewDecoder(f).Decode(&tf); err != nil {
		return nil, fmt.Errorf("failed to decode gob table '%s': %w", path, err)
	}
	t := table.New(tf.Columns...)
	for _, row := range tf.Rows {
		if err := t.Append(row...); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func writeFile(path string, encode func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file '%s': %w", path, err)
	}
	if err := encode(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// groupCount returns the highest group id of a grouped table, 0 otherwise.
func groupCount(t *table.Table) uint64 {
	ids, ok := t.Column(group.ColGroupID)
	if !ok {
		return 0
	}
	var n uint64
	for _, v := range ids {
		if id, ok := table.Uint(v); ok && id > n {
			n = id
		}
	}
	return n
}
