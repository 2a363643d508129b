// Package writer persists exported flow tables. Writers are created by type
// name from the exporter configuration.
package writer

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"FlowSpectra/internal/config"
	"FlowSpectra/internal/metrics"
	"FlowSpectra/internal/model"
)

// Factory builds a writer from its configuration entry.
type Factory func(def config.WriterDef, log logrus.FieldLogger) (model.Writer, error)

// registry holds the mapping of writer types to their factory functions.
var registry = make(map[string]Factory)

func init() {
	Register("gob", newGob)
	Register("csv", newCSV)
	Register("clickhouse", newClickHouse)
	Register("nats", newNATS)
}

// Register registers a new writer type with its factory function.
func Register(name string, factory Factory) {
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("writer type '%s' already registered", name))
	}
	registry[name] = factory
}

// Create builds the enabled writers of defs in order. On error the writers
// created so far are closed.
func Create(defs []config.WriterDef, log logrus.FieldLogger) ([]model.Writer, error) {
	var writers []model.Writer
	for _, def := range defs {
		if !def.Enabled {
			continue
		}
		factory, ok := registry[def.Type]
		if !ok {
			closeAll(writers)
			return nil, fmt.Errorf("unknown writer type: '%s'", def.Type)
		}
		w, err := factory(def, log.WithField("writer", def.Type))
		if err != nil {
			closeAll(writers)
			return nil, fmt.Errorf("error creating writer type '%s': %w", def.Type, err)
		}
		writers = append(writers, named{Writer: w, kind: def.Type})
	}
	return writers, nil
}

// named counts successful writes per writer type.
type named struct {
	model.Writer
	kind string
}

func (n named) Write(ctx context.Context, e model.Export) error {
	if err := n.Writer.Write(ctx, e); err != nil {
		return err
	}
	metrics.TablesWritten.WithLabelValues(n.kind).Inc()
	return nil
}

// WriteAll hands e to every writer and joins their errors.
func WriteAll(ctx context.Context, writers []model.Writer, e model.Export) error {
	var errs []error
	for _, w := range writers {
		if err := w.Write(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CloseAll closes every writer and joins their errors.
func CloseAll(writers []model.Writer) error {
	var errs []error
	for _, w := range writers {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func closeAll(writers []model.Writer) {
	_ = CloseAll(writers)
}
