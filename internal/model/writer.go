package model

import (
	"context"
	"time"

	"FlowSpectra/internal/table"
)

// Export is one named flow table handed to the writers.
type Export struct {
	// Name identifies the table, e.g. the input file or collector session.
	Name      string
	Timestamp time.Time
	Table     *table.Table
}

// Writer defines a generic interface for persisting flow tables.
type Writer interface {
	// Write persists the table of e. Writers must not modify it.
	Write(ctx context.Context, e Export) error

	// Close releases connections and flushes buffered output.
	Close() error
}
