package writer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"FlowSpectra/internal/config"
	"FlowSpectra/internal/model"
	"FlowSpectra/internal/table"
)

const flushTimeout = 10 * time.Second

// NATSWriter publishes every row of an exported table as a JSON object on
// <subject>.<name>.
type NATSWriter struct {
	nc      *nats.Conn
	subject string
	log     logrus.FieldLogger
}

func newNATS(def config.WriterDef, log logrus.FieldLogger) (model.Writer, error) {
	if def.NATS.Subject == "" {
		return nil, errors.New("nats writer requires subject")
	}
	url := def.NATS.URL
	if url == "" {
		url = nats.DefaultURL
	}
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	log.WithField("url", url).Info("Connected to NATS server")
	return NewNATSWriter(nc, def.NATS.Subject, log), nil
}

// NewNATSWriter creates a writer publishing on an existing connection.
func NewNATSWriter(nc *nats.Conn, subject string, log logrus.FieldLogger) *NATSWriter {
	return &NATSWriter{nc: nc, subject: subject, log: log}
}

// Write publishes the rows of e and flushes the connection.
func (w *NATSWriter) Write(ctx context.Context, e model.Export) error {
	subject := w.subject + "." + e.Name
	for r := 0; r < e.Table.Len(); r++ {
		data, err := json.Marshal(rowObject(e.Table, r))
		if err != nil {
			return fmt.Errorf("failed to encode row %d: %w", r, err)
		}
		if err := w.nc.Publish(subject, data); err != nil {
			return fmt.Errorf("failed to publish row %d: %w", r, err)
		}
	}
	fctx, cancel := context.WithTimeout(ctx, flushTimeout)
	defer cancel()
	if err := w.nc.FlushWithContext(fctx); err != nil {
		return fmt.Errorf("failed to flush nats connection: %w", err)
	}
	w.log.WithFields(logrus.Fields{"subject": subject, "rows": e.Table.Len()}).Info("Published rows")
	return nil
}

// Close drains and closes the NATS connection.
func (w *NATSWriter) Close() error {
	return w.nc.Drain()
}

// rowObject maps column names to JSON-friendly cell values. Missing cells are omitted.
func rowObject(t *table.Table, r int) map[string]any {
	cols := t.Columns()
	row := t.Row(r)
	obj := make(map[string]any, len(cols))
	for i, c := range cols {
		v := row[i]
		if v == nil {
			continue
		}
		obj[c] = jsonCell(v)
	}
	return obj
}
