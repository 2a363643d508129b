package table

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// RecordSource supplies decoded flow records one at a time.
// Read returns io.EOF once the source is exhausted.
type RecordSource interface {
	Read(ctx context.Context) (Record, error)
}

// Stats counts what a load kept and what it skipped.
type Stats struct {
	Loaded  int
	Skipped int
}

// project returns the record's values in schema order, or false if any is missing.
func project(rec Record, names []string, row []any) bool {
	for i, n := range names {
		v, ok := rec[n]
		if !ok || v == nil {
			return false
		}
		row[i] = v
	}
	return true
}

// Load reads every record from src into a table with the given schema. Records
// that do not carry all of the requested attributes are skipped without error.
func Load(ctx context.Context, src RecordSource, names []string) (*Table, Stats, error) {
	var stats Stats
	if len(names) == 0 {
		return nil, stats, ErrNoColumns
	}
	t := New(names...)
	names = t.names
	row := make([]any, len(names))
	for {
		rec, err := src.Read(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return t, stats, nil
			}
			return t, stats, fmt.Errorf("failed to read flow record: %w", err)
		}
		if !project(rec, names, row) {
			stats.Skipped++
			continue
		}
		_ = t.Append(row...)
		stats.Loaded++
	}
}

// LoadChunks reads records from src in bounded-size tables of at most size rows and
// hands each one to fn before reading further. The final partial chunk is emitted if
// it holds any rows; an empty source emits nothing. The returned stats cover all chunks.
func LoadChunks(ctx context.Context, src RecordSource, names []string, size int, fn func(*Table) error) (Stats, error) {
	var stats Stats
	if len(names) == 0 {
		return stats, ErrNoColumns
	}
	if size <= 0 {
		return stats, fmt.Errorf("chunk size must be positive, got %d", size)
	}

	t := New(names...)
	names = t.names
	row := make([]any, len(names))
	for {
		rec, err := src.Read(ctx)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return stats, fmt.Errorf("failed to read flow record: %w", err)
			}
			if t.Len() > 0 {
				if err := fn(t); err != nil {
					return stats, err
				}
			}
			return stats, nil
		}
		if !project(rec, names, row) {
			stats.Skipped++
			continue
		}
		_ = t.Append(row...)
		stats.Loaded++
		if t.Len() == size {
			if err := fn(t); err != nil {
				return stats, err
			}
			t = New(names...)
		}
	}
}

// SliceSource serves records from memory. It is mainly useful in tests and for
// re-processing already decoded records.
type SliceSource struct {
	Records []Record
	pos     int
}

// Read implements RecordSource.
func (s *SliceSource) Read(ctx context.Context) (Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.Records) {
		return nil, io.EOF
	}
	r := s.Records[s.pos]
	s.pos++
	return r, nil
}
