// Package query reads exported flow tables back from ClickHouse.
package query

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"FlowSpectra/internal/config"
	"FlowSpectra/internal/report"
	"FlowSpectra/internal/writer"
)

// ErrNotFound is returned when no stored table matches a request.
var ErrNotFound = errors.New("not found")

var identRegexp = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// TableSummary describes one stored export.
type TableSummary struct {
	Name     string    `json:"name"`
	Rows     uint64    `json:"rows"`
	Groups   uint64    `json:"groups"`
	LastSeen time.Time `json:"last_seen"`
}

// GroupSummary describes one flow group of a stored export.
type GroupSummary struct {
	ID        uint64    `json:"group_id"`
	Source    string    `json:"source"`
	Flows     uint64    `json:"flows"`
	Octets    uint64    `json:"octets"`
	Packets   uint64    `json:"packets"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// Querier defines the interface for querying stored flow tables.
type Querier interface {
	Tables(ctx context.Context) ([]TableSummary, error)
	Throughput(ctx context.Context, name string, bin time.Duration) ([]report.RatePoint, error)
	Groups(ctx context.Context, name string, limit int) ([]GroupSummary, error)
	Close() error
}

// clickhouseQuerier implements the Querier interface for ClickHouse.
type clickhouseQuerier struct {
	conn  driver.Conn
	table string
}

// NewClickHouseQuerier creates a new querier for ClickHouse.
func NewClickHouseQuerier(cfg config.ClickHouseConfig) (Querier, error) {
	name := cfg.Table
	if name == "" {
		name = writer.DefaultTable
	}
	if !identRegexp.MatchString(name) {
		return nil, fmt.Errorf("invalid clickhouse table name %q", name)
	}
	conn, err := writer.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	return &clickhouseQuerier{conn: conn, table: name}, nil
}

func (q *clickhouseQuerier) Close() error {
	return q.conn.Close()
}

// Tables lists the stored exports, most recent first.
func (q *clickhouseQuerier) Tables(ctx context.Context) ([]TableSummary, error) {
	query := `
		SELECT
			TableName,
			count() AS Rows,
			ifNull(max(GroupId), 0) AS Groups,
			max(Timestamp) AS LastSeen
		FROM ` + q.table + `
		GROUP BY TableName
		ORDER BY LastSeen DESC`

	rows, err := q.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var out []TableSummary
	for rows.Next() {
		var s TableSummary
		if err := rows.Scan(&s.Name, &s.Rows, &s.Groups, &s.LastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan table summary: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// throughputQuery returns the statement binning flows of one table by end time.
func throughputQuery(table string, bin time.Duration) (string, error) {
	secs := int64(bin / time.Second)
	if secs <= 0 || bin%time.Second != 0 {
		return "", fmt.Errorf("bin size must be a positive number of seconds, got %s", bin)
	}
	var b strings.Builder
	fmt.Fprintf(&b, `
		SELECT
			toStartOfInterval(assumeNotNull(FlowEnd), INTERVAL %d SECOND) AS Bin,
			sum(Octets + ReverseOctets) * 8 / %d AS BPS,
			sum(Packets + ReversePackets) / %d AS PPS
		FROM %s
		WHERE TableName = ? AND FlowEnd IS NOT NULL
		GROUP BY Bin
		ORDER BY Bin WITH FILL STEP INTERVAL %d SECOND`, secs, secs, secs, table, secs)
	return b.String(), nil
}

// Throughput resamples a stored table into bps/pps bins by flow end time.
func (q *clickhouseQuerier) Throughput(ctx context.Context, name string, bin time.Duration) ([]report.RatePoint, error) {
	query, err := throughputQuery(q.table, bin)
	if err != nil {
		return nil, err
	}
	rows, err := q.conn.Query(ctx, query, name)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var out []report.RatePoint
	for rows.Next() {
		var p report.RatePoint
		if err := rows.Scan(&p.Start, &p.BPS, &p.PPS); err != nil {
			return nil, fmt.Errorf("failed to scan throughput bin: %w", err)
		}
		p.Start = p.Start.UTC()
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: table %s", ErrNotFound, name)
	}
	return out, nil
}

// Groups returns the flow groups of a stored table ordered by group id.
func (q *clickhouseQuerier) Groups(ctx context.Context, name string, limit int) ([]GroupSummary, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT
			assumeNotNull(GroupId) AS Id,
			ifNull(any(SourceAddress), '') AS Source,
			count() AS Flows,
			sum(Octets + ReverseOctets) AS Octets,
			sum(Packets + ReversePackets) AS Packets,
			ifNull(min(FlowStart), toDateTime64(0, 3)) AS FirstSeen,
			ifNull(max(FlowEnd), toDateTime64(0, 3)) AS LastSeen
		FROM ` + q.table + `
		WHERE TableName = ? AND GroupId IS NOT NULL
		GROUP BY Id
		ORDER BY Id
		LIMIT ?`

	rows, err := q.conn.Query(ctx, query, name, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var out []GroupSummary
	for rows.Next() {
		var g GroupSummary
		if err := rows.Scan(&g.ID, &g.Source, &g.Flows, &g.Octets, &g.Packets, &g.FirstSeen, &g.LastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan group summary: %w", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: groups of table %s", ErrNotFound, name)
	}
	return out, nil
}
