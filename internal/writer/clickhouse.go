package writer

import (
	"context"
	"fmt"
	"net/netip"
	"regexp"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/sirupsen/logrus"

	"FlowSpectra/internal/config"
	"FlowSpectra/internal/group"
	"FlowSpectra/internal/model"
	"FlowSpectra/internal/table"
)

// DefaultTable is the ClickHouse table exports are stored in.
const DefaultTable = "flow_tables"

const createTableStatement = `
CREATE TABLE IF NOT EXISTS %s (
    Timestamp          DateTime,
    TableName          String,
    Row                UInt64,
    SourceAddress      Nullable(String),
    DestinationAddress Nullable(String),
    SourcePort         Nullable(UInt16),
    DestinationPort    Nullable(UInt16),
    Protocol           Nullable(UInt8),
    FlowStart          Nullable(DateTime64(3)),
    FlowEnd            Nullable(DateTime64(3)),
    Octets             UInt64,
    Packets            UInt64,
    ReverseOctets      UInt64,
    ReversePackets     UInt64,
    GroupId            Nullable(UInt64),
    GroupIndex         Nullable(UInt64),
    KeyIat             Nullable(Float64),
    GroupIat           Nullable(Float64),
    Extra              Map(String, String)
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY (TableName, Timestamp, Row);
`

var identRegexp = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Columns stored in dedicated ClickHouse columns. Every other table column
// goes into Extra as text.
var (
	sourceAddressCols      = []string{"sourceIPv4Address", "sourceIPv6Address"}
	destinationAddressCols = []string{"destinationIPv4Address", "destinationIPv6Address"}
	mappedCols             = map[string]bool{
		"sourceIPv4Address": true, "sourceIPv6Address": true,
		"destinationIPv4Address": true, "destinationIPv6Address": true,
		"sourceTransportPort": true, "destinationTransportPort": true,
		"protocolIdentifier": true, "flowStartMilliseconds": true, "flowEndMilliseconds": true,
		"octetDeltaCount": true, "packetDeltaCount": true,
		"reverseOctetDeltaCount": true, "reversePacketDeltaCount": true,
		group.ColGroupID: true, group.ColGroupIndex: true, group.ColKeyIAT: true, group.ColGroupIAT: true,
	}
)

// ClickHouseWriter inserts exported tables into a fixed-schema ClickHouse table.
type ClickHouseWriter struct {
	conn  driver.Conn
	table string
	log   logrus.FieldLogger
}

func newClickHouse(def config.WriterDef, log logrus.FieldLogger) (model.Writer, error) {
	return NewClickHouseWriter(def.ClickHouse, log)
}

// NewClickHouseWriter connects to ClickHouse and ensures the table exists.
func NewClickHouseWriter(cfg config.ClickHouseConfig, log logrus.FieldLogger) (*ClickHouseWriter, error) {
	name := cfg.Table
	if name == "" {
		name = DefaultTable
	}
	if !identRegexp.MatchString(name) {
		return nil, fmt.Errorf("invalid clickhouse table name %q", name)
	}

	conn, err := Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	if err := conn.Exec(context.Background(), fmt.Sprintf(createTableStatement, name)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	log.WithField("table", name).Info("Connected to ClickHouse and ensured table exists")

	return &ClickHouseWriter{conn: conn, table: name, log: log}, nil
}

// Connect opens and pings a ClickHouse connection.
func Connect(cfg config.ClickHouseConfig) (driver.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	return conn, nil
}

// Write inserts every row of e in one batch.
func (w *ClickHouseWriter) Write(ctx context.Context, e model.Export) error {
	if e.Table.Len() == 0 {
		return nil
	}
	batch, err := w.conn.PrepareBatch(ctx, "INSERT INTO "+w.table)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	extra := extraColumns(e.Table)
	ts := e.Timestamp.UTC().Truncate(time.Second)
	for r := 0; r < e.Table.Len(); r++ {
		if err := batch.Append(rowValues(e.Table, r, ts, e.Name, extra)...); err != nil {
			return fmt.Errorf("failed to append row to batch: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	w.log.WithFields(logrus.Fields{"table": e.Name, "rows": e.Table.Len()}).Info("Wrote rows to ClickHouse")
	return nil
}

// Close closes the connection.
func (w *ClickHouseWriter) Close() error {
	return w.conn.Close()
}

func extraColumns(t *table.Table) []string {
	var out []string
	for _, c := range t.Columns() {
		if !mappedCols[c] {
			out = append(out, c)
		}
	}
	return out
}

// rowValues returns the insert values of row r in schema order.
func rowValues(t *table.Table, r int, ts time.Time, name string, extra []string) []any {
	ex := make(map[string]string, len(extra))
	for _, c := range extra {
		if v, _ := t.Value(c, r); v != nil {
			ex[c] = formatCell(v)
		}
	}
	return []any{
		ts,
		name,
		uint64(r),
		addressAt(t, r, sourceAddressCols),
		addressAt(t, r, destinationAddressCols),
		uint16At(t, r, "sourceTransportPort"),
		uint16At(t, r, "destinationTransportPort"),
		uint8At(t, r, "protocolIdentifier"),
		timeAt(t, r, "flowStartMilliseconds"),
		timeAt(t, r, "flowEndMilliseconds"),
		countAt(t, r, "octetDeltaCount"),
		countAt(t, r, "packetDeltaCount"),
		countAt(t, r, "reverseOctetDeltaCount"),
		countAt(t, r, "reversePacketDeltaCount"),
		uint64At(t, r, group.ColGroupID),
		uint64At(t, r, group.ColGroupIndex),
		floatAt(t, r, group.ColKeyIAT),
		floatAt(t, r, group.ColGroupIAT),
		ex,
	}
}

func addressAt(t *table.Table, r int, cols []string) *string {
	for _, c := range cols {
		v, _ := t.Value(c, r)
		switch a := v.(type) {
		case netip.Addr:
			s := a.String()
			return &s
		case string:
			return &a
		}
	}
	return nil
}

func uint64At(t *table.Table, r int, col string) *uint64 {
	v, _ := t.Value(col, r)
	u, ok := table.Uint(v)
	if !ok {
		return nil
	}
	return &u
}

func uint16At(t *table.Table, r int, col string) *uint16 {
	u := uint64At(t, r, col)
	if u == nil {
		return nil
	}
	p := uint16(*u)
	return &p
}

func uint8At(t *table.Table, r int, col string) *uint8 {
	u := uint64At(t, r, col)
	if u == nil {
		return nil
	}
	p := uint8(*u)
	return &p
}

func countAt(t *table.Table, r int, col string) uint64 {
	if u := uint64At(t, r, col); u != nil {
		return *u
	}
	return 0
}

func floatAt(t *table.Table, r int, col string) *float64 {
	v, _ := t.Value(col, r)
	if v == nil {
		return nil
	}
	f, ok := table.Float(v)
	if !ok {
		return nil
	}
	return &f
}

// timeAt reads a timestamp column. Numeric values are epoch milliseconds.
func timeAt(t *table.Table, r int, col string) *time.Time {
	v, _ := t.Value(col, r)
	switch x := v.(type) {
	case time.Time:
		return &x
	case nil:
		return nil
	}
	ms, ok := table.Float(v)
	if !ok {
		return nil
	}
	ts := time.UnixMilli(int64(ms)).UTC()
	return &ts
}
