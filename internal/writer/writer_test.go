package writer

import (
	"bytes"
	"context"
	"encoding/json"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"FlowSpectra/internal/config"
	"FlowSpectra/internal/group"
	"FlowSpectra/internal/model"
	"FlowSpectra/internal/table"
)

func sampleTable(t *testing.T) *table.Table {
	t.Helper()
	tbl := table.New("sourceIPv4Address", "flowStartMilliseconds", "octetDeltaCount", "minTcpRttMilliseconds", group.ColGroupID)
	start := time.UnixMilli(1700000000123).UTC()
	rows := [][]any{
		{netip.MustParseAddr("10.0.0.1"), start, uint64(1500), uint64(42), uint64(1)},
		{netip.MustParseAddr("10.0.0.2"), start.Add(time.Second), uint64(60), nil, uint64(2)},
	}
	for _, r := range rows {
		if err := tbl.Append(r...); err != nil {
			t.Fatal(err)
		}
	}
	return tbl
}

func TestGobWriter_Write(t *testing.T) {
	// 1. Write a table to a temporary directory
	tmpDir := t.TempDir()
	logger, _ := test.NewNullLogger()
	w := NewGobWriter(tmpDir, logger)
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	if err := w.Write(context.Background(), model.Export{Name: "trace", Timestamp: ts, Table: sampleTable(t)}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	// 2. Verify the summary
	dir := filepath.Join(tmpDir, "2024-05-01_12-00-00", "trace")
	data, err := os.ReadFile(filepath.Join(dir, "summary.json"))
	if err != nil {
		t.Fatalf("summary.json was not created: %v", err)
	}
	var summary SummaryData
	if err := json.Unmarshal(data, &summary); err != nil {
		t.Fatalf("Failed to decode summary: %v", err)
	}
	if summary.Rows != 2 || summary.Groups != 2 || len(summary.Columns) != 5 {
		t.Errorf("Unexpected summary %+v", summary)
	}

	// 3. Read the table back
	got, err := ReadGob(filepath.Join(dir, "table.gob"))
	if err != nil {
		t.Fatalf("ReadGob failed: %v", err)
	}
	if got.Len() != 2 {
		t.Fatalf("Expected 2 rows, got %d", got.Len())
	}
	if v, _ := got.Value("sourceIPv4Address", 1); v != netip.MustParseAddr("10.0.0.2") {
		t.Errorf("Expected address 10.0.0.2, got %v", v)
	}
	if v, _ := got.Value("flowStartMilliseconds", 0); !v.(time.Time).Equal(time.UnixMilli(1700000000123)) {
		t.Errorf("Unexpected start time %v", v)
	}
	if v, _ := got.Value("minTcpRttMilliseconds", 1); v != nil {
		t.Errorf("Expected missing cell to stay nil, got %v", v)
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleTable(t)); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected header and 2 rows, got %d lines", len(lines))
	}
	if lines[0] != "sourceIPv4Address,flowStartMilliseconds,octetDeltaCount,minTcpRttMilliseconds,groupId" {
		t.Errorf("Unexpected header %q", lines[0])
	}
	if lines[2] != "10.0.0.2,2023-11-14 22:13:21.123,60,,2" {
		t.Errorf("Unexpected row %q", lines[2])
	}
}

func TestCSVStream_SingleHeader(t *testing.T) {
	var buf bytes.Buffer
	s := NewCSVStream(&buf)

	// 1. Write two chunks
	for i := 0; i < 2; i++ {
		if err := s.Write(sampleTable(t)); err != nil {
			t.Fatalf("Write of chunk %d failed: %v", i, err)
		}
	}

	// 2. Only the first chunk carries the header
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 5 {
		t.Fatalf("Expected header and 4 rows, got %d lines", len(lines))
	}
	if n := strings.Count(buf.String(), "sourceIPv4Address,"); n != 1 {
		t.Errorf("Expected 1 header line, got %d", n)
	}
	if lines[4] != "10.0.0.2,2023-11-14 22:13:21.123,60,,2" {
		t.Errorf("Unexpected last row %q", lines[4])
	}
}

func TestCSVWriter_Write(t *testing.T) {
	tmpDir := t.TempDir()
	logger, _ := test.NewNullLogger()
	writers, err := Create([]config.WriterDef{
		{Type: "csv", Enabled: true, CSV: config.CSVConfig{RootPath: tmpDir}},
		{Type: "clickhouse", Enabled: false},
	}, logger)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if len(writers) != 1 {
		t.Fatalf("Expected only the enabled writer, got %d", len(writers))
	}

	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	if err := WriteAll(context.Background(), writers, model.Export{Name: "trace", Timestamp: ts, Table: sampleTable(t)}); err != nil {
		t.Fatalf("WriteAll failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "2024-05-01_12-00-00", "trace.csv")); err != nil {
		t.Errorf("Expected csv file: %v", err)
	}
	if err := CloseAll(writers); err != nil {
		t.Errorf("CloseAll failed: %v", err)
	}
}

func TestCreate_Errors(t *testing.T) {
	logger, _ := test.NewNullLogger()
	if _, err := Create([]config.WriterDef{{Type: "hdf5", Enabled: true}}, logger); err == nil {
		t.Error("Expected error for unknown writer type")
	}
	if _, err := Create([]config.WriterDef{{Type: "gob", Enabled: true}}, logger); err == nil {
		t.Error("Expected error for gob writer without root path")
	}
}

func TestRowValues(t *testing.T) {
	tbl := sampleTable(t)
	ts := time.Unix(1700000000, 0).UTC()
	extra := extraColumns(tbl)
	if len(extra) != 1 || extra[0] != "minTcpRttMilliseconds" {
		t.Fatalf("Unexpected extra columns %v", extra)
	}

	vals := rowValues(tbl, 0, ts, "trace", extra)
	if len(vals) != 19 {
		t.Fatalf("Expected 19 values, got %d", len(vals))
	}
	if src := vals[3].(*string); src == nil || *src != "10.0.0.1" {
		t.Errorf("Unexpected source address %v", vals[3])
	}
	if dst := vals[4].(*string); dst != nil {
		t.Errorf("Expected nil destination, got %v", *dst)
	}
	if octets := vals[10].(uint64); octets != 1500 {
		t.Errorf("Expected 1500 octets, got %d", octets)
	}
	if id := vals[14].(*uint64); id == nil || *id != 1 {
		t.Errorf("Unexpected group id %v", vals[14])
	}
	if ex := vals[18].(map[string]string); ex["minTcpRttMilliseconds"] != "42" {
		t.Errorf("Unexpected extra map %v", ex)
	}

	// missing cells stay out of the extra map
	if ex := rowValues(tbl, 1, ts, "trace", extra)[18].(map[string]string); len(ex) != 0 {
		t.Errorf("Expected empty extra map, got %v", ex)
	}
}

func TestRowObject(t *testing.T) {
	obj := rowObject(sampleTable(t), 1)
	if obj["sourceIPv4Address"] != "10.0.0.2" {
		t.Errorf("Unexpected address %v", obj["sourceIPv4Address"])
	}
	if obj["flowStartMilliseconds"] != int64(1700000001123) {
		t.Errorf("Unexpected start %v", obj["flowStartMilliseconds"])
	}
	if _, ok := obj["minTcpRttMilliseconds"]; ok {
		t.Error("Missing cells must be omitted")
	}
}
