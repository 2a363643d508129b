package chart

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"FlowSpectra/internal/report"
	"FlowSpectra/internal/stats"
)

func TestSaveHistogram(t *testing.T) {
	dir := t.TempDir()
	h, err := report.Spectrum([]float64{2, 3, 50, 400}, []float64{1, 2, 3, 4}, 125, 1, 501)
	if err != nil {
		t.Fatalf("Spectrum failed: %v", err)
	}

	path := filepath.Join(dir, "rtt.png")
	if err := SaveHistogram(h, Labels{Title: "RTT", X: "ms", Y: "packets"}, path); err != nil {
		t.Fatalf("SaveHistogram failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		t.Fatalf("Expected non-empty image, got %v", err)
	}

	if err := SaveHistogram(&report.Histogram{}, Labels{}, path); err == nil {
		t.Error("Expected error for empty histogram")
	}
}

func TestSaveECDF(t *testing.T) {
	e, err := stats.NewECDF([]float64{1, 2, 2, 5})
	if err != nil {
		t.Fatalf("NewECDF failed: %v", err)
	}
	path := filepath.Join(t.TempDir(), "ecdf.svg")
	if err := SaveECDF(e, Labels{Title: "ECDF"}, path); err != nil {
		t.Fatalf("SaveECDF failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Expected file at %s: %v", path, err)
	}
}

func TestFileName(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 3, 7, 9, 5, 2, 0, time.UTC)

	first := FileName(dir, DefaultPattern, now)
	if filepath.Base(first) != "rtt_07090502.png" {
		t.Fatalf("Unexpected name %s", first)
	}
	if err := os.WriteFile(first, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if second := FileName(dir, DefaultPattern, now); filepath.Base(second) != "rtt_07090502-1.png" {
		t.Errorf("Expected suffixed name, got %s", second)
	}
}
