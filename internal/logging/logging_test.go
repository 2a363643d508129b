package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"

	"FlowSpectra/internal/config"
)

func TestNewWithOutput_JSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithOutput(config.LogConfig{Level: "debug", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("NewWithOutput failed: %v", err)
	}
	log.WithField("records", 3).Debug("loaded")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "loaded" || entry["records"] != float64(3) {
		t.Errorf("Unexpected entry %v", entry)
	}
}

func TestNewWithOutput_Defaults(t *testing.T) {
	log, err := NewWithOutput(config.LogConfig{}, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("NewWithOutput failed: %v", err)
	}
	if log.GetLevel() != logrus.InfoLevel {
		t.Errorf("Expected info level, got %s", log.GetLevel())
	}
}

func TestNewWithOutput_Invalid(t *testing.T) {
	if _, err := NewWithOutput(config.LogConfig{Level: "loud"}, &bytes.Buffer{}); err == nil {
		t.Error("Expected error for invalid level")
	}
	if _, err := NewWithOutput(config.LogConfig{Format: "xml"}, &bytes.Buffer{}); err == nil {
		t.Error("Expected error for unknown format")
	}
}
