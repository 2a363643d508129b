package query

import (
	"strings"
	"testing"
	"time"
)

func TestThroughputQuery(t *testing.T) {
	q, err := throughputQuery("flow_tables", 5*time.Minute)
	if err != nil {
		t.Fatalf("throughputQuery failed: %v", err)
	}
	for _, want := range []string{"INTERVAL 300 SECOND", "* 8 / 300", "FROM flow_tables", "TableName = ?"} {
		if !strings.Contains(q, want) {
			t.Errorf("Expected query to contain %q:\n%s", want, q)
		}
	}

	if _, err := throughputQuery("flow_tables", 0); err == nil {
		t.Error("Expected error for zero bin")
	}
	if _, err := throughputQuery("flow_tables", 1500*time.Millisecond); err == nil {
		t.Error("Expected error for fractional seconds")
	}
}
