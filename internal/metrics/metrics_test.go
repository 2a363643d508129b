package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandler(t *testing.T) {
	// a registry per command must not conflict with another one
	_ = NewRegistry()
	reg := NewRegistry()

	TablesWritten.WithLabelValues("gob").Inc()
	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `flowspectra_tables_written_total{writer="gob"}`) {
		t.Errorf("Expected tables_written counter in output")
	}
}
