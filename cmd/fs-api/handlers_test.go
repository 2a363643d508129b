package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus/hooks/test"

	"FlowSpectra/internal/query"
	"FlowSpectra/internal/report"
)

type fakeQuerier struct {
	bin   time.Duration
	limit int
}

func (f *fakeQuerier) Tables(ctx context.Context) ([]query.TableSummary, error) {
	return []query.TableSummary{{Name: "trace", Rows: 10, Groups: 3}}, nil
}

func (f *fakeQuerier) Throughput(ctx context.Context, name string, bin time.Duration) ([]report.RatePoint, error) {
	f.bin = bin
	if name != "trace" {
		return nil, fmt.Errorf("%w: table %s", query.ErrNotFound, name)
	}
	return []report.RatePoint{{Start: time.Unix(600, 0).UTC(), BPS: 80, PPS: 0.1}}, nil
}

func (f *fakeQuerier) Groups(ctx context.Context, name string, limit int) ([]query.GroupSummary, error) {
	f.limit = limit
	return []query.GroupSummary{{ID: 1, Source: "10.0.0.1", Flows: 2}}, nil
}

func (f *fakeQuerier) Close() error { return nil }

func newTestRouter(t *testing.T) (http.Handler, *fakeQuerier) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	q := &fakeQuerier{}
	return newRouter(&APIHandler{querier: q, log: logger}, prometheus.NewRegistry()), q
}

func TestThroughputHandler(t *testing.T) {
	r, q := newTestRouter(t)

	// 1. Request the series with a 60s bin
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/tables/trace/throughput?bin=60", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if q.bin != time.Minute {
		t.Errorf("Expected bin 1m, got %s", q.bin)
	}

	// 2. Decode the response
	var points []throughputPoint
	if err := json.Unmarshal(rec.Body.Bytes(), &points); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(points) != 1 || points[0].BPS != 80 {
		t.Errorf("Unexpected points %+v", points)
	}

	// 3. Unknown tables and bad parameters
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/tables/other/throughput", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/tables/trace/throughput?bin=x", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}

func TestGroupsAndTablesHandlers(t *testing.T) {
	r, q := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/tables/trace/groups?limit=5", nil))
	if rec.Code != http.StatusOK || q.limit != 5 {
		t.Fatalf("Expected status 200 and limit 5, got %d and %d", rec.Code, q.limit)
	}
	if !strings.Contains(rec.Body.String(), `"group_id":1`) {
		t.Errorf("Unexpected body %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/tables", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"name":"trace"`) {
		t.Errorf("Unexpected tables response %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/tables", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", rec.Code)
	}
}

func TestMetricsRoute(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}
}
