package main

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"FlowSpectra/internal/query"
)

type tablesQuerier struct {
	fakeQuerier
	tables []query.TableSummary
	err    error
}

func (q *tablesQuerier) Tables(ctx context.Context) ([]query.TableSummary, error) {
	return q.tables, q.err
}

func TestTableHealth_GRPC(t *testing.T) {
	logger, _ := test.NewNullLogger()
	q := &tablesQuerier{tables: []query.TableSummary{{Name: "trace"}, {Name: "trace-1"}}}
	th := newTableHealth(q, logger)

	// 1. Start the gRPC server on a free port
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	srv := newGRPCServer(th)
	go srv.Serve(lis)
	defer srv.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := th.refresh(ctx); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	// 2. Dial it with the health client
	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	check := func(service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
		if err != nil {
			return healthpb.HealthCheckResponse_UNKNOWN, err
		}
		return resp.GetStatus(), nil
	}

	// 3. Overall and per-table status
	for _, service := range []string{"", "trace", "trace-1"} {
		st, err := check(service)
		if err != nil {
			t.Fatalf("Check(%q) failed: %v", service, err)
		}
		if st != healthpb.HealthCheckResponse_SERVING {
			t.Errorf("Check(%q): expected SERVING, got %v", service, st)
		}
	}
	if _, err := check("other"); status.Code(err) != codes.NotFound {
		t.Errorf("Expected NotFound for unknown table, got %v", err)
	}

	// 4. A table that disappeared is no longer serving
	q.tables = q.tables[:1]
	if err := th.refresh(ctx); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if st, err := check("trace-1"); err != nil || st != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("Expected NOT_SERVING for removed table, got %v, %v", st, err)
	}

	// 5. A failing querier marks the API as not serving
	q.err = errors.New("connection refused")
	if err := th.refresh(ctx); err == nil {
		t.Fatal("Expected refresh to fail")
	}
	if st, err := check(""); err != nil || st != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("Expected NOT_SERVING overall, got %v, %v", st, err)
	}
}
