package main

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"FlowSpectra/internal/query"
)

// healthRefresh is how often the stored tables are listed again.
const healthRefresh = 30 * time.Second

// tableHealth publishes the serving status of the API and of every stored
// table over the standard gRPC health service. The empty service name is the
// overall status; each stored table is a service of its own name.
type tableHealth struct {
	querier query.Querier
	server  *health.Server
	log     logrus.FieldLogger
	known   map[string]struct{}
}

func newTableHealth(q query.Querier, log logrus.FieldLogger) *tableHealth {
	return &tableHealth{
		querier: q,
		server:  health.NewServer(),
		log:     log,
		known:   make(map[string]struct{}),
	}
}

// refresh lists the stored tables and updates the serving status. Tables that
// disappeared are reported as not serving.
func (th *tableHealth) refresh(ctx context.Context) error {
	tables, err := th.querier.Tables(ctx)
	if err != nil {
		th.server.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		return err
	}
	th.server.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	seen := make(map[string]struct{}, len(tables))
	for _, t := range tables {
		seen[t.Name] = struct{}{}
		th.server.SetServingStatus(t.Name, healthpb.HealthCheckResponse_SERVING)
	}
	for name := range th.known {
		if _, ok := seen[name]; !ok {
			th.server.SetServingStatus(name, healthpb.HealthCheckResponse_NOT_SERVING)
		}
	}
	th.known = seen
	return nil
}

// run refreshes the status every interval until ctx is cancelled.
func (th *tableHealth) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := th.refresh(ctx); err != nil && ctx.Err() == nil {
				th.log.WithError(err).Warn("Failed to refresh table health")
			}
		}
	}
}

// newGRPCServer returns a server exposing the health service and reflection.
func newGRPCServer(th *tableHealth) *grpc.Server {
	s := grpc.NewServer()
	healthpb.RegisterHealthServer(s, th.server)
	reflection.Register(s)
	return s
}
