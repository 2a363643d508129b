package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/zoomoid/go-ipfix"
)

var (
	RecordsDecoded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "flowspectra",
		Name:      "records_decoded_total",
		Help:      "Total number of IPFIX data records converted to flow records",
	})
	RecordsSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "flowspectra",
		Name:      "records_skipped_total",
		Help:      "Total number of flow records skipped for lacking a requested attribute",
	})
	MessagesSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowspectra",
		Name:      "messages_skipped_total",
		Help:      "Total number of IPFIX messages skipped without aborting the stream",
	}, []string{"reason"})
	TablesWritten = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowspectra",
		Name:      "tables_written_total",
		Help:      "Total number of flow tables written per writer type",
	}, []string{"writer"})
	ConnectionsAccepted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "flowspectra",
		Name:      "collector_connections_total",
		Help:      "Total number of exporter connections accepted by the collector",
	})
)

// NewRegistry returns a registry holding the process collectors, the flowspectra
// counters and the go-ipfix decoder counters.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		RecordsDecoded,
		RecordsSkipped,
		MessagesSkipped,
		TablesWritten,
		ConnectionsAccepted,
		ipfix.PacketsTotal,
		ipfix.ErrorsTotal,
		ipfix.DurationMicroseconds,
		ipfix.DecodedSets,
		ipfix.DecodedRecords,
		ipfix.DroppedRecords,
	)
	return reg
}

// Handler exposes reg in the prometheus text format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Serve runs a /metrics endpoint on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, reg *prometheus.Registry, log logrus.FieldLogger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(reg))
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.WithField("addr", addr).Info("Serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server failed: %w", err)
	}
	return nil
}
