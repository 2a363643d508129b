package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"FlowSpectra/internal/metrics"
	"FlowSpectra/internal/query"
)

// APIHandler holds the dependencies for API handlers.
type APIHandler struct {
	querier query.Querier
	log     logrus.FieldLogger
}

func newRouter(h *APIHandler, reg *prometheus.Registry) *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/tables", h.tablesHandler).Methods(http.MethodGet)
	api.HandleFunc("/tables/{name}/throughput", h.throughputHandler).Methods(http.MethodGet)
	api.HandleFunc("/tables/{name}/groups", h.groupsHandler).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler(reg))
	return r
}

// throughputPoint is the JSON form of one rate bin.
type throughputPoint struct {
	Start time.Time `json:"start"`
	BPS   float64   `json:"bps"`
	PPS   float64   `json:"pps"`
}

// tablesHandler lists the stored tables.
func (h *APIHandler) tablesHandler(w http.ResponseWriter, r *http.Request) {
	tables, err := h.querier.Tables(r.Context())
	if err != nil {
		h.fail(w, err, "failed to list tables")
		return
	}
	writeJSON(w, tables)
}

// throughputHandler resamples a stored table into rate bins. The bin size is
// given in seconds by the bin query parameter, 300 by default.
func (h *APIHandler) throughputHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	bin, err := intParam(r, "bin", 300)
	if err != nil || bin <= 0 {
		http.Error(w, "bin must be a positive number of seconds", http.StatusBadRequest)
		return
	}

	points, err := h.querier.Throughput(r.Context(), name, time.Duration(bin)*time.Second)
	if err != nil {
		h.fail(w, err, "failed to query throughput")
		return
	}
	out := make([]throughputPoint, len(points))
	for i, p := range points {
		out[i] = throughputPoint{Start: p.Start, BPS: p.BPS, PPS: p.PPS}
	}
	writeJSON(w, out)
}

// groupsHandler lists the flow groups of a stored table.
func (h *APIHandler) groupsHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	limit, err := intParam(r, "limit", 100)
	if err != nil || limit <= 0 {
		http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
		return
	}

	groups, err := h.querier.Groups(r.Context(), name, limit)
	if err != nil {
		h.fail(w, err, "failed to query groups")
		return
	}
	writeJSON(w, groups)
}

func (h *APIHandler) fail(w http.ResponseWriter, err error, msg string) {
	if errors.Is(err, query.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	h.log.WithError(err).Error(msg)
	http.Error(w, fmt.Sprintf("%s: %v", msg, err), http.StatusInternalServerError)
}

func intParam(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}
