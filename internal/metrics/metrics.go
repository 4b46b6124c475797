// Copyright (c) 2026 PanelApp Team
// PanelApp - gene panel curation service
// This source code is licensed under the MIT license found in the LICENSE file.

// Package metrics exposes Prometheus collectors for service operations,
// panel versions, export jobs and HTTP requests.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns a private registry so tests and multiple servers in one
// process do not collide on the default one.
type Recorder struct {
	reg *prometheus.Registry

	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	versions   *prometheus.CounterVec
	exports    *prometheus.CounterVec
	requests   *prometheus.CounterVec
	reqLatency *prometheus.HistogramVec
}

// New registers every collector, plus the Go and process collectors.
func New() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "panelapp",
			Name:      "operations_total",
			Help:      "Service operations by name and outcome.",
		}, []string{"operation", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "panelapp",
			Name:      "operation_duration_seconds",
			Help:      "Service operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		versions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "panelapp",
			Name:      "panel_versions_total",
			Help:      "Panel versions created, by kind.",
		}, []string{"kind"}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "panelapp",
			Name:      "export_jobs_total",
			Help:      "Finished export jobs by report kind and state.",
		}, []string{"kind", "state"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "panelapp",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		reqLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "panelapp",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
	r.reg.MustRegister(
		r.operations, r.latency, r.versions, r.exports, r.requests, r.reqLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// Observe implements core.MetricsRecorder.
func (r *Recorder) Observe(_ context.Context, operation string, success bool, d time.Duration) {
	outcome := "success"
	if !success {
		outcome = "error"
	}
	r.operations.WithLabelValues(operation, outcome).Inc()
	r.latency.WithLabelValues(operation).Observe(d.Seconds())
}

// VersionCreated implements core.MetricsRecorder.
func (r *Recorder) VersionCreated(major bool) {
	kind := "minor"
	if major {
		kind = "major"
	}
	r.versions.WithLabelValues(kind).Inc()
}

// ExportFinished counts a finished export job.
func (r *Recorder) ExportFinished(kind, state string) {
	r.exports.WithLabelValues(kind, state).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Middleware counts requests. route maps a request to a low-cardinality
// label, usually the matched mux pattern.
func (r *Recorder) Middleware(route func(*http.Request) string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, req)
		label := route(req)
		r.requests.WithLabelValues(req.Method, label, strconv.Itoa(sw.code)).Inc()
		r.reqLatency.WithLabelValues(label).Observe(time.Since(start).Seconds())
	})
}
