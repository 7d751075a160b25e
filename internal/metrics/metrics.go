// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package metrics exposes Prometheus collectors for redirect resolution,
// imports, and cache use.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Lookup results
const (
	ResultServed = "served"
	ResultGone   = "gone"
	ResultMiss   = "miss"
	ResultError  = "error"
)

// Metrics holds the application's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	lookups        *prometheus.CounterVec
	lookupDuration prometheus.Histogram
	served         *prometheus.CounterVec
	cacheLookups   *prometheus.CounterVec
	importRuns     *prometheus.CounterVec
	importRows     *prometheus.CounterVec
	hitsFlushed    prometheus.Counter
}

// New registers all collectors, plus Go and process collectors, on a new registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		lookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "redirects_fallback_lookups_total",
			Help: "Fallback lookups performed for 404 responses, by result",
		}, []string{"result"}),
		lookupDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "redirects_fallback_lookup_duration_seconds",
			Help:    "Time spent resolving a 404 against stored redirects",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		served: f.NewCounterVec(prometheus.CounterOpts{
			Name: "redirects_served_total",
			Help: "Redirect responses written, by HTTP status",
		}, []string{"status"}),
		cacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "redirects_cache_lookups_total",
			Help: "Redirect cache lookups, by outcome",
		}, []string{"outcome"}),
		importRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "redirects_import_runs_total",
			Help: "Import runs, by source and result",
		}, []string{"source", "result"}),
		importRows: f.NewCounterVec(prometheus.CounterOpts{
			Name: "redirects_import_rows_total",
			Help: "Rows applied by imports, by action",
		}, []string{"action"}),
		hitsFlushed: f.NewCounter(prometheus.CounterOpts{
			Name: "redirects_hits_flushed_total",
			Help: "Redirect hits persisted to the database",
		}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveLookup records one fallback lookup. Safe on a nil receiver.
func (m *Metrics) ObserveLookup(result string, started time.Time) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(result).Inc()
	m.lookupDuration.Observe(time.Since(started).Seconds())
}

// RecordServed counts a redirect response by status.
func (m *Metrics) RecordServed(status int) {
	if m == nil {
		return
	}
	m.served.WithLabelValues(strconv.Itoa(status)).Inc()
}

// RecordCache counts a cache lookup; hit is false when the loader ran.
func (m *Metrics) RecordCache(hit bool) {
	if m == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.cacheLookups.WithLabelValues(outcome).Inc()
}

// RecordImport counts an import run and the rows it created and updated.
func (m *Metrics) RecordImport(source string, err error, created, updated int) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.importRuns.WithLabelValues(source, result).Inc()
	m.importRows.WithLabelValues("created").Add(float64(created))
	m.importRows.WithLabelValues("updated").Add(float64(updated))
}

// RecordHitsFlushed counts hits written by the scheduler.
func (m *Metrics) RecordHitsFlushed(n int64) {
	if m == nil {
		return
	}
	m.hitsFlushed.Add(float64(n))
}
