// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package telemetry implements the internal telemetry of the alarm engine:
// counters, gauges and histograms about the engine itself, exposed through a
// Prometheus registry.
package telemetry

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry
	mutex    sync.Mutex
)

func init() {
	registry = prometheus.NewRegistry()
}

// GetRegistry returns the engine's telemetry registry
func GetRegistry() *prometheus.Registry {
	mutex.Lock()
	defer mutex.Unlock()
	return registry
}

// Handler serves the metrics from the engine's telemetry registry
func Handler() http.Handler {
	mutex.Lock()
	defer mutex.Unlock()
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// Reset drops every metric registered so far. Only used by tests which
// re-create package-level metrics.
func Reset() {
	mutex.Lock()
	defer mutex.Unlock()
	registry = prometheus.NewRegistry()
}

// metricName builds the metric name from the subsystem and the metric name.
// The double underscore marks the subsystem boundary so names stay reversible.
func metricName(subsystem, name string) string {
	return fmt.Sprintf("%s__%s", subsystem, name)
}

func mustRegister(c prometheus.Collector) {
	mutex.Lock()
	defer mutex.Unlock()
	registry.MustRegister(c)
}
