// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Gauge tracks the value of one health metric of the engine.
type Gauge interface {
	// Set stores the value for the given tags.
	Set(value float64, tagsValue ...string)
	// Inc increments the gauge with the given tags.
	Inc(tagsValue ...string)
	// Dec decrements the gauge with the given tags.
	Dec(tagsValue ...string)
	// Add adds the value to the gauge with the given tags.
	Add(value float64, tagsValue ...string)
	// Get gets the value of the gauge with the given tags.
	Get(tagsValue ...string) float64
}

// NewGauge creates a Gauge with default options for telemetry purpose.
func NewGauge(subsystem, name string, tags []string, help string) Gauge {
	g := &promGauge{
		pg: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricName(subsystem, name),
				Help: help,
			},
			tags,
		),
	}
	mustRegister(g.pg)
	return g
}

// Gauge implementation using Prometheus.
type promGauge struct {
	pg *prometheus.GaugeVec
}

func (g *promGauge) Set(value float64, tagsValue ...string) {
	g.pg.WithLabelValues(tagsValue...).Set(value)
}

func (g *promGauge) Inc(tagsValue ...string) {
	g.pg.WithLabelValues(tagsValue...).Inc()
}

func (g *promGauge) Dec(tagsValue ...string) {
	g.pg.WithLabelValues(tagsValue...).Dec()
}

func (g *promGauge) Add(value float64, tagsValue ...string) {
	g.pg.WithLabelValues(tagsValue...).Add(value)
}

func (g *promGauge) Get(tagsValue ...string) float64 {
	metric := &dto.Metric{}
	_ = g.pg.WithLabelValues(tagsValue...).Write(metric)
	return metric.GetGauge().GetValue()
}
