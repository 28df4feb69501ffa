// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SimpleHistogram tracks the distribution of one value of the engine.
type SimpleHistogram interface {
	// Observe the value to the Histogram value.
	Observe(value float64)
}

// NewSimpleHistogram creates a new SimpleHistogram with default options.
func NewSimpleHistogram(subsystem, name, help string, buckets []float64) SimpleHistogram {
	h := &promHistogram{
		ph: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricName(subsystem, name),
				Help:    help,
				Buckets: buckets,
			},
		),
	}
	mustRegister(h.ph)
	return h
}

type promHistogram struct {
	ph prometheus.Histogram
}

func (h *promHistogram) Observe(value float64) {
	h.ph.Observe(value)
}
