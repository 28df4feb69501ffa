// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCounterTagged(t *testing.T) {
	Reset()

	c := NewCounter("test", "tagged_counter", []string{"result"}, "test counter")
	c.Inc("ok")
	c.Inc("ok")
	c.Add(3, "dropped")

	assert.Equal(t, 2.0, c.Get("ok"))
	assert.Equal(t, 3.0, c.Get("dropped"))
	assert.Equal(t, 0.0, c.Get("missing"))
}

func TestGauge(t *testing.T) {
	Reset()

	g := NewGauge("test", "plain_gauge", []string{}, "test gauge")
	g.Set(10)
	g.Inc()
	g.Dec()
	g.Add(5)

	assert.Equal(t, 15.0, g.Get())
}

func TestSimpleHistogram(t *testing.T) {
	Reset()

	h := NewSimpleHistogram("test", "simple_histogram", "test histogram", []float64{1, 10, 100})
	assert.NotPanics(t, func() { h.Observe(42) })
}
