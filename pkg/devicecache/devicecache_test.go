// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package devicecache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestPutGet(t *testing.T) {
	c := New()

	_, ok := c.Get("device-1")
	assert.False(t, ok)

	c.Put("device-1", map[string]float64{"temperature": 22.5, "current": 1}, t0)

	e, ok := c.Get("device-1")
	require.True(t, ok)
	assert.Equal(t, 22.5, e.Fields["temperature"])
	assert.Equal(t, 1.0, e.Fields["current"])
	assert.Equal(t, t0, e.LastUpdate)
	assert.Equal(t, 1, c.Size())
}

func TestPutReplacesWholesale(t *testing.T) {
	c := New()
	c.Put("device-1", map[string]float64{"temperature": 22.5, "humidity": 40}, t0)
	c.Put("device-1", map[string]float64{"temperature": 23.0}, t0.Add(30*time.Second))

	e, ok := c.Get("device-1")
	require.True(t, ok)
	assert.Equal(t, 23.0, e.Fields["temperature"])
	_, hasHumidity := e.Fields["humidity"]
	assert.False(t, hasHumidity, "replaced entry should not keep old fields")
	assert.Equal(t, t0.Add(30*time.Second), e.LastUpdate)
	assert.Equal(t, 1, c.Size())
}

func TestGetReturnsCopy(t *testing.T) {
	c := New()
	c.Put("device-1", map[string]float64{"temperature": 22.5}, t0)

	e, _ := c.Get("device-1")
	e.Fields["temperature"] = 99.0

	again, _ := c.Get("device-1")
	assert.Equal(t, 22.5, again.Fields["temperature"])
}

func TestSizeCountsDevices(t *testing.T) {
	c := New()
	c.Put("device-1", map[string]float64{"temperature": 20}, t0)
	c.Put("device-2", map[string]float64{"temperature": 21}, t0)
	c.Put("device-1", map[string]float64{"temperature": 22}, t0)

	assert.Equal(t, 2, c.Size())
}
