// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package alarm

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPayloadSimple(t *testing.T) {
	rule := NewSimpleRule("R1", "device-1", "temperature", OpGreaterThan, 30.0, 2, "high temperature")
	state := NewState("R1", "device-1", t0)
	state.StartViolation(t0, 32.0, nil)
	now := t0.Add(2 * time.Minute)
	state.TriggerAlarm(now)

	p := BuildPayload(rule, state, 32.0, nil, now)

	assert.Equal(t, "R1", p.RuleID)
	assert.Equal(t, SimpleThreshold, p.AlarmType)
	assert.Equal(t, 32.0, p.CurrentValue)
	assert.Equal(t, 30.0, p.ThresholdValue)
	assert.Equal(t, OpGreaterThan, p.ComparisonOperator)
	assert.Equal(t, 2, p.DurationMinutes)
	assert.Equal(t, 2.0, p.ViolationDurationMinutes)
	assert.Equal(t, now, p.TriggerTime)
	assert.Equal(t, SeverityHigh, p.Severity)
	assert.Empty(t, p.ShuntDeviceID)
	assert.Nil(t, p.ShuntValue)
}

func TestBuildPayloadConditional(t *testing.T) {
	rule := NewConditionalRule("R2", "device-1", "temperature", OpGreaterThan, 28.0, 3,
		"device-2", "current", OpGreaterThan, 0, "gated")
	state := NewState("R2", "device-1", t0)
	shunt := 1.0
	state.StartViolation(t0, 29.0, &shunt)
	now := t0.Add(3 * time.Minute)
	state.TriggerAlarm(now)

	p := BuildPayload(rule, state, 29.0, &shunt, now)

	assert.Equal(t, "device-2", p.ShuntDeviceID)
	assert.Equal(t, "current", p.ShuntField)
	require.NotNil(t, p.ShuntValue)
	assert.Equal(t, 1.0, *p.ShuntValue)
	require.NotNil(t, p.ShuntThreshold)
	assert.Equal(t, 0.0, *p.ShuntThreshold)
	assert.Equal(t, OpGreaterThan, p.ShuntOperator)

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"shunt_threshold":0`)
	assert.Contains(t, string(raw), `"violation_duration_minutes":3`)
}
