// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package alarm

import "time"

// SeverityHigh is the severity stamped on every emitted alarm.
const SeverityHigh = "HIGH"

// Payload is the wire format of an emitted alarm. Field names and types are
// a stable contract with downstream consumers.
type Payload struct {
	RuleID                   string    `json:"rule_id"`
	DeviceID                 string    `json:"device_id"`
	AlarmType                RuleKind  `json:"alarm_type"`
	Description              string    `json:"description"`
	SensorField              string    `json:"sensor_field"`
	CurrentValue             float64   `json:"current_value"`
	ThresholdValue           float64   `json:"threshold_value"`
	ComparisonOperator       Operator  `json:"comparison_operator"`
	DurationMinutes          int       `json:"duration_minutes"`
	ViolationDurationMinutes float64   `json:"violation_duration_minutes"`
	TriggerTime              time.Time `json:"trigger_time"`
	Timestamp                time.Time `json:"timestamp"`
	Severity                 string    `json:"severity"`

	// Set on conditional alarms: the shunt reading that gated the fire and
	// the predicate it was held against.
	ShuntDeviceID  string   `json:"shunt_device_id,omitempty"`
	ShuntField     string   `json:"shunt_field,omitempty"`
	ShuntValue     *float64 `json:"shunt_value,omitempty"`
	ShuntThreshold *float64 `json:"shunt_threshold,omitempty"`
	ShuntOperator  Operator `json:"shunt_operator,omitempty"`
}

// BuildPayload assembles the payload for a rule that just fired. value is the
// reading that crossed the duration threshold; shuntValue is the gating shunt
// reading, nil for simple rules.
func BuildPayload(rule *Rule, state *State, value float64, shuntValue *float64, now time.Time) Payload {
	p := Payload{
		RuleID:                   rule.RuleID,
		DeviceID:                 rule.DeviceID,
		AlarmType:                rule.Kind,
		Description:              rule.Description,
		SensorField:              rule.SensorField,
		CurrentValue:             value,
		ThresholdValue:           rule.ThresholdValue,
		ComparisonOperator:       rule.Operator,
		DurationMinutes:          rule.DurationMinutes(),
		ViolationDurationMinutes: state.ViolationDuration(now).Minutes(),
		Timestamp:                now,
		Severity:                 SeverityHigh,
	}
	if state.TriggerTime != nil {
		p.TriggerTime = *state.TriggerTime
	}
	if rule.IsConditional() && shuntValue != nil {
		p.ShuntDeviceID = rule.ShuntDeviceID
		p.ShuntField = rule.ShuntField
		p.ShuntValue = shuntValue
		p.ShuntThreshold = rule.ShuntValue
		p.ShuntOperator = rule.ShuntOperator
	}
	return p
}
