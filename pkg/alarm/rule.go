// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package alarm holds the data model of the engine: rules, per-rule violation
// state, telemetry readings and the alarm payload sent on fire.
package alarm

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

// RuleKind tells a plain threshold rule from a shunt-gated one.
type RuleKind string

// The two supported rule kinds.
const (
	SimpleThreshold      RuleKind = "simple_threshold"
	ConditionalThreshold RuleKind = "conditional_threshold"
)

// Operator is a comparison between a reading and a threshold.
type Operator string

// Comparison operators, serialized by their token.
const (
	OpGreaterThan  Operator = ">"
	OpLessThan     Operator = "<"
	OpGreaterEqual Operator = ">="
	OpLessEqual    Operator = "<="
	OpEqual        Operator = "=="
	OpNotEqual     Operator = "!="
)

func (o Operator) valid() bool {
	switch o {
	case OpGreaterThan, OpLessThan, OpGreaterEqual, OpLessEqual, OpEqual, OpNotEqual:
		return true
	}
	return false
}

// ParseOperator maps a token from the authoring surface to an Operator.
func ParseOperator(s string) (Operator, error) {
	op := Operator(s)
	if !op.valid() {
		return "", fmt.Errorf("unknown comparison operator %q", s)
	}
	return op, nil
}

// Rule describes one condition to monitor on one device. Rules are immutable
// between CRUD operations; evaluators only read them.
//
// Durations are authored in minutes but held in seconds; the CLI converts on
// the way in and the alarm payload converts on the way out.
type Rule struct {
	RuleID          string   `json:"rule_id"`
	DeviceID        string   `json:"device_id"`
	Kind            RuleKind `json:"kind"`
	SensorField     string   `json:"sensor_field"`
	ThresholdValue  float64  `json:"threshold_value"`
	Operator        Operator `json:"operator"`
	DurationSeconds int      `json:"duration_seconds"`
	Description     string   `json:"description"`
	Enabled         bool     `json:"enabled"`

	// Shunt predicate, set on conditional rules only. ShuntValue is a
	// pointer so a zero threshold survives serialization.
	ShuntDeviceID string   `json:"shunt_device_id,omitempty"`
	ShuntField    string   `json:"shunt_field,omitempty"`
	ShuntValue    *float64 `json:"shunt_value,omitempty"`
	ShuntOperator Operator `json:"shunt_operator,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSimpleRule builds an enabled simple threshold rule. durationMinutes uses
// the authoring unit.
func NewSimpleRule(ruleID, deviceID, sensorField string, op Operator, threshold float64, durationMinutes int, description string) *Rule {
	return &Rule{
		RuleID:          ruleID,
		DeviceID:        deviceID,
		Kind:            SimpleThreshold,
		SensorField:     sensorField,
		ThresholdValue:  threshold,
		Operator:        op,
		DurationSeconds: durationMinutes * 60,
		Description:     description,
		Enabled:         true,
	}
}

// NewConditionalRule builds an enabled conditional threshold rule gated by a
// shunt predicate on shuntDeviceID.
func NewConditionalRule(ruleID, deviceID, sensorField string, op Operator, threshold float64, durationMinutes int,
	shuntDeviceID, shuntField string, shuntOp Operator, shuntThreshold float64, description string) *Rule {
	r := NewSimpleRule(ruleID, deviceID, sensorField, op, threshold, durationMinutes, description)
	r.Kind = ConditionalThreshold
	r.ShuntDeviceID = shuntDeviceID
	r.ShuntField = shuntField
	r.ShuntValue = &shuntThreshold
	r.ShuntOperator = shuntOp
	return r
}

// IsConditional reports whether the rule carries a shunt predicate.
func (r *Rule) IsConditional() bool {
	return r.Kind == ConditionalThreshold
}

// Duration returns how long the condition must hold before the rule fires.
func (r *Rule) Duration() time.Duration {
	return time.Duration(r.DurationSeconds) * time.Second
}

// DurationMinutes returns the duration in the unit of the authoring surface.
func (r *Rule) DurationMinutes() int {
	return r.DurationSeconds / 60
}

// Validate checks the rule before it reaches the store. All problems are
// reported, not just the first.
func (r *Rule) Validate() error {
	var errs *multierror.Error

	if r.RuleID == "" {
		errs = multierror.Append(errs, fmt.Errorf("rule_id is required"))
	}
	if r.DeviceID == "" {
		errs = multierror.Append(errs, fmt.Errorf("device_id is required"))
	}
	if r.SensorField == "" {
		errs = multierror.Append(errs, fmt.Errorf("sensor_field is required"))
	}
	switch r.Kind {
	case SimpleThreshold, ConditionalThreshold:
	default:
		errs = multierror.Append(errs, fmt.Errorf("unknown rule kind %q", r.Kind))
	}
	if !r.Operator.valid() {
		errs = multierror.Append(errs, fmt.Errorf("unknown comparison operator %q", r.Operator))
	}
	if r.DurationSeconds <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("duration must be positive, got %ds", r.DurationSeconds))
	}

	if r.IsConditional() {
		if r.ShuntDeviceID == "" || r.ShuntField == "" || r.ShuntValue == nil || r.ShuntOperator == "" {
			errs = multierror.Append(errs, fmt.Errorf("conditional rules require shunt_device_id, shunt_field, shunt_value and shunt_operator"))
		} else if !r.ShuntOperator.valid() {
			errs = multierror.Append(errs, fmt.Errorf("unknown shunt operator %q", r.ShuntOperator))
		}
	} else if r.ShuntDeviceID != "" || r.ShuntField != "" || r.ShuntValue != nil || r.ShuntOperator != "" {
		errs = multierror.Append(errs, fmt.Errorf("shunt fields are only valid on conditional rules"))
	}

	return errs.ErrorOrNil()
}
