// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package alarm

import "time"

// Status is the position of a rule in its violation lifecycle.
type Status string

// Violation statuses. A rule fires when it moves to StatusTriggered; it can
// only fire again after passing through StatusInactive.
const (
	StatusInactive     Status = "inactive"
	StatusActive       Status = "active"
	StatusTriggered    Status = "triggered"
	StatusAcknowledged Status = "acknowledged"
)

// State is the mutable per-rule record of the current violation episode.
// There is at most one State per rule and all writes to it are serialized by
// the dispatcher, so the methods do not lock.
type State struct {
	RuleID          string     `json:"rule_id"`
	DeviceID        string     `json:"device_id"`
	Status          Status     `json:"status"`
	ViolationStart  *time.Time `json:"violation_start"`
	LastViolation   *time.Time `json:"last_violation"`
	TriggerTime     *time.Time `json:"trigger_time"`
	AcknowledgeTime *time.Time `json:"acknowledge_time"`
	ViolationCount  int        `json:"violation_count"`
	LastValue       *float64   `json:"last_value"`
	LastShuntValue  *float64   `json:"last_shunt_value"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// NewState returns the inactive state a rule starts from.
func NewState(ruleID, deviceID string, now time.Time) *State {
	return &State{
		RuleID:    ruleID,
		DeviceID:  deviceID,
		Status:    StatusInactive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// StartViolation opens a new episode from the first confirming reading.
func (s *State) StartViolation(now time.Time, value float64, shuntValue *float64) {
	s.Status = StatusActive
	s.ViolationStart = &now
	s.LastViolation = &now
	s.ViolationCount = 1
	s.LastValue = &value
	if shuntValue != nil {
		s.LastShuntValue = shuntValue
	}
	s.UpdatedAt = now
}

// ContinueViolation records another confirming reading within the episode.
func (s *State) ContinueViolation(now time.Time, value float64, shuntValue *float64) {
	s.ViolationCount++
	s.LastViolation = &now
	s.LastValue = &value
	if shuntValue != nil {
		s.LastShuntValue = shuntValue
	}
	s.UpdatedAt = now
}

// ClearViolation ends the episode. The trigger and acknowledge times of a
// past episode are kept for inspection until the next fire overwrites them.
func (s *State) ClearViolation(now time.Time) {
	s.Status = StatusInactive
	s.ViolationStart = nil
	s.LastViolation = nil
	s.ViolationCount = 0
	s.UpdatedAt = now
}

// TriggerAlarm marks the episode as fired.
func (s *State) TriggerAlarm(now time.Time) {
	s.Status = StatusTriggered
	s.TriggerTime = &now
	s.UpdatedAt = now
}

// AcknowledgeAlarm records an external acknowledgement of a fired alarm.
func (s *State) AcknowledgeAlarm(now time.Time) {
	s.Status = StatusAcknowledged
	s.AcknowledgeTime = &now
	s.UpdatedAt = now
}

// ViolationDuration returns how long the current episode has lasted, zero
// when there is none.
func (s *State) ViolationDuration(now time.Time) time.Duration {
	if s.ViolationStart == nil {
		return 0
	}
	return now.Sub(*s.ViolationStart)
}

// IsViolationActive reports whether an episode is in progress.
func (s *State) IsViolationActive() bool {
	return s.Status == StatusActive || s.Status == StatusTriggered
}
