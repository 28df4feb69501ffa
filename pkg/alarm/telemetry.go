// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package alarm

import "time"

// Telemetry is one decoded sensor reading. Fields holds every numeric field
// of the payload; integer values are promoted to float64 at decode time.
type Telemetry struct {
	DeviceID    string
	Fields      map[string]float64
	SourceTime  time.Time // from the payload, zero when it carried none
	ArrivalTime time.Time
}

// HistoryRecord is one appended fire event. Seq is assigned by the store.
type HistoryRecord struct {
	Seq       int64     `json:"seq"`
	RuleID    string    `json:"rule_id"`
	DeviceID  string    `json:"device_id"`
	Alarm     Payload   `json:"alarm_payload"`
	Timestamp time.Time `json:"timestamp"`
}
