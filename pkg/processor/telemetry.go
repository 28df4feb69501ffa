// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package processor

import (
	"expvar"

	"github.com/DataDog/alarm-engine/pkg/telemetry"
)

var (
	processorExpvars = expvar.NewMap("processor")
	expAccepted      = &expvar.Int{}
	expIntakeDropped = &expvar.Int{}
	expEvaluations   = &expvar.Int{}
	expMissingField  = &expvar.Int{}
	expAlarmsFired   = &expvar.Int{}
	expPersistErrors = &expvar.Int{}

	tlmAccepted = telemetry.NewCounter("processor", "accepted", nil,
		"Telemetry items admitted to the intake queue")
	tlmIntakeDropped = telemetry.NewCounter("processor", "intake_dropped", nil,
		"Telemetry items dropped because the intake queue was full")
	tlmEvaluations = telemetry.NewCounter("processor", "evaluations", nil,
		"Rule evaluations performed")
	tlmMissingField = telemetry.NewCounter("eval", "missing_field", nil,
		"Evaluations skipped because the reading lacked the rule's sensor field")
	tlmAlarmsFired = telemetry.NewCounter("processor", "alarms_fired", nil,
		"Alarms fired")
	tlmPersistErrors = telemetry.NewCounter("processor", "persist_errors", nil,
		"State persistence failures")

	tlmDevices = telemetry.NewGauge("processor", "devices", nil,
		"Devices with a cached reading")
	tlmActiveAlarms = telemetry.NewGauge("processor", "active_alarms", nil,
		"Rules with a violation in progress")
	tlmIntakeDepth = telemetry.NewGauge("processor", "intake_depth", nil,
		"Admitted readings waiting for dispatch")
	tlmWorkers = telemetry.NewGauge("processor", "workers", nil,
		"Evaluation workers running")
)

func init() {
	processorExpvars.Set("Accepted", expAccepted)
	processorExpvars.Set("IntakeDropped", expIntakeDropped)
	processorExpvars.Set("Evaluations", expEvaluations)
	processorExpvars.Set("MissingField", expMissingField)
	processorExpvars.Set("AlarmsFired", expAlarmsFired)
	processorExpvars.Set("PersistErrors", expPersistErrors)
}
