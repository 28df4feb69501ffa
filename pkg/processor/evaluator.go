// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package processor

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/DataDog/alarm-engine/pkg/alarm"
	"github.com/DataDog/alarm-engine/pkg/devicecache"
	"github.com/DataDog/alarm-engine/pkg/store"
	"github.com/DataDog/alarm-engine/pkg/util/log"
)

const persistTimeout = 5 * time.Second

// evalStore is the slice of the store the evaluator writes through.
type evalStore interface {
	SaveState(ctx context.Context, state *alarm.State) error
	SaveStateAndHistory(ctx context.Context, state *alarm.State, rec *alarm.HistoryRecord) error
}

// alarmSink receives fired alarms.
type alarmSink interface {
	Emit(p alarm.Payload)
}

// evaluator drives the violation state machine for one rule at a time.
type evaluator struct {
	clock     clock.Clock
	cache     *devicecache.Cache
	states    *stateTable
	store     evalStore
	sink      alarmSink
	freshness time.Duration
	onFatal   func(error)
}

func newEvaluator(clk clock.Clock, cache *devicecache.Cache, states *stateTable, st evalStore, sink alarmSink, freshness time.Duration, onFatal func(error)) *evaluator {
	return &evaluator{
		clock:     clk,
		cache:     cache,
		states:    states,
		store:     st,
		sink:      sink,
		freshness: freshness,
		onFatal:   onFatal,
	}
}

// evaluate applies one reading to one rule. Every error is contained here;
// a failed persistence leaves the in-memory state as it was, so the next
// reading retries the same transition.
func (e *evaluator) evaluate(item workItem) {
	rule := item.rule
	tlmEvaluations.Inc()
	expEvaluations.Add(1)

	now := e.clock.Now()
	value, ok := item.fields[rule.SensorField]
	if !ok {
		tlmMissingField.Inc()
		expMissingField.Add(1)
		log.Debugf("Reading for device %s has no field %q (rule %s, seq %d)",
			rule.DeviceID, rule.SensorField, rule.RuleID, item.seq)
		return
	}

	condition := alarm.Compare(value, rule.ThresholdValue, rule.Operator)
	var shuntValue *float64
	if rule.IsConditional() {
		// an unknown or stale shunt forces the condition false so a gated
		// violation clears instead of lingering
		sv, known := e.shuntReading(rule, now)
		if !known || !alarm.Compare(sv, *rule.ShuntValue, rule.ShuntOperator) {
			condition = false
		}
		if known {
			shuntValue = &sv
		}
	}

	state := e.states.get(rule.RuleID)
	if state == nil {
		if !condition {
			// nothing to start and nothing to clear; do not materialize a row
			return
		}
		state = alarm.NewState(rule.RuleID, rule.DeviceID, now)
		e.states.set(state)
	}

	prev := *state
	fired := false
	changed := true

	switch {
	case !condition:
		if state.Status == alarm.StatusInactive {
			changed = false
		} else {
			state.ClearViolation(now)
			log.Infof("Violation cleared for rule %s on device %s", rule.RuleID, rule.DeviceID)
		}
	case state.Status == alarm.StatusInactive:
		state.StartViolation(now, value, shuntValue)
		log.Infof("Violation started for rule %s on device %s (%s=%g)",
			rule.RuleID, rule.DeviceID, rule.SensorField, value)
	case state.Status == alarm.StatusActive:
		state.ContinueViolation(now, value, shuntValue)
		if now.Sub(*state.ViolationStart) >= rule.Duration() {
			state.TriggerAlarm(now)
			fired = true
		}
	case state.Status == alarm.StatusTriggered:
		state.ContinueViolation(now, value, shuntValue)
	case state.Status == alarm.StatusAcknowledged:
		state.LastViolation = &now
		state.UpdatedAt = now
	}

	if !changed {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if fired {
		payload := alarm.BuildPayload(rule, state, value, shuntValue, now)
		rec := &alarm.HistoryRecord{
			RuleID:    rule.RuleID,
			DeviceID:  rule.DeviceID,
			Alarm:     payload,
			Timestamp: now,
		}
		// the state transition and the history record land in one commit;
		// only then is the alarm handed to the emitter
		if err := e.store.SaveStateAndHistory(ctx, state, rec); err != nil {
			*state = prev
			e.persistFailed(rule.RuleID, item.seq, err)
			return
		}
		tlmAlarmsFired.Inc()
		expAlarmsFired.Add(1)
		log.Warnf("ALARM TRIGGERED: rule %s on device %s (%s=%g, threshold %s %g)",
			rule.RuleID, rule.DeviceID, rule.SensorField, value, rule.Operator, rule.ThresholdValue)
		e.sink.Emit(payload)
		return
	}

	if err := e.store.SaveState(ctx, state); err != nil {
		*state = prev
		e.persistFailed(rule.RuleID, item.seq, err)
	}
}

// shuntReading fetches the gating value for a conditional rule from the
// cache. It reports false when the shunt device has never reported, its
// reading is older than the freshness bound, or the field is absent.
func (e *evaluator) shuntReading(rule *alarm.Rule, now time.Time) (float64, bool) {
	entry, ok := e.cache.Get(rule.ShuntDeviceID)
	if !ok {
		log.Debugf("Shunt device %s has no cached reading (rule %s)", rule.ShuntDeviceID, rule.RuleID)
		return 0, false
	}
	if now.Sub(entry.LastUpdate) > e.freshness {
		log.Debugf("Shunt reading from %s is stale (rule %s)", rule.ShuntDeviceID, rule.RuleID)
		return 0, false
	}
	value, ok := entry.Fields[rule.ShuntField]
	if !ok {
		log.Debugf("Shunt device %s has no field %q (rule %s)", rule.ShuntDeviceID, rule.ShuntField, rule.RuleID)
		return 0, false
	}
	return value, true
}

func (e *evaluator) persistFailed(ruleID string, seq int64, err error) {
	tlmPersistErrors.Inc()
	expPersistErrors.Add(1)
	log.Errorf("Failed to persist state for rule %s (seq %d): %s", ruleID, seq, err)
	if store.IsFatal(err) && e.onFatal != nil {
		e.onFatal(err)
	}
}
