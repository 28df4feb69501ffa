// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package emitter publishes fired alarms to the broker.
//
// Emission is fire and forget. The evaluator hands a payload over and moves
// on; a full queue or a failed publish is counted and logged, never retried
// and never allowed to stall the pipeline. The durable record of a firing is
// the history table, not the broker.
package emitter

import (
	"encoding/json"
	"expvar"
	"time"

	"github.com/DataDog/alarm-engine/pkg/alarm"
	"github.com/DataDog/alarm-engine/pkg/telemetry"
	"github.com/DataDog/alarm-engine/pkg/util/log"
)

const flushTimeout = 2 * time.Second

var (
	emitterExpvars = expvar.NewMap("emitter")
	expPublished   = &expvar.Int{}
	expDropped     = &expvar.Int{}
	expErrors      = &expvar.Int{}

	tlmPublished = telemetry.NewCounter("emitter", "published", nil,
		"Alarm payloads published to the broker")
	tlmDropped = telemetry.NewCounter("emitter", "dropped", nil,
		"Alarm payloads dropped because the publish queue was full")
	tlmErrors = telemetry.NewCounter("emitter", "errors", nil,
		"Alarm payloads that failed to publish")
)

func init() {
	emitterExpvars.Set("Published", expPublished)
	emitterExpvars.Set("Dropped", expDropped)
	emitterExpvars.Set("Errors", expErrors)
}

// Publisher sends a payload to the broker.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// Emitter drains a bounded queue of alarm payloads onto the broker from a
// single goroutine, preserving emission order.
type Emitter struct {
	publisher Publisher
	topic     string
	queue     chan alarm.Payload
	stopped   chan struct{}
}

// New builds an emitter publishing to topic. Start must be called before
// payloads are emitted.
func New(publisher Publisher, topic string, capacity int) *Emitter {
	if capacity <= 0 {
		capacity = 1
	}
	return &Emitter{
		publisher: publisher,
		topic:     topic,
		queue:     make(chan alarm.Payload, capacity),
		stopped:   make(chan struct{}),
	}
}

// Start launches the publisher goroutine.
func (e *Emitter) Start() {
	go e.run()
}

// Stop flushes queued payloads, giving up after a short timeout. The
// evaluators must be drained first so nothing is still emitting.
func (e *Emitter) Stop() {
	close(e.queue)
	select {
	case <-e.stopped:
	case <-time.After(flushTimeout):
		log.Warnf("Timed out flushing the alarm publish queue")
	}
}

// Emit queues a payload for publication without blocking.
func (e *Emitter) Emit(p alarm.Payload) {
	select {
	case e.queue <- p:
	default:
		tlmDropped.Inc()
		expDropped.Add(1)
		log.Warnf("Alarm publish queue full, dropping alarm for rule %s", p.RuleID)
	}
}

func (e *Emitter) run() {
	defer close(e.stopped)
	for p := range e.queue {
		data, err := json.Marshal(p)
		if err != nil {
			tlmErrors.Inc()
			expErrors.Add(1)
			log.Errorf("Failed to encode alarm for rule %s: %s", p.RuleID, err)
			continue
		}
		if err := e.publisher.Publish(e.topic, 1, false, data); err != nil {
			tlmErrors.Inc()
			expErrors.Add(1)
			log.Errorf("Failed to publish alarm for rule %s: %s", p.RuleID, err)
			continue
		}
		tlmPublished.Inc()
		expPublished.Add(1)
		log.Infof("Published alarm for rule %s on device %s", p.RuleID, p.DeviceID)
	}
}
