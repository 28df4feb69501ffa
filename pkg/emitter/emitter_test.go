// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package emitter

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataDog/alarm-engine/pkg/alarm"
)

type fakePublisher struct {
	m        sync.Mutex
	topics   []string
	payloads [][]byte
	failures int
}

func (p *fakePublisher) Publish(topic string, qos byte, retained bool, payload []byte) error {
	p.m.Lock()
	defer p.m.Unlock()
	if p.failures > 0 {
		p.failures--
		return errors.New("broker unavailable")
	}
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, payload)
	return nil
}

func (p *fakePublisher) published() [][]byte {
	p.m.Lock()
	defer p.m.Unlock()
	out := make([][]byte, len(p.payloads))
	copy(out, p.payloads)
	return out
}

func payloadFor(ruleID string) alarm.Payload {
	return alarm.Payload{RuleID: ruleID, DeviceID: "device-1", Severity: alarm.SeverityHigh}
}

func TestEmitPublishesInOrder(t *testing.T) {
	pub := &fakePublisher{}
	e := New(pub, "alarms/notifications", 10)
	e.Start()

	e.Emit(payloadFor("rule-1"))
	e.Emit(payloadFor("rule-2"))
	e.Stop()

	payloads := pub.published()
	require.Len(t, payloads, 2)
	assert.Equal(t, "alarms/notifications", pub.topics[0])

	var got alarm.Payload
	require.NoError(t, json.Unmarshal(payloads[0], &got))
	assert.Equal(t, "rule-1", got.RuleID)
	require.NoError(t, json.Unmarshal(payloads[1], &got))
	assert.Equal(t, "rule-2", got.RuleID)
}

func TestQueueFullDrops(t *testing.T) {
	dropped := tlmDropped.Get()
	pub := &fakePublisher{}
	e := New(pub, "alarms/notifications", 2)

	// not started yet, so the queue fills
	e.Emit(payloadFor("rule-1"))
	e.Emit(payloadFor("rule-2"))
	e.Emit(payloadFor("rule-3"))

	assert.Equal(t, dropped+1, tlmDropped.Get())

	e.Start()
	e.Stop()
	assert.Len(t, pub.published(), 2)
}

func TestPublishFailureSkipsAndContinues(t *testing.T) {
	errs := tlmErrors.Get()
	pub := &fakePublisher{failures: 1}
	e := New(pub, "alarms/notifications", 10)
	e.Start()

	e.Emit(payloadFor("rule-1"))
	e.Emit(payloadFor("rule-2"))
	e.Stop()

	payloads := pub.published()
	require.Len(t, payloads, 1)
	var got alarm.Payload
	require.NoError(t, json.Unmarshal(payloads[0], &got))
	assert.Equal(t, "rule-2", got.RuleID)
	assert.Equal(t, errs+1, tlmErrors.Get())
}

func TestStopFlushesQueued(t *testing.T) {
	pub := &fakePublisher{}
	e := New(pub, "alarms/notifications", 10)

	e.Emit(payloadFor("rule-1"))
	e.Emit(payloadFor("rule-2"))
	e.Emit(payloadFor("rule-3"))

	e.Start()
	e.Stop()
	assert.Len(t, pub.published(), 3)
}
