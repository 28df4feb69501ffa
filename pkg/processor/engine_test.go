// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataDog/alarm-engine/pkg/alarm"
	"github.com/DataDog/alarm-engine/pkg/config"
	"github.com/DataDog/alarm-engine/pkg/store"
)

type publishedMsg struct {
	topic   string
	payload []byte
}

// fakeTransport stands in for the broker: it hands subscribed handlers back
// to the test and records what the engine publishes.
type fakeTransport struct {
	m          sync.Mutex
	connectErr error
	connected  bool
	handlers   map[string]func(topic string, payload []byte)
	messages   []publishedMsg
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{handlers: make(map[string]func(topic string, payload []byte))}
}

func (f *fakeTransport) Connect() error {
	f.m.Lock()
	defer f.m.Unlock()
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeTransport) Disconnect(quiesce time.Duration) {
	f.m.Lock()
	defer f.m.Unlock()
	f.connected = false
}

func (f *fakeTransport) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	f.m.Lock()
	defer f.m.Unlock()
	f.handlers[topic] = handler
	return nil
}

func (f *fakeTransport) Publish(topic string, qos byte, retained bool, payload []byte) error {
	f.m.Lock()
	defer f.m.Unlock()
	f.messages = append(f.messages, publishedMsg{topic: topic, payload: payload})
	return nil
}

func (f *fakeTransport) subscribed(topic string) bool {
	f.m.Lock()
	defer f.m.Unlock()
	_, ok := f.handlers[topic]
	return ok
}

// deliver plays a broker message into every subscribed handler. Filter
// matching is the broker's job, not replicated here.
func (f *fakeTransport) deliver(topic, payload string) {
	f.m.Lock()
	handlers := make([]func(topic string, payload []byte), 0, len(f.handlers))
	for _, h := range f.handlers {
		handlers = append(handlers, h)
	}
	f.m.Unlock()
	for _, h := range handlers {
		h(topic, []byte(payload))
	}
}

func (f *fakeTransport) published() []publishedMsg {
	f.m.Lock()
	defer f.m.Unlock()
	out := make([]publishedMsg, len(f.messages))
	copy(out, f.messages)
	return out
}

func testOptions() Options {
	return Options{
		Transport: config.TransportSettings{
			SubscribeTopic:       "sensors/+/data",
			AlarmTopic:           "alarms/notifications",
			PublishQueueCapacity: 10,
			DecodeWorkers:        1,
		},
		// the periodic passes are invoked directly by the tests; the long
		// intervals keep the tickers from firing on mock clock advances
		Processing: config.ProcessingSettings{
			MaxWorkers:          2,
			IntakeCapacity:      100,
			CheckIntervalSecs:   3600,
			RecheckIntervalSecs: 3600,
			RuleRefreshSecs:     3600,
			DrainTimeoutSecs:    5,
		},
		Defaults: config.DefaultsSettings{
			RetentionDays:      30,
			ShuntFreshnessSecs: 120,
		},
	}
}

type engineFixture struct {
	clk   *clock.Mock
	store *store.Store
	ft    *fakeTransport
	eng   *Engine
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(start)
	st, err := store.New(filepath.Join(t.TempDir(), "alarms.db"), clk)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ft := newFakeTransport()
	return &engineFixture{
		clk:   clk,
		store: st,
		ft:    ft,
		eng:   New(ft, st, clk, testOptions()),
	}
}

// waitForCount blocks until the persisted state for ruleID reaches the given
// violation count. Delivery is asynchronous, so each test step waits for its
// evaluation to land before moving the clock.
func (ef *engineFixture) waitForCount(t *testing.T, ruleID string, count int) {
	t.Helper()
	require.Eventually(t, func() bool {
		s, err := ef.store.GetState(context.Background(), ruleID)
		return err == nil && s.ViolationCount >= count
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEngineStartSubscribesAndStops(t *testing.T) {
	ef := newEngineFixture(t)
	require.NoError(t, ef.eng.Start())
	assert.True(t, ef.ft.subscribed("sensors/+/data"))

	ef.eng.Stop()
	assert.False(t, ef.ft.connected)
}

func TestEngineConnectFailureTearsDown(t *testing.T) {
	ef := newEngineFixture(t)
	ef.ft.connectErr = errors.New("connection refused")
	require.Error(t, ef.eng.Start())
}

func TestEngineAlarmFlow(t *testing.T) {
	ef := newEngineFixture(t)
	require.NoError(t, ef.store.SaveRule(context.Background(), tempRule(2)))
	require.NoError(t, ef.eng.Start())

	for i := 1; i <= 4; i++ {
		ef.ft.deliver("sensors/device-1/data", `{"temperature": 32.0}`)
		ef.waitForCount(t, "rule-1", i)
		assert.Empty(t, ef.ft.published())
		ef.clk.Add(30 * time.Second)
	}
	ef.ft.deliver("sensors/device-1/data", `{"temperature": 32.0}`)

	require.Eventually(t, func() bool {
		return len(ef.ft.published()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	msg := ef.ft.published()[0]
	assert.Equal(t, "alarms/notifications", msg.topic)
	var payload alarm.Payload
	require.NoError(t, json.Unmarshal(msg.payload, &payload))
	assert.Equal(t, "rule-1", payload.RuleID)
	assert.Equal(t, "device-1", payload.DeviceID)
	assert.Equal(t, 32.0, payload.CurrentValue)
	assert.Equal(t, 2.0, payload.ViolationDurationMinutes)
	assert.Equal(t, alarm.SeverityHigh, payload.Severity)
	assert.Equal(t, start.Add(2*time.Minute), payload.TriggerTime)

	state, err := ef.store.GetState(context.Background(), "rule-1")
	require.NoError(t, err)
	assert.Equal(t, alarm.StatusTriggered, state.Status)

	recs, err := ef.store.ListHistory(context.Background(), "rule-1")
	require.NoError(t, err)
	require.Len(t, recs, 1)

	ef.eng.reportStatus()
	assert.Equal(t, 1.0, tlmDevices.Get())
	assert.Equal(t, 1.0, tlmActiveAlarms.Get())

	ef.eng.Stop()
}

func TestEngineBootScanRestoresStates(t *testing.T) {
	ef := newEngineFixture(t)
	ctx := context.Background()
	require.NoError(t, ef.store.SaveRule(ctx, tempRule(2)))
	s := alarm.NewState("rule-1", "device-1", start)
	s.StartViolation(start, 32.0, nil)
	require.NoError(t, ef.store.SaveState(ctx, s))

	require.NoError(t, ef.eng.Start())
	restored := ef.eng.states.get("rule-1")
	require.NotNil(t, restored)
	assert.Equal(t, alarm.StatusActive, restored.Status)
	assert.Equal(t, 1, ef.eng.states.countActive())
	ef.eng.Stop()
}

func TestEngineRecheckFiresMaturedViolation(t *testing.T) {
	ef := newEngineFixture(t)
	require.NoError(t, ef.store.SaveRule(context.Background(), tempRule(1)))
	require.NoError(t, ef.eng.Start())

	ef.ft.deliver("sensors/device-1/data", `{"temperature": 32.0}`)
	ef.waitForCount(t, "rule-1", 1)

	// no further telemetry; the periodic recheck lets the duration elapse
	ef.clk.Add(61 * time.Second)
	ef.eng.recheckPending()

	require.Eventually(t, func() bool {
		return len(ef.ft.published()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	ef.eng.Stop()
}

func TestRefreshRulesPrunesDeletedStates(t *testing.T) {
	ef := newEngineFixture(t)
	ctx := context.Background()
	for i := 1; i <= 2; i++ {
		rule := tempRule(2)
		rule.RuleID = fmt.Sprintf("rule-%d", i)
		require.NoError(t, ef.store.SaveRule(ctx, rule))
		s := alarm.NewState(rule.RuleID, rule.DeviceID, start)
		s.StartViolation(start, 32.0, nil)
		require.NoError(t, ef.store.SaveState(ctx, s))
	}

	states, err := ef.store.ListStates(ctx)
	require.NoError(t, err)
	ef.eng.states.load(states)
	require.NoError(t, ef.eng.rules.refresh(ctx))

	require.NoError(t, ef.store.DeleteRule(ctx, "rule-2"))
	ef.eng.refreshRules()

	assert.NotNil(t, ef.eng.states.get("rule-1"))
	assert.Nil(t, ef.eng.states.get("rule-2"))
}

func TestDisabledRuleKeepsStateAcrossRefresh(t *testing.T) {
	ef := newEngineFixture(t)
	ctx := context.Background()
	rule := tempRule(2)
	require.NoError(t, ef.store.SaveRule(ctx, rule))
	s := alarm.NewState("rule-1", "device-1", start)
	s.StartViolation(start, 32.0, nil)
	require.NoError(t, ef.store.SaveState(ctx, s))

	states, err := ef.store.ListStates(ctx)
	require.NoError(t, err)
	ef.eng.states.load(states)
	require.NoError(t, ef.eng.rules.refresh(ctx))

	rule.Enabled = false
	require.NoError(t, ef.store.SaveRule(ctx, rule))
	ef.eng.refreshRules()

	// disabled is not deleted, the violation state stays for a later re-enable
	assert.Empty(t, ef.eng.rules.forDevice("device-1"))
	assert.NotNil(t, ef.eng.states.get("rule-1"))
}
