// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataDog/alarm-engine/pkg/alarm"
)

func newTestStore(t *testing.T) (*Store, *clock.Mock) {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	s, err := New(filepath.Join(t.TempDir(), "alarms.db"), clk)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, clk
}

func TestSaveAndGetRule(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	rule := alarm.NewSimpleRule("rule-1", "device-1", "temperature", alarm.OpGreaterThan, 30, 2, "high temperature")
	require.NoError(t, s.SaveRule(ctx, rule))

	got, err := s.GetRule(ctx, "rule-1")
	require.NoError(t, err)
	assert.Equal(t, rule, got)

	_, err = s.GetRule(ctx, "no-such-rule")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveRulePreservesCreatedAt(t *testing.T) {
	s, clk := newTestStore(t)
	ctx := context.Background()
	created := clk.Now()

	rule := alarm.NewSimpleRule("rule-1", "device-1", "temperature", alarm.OpGreaterThan, 30, 2, "high temperature")
	require.NoError(t, s.SaveRule(ctx, rule))

	clk.Add(time.Hour)
	got, err := s.GetRule(ctx, "rule-1")
	require.NoError(t, err)
	got.Description = "updated description"
	require.NoError(t, s.SaveRule(ctx, got))

	got, err = s.GetRule(ctx, "rule-1")
	require.NoError(t, err)
	assert.Equal(t, "updated description", got.Description)
	assert.Equal(t, created, got.CreatedAt)
	assert.Equal(t, created.Add(time.Hour), got.UpdatedAt)
}

func TestListRulesFilters(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	r1 := alarm.NewSimpleRule("rule-1", "device-1", "temperature", alarm.OpGreaterThan, 30, 2, "")
	r2 := alarm.NewSimpleRule("rule-2", "device-1", "humidity", alarm.OpLessThan, 20, 5, "")
	r2.Enabled = false
	r3 := alarm.NewSimpleRule("rule-3", "device-2", "pressure", alarm.OpGreaterEqual, 1000, 1, "")
	for _, r := range []*alarm.Rule{r3, r1, r2} {
		require.NoError(t, s.SaveRule(ctx, r))
	}

	all, err := s.ListRules(ctx, "", false)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "rule-1", all[0].RuleID)
	assert.Equal(t, "rule-3", all[2].RuleID)

	byDevice, err := s.ListRules(ctx, "device-1", false)
	require.NoError(t, err)
	assert.Len(t, byDevice, 2)

	enabled, err := s.ListRules(ctx, "", true)
	require.NoError(t, err)
	assert.Len(t, enabled, 2)

	both, err := s.ListRules(ctx, "device-1", true)
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, "rule-1", both[0].RuleID)
}

func TestDeleteRuleCascadesState(t *testing.T) {
	s, clk := newTestStore(t)
	ctx := context.Background()

	rule := alarm.NewSimpleRule("rule-1", "device-1", "temperature", alarm.OpGreaterThan, 30, 2, "")
	require.NoError(t, s.SaveRule(ctx, rule))
	require.NoError(t, s.SaveState(ctx, alarm.NewState("rule-1", "device-1", clk.Now())))

	require.NoError(t, s.DeleteRule(ctx, "rule-1"))

	_, err := s.GetRule(ctx, "rule-1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetState(ctx, "rule-1")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, s.DeleteRule(ctx, "rule-1"), ErrNotFound)
}

func TestSaveStateRoundTrip(t *testing.T) {
	s, clk := newTestStore(t)
	ctx := context.Background()

	state := alarm.NewState("rule-1", "device-1", clk.Now())
	state.StartViolation(clk.Now(), 31.5, nil)
	require.NoError(t, s.SaveState(ctx, state))

	got, err := s.GetState(ctx, "rule-1")
	require.NoError(t, err)
	assert.Equal(t, state, got)

	states, err := s.ListStates(ctx)
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Equal(t, "rule-1", states[0].RuleID)
}

func TestSaveStateAndHistory(t *testing.T) {
	s, clk := newTestStore(t)
	ctx := context.Background()
	now := clk.Now()

	rule := alarm.NewSimpleRule("rule-1", "device-1", "temperature", alarm.OpGreaterThan, 30, 2, "high temperature")
	state := alarm.NewState("rule-1", "device-1", now)
	state.StartViolation(now, 31.5, nil)
	state.TriggerAlarm(now)

	rec := &alarm.HistoryRecord{
		RuleID:    "rule-1",
		DeviceID:  "device-1",
		Alarm:     alarm.BuildPayload(rule, state, 31.5, nil, now),
		Timestamp: now,
	}
	require.NoError(t, s.SaveStateAndHistory(ctx, state, rec))
	assert.Equal(t, int64(1), rec.Seq)

	got, err := s.GetState(ctx, "rule-1")
	require.NoError(t, err)
	assert.Equal(t, alarm.StatusTriggered, got.Status)

	recs, err := s.ListHistory(ctx, "rule-1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, rec.Alarm, recs[0].Alarm)
	assert.WithinDuration(t, now, recs[0].Timestamp, time.Millisecond)

	rec2 := &alarm.HistoryRecord{
		RuleID:    "rule-1",
		DeviceID:  "device-1",
		Alarm:     alarm.BuildPayload(rule, state, 32.5, nil, now.Add(time.Hour)),
		Timestamp: now.Add(time.Hour),
	}
	require.NoError(t, s.SaveStateAndHistory(ctx, state, rec2))
	assert.Equal(t, int64(2), rec2.Seq)

	recs, err = s.ListHistory(ctx, "rule-1")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Less(t, recs[0].Seq, recs[1].Seq)
}

func TestPruneHistory(t *testing.T) {
	s, clk := newTestStore(t)
	ctx := context.Background()
	now := clk.Now()

	rule := alarm.NewSimpleRule("rule-1", "device-1", "temperature", alarm.OpGreaterThan, 30, 2, "")
	state := alarm.NewState("rule-1", "device-1", now)

	old := &alarm.HistoryRecord{
		RuleID:    "rule-1",
		DeviceID:  "device-1",
		Alarm:     alarm.BuildPayload(rule, state, 31.5, nil, now.AddDate(0, 0, -40)),
		Timestamp: now.AddDate(0, 0, -40),
	}
	fresh := &alarm.HistoryRecord{
		RuleID:    "rule-1",
		DeviceID:  "device-1",
		Alarm:     alarm.BuildPayload(rule, state, 32.5, nil, now),
		Timestamp: now,
	}
	require.NoError(t, s.SaveStateAndHistory(ctx, state, old))
	require.NoError(t, s.SaveStateAndHistory(ctx, state, fresh))

	deleted, err := s.PruneHistory(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	recs, err := s.ListHistory(ctx, "rule-1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, fresh.Seq, recs[0].Seq)
}

func TestReopenKeepsData(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	path := filepath.Join(t.TempDir(), "alarms.db")
	ctx := context.Background()

	s, err := New(path, clk)
	require.NoError(t, err)
	rule := alarm.NewSimpleRule("rule-1", "device-1", "temperature", alarm.OpGreaterThan, 30, 2, "")
	require.NoError(t, s.SaveRule(ctx, rule))
	state := alarm.NewState("rule-1", "device-1", clk.Now())
	state.StartViolation(clk.Now(), 31.5, nil)
	require.NoError(t, s.SaveState(ctx, state))
	require.NoError(t, s.Close())

	s, err = New(path, clk)
	require.NoError(t, err)
	defer s.Close()

	gotRule, err := s.GetRule(ctx, "rule-1")
	require.NoError(t, err)
	assert.Equal(t, rule, gotRule)

	gotState, err := s.GetState(ctx, "rule-1")
	require.NoError(t, err)
	assert.Equal(t, alarm.StatusActive, gotState.Status)
}
