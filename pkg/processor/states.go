// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package processor

import (
	"sync"

	"github.com/DataDog/alarm-engine/pkg/alarm"
)

// stateTable holds the in-memory violation state of every rule. The lock
// only guards the map itself; each state value is mutated by a single worker
// at a time under the per-rule serialization discipline.
type stateTable struct {
	m      sync.RWMutex
	states map[string]*alarm.State
}

func newStateTable() *stateTable {
	return &stateTable{states: make(map[string]*alarm.State)}
}

// load replaces the table content, used by the boot scan.
func (t *stateTable) load(states []*alarm.State) {
	t.m.Lock()
	defer t.m.Unlock()
	t.states = make(map[string]*alarm.State, len(states))
	for _, s := range states {
		t.states[s.RuleID] = s
	}
}

func (t *stateTable) get(ruleID string) *alarm.State {
	t.m.RLock()
	defer t.m.RUnlock()
	return t.states[ruleID]
}

func (t *stateTable) set(state *alarm.State) {
	t.m.Lock()
	defer t.m.Unlock()
	t.states[state.RuleID] = state
}

// retain drops every state whose rule id fails keep, reconciling the table
// after rules are deleted.
func (t *stateTable) retain(keep func(ruleID string) bool) {
	t.m.Lock()
	defer t.m.Unlock()
	for id := range t.states {
		if !keep(id) {
			delete(t.states, id)
		}
	}
}

// countActive returns how many rules have a violation in progress, fired or
// not.
func (t *stateTable) countActive() int {
	t.m.RLock()
	defer t.m.RUnlock()
	n := 0
	for _, s := range t.states {
		if s.IsViolationActive() {
			n++
		}
	}
	return n
}

// awaitingTrigger returns the rules mid-violation that have not fired yet.
// These are the ones the recheck pass re-evaluates so a duration can elapse
// without fresh telemetry.
func (t *stateTable) awaitingTrigger() []string {
	t.m.RLock()
	defer t.m.RUnlock()
	var ids []string
	for id, s := range t.states {
		if s.Status == alarm.StatusActive {
			ids = append(ids, id)
		}
	}
	return ids
}
