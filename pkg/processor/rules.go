// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package processor

import (
	"context"
	"sync"

	"github.com/DataDog/alarm-engine/pkg/alarm"
)

// ruleLister is the slice of the store the rule index needs.
type ruleLister interface {
	ListRules(ctx context.Context, deviceID string, enabledOnly bool) ([]*alarm.Rule, error)
}

// ruleIndex is the engine's read path for rules. It is rebuilt wholesale on
// refresh, so lookups hand out shared slices that are never mutated.
//
// byID keeps disabled rules so their violation states survive a
// disable/enable cycle; byDevice only routes enabled rules to evaluation.
type ruleIndex struct {
	lister ruleLister

	m        sync.RWMutex
	byID     map[string]*alarm.Rule
	byDevice map[string][]*alarm.Rule
}

func newRuleIndex(lister ruleLister) *ruleIndex {
	return &ruleIndex{
		lister:   lister,
		byID:     make(map[string]*alarm.Rule),
		byDevice: make(map[string][]*alarm.Rule),
	}
}

func (ri *ruleIndex) refresh(ctx context.Context) error {
	rules, err := ri.lister.ListRules(ctx, "", false)
	if err != nil {
		return err
	}

	byID := make(map[string]*alarm.Rule, len(rules))
	byDevice := make(map[string][]*alarm.Rule)
	for _, rule := range rules {
		byID[rule.RuleID] = rule
		if rule.Enabled {
			byDevice[rule.DeviceID] = append(byDevice[rule.DeviceID], rule)
		}
	}

	ri.m.Lock()
	ri.byID = byID
	ri.byDevice = byDevice
	ri.m.Unlock()
	return nil
}

// forDevice returns the enabled rules watching a device.
func (ri *ruleIndex) forDevice(deviceID string) []*alarm.Rule {
	ri.m.RLock()
	defer ri.m.RUnlock()
	return ri.byDevice[deviceID]
}

func (ri *ruleIndex) get(ruleID string) (*alarm.Rule, bool) {
	ri.m.RLock()
	defer ri.m.RUnlock()
	rule, ok := ri.byID[ruleID]
	return rule, ok
}

func (ri *ruleIndex) count() int {
	ri.m.RLock()
	defer ri.m.RUnlock()
	return len(ri.byID)
}
