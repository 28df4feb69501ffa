// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package devicecache keeps the most recent decoded reading of every device,
// so conditional rules can evaluate their shunt predicate against another
// device without waiting for that device to publish again.
package devicecache

import (
	"sync"
	"time"
)

// Entry is the snapshot held for one device.
type Entry struct {
	Fields     map[string]float64
	LastUpdate time.Time
}

// Cache is a threadsafe last-write-wins map of device readings. Entries are
// never expired here; readers judge freshness against Entry.LastUpdate.
type Cache struct {
	m       sync.RWMutex
	entries map[string]Entry
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{
		entries: make(map[string]Entry),
	}
}

// Put replaces the entry for deviceID wholesale. The cache takes ownership
// of fields; callers must not write to the map afterwards.
func (c *Cache) Put(deviceID string, fields map[string]float64, arrival time.Time) {
	c.m.Lock()
	defer c.m.Unlock()

	c.entries[deviceID] = Entry{
		Fields:     fields,
		LastUpdate: arrival,
	}
}

// Get returns a snapshot of the entry for deviceID. The returned fields are
// a copy and stay stable under concurrent writes.
func (c *Cache) Get(deviceID string) (Entry, bool) {
	c.m.RLock()
	defer c.m.RUnlock()

	e, ok := c.entries[deviceID]
	if !ok {
		return Entry{}, false
	}

	fields := make(map[string]float64, len(e.Fields))
	for k, v := range e.Fields {
		fields[k] = v
	}
	return Entry{Fields: fields, LastUpdate: e.LastUpdate}, true
}

// Size returns the number of devices seen so far.
func (c *Cache) Size() int {
	c.m.RLock()
	defer c.m.RUnlock()

	return len(c.entries)
}
