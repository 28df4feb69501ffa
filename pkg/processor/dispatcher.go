// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package processor

import (
	"sync"
	"time"

	"github.com/twmb/murmur3"
	"go.uber.org/atomic"

	"github.com/DataDog/alarm-engine/pkg/alarm"
	"github.com/DataDog/alarm-engine/pkg/devicecache"
	"github.com/DataDog/alarm-engine/pkg/util/log"
)

const workerQueueSize = 100

// workItem is one pending evaluation of a rule against a reading.
type workItem struct {
	seq     int64
	rule    *alarm.Rule
	fields  map[string]float64
	arrival time.Time
}

// dispatcher fans telemetry out to evaluation workers. A rule id always
// hashes to the same worker, so two evaluations of the same rule never run
// concurrently and arrive in admission order. Overflow is shed at the intake
// boundary; admitted work is never dropped.
type dispatcher struct {
	cache  *devicecache.Cache
	rules  *ruleIndex
	eval   *evaluator
	intake chan alarm.Telemetry
	queues []chan workItem
	seq    *atomic.Int64

	dispatchDone chan struct{}
	workersDone  sync.WaitGroup
}

func newDispatcher(cache *devicecache.Cache, rules *ruleIndex, eval *evaluator, workers, intakeCapacity int) *dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if intakeCapacity <= 0 {
		intakeCapacity = 1
	}
	queues := make([]chan workItem, workers)
	for i := range queues {
		queues[i] = make(chan workItem, workerQueueSize)
	}
	return &dispatcher{
		cache:        cache,
		rules:        rules,
		eval:         eval,
		intake:       make(chan alarm.Telemetry, intakeCapacity),
		queues:       queues,
		seq:          atomic.NewInt64(0),
		dispatchDone: make(chan struct{}),
	}
}

func (d *dispatcher) start() {
	for i := range d.queues {
		d.workersDone.Add(1)
		go d.work(d.queues[i])
	}
	go d.dispatch()
	tlmWorkers.Set(float64(len(d.queues)))
	log.Infof("Started %d evaluation workers", len(d.queues))
}

// stop drains admitted work within the deadline. Whatever is still queued
// past it represents unobserved readings; no state has been mutated for
// them, so discarding is safe.
func (d *dispatcher) stop(timeout time.Duration) {
	close(d.intake)
	done := make(chan struct{})
	go func() {
		<-d.dispatchDone
		for _, q := range d.queues {
			close(q)
		}
		d.workersDone.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		log.Warnf("Evaluation drain deadline reached, discarding queued work")
	}
}

// Accept admits a reading. The cache is updated before admission so even a
// shed reading refreshes the device's last value for shunt reads.
func (d *dispatcher) Accept(t alarm.Telemetry) {
	d.cache.Put(t.DeviceID, t.Fields, t.ArrivalTime)
	select {
	case d.intake <- t:
		tlmAccepted.Inc()
		expAccepted.Add(1)
	default:
		tlmIntakeDropped.Inc()
		expIntakeDropped.Add(1)
		log.Warnf("Intake queue full, dropping reading from %s", t.DeviceID)
	}
}

// recheck queues a synthetic evaluation of rule against its device's cached
// reading. It rides the same worker queues as live telemetry, keeping the
// per-rule serialization intact.
func (d *dispatcher) recheck(rule *alarm.Rule) {
	entry, ok := d.cache.Get(rule.DeviceID)
	if !ok {
		return
	}
	d.enqueue(rule, entry.Fields, entry.LastUpdate)
}

func (d *dispatcher) dispatch() {
	defer close(d.dispatchDone)
	for t := range d.intake {
		for _, rule := range d.rules.forDevice(t.DeviceID) {
			d.enqueue(rule, t.Fields, t.ArrivalTime)
		}
	}
}

func (d *dispatcher) work(queue chan workItem) {
	defer d.workersDone.Done()
	for item := range queue {
		d.eval.evaluate(item)
	}
}

// intakeDepth reports how many admitted readings await dispatch.
func (d *dispatcher) intakeDepth() int {
	return len(d.intake)
}

func (d *dispatcher) enqueue(rule *alarm.Rule, fields map[string]float64, arrival time.Time) {
	item := workItem{
		seq:     d.seq.Inc(),
		rule:    rule,
		fields:  fields,
		arrival: arrival,
	}
	d.queues[fastrange(murmur3.StringSum64(rule.RuleID), len(d.queues))] <- item
}

// Use fastrange instead of a modulo for better performance.
// See http://lemire.me/blog/2016/06/27/a-fast-alternative-to-the-modulo-reduction/.
//
// The hash is shifted because fastrange operates on 32 bits values; half of
// the rule id hash is unique enough for a shard key.
func fastrange(key uint64, workerCount int) uint32 {
	return uint32((key >> 32 * uint64(workerCount)) >> 32)
}
