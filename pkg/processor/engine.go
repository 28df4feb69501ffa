// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package processor hosts the alarm evaluation pipeline.
//
// Telemetry admitted by the dispatcher fans out to hashed evaluation
// workers, one rule always landing on the same worker. Each evaluation
// drives the violation state machine, persists the outcome and, on a fire,
// hands the alarm payload to the emitter. The Engine owns the pipeline's
// lifecycle plus the periodic work around it: status reporting, rechecking
// violations so durations elapse without fresh telemetry, rule refresh and
// history retention.
package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/robfig/cron/v3"

	"github.com/DataDog/alarm-engine/pkg/config"
	"github.com/DataDog/alarm-engine/pkg/devicecache"
	"github.com/DataDog/alarm-engine/pkg/emitter"
	"github.com/DataDog/alarm-engine/pkg/ingress"
	"github.com/DataDog/alarm-engine/pkg/store"
	"github.com/DataDog/alarm-engine/pkg/util/log"
)

// retentionSchedule prunes history nightly, off the busy hours.
const retentionSchedule = "30 0 * * *"

// transport is the broker surface the engine drives.
type transport interface {
	Connect() error
	Disconnect(quiesce time.Duration)
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// Options carries the configuration sections the engine consumes.
type Options struct {
	Transport  config.TransportSettings
	Processing config.ProcessingSettings
	Defaults   config.DefaultsSettings
}

// Engine wires the pipeline together and runs it.
type Engine struct {
	client transport
	store  *store.Store
	clock  clock.Clock
	opts   Options

	cache      *devicecache.Cache
	states     *stateTable
	rules      *ruleIndex
	dispatcher *dispatcher
	decoder    *ingress.Decoder
	emitter    *emitter.Emitter
	cron       *cron.Cron

	stopLoops chan struct{}
	loopsDone chan struct{}
	fatalCh   chan error
}

// New assembles an engine. Nothing runs until Start.
func New(client transport, st *store.Store, clk clock.Clock, opts Options) *Engine {
	e := &Engine{
		client:    client,
		store:     st,
		clock:     clk,
		opts:      opts,
		cache:     devicecache.New(),
		states:    newStateTable(),
		cron:      cron.New(),
		stopLoops: make(chan struct{}),
		loopsDone: make(chan struct{}),
		fatalCh:   make(chan error, 1),
	}
	e.rules = newRuleIndex(st)
	e.emitter = emitter.New(client, opts.Transport.AlarmTopic, opts.Transport.PublishQueueCapacity)

	freshness := time.Duration(opts.Defaults.ShuntFreshnessSecs) * time.Second
	eval := newEvaluator(clk, e.cache, e.states, st, e.emitter, freshness, e.reportFatal)

	e.dispatcher = newDispatcher(e.cache, e.rules, eval, opts.Processing.MaxWorkers, opts.Processing.IntakeCapacity)
	e.decoder = ingress.New(e.dispatcher, clk, opts.Transport.DecodeWorkers)
	return e
}

// Start loads persisted state, brings the pipeline up and connects to the
// broker. On failure everything already started is torn down.
func (e *Engine) Start() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	states, err := e.store.ListStates(ctx)
	if err != nil {
		return fmt.Errorf("loading alarm states: %w", err)
	}
	e.states.load(states)
	active := e.states.countActive()
	tlmActiveAlarms.Set(float64(active))
	log.Infof("Loaded %d existing alarm states, %d violations in progress", len(states), active)

	if err := e.rules.refresh(ctx); err != nil {
		return fmt.Errorf("loading alarm rules: %w", err)
	}
	log.Infof("Loaded %d alarm rules", e.rules.count())

	e.emitter.Start()
	e.dispatcher.start()
	e.decoder.Start()

	if err := e.client.Connect(); err != nil {
		e.stopPipeline()
		return err
	}
	if err := e.client.Subscribe(e.opts.Transport.SubscribeTopic, 1, e.decoder.HandleMessage); err != nil {
		e.client.Disconnect(250 * time.Millisecond)
		e.stopPipeline()
		return err
	}

	if _, err := e.cron.AddFunc(retentionSchedule, e.pruneHistory); err != nil {
		e.client.Disconnect(250 * time.Millisecond)
		e.stopPipeline()
		return fmt.Errorf("scheduling history retention: %w", err)
	}
	e.cron.Start()

	go e.loops()
	log.Infof("Alarm engine started")
	return nil
}

// Stop shuts the engine down in dependency order: periodic work first, then
// the broker feed, then the pipeline drain, with a final retention pass.
func (e *Engine) Stop() {
	log.Infof("Stopping alarm engine")
	<-e.cron.Stop().Done()
	close(e.stopLoops)
	<-e.loopsDone
	e.client.Disconnect(250 * time.Millisecond)
	e.stopPipeline()
	e.pruneHistory()
	log.Infof("Alarm engine stopped")
}

// Fatal reports unrecoverable failures, such as a corrupt store. The service
// lifecycle listens on it and shuts down.
func (e *Engine) Fatal() <-chan error {
	return e.fatalCh
}

func (e *Engine) stopPipeline() {
	e.decoder.Stop()
	e.dispatcher.stop(time.Duration(secondsOrDefault(e.opts.Processing.DrainTimeoutSecs, 10)) * time.Second)
	e.emitter.Stop()
}

func (e *Engine) loops() {
	defer close(e.loopsDone)
	status, stopStatus := tickerChan(e.clock, e.opts.Processing.CheckIntervalSecs)
	recheck, stopRecheck := tickerChan(e.clock, e.opts.Processing.RecheckIntervalSecs)
	refresh, stopRefresh := tickerChan(e.clock, e.opts.Processing.RuleRefreshSecs)
	defer stopStatus()
	defer stopRecheck()
	defer stopRefresh()

	for {
		select {
		case <-e.stopLoops:
			return
		case <-status:
			e.reportStatus()
		case <-recheck:
			e.recheckPending()
		case <-refresh:
			e.refreshRules()
		}
	}
}

// tickerChan returns a ticking channel, or a nil channel that never fires
// when the interval is zero, disabling that loop.
func tickerChan(clk clock.Clock, secs int) (<-chan time.Time, func()) {
	if secs <= 0 {
		return nil, func() {}
	}
	t := clk.Ticker(time.Duration(secs) * time.Second)
	return t.C, t.Stop
}

func (e *Engine) reportStatus() {
	devices := e.cache.Size()
	active := e.states.countActive()
	intake := e.dispatcher.intakeDepth()
	tlmDevices.Set(float64(devices))
	tlmActiveAlarms.Set(float64(active))
	tlmIntakeDepth.Set(float64(intake))
	log.Infof("Service Status - Devices: %d, Active Alarms: %d, Intake: %d", devices, active, intake)
}

func (e *Engine) recheckPending() {
	for _, id := range e.states.awaitingTrigger() {
		rule, ok := e.rules.get(id)
		if !ok || !rule.Enabled {
			continue
		}
		e.dispatcher.recheck(rule)
	}
}

func (e *Engine) refreshRules() {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := e.rules.refresh(ctx); err != nil {
		log.Warnf("Failed to refresh rules: %s", err)
		return
	}
	// states of deleted rules go away with them
	e.states.retain(func(id string) bool {
		_, ok := e.rules.get(id)
		return ok
	})
}

func (e *Engine) pruneHistory() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := e.store.PruneHistory(ctx, e.opts.Defaults.RetentionDays); err != nil {
		log.Errorf("Failed to prune alarm history: %s", err)
	}
}

func (e *Engine) reportFatal(err error) {
	select {
	case e.fatalCh <- err:
	default:
	}
}

func secondsOrDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
