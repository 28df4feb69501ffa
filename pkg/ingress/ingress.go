// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package ingress turns raw broker messages into telemetry readings.
//
// Messages arrive on `sensors/<device_id>/data`. The device identity comes
// from the topic; a device_id inside the payload is advisory only and loses
// to the topic when they disagree. Numeric payload fields become the reading
// map, with the reserved keys device_id and timestamp carved out. Anything
// that fails topic validation or decoding is counted and dropped, never
// propagated.
package ingress

import (
	"encoding/json"
	"expvar"
	"strings"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/DataDog/alarm-engine/pkg/alarm"
	"github.com/DataDog/alarm-engine/pkg/telemetry"
	"github.com/DataDog/alarm-engine/pkg/util/log"
)

const queueSize = 1000

var (
	ingressExpvars = expvar.NewMap("ingress")
	expReceived    = &expvar.Int{}
	expDecoded     = &expvar.Int{}
	expBadTopic    = &expvar.Int{}
	expBadDecode   = &expvar.Int{}
	expDropped     = &expvar.Int{}

	tlmReceived = telemetry.NewCounter("ingress", "received", nil,
		"Raw messages received from the broker")
	tlmDecoded = telemetry.NewCounter("ingress", "decoded", nil,
		"Messages decoded into telemetry readings")
	tlmBadTopic = telemetry.NewCounter("ingress", "badtopic", nil,
		"Messages dropped for a malformed topic")
	tlmBadDecode = telemetry.NewCounter("ingress", "baddecode", nil,
		"Messages dropped for an undecodable payload")
	tlmDropped = telemetry.NewCounter("ingress", "dropped", nil,
		"Messages dropped because the decode queue was full")
)

func init() {
	ingressExpvars.Set("Received", expReceived)
	ingressExpvars.Set("Decoded", expDecoded)
	ingressExpvars.Set("BadTopic", expBadTopic)
	ingressExpvars.Set("BadDecode", expBadDecode)
	ingressExpvars.Set("Dropped", expDropped)
}

// Sink receives decoded telemetry readings.
type Sink interface {
	Accept(t alarm.Telemetry)
}

type rawMessage struct {
	topic   string
	payload []byte
	arrival time.Time
}

// Decoder decodes broker messages on a small worker pool and hands the
// resulting readings to its sink.
type Decoder struct {
	sink    Sink
	clock   clock.Clock
	workers int
	queue   chan rawMessage
	done    chan struct{}
}

// New builds a decoder with the given number of workers. Start must be
// called before messages are handled.
func New(sink Sink, clk clock.Clock, workers int) *Decoder {
	if workers <= 0 {
		workers = 1
	}
	return &Decoder{
		sink:    sink,
		clock:   clk,
		workers: workers,
		queue:   make(chan rawMessage, queueSize),
		done:    make(chan struct{}),
	}
}

// Start launches the decode workers.
func (d *Decoder) Start() {
	for i := 0; i < d.workers; i++ {
		go d.run()
	}
	log.Infof("Started %d decode workers", d.workers)
}

// Stop drains the queue and waits for the workers to finish. The transport
// must be disconnected first so no handler is still enqueuing.
func (d *Decoder) Stop() {
	close(d.queue)
	for i := 0; i < d.workers; i++ {
		<-d.done
	}
}

// HandleMessage enqueues a raw broker message for decoding. It is the MQTT
// subscription callback and must not block, so a full queue drops the
// message.
func (d *Decoder) HandleMessage(topic string, payload []byte) {
	tlmReceived.Inc()
	expReceived.Add(1)

	select {
	case d.queue <- rawMessage{topic: topic, payload: payload, arrival: d.clock.Now()}:
	default:
		tlmDropped.Inc()
		expDropped.Add(1)
		log.Warnf("Decode queue full, dropping message on %s", topic)
	}
}

func (d *Decoder) run() {
	defer func() { d.done <- struct{}{} }()
	for msg := range d.queue {
		d.decode(msg)
	}
}

func (d *Decoder) decode(msg rawMessage) {
	deviceID, ok := parseTopic(msg.topic)
	if !ok {
		tlmBadTopic.Inc()
		expBadTopic.Add(1)
		log.Debugf("Ignoring message on unexpected topic %s", msg.topic)
		return
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(msg.payload, &raw); err != nil {
		tlmBadDecode.Inc()
		expBadDecode.Add(1)
		log.Warnf("Failed to decode payload from %s: %s", deviceID, err)
		return
	}

	fields := make(map[string]float64)
	sourceTime := msg.arrival
	payloadDevice := ""
	for key, value := range raw {
		switch key {
		case "device_id":
			if s, ok := value.(string); ok {
				payloadDevice = s
			}
		case "timestamp":
			if s, ok := value.(string); ok {
				if ts, err := time.Parse(time.RFC3339, s); err == nil {
					sourceTime = ts
				}
			}
		default:
			if n, ok := value.(float64); ok {
				fields[key] = n
			}
		}
	}

	if payloadDevice != "" && payloadDevice != deviceID {
		log.Warnf("Payload device_id %q does not match topic device %q, using the topic", payloadDevice, deviceID)
	}

	if len(fields) == 0 {
		tlmBadDecode.Inc()
		expBadDecode.Add(1)
		log.Warnf("No numeric fields in payload from %s", deviceID)
		return
	}

	tlmDecoded.Inc()
	expDecoded.Add(1)
	d.sink.Accept(alarm.Telemetry{
		DeviceID:    deviceID,
		Fields:      fields,
		SourceTime:  sourceTime,
		ArrivalTime: msg.arrival,
	})
}

// parseTopic extracts the device id from a `sensors/<device_id>/data` topic.
func parseTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != "sensors" || parts[1] == "" || parts[2] != "data" {
		return "", false
	}
	return parts[1], true
}
