// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package mqtt wraps the paho client with the connection handling the engine
// needs: a bounded initial connect, automatic reconnection, and
// re-subscription of every registered topic after a reconnect.
package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"

	"github.com/DataDog/alarm-engine/pkg/config"
	"github.com/DataDog/alarm-engine/pkg/telemetry"
	"github.com/DataDog/alarm-engine/pkg/util/log"
)

const publishTimeout = 2 * time.Second

var (
	tlmConnects = telemetry.NewCounter("transport", "connects", nil,
		"MQTT broker connections established")
	tlmConnectionLost = telemetry.NewCounter("transport", "connection_lost", nil,
		"MQTT broker connections lost")
	tlmPublishErrors = telemetry.NewCounter("transport", "publish_errors", nil,
		"MQTT publish failures")
)

// Client is a thin wrapper over a paho MQTT client. Subscriptions registered
// through it survive reconnections.
type Client struct {
	broker         string
	connectTimeout time.Duration
	client         paho.Client

	m    sync.Mutex
	subs map[string]subscription
}

type subscription struct {
	qos     byte
	handler func(topic string, payload []byte)
}

// New builds a client from the transport settings. No connection is made
// until Connect is called.
func New(settings config.TransportSettings) *Client {
	c := &Client{
		broker:         fmt.Sprintf("tcp://%s:%d", settings.Broker, settings.Port),
		connectTimeout: time.Duration(settings.ConnectTimeoutSecs) * time.Second,
		subs:           make(map[string]subscription),
	}

	opts := paho.NewClientOptions().
		AddBroker(c.broker).
		SetClientID(settings.ClientID).
		SetUsername(settings.Username).
		SetPassword(settings.Password).
		SetKeepAlive(60 * time.Second).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(time.Minute).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost)

	c.client = paho.NewClient(opts)
	return c
}

// Connect establishes the initial broker connection, failing after the
// configured timeout. Later connection drops are retried by paho and do not
// surface here.
func (c *Client) Connect() error {
	token := c.client.Connect()
	if !token.WaitTimeout(c.connectTimeout) {
		return errors.Errorf("connecting to %s: timed out after %s", c.broker, c.connectTimeout)
	}
	if err := token.Error(); err != nil {
		return errors.Wrapf(err, "connecting to %s", c.broker)
	}
	return nil
}

// Disconnect flushes in-flight work and drops the connection.
func (c *Client) Disconnect(quiesce time.Duration) {
	c.client.Disconnect(uint(quiesce.Milliseconds()))
}

// Subscribe registers handler for topic and subscribes immediately. The
// registration is kept so a reconnect restores it.
func (c *Client) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	c.m.Lock()
	c.subs[topic] = subscription{qos: qos, handler: handler}
	c.m.Unlock()

	token := c.client.Subscribe(topic, qos, func(_ paho.Client, msg paho.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(c.connectTimeout) {
		return errors.Errorf("subscribing to %s: timed out after %s", topic, c.connectTimeout)
	}
	if err := token.Error(); err != nil {
		return errors.Wrapf(err, "subscribing to %s", topic)
	}
	log.Infof("Subscribed to topic %s", topic)
	return nil
}

// Publish sends payload to topic and waits briefly for the broker ack.
func (c *Client) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		tlmPublishErrors.Inc()
		return fmt.Errorf("publishing to %s: timed out after %s", topic, publishTimeout)
	}
	if err := token.Error(); err != nil {
		tlmPublishErrors.Inc()
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	return nil
}

func (c *Client) onConnect(client paho.Client) {
	tlmConnects.Inc()
	log.Infof("Connected to MQTT broker %s", c.broker)

	c.m.Lock()
	subs := make(map[string]subscription, len(c.subs))
	for topic, sub := range c.subs {
		subs[topic] = sub
	}
	c.m.Unlock()

	for topic, sub := range subs {
		handler := sub.handler
		token := client.Subscribe(topic, sub.qos, func(_ paho.Client, msg paho.Message) {
			handler(msg.Topic(), msg.Payload())
		})
		if token.WaitTimeout(c.connectTimeout) && token.Error() != nil {
			log.Errorf("Failed to resubscribe to %s: %s", topic, token.Error())
		}
	}
}

func (c *Client) onConnectionLost(_ paho.Client, err error) {
	tlmConnectionLost.Inc()
	log.Warnf("MQTT connection lost: %s", err)
}
