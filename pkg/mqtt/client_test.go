// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package mqtt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataDog/alarm-engine/pkg/config"
)

func TestNewBuildsBrokerURI(t *testing.T) {
	c := New(config.TransportSettings{
		Broker:             "broker.example.com",
		Port:               8883,
		ClientID:           "alarm-engine",
		ConnectTimeoutSecs: 5,
	})

	assert.Equal(t, "tcp://broker.example.com:8883", c.broker)
	assert.Equal(t, 5*time.Second, c.connectTimeout)
	require.NotNil(t, c.client)
}

func TestSubscriptionsAreRegisteredForReconnect(t *testing.T) {
	c := New(config.TransportSettings{
		Broker:             "localhost",
		Port:               1883,
		ConnectTimeoutSecs: 1,
	})

	// registration happens before the broker round trip, so it is visible
	// even when the subscribe itself fails on a dead client
	_ = c.Subscribe("sensors/+/data", 1, func(string, []byte) {})

	c.m.Lock()
	defer c.m.Unlock()
	sub, ok := c.subs["sensors/+/data"]
	require.True(t, ok)
	assert.Equal(t, byte(1), sub.qos)
	assert.NotNil(t, sub.handler)
}
