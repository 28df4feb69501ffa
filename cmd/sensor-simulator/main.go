// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package main

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/DataDog/alarm-engine/pkg/config"
	"github.com/DataDog/alarm-engine/pkg/mqtt"
	"github.com/DataDog/alarm-engine/pkg/util/log"
)

var (
	broker  string
	port    int
	devices int
	period  time.Duration

	simulatorCmd = &cobra.Command{
		Use:   "sensor-simulator",
		Short: "Publish simulated device telemetry to an MQTT broker",
		Long: `
Publishes a temperature and current reading per device on
sensors/<device_id>/data until interrupted. Pairs with the rule set
installed by alarm-cli seed.`,
		RunE: run,
	}
)

// reading matches the payload shape the engine ingests.
type reading struct {
	DeviceID    string  `json:"device_id"`
	Temperature float64 `json:"temperature"`
	Current     int     `json:"current"`
	Timestamp   string  `json:"timestamp"`
}

func init() {
	simulatorCmd.Flags().StringVar(&broker, "broker", "localhost", "MQTT broker host")
	simulatorCmd.Flags().IntVar(&port, "port", 1883, "MQTT broker port")
	simulatorCmd.Flags().IntVar(&devices, "devices", 100, "number of simulated devices")
	simulatorCmd.Flags().DurationVar(&period, "period", 5*time.Second, "time between readings per device")
}

func run(_ *cobra.Command, _ []string) error {
	if err := config.SetupLogger("info", "", "text"); err != nil {
		return err
	}

	client := mqtt.New(config.TransportSettings{
		Broker:             broker,
		Port:               port,
		ClientID:           "sensor-simulator",
		ConnectTimeoutSecs: 5,
	})
	if err := client.Connect(); err != nil {
		log.Criticalf("Unable to connect to %s:%d: %s", broker, port, err)
		return err
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 1; i <= devices; i++ {
		wg.Add(1)
		go func(deviceID string) {
			defer wg.Done()
			simulate(client, deviceID, stop)
		}(fmt.Sprintf("device-%d", i))
	}
	log.Infof("Simulating %d devices, one reading every %s each", devices, period)

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	<-signalCh

	close(stop)
	wg.Wait()
	client.Disconnect(250 * time.Millisecond)
	log.Info("Simulation stopped")
	log.Flush()
	return nil
}

func simulate(client *mqtt.Client, deviceID string, stop chan struct{}) {
	// spread the devices across the period so publishes do not bunch up
	select {
	case <-time.After(time.Duration(rand.Int63n(int64(period)))):
	case <-stop:
		return
	}

	topic := fmt.Sprintf("sensors/%s/data", deviceID)
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		if err := publishReading(client, topic, deviceID); err != nil {
			log.Warnf("Unable to publish for %s: %s", deviceID, err)
		}
		select {
		case <-ticker.C:
		case <-stop:
			return
		}
	}
}

func publishReading(client *mqtt.Client, topic, deviceID string) error {
	r := reading{
		DeviceID:    deviceID,
		Temperature: math.Round((20+rand.Float64()*15)*100) / 100,
		Current:     rand.Intn(2),
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return client.Publish(topic, 0, false, payload)
}

func main() {
	if err := simulatorCmd.Execute(); err != nil {
		log.Error(err)
		log.Flush()
		os.Exit(1)
	}
}
