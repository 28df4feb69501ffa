// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package app

import (
	_ "expvar"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/benbjohnson/clock"
	"github.com/spf13/cobra"

	"github.com/DataDog/alarm-engine/pkg/config"
	"github.com/DataDog/alarm-engine/pkg/mqtt"
	"github.com/DataDog/alarm-engine/pkg/processor"
	"github.com/DataDog/alarm-engine/pkg/store"
	"github.com/DataDog/alarm-engine/pkg/telemetry"
	"github.com/DataDog/alarm-engine/pkg/util/log"
	"github.com/DataDog/alarm-engine/pkg/version"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the alarm engine",
	Long:  `Runs the alarm engine in the foreground`,
	RunE:  start,
}

func init() {
	// attach the command to the root
	AlarmEngineCmd.AddCommand(startCmd)
}

func start(_ *cobra.Command, _ []string) error {
	cfg := config.New()
	if err := config.Load(cfg, confFilePath); err != nil {
		return fmt.Errorf("unable to load the configuration: %w", err)
	}

	err := config.SetupLogger(
		cfg.GetString("logging.level"),
		cfg.GetString("logging.file"),
		cfg.GetString("logging.format"),
	)
	if err != nil {
		return fmt.Errorf("unable to set up the logger: %w", err)
	}
	log.Infof("Starting alarm engine v%s", version.EngineVersion)

	// expvar, pprof and prometheus server
	if port := cfg.GetInt("telemetry.port"); cfg.GetBool("telemetry.enabled") && port > 0 {
		http.Handle("/telemetry", telemetry.Handler())
		go func() {
			err := http.ListenAndServe(fmt.Sprintf("127.0.0.1:%d", port), http.DefaultServeMux)
			if err != nil {
				log.Errorf("Error creating telemetry server on port %d: %s", port, err)
			}
		}()
	}

	clk := clock.New()
	st, err := store.New(config.Store(cfg).Path, clk)
	if err != nil {
		log.Criticalf("Unable to open the alarm store: %s", err)
		return err
	}

	client := mqtt.New(config.Transport(cfg))
	engine := processor.New(client, st, clk, processor.Options{
		Transport:  config.Transport(cfg),
		Processing: config.Processing(cfg),
		Defaults:   config.Defaults(cfg),
	})
	if err := engine.Start(); err != nil {
		log.Criticalf("Unable to start the alarm engine: %s", err)
		_ = st.Close()
		return err
	}

	// Setup a channel to catch OS signals
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)

	// Block here until we receive a stop signal or the store gives up
	select {
	case sig := <-signalCh:
		log.Infof("Received signal '%s', shutting down...", sig)
	case err := <-engine.Fatal():
		log.Criticalf("Fatal storage failure: %s", err)
		engine.Stop()
		_ = st.Close()
		log.Flush()
		os.Exit(1)
	}

	engine.Stop()
	if err := st.Close(); err != nil {
		log.Warnf("Error closing the alarm store: %s", err)
	}
	log.Info("See ya!")
	log.Flush()
	return nil
}
