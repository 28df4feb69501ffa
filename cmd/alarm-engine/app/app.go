// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package app

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// AlarmEngineCmd is the root command
	AlarmEngineCmd = &cobra.Command{
		Use:   "alarm-engine [command]",
		Short: "IoT telemetry alarm engine at your service.",
		Long: `
The alarm engine subscribes to device telemetry over MQTT, evaluates
threshold rules against it and publishes alarm notifications once a
violation has lasted its configured duration.`,
		SilenceUsage:     true,
		PersistentPreRun: preRun,
	}

	// confFilePath holds the path to the configuration file, to allow
	// overrides from the command line
	confFilePath string
	flagNoColor  bool
)

func preRun(_ *cobra.Command, _ []string) {
	if flagNoColor {
		color.NoColor = true
	}
}

func init() {
	AlarmEngineCmd.PersistentFlags().StringVarP(&confFilePath, "cfgpath", "c", "", "path to alarm-engine.yaml")
	AlarmEngineCmd.PersistentFlags().BoolVarP(&flagNoColor, "no-color", "n", false, "disable color output")
}
