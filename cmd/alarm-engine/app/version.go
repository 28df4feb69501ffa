// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package app

import (
	"fmt"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/DataDog/alarm-engine/pkg/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version info",
	Long:  ``,
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Fprintln(
			color.Output,
			fmt.Sprintf("Alarm Engine %s - Commit: %s - Go version: %s",
				color.CyanString(version.EngineVersion),
				color.GreenString(version.Commit),
				color.RedString(runtime.Version()),
			),
		)
	},
}

func init() {
	// attach the command to the root
	AlarmEngineCmd.AddCommand(versionCmd)
}
