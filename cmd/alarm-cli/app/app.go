// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package app implements the rule management CLI. Commands print their own
// diagnostics; errors only carry the exit code back to main: 0 success, 1
// argument error, 2 store error, 3 validation failure.
package app

import (
	"errors"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/DataDog/alarm-engine/pkg/config"
	"github.com/DataDog/alarm-engine/pkg/store"
)

var (
	// AlarmCliCmd is the root command
	AlarmCliCmd = &cobra.Command{
		Use:   "alarm-cli [command]",
		Short: "Manage the rules of the alarm engine.",
		Long: `
alarm-cli creates, inspects and deletes the threshold rules the alarm
engine evaluates, directly against the engine's store. A running engine
picks rule changes up on its next refresh.`,
		SilenceUsage:     true,
		SilenceErrors:    true,
		PersistentPreRun: preRun,
	}

	confFilePath string
	flagNoColor  bool
)

func preRun(_ *cobra.Command, _ []string) {
	if flagNoColor {
		color.NoColor = true
	}
}

func init() {
	AlarmCliCmd.PersistentFlags().StringVarP(&confFilePath, "cfgpath", "c", "", "path to alarm-engine.yaml")
	AlarmCliCmd.PersistentFlags().BoolVarP(&flagNoColor, "no-color", "n", false, "disable color output")
}

// cmdError carries an exit code through cobra for an already reported
// failure.
type cmdError struct {
	code int
	msg  string
}

func (e *cmdError) Error() string { return e.msg }

func argErrorf(format string, a ...interface{}) error {
	fmt.Fprintln(color.Output, color.RedString("Error: "+fmt.Sprintf(format, a...)))
	return &cmdError{code: 1, msg: "invalid argument"}
}

func storeErrorf(format string, a ...interface{}) error {
	fmt.Fprintln(color.Output, color.RedString("Error: "+fmt.Sprintf(format, a...)))
	return &cmdError{code: 2, msg: "store operation failed"}
}

func validationError(err error) error {
	fmt.Fprintln(color.Output, color.RedString("Invalid rule: %s", err))
	return &cmdError{code: 3, msg: "rule validation failed"}
}

// HandleError maps the error coming out of Execute to the process exit code.
// Anything not reported by a command yet, cobra usage errors mostly, is
// printed here.
func HandleError(err error) int {
	if err == nil {
		return 0
	}
	var ce *cmdError
	if errors.As(err, &ce) {
		return ce.code
	}
	fmt.Fprintln(color.Output, color.RedString("Error: %s", err))
	return 1
}

// openStore loads the configuration and opens the store it points at.
// Closing is on the caller.
func openStore() (*store.Store, error) {
	cfg := config.New()
	if err := config.Load(cfg, confFilePath); err != nil {
		return nil, storeErrorf("unable to load the configuration: %s", err)
	}
	st, err := store.New(config.Store(cfg).Path, clock.New())
	if err != nil {
		return nil, storeErrorf("unable to open the alarm store: %s", err)
	}
	return st, nil
}
