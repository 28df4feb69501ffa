// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package app

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/DataDog/alarm-engine/pkg/alarm"
)

var activeCmd = &cobra.Command{
	Use:   "active",
	Short: "List violations in progress",
	Long:  `Lists every rule whose violation is active or has triggered an alarm.`,
	Args:  cobra.NoArgs,
	RunE:  active,
}

func init() {
	AlarmCliCmd.AddCommand(activeCmd)
}

func active(_ *cobra.Command, _ []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	states, err := st.ListStates(context.Background())
	if err != nil {
		return storeErrorf("unable to list alarm states: %s", err)
	}

	count := 0
	w := tabwriter.NewWriter(color.Output, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "RULE\tDEVICE\tSTATUS\tSINCE\tCOUNT\tLAST VALUE")
	for _, state := range states {
		if !state.IsViolationActive() {
			continue
		}
		count++
		since := ""
		if state.ViolationStart != nil {
			since = state.ViolationStart.Format(time.RFC3339)
		}
		lastValue := ""
		if state.LastValue != nil {
			lastValue = fmt.Sprintf("%g", *state.LastValue)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			state.RuleID, state.DeviceID, statusString(state.Status), since, state.ViolationCount, lastValue)
	}
	if count == 0 {
		fmt.Println("No active alarms")
		return nil
	}
	w.Flush()
	fmt.Printf("\n%d active\n", count)
	return nil
}

func statusString(status alarm.Status) string {
	switch status {
	case alarm.StatusTriggered:
		return color.RedString(string(status))
	case alarm.StatusActive:
		return color.YellowString(string(status))
	default:
		return string(status)
	}
}
