// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/DataDog/alarm-engine/pkg/store"
)

var showCmd = &cobra.Command{
	Use:   "show <rule_id>",
	Short: "Show one rule and its violation state",
	Long:  ``,
	Args:  cobra.ExactArgs(1),
	RunE:  show,
}

func init() {
	AlarmCliCmd.AddCommand(showCmd)
}

func show(_ *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	rule, err := st.GetRule(ctx, args[0])
	if errors.Is(err, store.ErrNotFound) {
		return storeErrorf("rule %q not found", args[0])
	}
	if err != nil {
		return storeErrorf("unable to read rule %s: %s", args[0], err)
	}

	fmt.Fprintln(color.Output, color.CyanString(rule.RuleID))
	fmt.Printf("  device:      %s\n", rule.DeviceID)
	fmt.Printf("  kind:        %s\n", rule.Kind)
	fmt.Printf("  condition:   %s\n", conditionString(rule))
	fmt.Printf("  duration:    %d minutes\n", rule.DurationMinutes())
	fmt.Printf("  description: %s\n", rule.Description)
	fmt.Fprintf(color.Output, "  status:      %s\n", enabledString(rule))
	fmt.Printf("  created:     %s\n", rule.CreatedAt.Format(time.RFC3339))
	fmt.Printf("  updated:     %s\n", rule.UpdatedAt.Format(time.RFC3339))

	state, err := st.GetState(ctx, rule.RuleID)
	if errors.Is(err, store.ErrNotFound) {
		fmt.Println("\nNo violation state")
		return nil
	}
	if err != nil {
		return storeErrorf("unable to read state for rule %s: %s", rule.RuleID, err)
	}

	fmt.Printf("\nViolation state: %s\n", statusString(state.Status))
	if state.ViolationStart != nil {
		fmt.Printf("  violating since: %s\n", state.ViolationStart.Format(time.RFC3339))
	}
	if state.TriggerTime != nil {
		fmt.Printf("  triggered at:    %s\n", state.TriggerTime.Format(time.RFC3339))
	}
	if state.LastValue != nil {
		fmt.Printf("  last value:      %g\n", *state.LastValue)
	}
	fmt.Printf("  violations:      %d\n", state.ViolationCount)
	return nil
}
