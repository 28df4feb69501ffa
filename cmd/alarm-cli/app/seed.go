// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package app

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/DataDog/alarm-engine/pkg/alarm"
)

var (
	seedDevices int

	seedCmd = &cobra.Command{
		Use:   "seed",
		Short: "Install the demonstration rule set",
		Long: `Creates three rules per device: temperature above 30 for 2 minutes,
temperature above 28 for 3 minutes while the device draws current, and
temperature below 22 for 5 minutes. Pairs with sensor-simulator.`,
		Args: cobra.NoArgs,
		RunE: seed,
	}
)

func init() {
	seedCmd.Flags().IntVar(&seedDevices, "devices", 100, "number of devices to create rules for")
	AlarmCliCmd.AddCommand(seedCmd)
}

func seed(_ *cobra.Command, _ []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	created := 0
	for i := 1; i <= seedDevices; i++ {
		device := fmt.Sprintf("device-%d", i)
		rules := []*alarm.Rule{
			alarm.NewSimpleRule(
				fmt.Sprintf("temp_high_device_%d", i), device,
				"temperature", alarm.OpGreaterThan, 30.0, 2,
				fmt.Sprintf("Temperature too high for device %d", i)),
			alarm.NewConditionalRule(
				fmt.Sprintf("temp_conditional_device_%d", i), device,
				"temperature", alarm.OpGreaterThan, 28.0, 3,
				device, "current", alarm.OpGreaterThan, 0,
				fmt.Sprintf("Temperature high while device %d is active", i)),
			alarm.NewSimpleRule(
				fmt.Sprintf("temp_low_device_%d", i), device,
				"temperature", alarm.OpLessThan, 22.0, 5,
				fmt.Sprintf("Temperature too low for device %d", i)),
		}
		for _, rule := range rules {
			if err := st.SaveRule(ctx, rule); err != nil {
				return storeErrorf("unable to save rule %s: %s", rule.RuleID, err)
			}
			created++
		}
	}

	fmt.Fprintln(color.Output, fmt.Sprintf("Created %s demonstration rules across %d devices",
		color.GreenString(fmt.Sprintf("%d", created)), seedDevices))
	return nil
}
