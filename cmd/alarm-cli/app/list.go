// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package app

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/DataDog/alarm-engine/pkg/alarm"
)

var (
	listDevice string

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List alarm rules",
		Long:  ``,
		Args:  cobra.NoArgs,
		RunE:  list,
	}
)

func init() {
	listCmd.Flags().StringVar(&listDevice, "device", "", "only list rules for this device")
	AlarmCliCmd.AddCommand(listCmd)
}

func list(_ *cobra.Command, _ []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	rules, err := st.ListRules(context.Background(), listDevice, false)
	if err != nil {
		return storeErrorf("unable to list rules: %s", err)
	}
	if len(rules) == 0 {
		fmt.Println("No rules found")
		return nil
	}

	w := tabwriter.NewWriter(color.Output, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "RULE\tDEVICE\tCONDITION\tFOR\tSTATUS")
	for _, rule := range rules {
		fmt.Fprintf(w, "%s\t%s\t%s\t%dm\t%s\n",
			rule.RuleID, rule.DeviceID, conditionString(rule), rule.DurationMinutes(), enabledString(rule))
	}
	w.Flush()
	fmt.Printf("\n%d rules\n", len(rules))
	return nil
}

func conditionString(rule *alarm.Rule) string {
	cond := fmt.Sprintf("%s %s %g", rule.SensorField, rule.Operator, rule.ThresholdValue)
	if rule.IsConditional() {
		cond += fmt.Sprintf(" while %s.%s %s %g",
			rule.ShuntDeviceID, rule.ShuntField, rule.ShuntOperator, *rule.ShuntValue)
	}
	return cond
}

func enabledString(rule *alarm.Rule) string {
	if rule.Enabled {
		return color.GreenString("enabled")
	}
	return color.YellowString("disabled")
}
