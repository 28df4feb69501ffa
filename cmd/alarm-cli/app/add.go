// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package app

import (
	"context"
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/DataDog/alarm-engine/pkg/alarm"
)

var (
	addSimpleCmd = &cobra.Command{
		Use:   "add-simple <rule_id> <device_id> <field> <op> <threshold> <duration_minutes> <description>",
		Short: "Create a simple threshold rule",
		Long:  `Creates a rule that fires once <field> <op> <threshold> has held for <duration_minutes>.`,
		Args:  cobra.ExactArgs(7),
		RunE:  addSimple,
	}

	addConditionalCmd = &cobra.Command{
		Use: "add-conditional <rule_id> <device_id> <field> <op> <threshold> <duration_minutes> " +
			"<shunt_device> <shunt_field> <shunt_op> <shunt_threshold> <description>",
		Short: "Create a threshold rule gated by another reading",
		Long: `Creates a rule like add-simple that only counts violations while
<shunt_field> on <shunt_device> satisfies <shunt_op> <shunt_threshold>.`,
		Args: cobra.ExactArgs(11),
		RunE: addConditional,
	}
)

func init() {
	// attach the commands to the root
	AlarmCliCmd.AddCommand(addSimpleCmd)
	AlarmCliCmd.AddCommand(addConditionalCmd)
}

func addSimple(_ *cobra.Command, args []string) error {
	op, err := alarm.ParseOperator(args[3])
	if err != nil {
		return argErrorf("%s", err)
	}
	threshold, err := strconv.ParseFloat(args[4], 64)
	if err != nil {
		return argErrorf("threshold %q is not a number", args[4])
	}
	minutes, err := strconv.Atoi(args[5])
	if err != nil {
		return argErrorf("duration %q is not a whole number of minutes", args[5])
	}

	return saveRule(alarm.NewSimpleRule(args[0], args[1], args[2], op, threshold, minutes, args[6]))
}

func addConditional(_ *cobra.Command, args []string) error {
	op, err := alarm.ParseOperator(args[3])
	if err != nil {
		return argErrorf("%s", err)
	}
	threshold, err := strconv.ParseFloat(args[4], 64)
	if err != nil {
		return argErrorf("threshold %q is not a number", args[4])
	}
	minutes, err := strconv.Atoi(args[5])
	if err != nil {
		return argErrorf("duration %q is not a whole number of minutes", args[5])
	}
	shuntOp, err := alarm.ParseOperator(args[8])
	if err != nil {
		return argErrorf("%s", err)
	}
	shuntThreshold, err := strconv.ParseFloat(args[9], 64)
	if err != nil {
		return argErrorf("shunt threshold %q is not a number", args[9])
	}

	return saveRule(alarm.NewConditionalRule(args[0], args[1], args[2], op, threshold, minutes,
		args[6], args[7], shuntOp, shuntThreshold, args[10]))
}

func saveRule(rule *alarm.Rule) error {
	if err := rule.Validate(); err != nil {
		return validationError(err)
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.SaveRule(context.Background(), rule); err != nil {
		return storeErrorf("unable to save rule %s: %s", rule.RuleID, err)
	}
	fmt.Fprintln(color.Output, fmt.Sprintf("Created rule %s on device %s",
		color.GreenString(rule.RuleID), color.CyanString(rule.DeviceID)))
	return nil
}
