// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/DataDog/alarm-engine/pkg/store"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <rule_id>",
	Short: "Delete a rule and its violation state",
	Long:  ``,
	Args:  cobra.ExactArgs(1),
	RunE:  deleteRule,
}

func init() {
	AlarmCliCmd.AddCommand(deleteCmd)
}

func deleteRule(_ *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	err = st.DeleteRule(context.Background(), args[0])
	if errors.Is(err, store.ErrNotFound) {
		return storeErrorf("rule %q not found", args[0])
	}
	if err != nil {
		return storeErrorf("unable to delete rule %s: %s", args[0], err)
	}
	fmt.Fprintln(color.Output, fmt.Sprintf("Deleted rule %s", color.GreenString(args[0])))
	return nil
}
