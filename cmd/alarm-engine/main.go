// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package main

import (
	"os"

	"github.com/DataDog/alarm-engine/cmd/alarm-engine/app"
	"github.com/DataDog/alarm-engine/pkg/util/log"
)

func main() {
	if err := app.AlarmEngineCmd.Execute(); err != nil {
		log.Error(err)
		log.Flush()
		os.Exit(1)
	}
}
