// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cihub/seelog"

	"github.com/DataDog/alarm-engine/pkg/util/log"
)

const logFileMaxSize = 10 * 1024 * 1024         // 10MB
const logDateFormat = "2006-01-02 15:04:05 MST" // see time.Format for format syntax

func init() {
	_ = seelog.RegisterCustomFormatter("QuoteMsg", createQuoteMsgFormatter)
}

func createQuoteMsgFormatter(string) seelog.FormatterFunc {
	return func(message string, _ seelog.LogLevel, _ seelog.LogContextInterface) interface{} {
		return strconv.Quote(message)
	}
}

// buildCommonFormat returns the log common format seelog string
func buildCommonFormat() string {
	return fmt.Sprintf("%%Date(%s) | %%LEVEL | (%%RelFile:%%Line) | %%Msg%%n", logDateFormat)
}

// buildJSONFormat returns the log JSON format seelog string
func buildJSONFormat() string {
	return fmt.Sprintf(`{"time":"%%Date(%s)","level":"%%LEVEL","file":"%%RelFile","line":"%%Line","msg":%%QuoteMsg}%%n`, logDateFormat)
}

// SetupLogger builds the seelog logger from the logging settings and installs
// it as the logger behind pkg/util/log. Messages buffered before setup are
// replayed through it.
func SetupLogger(logLevel, logFile, logFormat string) error {
	seelogConfig, err := buildLoggerConfig(logLevel, logFile, logFormat)
	if err != nil {
		return err
	}

	logger, err := seelog.LoggerFromConfigAsString(seelogConfig)
	if err != nil {
		return err
	}
	log.SetupLogger(logger, logLevel)
	return nil
}

func buildLoggerConfig(logLevel, logFile, logFormat string) (string, error) {
	var format string
	switch strings.ToLower(logFormat) {
	case "", "text":
		format = buildCommonFormat()
	case "json":
		format = buildJSONFormat()
	default:
		return "", fmt.Errorf("unknown log format %q (expected \"text\" or \"json\")", logFormat)
	}

	configTemplate := `<seelog minlevel="%s">
    <outputs formatid="common">
        <console />`
	if logFile != "" {
		configTemplate += `<rollingfile type="size" filename="%s" maxsize="%d" maxrolls="1" />`
	}
	// the JSON format holds double quotes, hence the single-quoted attribute
	configTemplate += `</outputs>
    <formats>
        <format id="common" format='%s'/>
    </formats>
</seelog>`

	args := []interface{}{strings.ToLower(logLevel)}
	if logFile != "" {
		args = append(args, logFile, logFileMaxSize)
	}
	args = append(args, format)
	return fmt.Sprintf(configTemplate, args...), nil
}
