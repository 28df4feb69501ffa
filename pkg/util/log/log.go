// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package log implements logging for the alarm engine. It wraps seelog behind
// package-level functions so callers never hold a logger value, and it buffers
// anything logged before SetupLogger so early startup messages are not lost.
package log

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/cihub/seelog"
)

var (
	logger *DatadogLogger

	// This buffer holds log lines sent to the logger before its
	// initialization. Even if initializing the logger is one of the first
	// things the service does, we still load the conf and parse flags first.
	//
	// This buffer should be very short lived.
	logsBuffer           = []func(){}
	bufferLogsBeforeInit = true
	bufferMutex          sync.Mutex
	defaultStackDepth    = 3
)

// DatadogLogger wrapper structure for seelog
type DatadogLogger struct {
	inner seelog.LoggerInterface
	level seelog.LogLevel
	l     sync.RWMutex
}

// SetupLogger configures the logger singleton with a seelog interface
func SetupLogger(l seelog.LoggerInterface, level string) {
	logger = &DatadogLogger{
		inner: l,
	}

	lvl, ok := seelog.LogLevelFromString(strings.ToLower(level))
	if !ok {
		lvl = seelog.InfoLvl
	}
	logger.level = lvl

	// We're not going to call DatadogLogger directly, but using the
	// exported functions, that will give us two frames in the stack
	// trace that should be skipped to get to the original caller.
	logger.inner.SetAdditionalStackDepth(defaultStackDepth) //nolint:errcheck

	// Flushing logs since the logger is now initialized
	bufferMutex.Lock()
	bufferLogsBeforeInit = false
	defer bufferMutex.Unlock()
	for _, logLine := range logsBuffer {
		logLine()
	}
	logsBuffer = []func(){}
}

func addLogToBuffer(logHandle func()) {
	bufferMutex.Lock()
	defer bufferMutex.Unlock()

	logsBuffer = append(logsBuffer, logHandle)
}

// ReplaceLogger allows replacing the internal logger, returns the old one
func ReplaceLogger(l seelog.LoggerInterface) seelog.LoggerInterface {
	if logger == nil || logger.inner == nil {
		return nil
	}

	logger.l.Lock()
	defer logger.l.Unlock()

	old := logger.inner
	logger.inner = l
	return old
}

// ChangeLogLevel changes the current log level, valid levels are trace, debug,
// info, warn, error, critical and off
func ChangeLogLevel(l seelog.LoggerInterface, level string) error {
	if logger == nil || logger.inner == nil {
		return errors.New("cannot change loglevel: logger not initialized")
	}

	logger.l.Lock()
	defer logger.l.Unlock()

	lvl, ok := seelog.LogLevelFromString(strings.ToLower(level))
	if !ok {
		return errors.New("bad log level")
	}
	logger.level = lvl
	logger.inner = l
	logger.inner.SetAdditionalStackDepth(defaultStackDepth) //nolint:errcheck
	return nil
}

// GetLogLevel returns the current log level
func GetLogLevel() (seelog.LogLevel, error) {
	if logger == nil || logger.inner == nil {
		return seelog.InfoLvl, errors.New("cannot get loglevel: logger not initialized")
	}

	logger.l.RLock()
	defer logger.l.RUnlock()
	return logger.level, nil
}

func (sw *DatadogLogger) shouldLog(level seelog.LogLevel) bool {
	sw.l.RLock()
	shouldLog := level >= sw.level
	sw.l.RUnlock()

	return shouldLog
}

func (sw *DatadogLogger) scrub(s string) string {
	if scrubbed, err := CredentialsCleanerBytes([]byte(s)); err == nil {
		return string(scrubbed)
	}
	return s
}

func (sw *DatadogLogger) trace(s string) {
	sw.l.Lock()
	defer sw.l.Unlock()
	sw.inner.Trace(sw.scrub(s))
}

func (sw *DatadogLogger) debug(s string) {
	sw.l.Lock()
	defer sw.l.Unlock()
	sw.inner.Debug(sw.scrub(s))
}

func (sw *DatadogLogger) info(s string) {
	sw.l.Lock()
	defer sw.l.Unlock()
	sw.inner.Info(sw.scrub(s))
}

func (sw *DatadogLogger) warn(s string) error {
	sw.l.Lock()
	defer sw.l.Unlock()
	return sw.inner.Warn(sw.scrub(s))
}

func (sw *DatadogLogger) error(s string) error {
	sw.l.Lock()
	defer sw.l.Unlock()
	return sw.inner.Error(sw.scrub(s))
}

func (sw *DatadogLogger) critical(s string) error {
	sw.l.Lock()
	defer sw.l.Unlock()
	return sw.inner.Critical(sw.scrub(s))
}

func (sw *DatadogLogger) tracef(format string, params ...interface{}) {
	sw.trace(fmt.Sprintf(format, params...))
}

func (sw *DatadogLogger) debugf(format string, params ...interface{}) {
	sw.debug(fmt.Sprintf(format, params...))
}

func (sw *DatadogLogger) infof(format string, params ...interface{}) {
	sw.info(fmt.Sprintf(format, params...))
}

func (sw *DatadogLogger) warnf(format string, params ...interface{}) error {
	return sw.warn(fmt.Sprintf(format, params...))
}

func (sw *DatadogLogger) errorf(format string, params ...interface{}) error {
	return sw.error(fmt.Sprintf(format, params...))
}

func (sw *DatadogLogger) criticalf(format string, params ...interface{}) error {
	return sw.critical(fmt.Sprintf(format, params...))
}

func buildLogEntry(v ...interface{}) string {
	var fmtBuffer bytes.Buffer

	for i := 0; i < len(v)-1; i++ {
		fmtBuffer.WriteString("%v ")
	}
	fmtBuffer.WriteString("%v")

	return fmt.Sprintf(fmtBuffer.String(), v...)
}

func scrubMessage(message string) string {
	msgScrubbed, err := CredentialsCleanerBytes([]byte(message))
	if err == nil {
		return string(msgScrubbed)
	}
	return "[REDACTED] - failure to clean the message"
}

func formatErrorf(format string, params ...interface{}) error {
	return errors.New(scrubMessage(fmt.Sprintf(format, params...)))
}

func formatError(v ...interface{}) error {
	return errors.New(scrubMessage(fmt.Sprint(v...)))
}

func log(logLevel seelog.LogLevel, bufferFunc func(), logFunc func(string), v ...interface{}) {
	if logger != nil && logger.inner != nil && logger.shouldLog(logLevel) {
		logFunc(buildLogEntry(v...))
	} else if bufferLogsBeforeInit && (logger == nil || logger.inner == nil) {
		addLogToBuffer(bufferFunc)
	}
}

func logWithError(logLevel seelog.LogLevel, bufferFunc func(), logFunc func(string) error, fallbackStderr bool, v ...interface{}) error {
	if logger != nil && logger.inner != nil && logger.shouldLog(logLevel) {
		return logFunc(buildLogEntry(v...))
	} else if bufferLogsBeforeInit && (logger == nil || logger.inner == nil) {
		addLogToBuffer(bufferFunc)
	}
	err := formatError(v...)
	if fallbackStderr {
		fmt.Fprintf(os.Stderr, "%s: %s\n", logLevel.String(), err.Error())
	}
	return err
}

func logFormat(logLevel seelog.LogLevel, bufferFunc func(), logFunc func(string, ...interface{}), format string, params ...interface{}) {
	if logger != nil && logger.inner != nil && logger.shouldLog(logLevel) {
		logFunc(format, params...)
	} else if bufferLogsBeforeInit && (logger == nil || logger.inner == nil) {
		addLogToBuffer(bufferFunc)
	}
}

func logFormatWithError(logLevel seelog.LogLevel, bufferFunc func(), logFunc func(string, ...interface{}) error, format string, fallbackStderr bool, params ...interface{}) error {
	if logger != nil && logger.inner != nil && logger.shouldLog(logLevel) {
		return logFunc(format, params...)
	} else if bufferLogsBeforeInit && (logger == nil || logger.inner == nil) {
		addLogToBuffer(bufferFunc)
	}
	err := formatErrorf(format, params...)
	if fallbackStderr {
		fmt.Fprintf(os.Stderr, "%s: %s\n", logLevel.String(), err.Error())
	}
	return err
}

// Trace logs at the trace level
func Trace(v ...interface{}) {
	log(seelog.TraceLvl, func() { Trace(v...) }, logger.trace, v...)
}

// Tracef logs with format at the trace level
func Tracef(format string, params ...interface{}) {
	logFormat(seelog.TraceLvl, func() { Tracef(format, params...) }, logger.tracef, format, params...)
}

// Debug logs at the debug level
func Debug(v ...interface{}) {
	log(seelog.DebugLvl, func() { Debug(v...) }, logger.debug, v...)
}

// Debugf logs with format at the debug level
func Debugf(format string, params ...interface{}) {
	logFormat(seelog.DebugLvl, func() { Debugf(format, params...) }, logger.debugf, format, params...)
}

// Info logs at the info level
func Info(v ...interface{}) {
	log(seelog.InfoLvl, func() { Info(v...) }, logger.info, v...)
}

// Infof logs with format at the info level
func Infof(format string, params ...interface{}) {
	logFormat(seelog.InfoLvl, func() { Infof(format, params...) }, logger.infof, format, params...)
}

// Warn logs at the warn level and returns an error containing the formated log message
func Warn(v ...interface{}) error {
	return logWithError(seelog.WarnLvl, func() { Warn(v...) }, logger.warn, false, v...)
}

// Warnf logs with format at the warn level and returns an error containing the formated log message
func Warnf(format string, params ...interface{}) error {
	return logFormatWithError(seelog.WarnLvl, func() { Warnf(format, params...) }, logger.warnf, format, false, params...)
}

// Error logs at the error level and returns an error containing the formated log message
func Error(v ...interface{}) error {
	return logWithError(seelog.ErrorLvl, func() { Error(v...) }, logger.error, true, v...)
}

// Errorf logs with format at the error level and returns an error containing the formated log message
func Errorf(format string, params ...interface{}) error {
	return logFormatWithError(seelog.ErrorLvl, func() { Errorf(format, params...) }, logger.errorf, format, true, params...)
}

// Critical logs at the critical level and returns an error containing the formated log message
func Critical(v ...interface{}) error {
	return logWithError(seelog.CriticalLvl, func() { Critical(v...) }, logger.critical, true, v...)
}

// Criticalf logs with format at the critical level and returns an error containing the formated log message
func Criticalf(format string, params ...interface{}) error {
	return logFormatWithError(seelog.CriticalLvl, func() { Criticalf(format, params...) }, logger.criticalf, format, true, params...)
}

// Flush flushes the underlying inner log
func Flush() {
	if logger != nil && logger.inner != nil {
		logger.inner.Flush()
	}
}
