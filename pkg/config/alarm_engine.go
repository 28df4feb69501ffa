// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package config

import (
	"strings"

	"github.com/DataDog/viper"

	"github.com/DataDog/alarm-engine/pkg/util/log"
)

// TransportSettings holds the `transport` section of the configuration.
type TransportSettings struct {
	Broker               string `mapstructure:"broker"`
	Port                 int    `mapstructure:"port"`
	Username             string `mapstructure:"username"`
	Password             string `mapstructure:"password"`
	ClientID             string `mapstructure:"client_id"`
	SubscribeTopic       string `mapstructure:"subscribe_topic"`
	AlarmTopic           string `mapstructure:"alarm_topic"`
	ConnectTimeoutSecs   int    `mapstructure:"connect_timeout_seconds"`
	PublishQueueCapacity int    `mapstructure:"publish_queue_capacity"`
	DecodeWorkers        int    `mapstructure:"decode_workers"`
}

// StoreSettings holds the `store` section of the configuration.
type StoreSettings struct {
	Path string `mapstructure:"path"`
}

// ProcessingSettings holds the `processing` section of the configuration.
type ProcessingSettings struct {
	MaxWorkers          int `mapstructure:"max_workers"`
	IntakeCapacity      int `mapstructure:"intake_capacity"`
	CheckIntervalSecs   int `mapstructure:"check_interval_seconds"`
	RecheckIntervalSecs int `mapstructure:"recheck_interval_seconds"`
	RuleRefreshSecs     int `mapstructure:"rule_refresh_seconds"`
	DrainTimeoutSecs    int `mapstructure:"drain_timeout_seconds"`
}

// DefaultsSettings holds the `defaults` section of the configuration.
type DefaultsSettings struct {
	RetentionDays      int `mapstructure:"retention_days"`
	ShuntFreshnessSecs int `mapstructure:"shunt_freshness_seconds"`
}

// New builds the engine configuration: defaults set, environment variables
// bound under the ALARM_ prefix, nothing read from disk yet.
func New() Config {
	config := NewConfig("alarm-engine", "ALARM", strings.NewReplacer(".", "_"))
	initConfig(config)
	return config
}

// initConfig initializes the config defaults on a config
func initConfig(config Config) {
	// Transport
	config.BindEnvAndSetDefault("transport.broker", "localhost")
	config.BindEnvAndSetDefault("transport.port", 1883)
	config.BindEnvAndSetDefault("transport.username", "")
	config.BindEnvAndSetDefault("transport.password", "")
	config.BindEnvAndSetDefault("transport.client_id", "alarm-engine")
	config.BindEnvAndSetDefault("transport.subscribe_topic", "sensors/+/data")
	config.BindEnvAndSetDefault("transport.alarm_topic", "alarms/notifications")
	config.BindEnvAndSetDefault("transport.connect_timeout_seconds", 5)
	config.BindEnvAndSetDefault("transport.publish_queue_capacity", 100)
	config.BindEnvAndSetDefault("transport.decode_workers", 4)

	// Store
	config.BindEnvAndSetDefault("store.path", "alarms.db")

	// Processing
	config.BindEnvAndSetDefault("processing.max_workers", 20)
	config.BindEnvAndSetDefault("processing.intake_capacity", 500)
	config.BindEnvAndSetDefault("processing.check_interval_seconds", 300)
	config.BindEnvAndSetDefault("processing.recheck_interval_seconds", 30)
	config.BindEnvAndSetDefault("processing.rule_refresh_seconds", 30)
	config.BindEnvAndSetDefault("processing.drain_timeout_seconds", 10)

	// Rule defaults
	config.BindEnvAndSetDefault("defaults.retention_days", 30)
	config.BindEnvAndSetDefault("defaults.shunt_freshness_seconds", 120)

	// Logging
	config.BindEnvAndSetDefault("logging.level", "info")
	config.BindEnvAndSetDefault("logging.file", "")
	config.BindEnvAndSetDefault("logging.format", "text")

	// Go_expvar server port
	config.BindEnvAndSetDefault("telemetry.enabled", true)
	config.BindEnvAndSetDefault("telemetry.port", 5000)
}

// Load reads the configuration file into config. An explicit path is
// required to exist; with no path the usual locations are searched and a
// missing file is fine, the defaults apply.
func Load(config Config, confFilePath string) error {
	if confFilePath != "" {
		config.SetConfigFile(confFilePath)
	} else {
		config.AddConfigPath(".")
		config.AddConfigPath(defaultConfPath)
	}

	if err := config.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && confFilePath == "" {
			log.Infof("No configuration file found, continuing with defaults")
			return nil
		}
		return err
	}

	log.Infof("Configuration loaded from %s", config.ConfigFileUsed())
	return nil
}

// The section readers go key by key instead of unmarshaling the subtree in
// one call: viper resolves a dotted key against every source, but resolves a
// subtree only against the first source that has it, which would hide the
// defaults of any section the config file mentions.

// Transport reads the transport section off config.
func Transport(config Config) TransportSettings {
	return TransportSettings{
		Broker:               config.GetString("transport.broker"),
		Port:                 config.GetInt("transport.port"),
		Username:             config.GetString("transport.username"),
		Password:             config.GetString("transport.password"),
		ClientID:             config.GetString("transport.client_id"),
		SubscribeTopic:       config.GetString("transport.subscribe_topic"),
		AlarmTopic:           config.GetString("transport.alarm_topic"),
		ConnectTimeoutSecs:   config.GetInt("transport.connect_timeout_seconds"),
		PublishQueueCapacity: config.GetInt("transport.publish_queue_capacity"),
		DecodeWorkers:        config.GetInt("transport.decode_workers"),
	}
}

// Store reads the store section off config.
func Store(config Config) StoreSettings {
	return StoreSettings{
		Path: config.GetString("store.path"),
	}
}

// Processing reads the processing section off config.
func Processing(config Config) ProcessingSettings {
	return ProcessingSettings{
		MaxWorkers:          config.GetInt("processing.max_workers"),
		IntakeCapacity:      config.GetInt("processing.intake_capacity"),
		CheckIntervalSecs:   config.GetInt("processing.check_interval_seconds"),
		RecheckIntervalSecs: config.GetInt("processing.recheck_interval_seconds"),
		RuleRefreshSecs:     config.GetInt("processing.rule_refresh_seconds"),
		DrainTimeoutSecs:    config.GetInt("processing.drain_timeout_seconds"),
	}
}

// Defaults reads the defaults section off config.
func Defaults(config Config) DefaultsSettings {
	return DefaultsSettings{
		RetentionDays:      config.GetInt("defaults.retention_days"),
		ShuntFreshnessSecs: config.GetInt("defaults.shunt_freshness_seconds"),
	}
}
