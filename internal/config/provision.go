package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

const (
	DEFAULT_MQTT_PORT          = 1883
	DEFAULT_MQTT_TOPIC         = "energy/whatwatt/go"
	DEFAULT_REPORTING_INTERVAL = 30
	DEFAULT_SENSORS_FILE       = "/config/whatwatt_sensors.yaml"
)

// ProvisionConfig holds the provisioning command line. Keys match the flag names.
type ProvisionConfig struct {
	WhatWattIp        string `mapstructure:"whatwatt-ip"`
	MQTTBroker        string `mapstructure:"mqtt-broker"`
	MQTTUsername      string `mapstructure:"mqtt-username"`
	MQTTPassword      string `mapstructure:"mqtt-password"`
	MQTTPort          int    `mapstructure:"mqtt-port"`
	MQTTTopic         string `mapstructure:"mqtt-topic"`
	ReportingInterval int    `mapstructure:"reporting-interval"`
	ConfigFile        string `mapstructure:"config"`
	Output            string `mapstructure:"output"`
	LogLevel          string `mapstructure:"log-level"`
}

type ObisConfig struct {
	ObisCodes []string `json:"obis_codes"`
}

func (c ProvisionConfig) Validate() error {
	var errs []error
	if c.WhatWattIp == "" {
		errs = append(errs, errors.New("--whatwatt-ip is required"))
	}
	if c.MQTTBroker == "" {
		errs = append(errs, errors.New("--mqtt-broker is required"))
	}
	if c.ConfigFile == "" {
		errs = append(errs, errors.New("--config is required"))
	}
	if c.MQTTPort <= 0 || c.MQTTPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid --mqtt-port %d", c.MQTTPort))
	}
	if c.ReportingInterval <= 0 {
		errs = append(errs, fmt.Errorf("invalid --reporting-interval %d", c.ReportingInterval))
	}
	return errors.Join(errs...)
}

// LoadObisConfig reads {"obis_codes": [...]}. A missing key yields no codes.
func LoadObisConfig(path string) (*ObisConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var cfg ObisConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return &cfg, nil
}
