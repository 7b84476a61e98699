package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestIsValidIPv4(t *testing.T) {

	assert := assert.New(t)

	assert.True(IsValidIPv4("192.168.1.1"))
	assert.True(IsValidIPv4("0.0.0.0"))
	assert.True(IsValidIPv4("255.255.255.255"))
	assert.False(IsValidIPv4("256.1.1.1"), "octet over 255")
	assert.False(IsValidIPv4("1.1.1"), "three octets")
	assert.False(IsValidIPv4("1.1.1.1.1"), "five octets")
	assert.False(IsValidIPv4("1.1.1.1000"), "four digit octet")
	assert.False(IsValidIPv4("a.b.c.d"))
	assert.False(IsValidIPv4(""))
	assert.False(IsValidIPv4(" 1.1.1.1"))
}

func TestIsValidMQTTTopic(t *testing.T) {

	assert := assert.New(t)

	assert.True(IsValidMQTTTopic("a/b"))
	assert.True(IsValidMQTTTopic("energy/whatwatt/go"))
	assert.False(IsValidMQTTTopic("a/#"))
	assert.False(IsValidMQTTTopic("a/+/b"))
	assert.False(IsValidMQTTTopic(""))
}

func TestValidateEntryInput(t *testing.T) {

	assert := assert.New(t)

	errs := ValidateEntryInput(EntryConfig{MqttTopic: "whatwatt/go", DeviceIp: "192.168.1.20"})
	assert.Empty(errs)

	errs = ValidateEntryInput(EntryConfig{MqttTopic: "whatwatt/#", DeviceIp: "192.168.1.300"})
	assert.Equal(map[string]string{
		CONF_MQTT_TOPIC: ERROR_INVALID_MQTT_TOPIC,
		CONF_DEVICE_IP:  ERROR_INVALID_IP,
	}, errs)

	errs = ValidateEntryInput(EntryConfig{MqttTopic: "whatwatt/go"})
	assert.Equal(map[string]string{CONF_DEVICE_IP: ERROR_INVALID_IP}, errs)
}

func TestCheckMQTTTopic(t *testing.T) {

	assert := assert.New(t)

	topic, err := CheckMQTTTopic("WhatWatt_Bridge")
	assert.NoError(err)
	assert.Equal("whatwatt_bridge", topic)

	_, err = CheckMQTTTopic("whatwatt/bridge")
	assert.Error(err)
}

func TestParseLogLevel(t *testing.T) {

	assert := assert.New(t)

	assert.Equal(zap.DebugLevel, ParseLogLevel("trace", zap.InfoLevel))
	assert.Equal(zap.ErrorLevel, ParseLogLevel("ERROR", zap.InfoLevel))
	assert.Equal(zap.WarnLevel, ParseLogLevel("nonsense", zap.WarnLevel))
}

func TestLoadObisConfig(t *testing.T) {

	require := require.New(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(os.WriteFile(path, []byte(`{"obis_codes": ["1_7_0", "9_9_9"]}`), 0o644))

	cfg, err := LoadObisConfig(path)
	require.NoError(err)
	require.Equal([]string{"1_7_0", "9_9_9"}, cfg.ObisCodes)

	empty := filepath.Join(dir, "empty.json")
	require.NoError(os.WriteFile(empty, []byte(`{}`), 0o644))
	cfg, err = LoadObisConfig(empty)
	require.NoError(err)
	require.Empty(cfg.ObisCodes)

	broken := filepath.Join(dir, "broken.json")
	require.NoError(os.WriteFile(broken, []byte(`{"obis_codes": [`), 0o644))
	_, err = LoadObisConfig(broken)
	require.Error(err)

	_, err = LoadObisConfig(filepath.Join(dir, "missing.json"))
	require.Error(err)
}

func TestProvisionConfigValidate(t *testing.T) {

	assert := assert.New(t)

	cfg := ProvisionConfig{
		WhatWattIp:        "192.168.1.20",
		MQTTBroker:        "broker.local",
		MQTTPort:          DEFAULT_MQTT_PORT,
		MQTTTopic:         DEFAULT_MQTT_TOPIC,
		ReportingInterval: DEFAULT_REPORTING_INTERVAL,
		ConfigFile:        "config.json",
	}
	assert.NoError(cfg.Validate())

	cfg.WhatWattIp = ""
	cfg.MQTTPort = 0
	assert.Error(cfg.Validate())
}

func TestValidateEntries(t *testing.T) {

	assert := assert.New(t)

	assert.NoError(ValidateEntries(nil))
	assert.NoError(ValidateEntries([]EntryConfig{
		{MqttTopic: "energy/a", DeviceIp: "10.0.0.1"},
		{MqttTopic: "energy/b", DeviceIp: "10.0.0.2"},
	}))

	err := ValidateEntries([]EntryConfig{
		{MqttTopic: "energy/a", DeviceIp: "10.0.0.1"},
		{MqttTopic: "energy/a", DeviceIp: "10.0.0.2"},
	})
	assert.ErrorContains(err, "duplicate mqtt_topic")

	err = ValidateEntries([]EntryConfig{
		{MqttTopic: "energy/#", DeviceIp: "10.0.0.300"},
	})
	var verr ValidationError
	assert.ErrorAs(err, &verr)
	assert.Equal(map[string]string{
		CONF_MQTT_TOPIC: ERROR_INVALID_MQTT_TOPIC,
		CONF_DEVICE_IP:  ERROR_INVALID_IP,
	}, verr.Errors)
	assert.Equal("invalid entry (device_ip: invalid_ip, mqtt_topic: invalid_mqtt_topic)", verr.Error())
}
