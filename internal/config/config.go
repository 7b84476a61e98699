package config

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	CONF_MQTT_TOPIC = "mqtt_topic"
	CONF_DEVICE_IP  = "device_ip"
	CONF_NAME       = "name"

	ERROR_INVALID_MQTT_TOPIC = "invalid_mqtt_topic"
	ERROR_INVALID_IP         = "invalid_ip"
)

type Config struct {
	LogLevel     zapcore.Level
	MQTT         MQTTConfig    `mapstructure:"mqtt"`
	DeviceConfig DeviceConfig  `mapstructure:"device"`
	Entries      []EntryConfig `mapstructure:"entries"`
	Port         uint          `mapstructure:"port"`
	HttpLog      bool          `mapstructure:"http_log"`
}

type MQTTConfig struct {
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

type DeviceConfig struct {
	StatusTimeoutMillis uint32 `mapstructure:"status_timeout_millis"`
}

// EntryConfig is the user input of one configuration entry.
type EntryConfig struct {
	MqttTopic string `mapstructure:"mqtt_topic" json:"mqtt_topic"`
	DeviceIp  string `mapstructure:"device_ip" json:"device_ip"`
	Name      string `mapstructure:"name" json:"name"`
}

var (
	baseTopicRegexp = regexp.MustCompile("^[a-z0-9_]+$")
	ipv4Regexp      = regexp.MustCompile(`^(\d{1,3})\.(\d{1,3})\.(\d{1,3})\.(\d{1,3})$`)
)

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}

// IsValidMQTTTopic accepts any non-empty topic without wildcards.
func IsValidMQTTTopic(topic string) bool {
	return len(topic) > 0 && !strings.ContainsAny(topic, "#+")
}

func IsValidIPv4(ip string) bool {
	matches := ipv4Regexp.FindStringSubmatch(ip)
	if matches == nil {
		return false
	}
	for _, octet := range matches[1:] {
		value, err := strconv.Atoi(octet)
		if err != nil || value > 255 {
			return false
		}
	}
	return true
}

// ValidateEntryInput returns the field-keyed validation errors of an entry.
// An empty map means the input is valid.
func ValidateEntryInput(input EntryConfig) map[string]string {
	errs := map[string]string{}
	if !IsValidMQTTTopic(input.MqttTopic) {
		errs[CONF_MQTT_TOPIC] = ERROR_INVALID_MQTT_TOPIC
	}
	if !IsValidIPv4(input.DeviceIp) {
		errs[CONF_DEVICE_IP] = ERROR_INVALID_IP
	}
	return errs
}

func ParseLogLevel(level string, fallback zapcore.Level) zapcore.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zap.DebugLevel
	case "debug":
		return zap.DebugLevel
	case "info":
		return zap.InfoLevel
	case "error":
		return zap.ErrorLevel
	case "warn":
		return zap.WarnLevel
	case "fatal":
		return zap.FatalLevel
	default:
		return fallback
	}
}

// ValidationError carries the field-keyed errors of an invalid entry.
type ValidationError struct {
	Errors map[string]string
}

func (e ValidationError) Error() string {
	keys := make([]string, 0, len(e.Errors))
	for k := range e.Errors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Errors[k]))
	}
	return fmt.Sprintf("invalid entry (%s)", strings.Join(parts, ", "))
}

// ValidateEntries checks the statically configured entries. Topics must be
// unique across entries.
func ValidateEntries(entries []EntryConfig) error {
	var errs []error
	topics := map[string]bool{}
	for i, entry := range entries {
		if fieldErrs := ValidateEntryInput(entry); len(fieldErrs) > 0 {
			errs = append(errs, fmt.Errorf("entries[%d]: %w", i, ValidationError{Errors: fieldErrs}))
			continue
		}
		if topics[entry.MqttTopic] {
			errs = append(errs, fmt.Errorf("entries[%d]: duplicate mqtt_topic %q", i, entry.MqttTopic))
		}
		topics[entry.MqttTopic] = true
	}
	return errors.Join(errs...)
}
