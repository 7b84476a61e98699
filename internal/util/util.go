package util

import (
	"github.com/berfenger/whatwatt2mqtt/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		MQTT: config.MQTTConfig{
			Host:              "localhost",
			Port:              1883,
			BaseTopic:         "whatwatt",
			HADiscoveryEnable: true,
			HADiscoveryTopic:  "homeassistant",
		},
		DeviceConfig: config.DeviceConfig{
			StatusTimeoutMillis: 2000,
		},
		Port: 8080,
	}
}
