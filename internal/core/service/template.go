package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/berfenger/whatwatt2mqtt/internal/core/domain"

	"gopkg.in/yaml.v3"
)

type templateField struct {
	key         string
	placeholder string
}

// BuildTemplate renders the payload template the device fills in before
// publishing to MQTT. Unknown OBIS codes are skipped.
func BuildTemplate(obisCodes []string) string {
	fields := []templateField{
		{key: domain.ATTR_SYS_ID, placeholder: "${sys.id}"},
		{key: domain.ATTR_METER_ID, placeholder: "${meter.id}"},
		{key: domain.ATTR_TIME, placeholder: "${timestamp}"},
	}
	seen := map[string]int{}
	for i, f := range fields {
		seen[f.key] = i
	}
	for _, code := range obisCodes {
		key, ok := domain.ObisFieldKey(code)
		if !ok {
			continue
		}
		placeholder := "${" + code + "}"
		if i, dup := seen[key]; dup {
			fields[i].placeholder = placeholder
			continue
		}
		seen[key] = len(fields)
		fields = append(fields, templateField{key: key, placeholder: placeholder})
	}

	var buf bytes.Buffer
	buf.WriteString("{\n")
	for i, f := range fields {
		key, _ := json.Marshal(f.key)
		value, _ := json.Marshal(f.placeholder)
		fmt.Fprintf(&buf, "  %s: %s", key, value)
		if i < len(fields)-1 {
			buf.WriteString(",")
		}
		buf.WriteString("\n")
	}
	buf.WriteString("}")
	return buf.String()
}

type SensorConfigFile struct {
	MQTT SensorConfigMQTT `yaml:"mqtt"`
}

type SensorConfigMQTT struct {
	Sensor []SensorConfig `yaml:"sensor"`
}

type SensorConfig struct {
	Name              string `yaml:"name"`
	UniqueId          string `yaml:"unique_id"`
	Icon              string `yaml:"icon"`
	StateTopic        string `yaml:"state_topic"`
	ValueTemplate     string `yaml:"value_template"`
	UnitOfMeasurement string `yaml:"unit_of_measurement"`
	DeviceClass       string `yaml:"device_class,omitempty"`
	StateClass        string `yaml:"state_class,omitempty"`
}

// BuildSensorConfig declares one Home Assistant MQTT sensor per recognized OBIS code.
func BuildSensorConfig(stateTopic string, obisCodes []string) SensorConfigFile {
	sensors := []SensorConfig{}
	for _, code := range obisCodes {
		info, ok := domain.ObisDisplayInfo(code)
		if !ok {
			continue
		}
		key, _ := domain.ObisFieldKey(code)
		sensors = append(sensors, SensorConfig{
			Name:              info.Name,
			UniqueId:          domain.ObisUniqueId(code),
			Icon:              info.Icon,
			StateTopic:        stateTopic,
			ValueTemplate:     "{{ value_json." + key + " }}",
			UnitOfMeasurement: info.Unit,
			DeviceClass:       info.DeviceClass,
			StateClass:        info.StateClass,
		})
	}
	return SensorConfigFile{
		MQTT: SensorConfigMQTT{
			Sensor: sensors,
		},
	}
}

func WriteSensorConfig(path string, cfg SensorConfigFile) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal sensor config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write sensor config %s: %w", path, err)
	}
	return nil
}
