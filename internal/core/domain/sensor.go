package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/carlmjohnson/versioninfo"
)

const (
	DOMAIN = "whatwatt"

	ATTR_SYS_ID     = "sys_id"
	ATTR_METER_ID   = "meter_id"
	ATTR_TIME       = "time"
	ATTR_VERSION    = "version"
	ATTR_POWER_IN   = "power_in"
	ATTR_POWER_OUT  = "power_out"
	ATTR_ENERGY_IN  = "energy_in"
	ATTR_ENERGY_OUT = "energy_out"
	ATTR_VOLTAGE_L1 = "voltage_l1"
	ATTR_VOLTAGE_L2 = "voltage_l2"
	ATTR_VOLTAGE_L3 = "voltage_l3"

	DEFAULT_NAME           = "WhatWatt"
	DEFAULT_VERSION        = "Unknown"
	DEVICE_MANUFACTURER    = "WhatWatt"
	DEVICE_MODEL           = "WhatWatt Go"
	SENSOR_ID_BRIDGE_STATE = "bridge"

	UNIT_POWER   = "W"
	UNIT_ENERGY  = "kWh"
	UNIT_VOLTAGE = "V"

	STATE_CLASS_MEASUREMENT      = "measurement"
	STATE_CLASS_TOTAL_INCREASING = "total_increasing"
	DEVICE_CLASS_ENERGY          = "energy"
	DEVICE_CLASS_POWER           = "power"
	DEVICE_CLASS_VOLTAGE         = "voltage"
	DEVICE_CLASS_CONNECTIVITY    = "connectivity"
	ENTITY_CLASS_DIAGNOSTIC      = "diagnostic"
	SENSOR_TYPE_SENSOR           = "sensor"
	SENSOR_TYPE_BINARY           = "binary_sensor"
)

// SensorField describes one value the meter reports. The set is fixed for the
// lifetime of the process.
type SensorField struct {
	Key         string
	Name        string
	Unit        string
	Icon        string
	DeviceClass string
	StateClass  string
}

var sensorFields = []SensorField{
	{
		Key:         ATTR_POWER_IN,
		Name:        "Power In",
		Unit:        UNIT_POWER,
		Icon:        "mdi:transmission-tower-import",
		DeviceClass: DEVICE_CLASS_POWER,
		StateClass:  STATE_CLASS_MEASUREMENT,
	},
	{
		Key:         ATTR_POWER_OUT,
		Name:        "Power Out",
		Unit:        UNIT_POWER,
		Icon:        "mdi:transmission-tower-export",
		DeviceClass: DEVICE_CLASS_POWER,
		StateClass:  STATE_CLASS_MEASUREMENT,
	},
	{
		Key:         ATTR_ENERGY_IN,
		Name:        "Energy In",
		Unit:        UNIT_ENERGY,
		Icon:        "mdi:home-import-outline",
		DeviceClass: DEVICE_CLASS_ENERGY,
		StateClass:  STATE_CLASS_TOTAL_INCREASING,
	},
	{
		Key:         ATTR_ENERGY_OUT,
		Name:        "Energy Out",
		Unit:        UNIT_ENERGY,
		Icon:        "mdi:home-export-outline",
		DeviceClass: DEVICE_CLASS_ENERGY,
		StateClass:  STATE_CLASS_TOTAL_INCREASING,
	},
	{
		Key:         ATTR_VOLTAGE_L1,
		Name:        "Voltage L1",
		Unit:        UNIT_VOLTAGE,
		Icon:        "mdi:sine-wave",
		DeviceClass: DEVICE_CLASS_VOLTAGE,
		StateClass:  STATE_CLASS_MEASUREMENT,
	},
	{
		Key:         ATTR_VOLTAGE_L2,
		Name:        "Voltage L2",
		Unit:        UNIT_VOLTAGE,
		Icon:        "mdi:sine-wave",
		DeviceClass: DEVICE_CLASS_VOLTAGE,
		StateClass:  STATE_CLASS_MEASUREMENT,
	},
	{
		Key:         ATTR_VOLTAGE_L3,
		Name:        "Voltage L3",
		Unit:        UNIT_VOLTAGE,
		Icon:        "mdi:sine-wave",
		DeviceClass: DEVICE_CLASS_VOLTAGE,
		StateClass:  STATE_CLASS_MEASUREMENT,
	},
}

// SensorFields returns a copy of the sensor field table in declaration order.
func SensorFields() []SensorField {
	fields := make([]SensorField, len(sensorFields))
	copy(fields, sensorFields)
	return fields
}

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("whatwatt_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "WhatWatt2MQTT",
		Model:        "WhatWatt Bridge",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("WhatWatt Bridge %s", md5HashShort(baseTopic)),
	}
}

func WhatWattDevice(identity DeviceIdentity, name, deviceIp, version string) Device {
	if version == "" {
		version = DEFAULT_VERSION
	}
	return Device{
		Id:               identity.SystemId,
		Name:             name,
		Manufacturer:     DEVICE_MANUFACTURER,
		Model:            DEVICE_MODEL,
		Version:          version,
		ConfigurationUrl: fmt.Sprintf("http://%s", deviceIp),
	}
}

func IdDevice(device Device) Device {
	return Device{
		Id:   device.Id,
		Name: device.Name,
	}
}

// EntrySensors returns the discovery description of every sensor of an entry.
// Only the first sensor carries the full device block.
func EntrySensors(entryId string, device Device) []GenericSensor {
	var sensors []GenericSensor
	for i, field := range sensorFields {
		dev := device
		if i > 0 {
			dev = IdDevice(device)
		}
		sensors = append(sensors, GenericSensor{
			Device:            dev,
			EntryId:           entryId,
			Id:                field.Key,
			SensorType:        SENSOR_TYPE_SENSOR,
			Name:              fmt.Sprintf("%s %s", device.Name, field.Name),
			UniqueId:          uniqueId(device.Id, field.Key),
			UnitOfMeasurement: field.Unit,
			StateClass:        field.StateClass,
			DeviceClass:       field.DeviceClass,
			Icon:              field.Icon,
		})
	}
	return sensors
}

func BridgeSensors(bridgeDevice Device) []GenericSensor {
	return []GenericSensor{
		{
			Device:         bridgeDevice,
			Id:             SENSOR_ID_BRIDGE_STATE,
			SensorType:     SENSOR_TYPE_BINARY,
			Name:           "Connection state",
			DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
			EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
			UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
		},
	}
}

func uniqueId(baseId, id string) string {
	return fmt.Sprintf("%s_%s", baseId, id)
}

func md5Hash(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])
}

func md5HashShort(text string) string {
	hash := md5Hash(text)
	return hash[0:8]
}
