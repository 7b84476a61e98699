package domain

import "strings"

// ObisDisplay is the Home Assistant presentation of an OBIS code in the
// generated sensor YAML.
type ObisDisplay struct {
	Name        string
	Icon        string
	Unit        string
	DeviceClass string
	StateClass  string
}

var obisFieldKeys = map[string]string{
	"1_7_0":  ATTR_POWER_IN,
	"2_7_0":  ATTR_POWER_OUT,
	"1_8_0":  ATTR_ENERGY_IN,
	"2_8_0":  ATTR_ENERGY_OUT,
	"32_7_0": ATTR_VOLTAGE_L1,
	"52_7_0": ATTR_VOLTAGE_L2,
	"72_7_0": ATTR_VOLTAGE_L3,
}

var obisDisplays = map[string]ObisDisplay{
	"1_7_0": {
		Name: "Power In",
		Icon: "mdi:transmission-tower-import",
		Unit: "kW",
	},
	"2_7_0": {
		Name: "Power Out",
		Icon: "mdi:transmission-tower-export",
		Unit: "kW",
	},
	"1_8_0": {
		Name:        "Energy In",
		Icon:        "mdi:lightning-bolt",
		Unit:        UNIT_ENERGY,
		DeviceClass: DEVICE_CLASS_ENERGY,
		StateClass:  STATE_CLASS_TOTAL_INCREASING,
	},
	"2_8_0": {
		Name:        "Energy Out",
		Icon:        "mdi:lightning-bolt",
		Unit:        UNIT_ENERGY,
		DeviceClass: DEVICE_CLASS_ENERGY,
		StateClass:  STATE_CLASS_TOTAL_INCREASING,
	},
	"32_7_0": {
		Name:        "Voltage L1",
		Icon:        "mdi:sine-wave",
		Unit:        UNIT_VOLTAGE,
		DeviceClass: DEVICE_CLASS_VOLTAGE,
		StateClass:  STATE_CLASS_MEASUREMENT,
	},
	"52_7_0": {
		Name:        "Voltage L2",
		Icon:        "mdi:sine-wave",
		Unit:        UNIT_VOLTAGE,
		DeviceClass: DEVICE_CLASS_VOLTAGE,
		StateClass:  STATE_CLASS_MEASUREMENT,
	},
	"72_7_0": {
		Name:        "Voltage L3",
		Icon:        "mdi:sine-wave",
		Unit:        UNIT_VOLTAGE,
		DeviceClass: DEVICE_CLASS_VOLTAGE,
		StateClass:  STATE_CLASS_MEASUREMENT,
	},
}

// ObisFieldKey maps an OBIS code (e.g. "1_7_0") to the payload field it is reported as.
func ObisFieldKey(code string) (string, bool) {
	key, ok := obisFieldKeys[code]
	return key, ok
}

func ObisDisplayInfo(code string) (ObisDisplay, bool) {
	info, ok := obisDisplays[code]
	return info, ok
}

// ObisUniqueId builds the generated sensor id, "1_8_0" => "whatwatt_180".
func ObisUniqueId(code string) string {
	return DOMAIN + "_" + strings.ReplaceAll(strings.ToLower(code), "_", "")
}
