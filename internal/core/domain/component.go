package domain

type Device struct {
	Id               string
	Name             string
	Version          string
	Model            string
	Manufacturer     string
	ViaDevice        string
	ConfigurationUrl string
}

// DeviceIdentity is taken from the first valid message of an entry.
type DeviceIdentity struct {
	SystemId string
	MeterId  string
}

type GenericSensor struct {
	Device            Device
	EntryId           string
	Id                string
	SensorType        string
	Name              string
	UniqueId          string
	UnitOfMeasurement string
	StateClass        string // measurement, total_increasing (for acc energy)
	DeviceClass       string // voltage, power, energy
	EntityCategory    string // diagnostic, config, nil
	EnabledByDefault  *bool
	Icon              string
}

type Entry struct {
	Id        string `json:"id"`
	MqttTopic string `json:"mqtt_topic"`
	DeviceIp  string `json:"device_ip"`
	Name      string `json:"name"`
}

// SensorState is the read-time view of a sensor. Value keeps the last valid
// reading even when the sensor became unavailable.
type SensorState struct {
	EntryId   string   `json:"-"`
	Key       string   `json:"key"`
	Name      string   `json:"name"`
	Unit      string   `json:"unit"`
	Value     *float64 `json:"value"`
	Available bool     `json:"available"`
}
