package events

import (
	. "github.com/berfenger/whatwatt2mqtt/internal/core/domain"
)

const SENSOR_VALUE_DECIMALS = 3

// SensorStateToUpdateEvents maps a sensor state change to the MQTT updates it
// needs. The value is only published while the sensor is available.
func SensorStateToUpdateEvents(state SensorState) []SensorUpdateEvent {
	var events []SensorUpdateEvent

	mixIn := SensorUpdateEventMixIn{
		EntryId: state.EntryId,
		Id:      state.Key,
	}
	if state.Available && state.Value != nil {
		events = append(events, FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: mixIn,
			Value:                  *state.Value,
			Decimals:               SENSOR_VALUE_DECIMALS,
		})
	}
	events = append(events, AvailabilityUpdateEvent{
		SensorUpdateEventMixIn: mixIn,
		Available:              state.Available,
	})

	return events
}

func BridgeStateUpdateEvents(online bool) []SensorUpdateEvent {
	return []SensorUpdateEvent{
		BridgeStateUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: SENSOR_ID_BRIDGE_STATE,
			},
			Value: online,
		},
	}
}
