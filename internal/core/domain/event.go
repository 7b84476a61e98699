package domain

import "fmt"

type SensorUpdateEventMixIn struct {
	EntryId string
	Id      string
}

type SensorUpdateEvent interface {
	SensorUpdateEvent() string
	SensorId() string
	SensorEntryId() string
}

func (e SensorUpdateEventMixIn) SensorUpdateEvent() string {
	return fmt.Sprintf("%T", e)
}

func (e SensorUpdateEventMixIn) SensorId() string {
	return e.Id
}

func (e SensorUpdateEventMixIn) SensorEntryId() string {
	return e.EntryId
}

type FloatSensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value    float64
	Decimals uint
}

type AvailabilityUpdateEvent struct {
	SensorUpdateEventMixIn
	Available bool
}

type BridgeStateUpdateEvent struct {
	SensorUpdateEventMixIn
	Value bool
}
