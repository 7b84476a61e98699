package domain

import "errors"

var (
	ErrEntryExists   = errors.New("already_configured")
	ErrEntryNotFound = errors.New("entry not found")
)

// Entry lifecycle commands handled by the master actor

type CreateEntryRequest struct {
	ActorRequestMixIn
	MqttTopic string
	DeviceIp  string
	Name      string
}

type CreateEntryResponse struct {
	ActorResponseMixIn
	Entry Entry
}

type UnloadEntryRequest struct {
	ActorRequestMixIn
	EntryId string
}

type UnloadEntryResponse struct {
	ActorResponseMixIn
}

type ListEntriesRequest struct {
	ActorRequestMixIn
}

type ListEntriesResponse struct {
	ActorResponseMixIn
	Entries []Entry
}

// Entry queries, routed by the master actor to the entry actor

type GetSensorsRequest struct {
	ActorRequestMixIn
	EntryId string
}

type GetSensorsResponse struct {
	ActorResponseMixIn
	Sensors []SensorState
}

type GetDeviceRequest struct {
	ActorRequestMixIn
	EntryId string
}

type GetDeviceResponse struct {
	ActorResponseMixIn
	Device      *Device
	Identity    *DeviceIdentity
	Online      bool
	StatusError string
}

type EntryRequest interface {
	ActorRequest
	TargetEntryId() string
}

func (r GetSensorsRequest) TargetEntryId() string {
	return r.EntryId
}

func (r GetDeviceRequest) TargetEntryId() string {
	return r.EntryId
}

// ensure interface compliance
var _ EntryRequest = (*GetSensorsRequest)(nil)
var _ EntryRequest = (*GetDeviceRequest)(nil)
