package port

import (
	"context"
	"errors"
)

var ErrDeviceUnavailable = errors.New("whatwatt device unavailable")

type MQTTSettings struct {
	Active    bool   `json:"active"`
	BrokerUrl string `json:"broker_url"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	ClientId  string `json:"client_id"`
	Topic     string `json:"topic"`
	Template  string `json:"template"`
}

type SystemSettings struct {
	IntervalToSystems int `json:"interval_to_systems"`
}

// DeviceAPI is the REST interface of a WhatWatt GO device.
type DeviceAPI interface {
	Status(ctx context.Context) error
	ConfigureMQTT(ctx context.Context, settings MQTTSettings) error
	ConfigureSystem(ctx context.Context, settings SystemSettings) error
}
