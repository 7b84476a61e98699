package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"

	"github.com/berfenger/whatwatt2mqtt/internal/core/domain"

	"go.uber.org/zap"
)

// IdentityLatch stores the device identity and metadata of an entry. It can be
// set once; later attempts are ignored.
type IdentityLatch struct {
	identity *domain.DeviceIdentity
	device   *domain.Device
}

// Set stores identity and device if the latch is still empty and reports
// whether it did.
func (l *IdentityLatch) Set(identity domain.DeviceIdentity, device domain.Device) bool {
	if l.identity != nil {
		return false
	}
	l.identity = &identity
	l.device = &device
	return true
}

func (l *IdentityLatch) IsSet() bool {
	return l.identity != nil
}

func (l *IdentityLatch) Identity() *domain.DeviceIdentity {
	if l.identity == nil {
		return nil
	}
	identity := *l.identity
	return &identity
}

func (l *IdentityLatch) Device() *domain.Device {
	if l.device == nil {
		return nil
	}
	device := *l.device
	return &device
}

type DispatchResult struct {
	Dispatched       bool
	IdentityCaptured bool
}

// Dispatcher fans out the messages of one entry to its sensors.
type Dispatcher struct {
	entry   domain.Entry
	latch   IdentityLatch
	sensors []*Sensor
	logger  *zap.Logger
}

func NewDispatcher(entry domain.Entry, sensors []*Sensor, logger *zap.Logger) *Dispatcher {
	snapshot := make([]*Sensor, len(sensors))
	copy(snapshot, sensors)
	return &Dispatcher{
		entry:   entry,
		sensors: snapshot,
		logger:  logger,
	}
}

func (d *Dispatcher) Entry() domain.Entry {
	return d.entry
}

func (d *Dispatcher) Identity() *domain.DeviceIdentity {
	return d.latch.Identity()
}

func (d *Dispatcher) Device() *domain.Device {
	return d.latch.Device()
}

func (d *Dispatcher) Sensors() []domain.SensorState {
	states := make([]domain.SensorState, 0, len(d.sensors))
	for _, sensor := range d.sensors {
		states = append(states, sensor.State())
	}
	return states
}

func (d *Dispatcher) HandleMessage(payload []byte) DispatchResult {
	message, err := decodeMessage(payload)
	if err != nil || message == nil {
		d.logger.Error("invalid JSON in MQTT message", zap.ByteString("payload", payload), zap.Error(err))
		return DispatchResult{}
	}
	d.logger.Debug("received message", zap.Any("payload", message))

	sysId := identityValue(message[domain.ATTR_SYS_ID])
	if sysId == "" {
		d.logger.Error("message missing required sys_id field")
		return DispatchResult{}
	}

	var result DispatchResult
	if !d.latch.IsSet() {
		identity := domain.DeviceIdentity{
			SystemId: sysId,
			MeterId:  identityValue(message[domain.ATTR_METER_ID]),
		}
		device := domain.WhatWattDevice(identity, d.entry.Name, d.entry.DeviceIp, identityValue(message[domain.ATTR_VERSION]))
		result.IdentityCaptured = d.latch.Set(identity, device)
		d.logger.Info("device identity captured", zap.String("sys_id", identity.SystemId), zap.String("meter_id", identity.MeterId))
	}

	for _, sensor := range d.sensors {
		sensor.HandlePayload(message)
	}
	result.Dispatched = true
	return result
}

// decodeMessage keeps numbers as json.Number so that a single out of range
// value only fails its own sensor.
func decodeMessage(payload []byte) (map[string]any, error) {
	var message map[string]any
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&message); err != nil {
		return nil, err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after JSON object")
	}
	return message, nil
}

// identityValue renders identity-like payload fields. Missing, null, empty
// and zero values yield "".
func identityValue(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case json.Number:
		if f, err := v.Float64(); err == nil && f == 0 {
			return ""
		}
		return v.String()
	case bool:
		if v {
			return "true"
		}
		return ""
	default:
		return ""
	}
}
