package service

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/berfenger/whatwatt2mqtt/internal/core/domain"
	"github.com/berfenger/whatwatt2mqtt/internal/core/port"

	"go.uber.org/zap"
)

// Sensor holds the last known value of one payload field of an entry.
type Sensor struct {
	entryId   string
	field     domain.SensorField
	value     *float64
	available bool
	sink      port.StateSink
	logger    *zap.Logger
}

func NewSensor(entryId string, field domain.SensorField, sink port.StateSink, logger *zap.Logger) *Sensor {
	return &Sensor{
		entryId: entryId,
		field:   field,
		sink:    sink,
		logger:  logger.With(zap.String("sensor", field.Key)),
	}
}

// NewEntrySensors creates one sensor per known field.
func NewEntrySensors(entryId string, sink port.StateSink, logger *zap.Logger) []*Sensor {
	fields := domain.SensorFields()
	sensors := make([]*Sensor, 0, len(fields))
	for _, field := range fields {
		sensors = append(sensors, NewSensor(entryId, field, sink, logger))
	}
	return sensors
}

func (s *Sensor) Key() string {
	return s.field.Key
}

func (s *Sensor) Field() domain.SensorField {
	return s.field
}

// Value returns the last valid reading, which survives a later invalid one.
func (s *Sensor) Value() (float64, bool) {
	if s.value == nil {
		return 0, false
	}
	return *s.value, true
}

func (s *Sensor) Available() bool {
	return s.available
}

func (s *Sensor) State() domain.SensorState {
	state := domain.SensorState{
		EntryId:   s.entryId,
		Key:       s.field.Key,
		Name:      s.field.Name,
		Unit:      s.field.Unit,
		Available: s.available,
	}
	if s.value != nil {
		value := *s.value
		state.Value = &value
	}
	return state
}

// HandlePayload updates the sensor from a decoded message. A payload without
// the sensor key leaves value and availability untouched.
func (s *Sensor) HandlePayload(payload map[string]any) {
	raw, ok := payload[s.field.Key]
	if !ok {
		return
	}
	value, err := toFloat(raw)
	if err != nil {
		s.logger.Error("could not parse sensor value", zap.Any("value", raw), zap.Error(err))
		s.available = false
	} else {
		s.value = &value
		s.available = true
	}
	if s.sink != nil {
		s.sink.SensorStateChanged(s.State())
	}
}

// toFloat accepts numbers, numeric strings and booleans (true is 1).
func toFloat(raw any) (float64, error) {
	switch v := raw.(type) {
	case json.Number:
		return strconv.ParseFloat(v.String(), 64)
	case float64:
		return v, nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	default:
		return 0, fmt.Errorf("unsupported value type %T", raw)
	}
}
