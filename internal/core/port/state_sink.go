package port

import "github.com/berfenger/whatwatt2mqtt/internal/core/domain"

// StateSink receives a notification every time a sensor attempted an update.
type StateSink interface {
	SensorStateChanged(state domain.SensorState)
}

type StateSinkFunc func(state domain.SensorState)

func (f StateSinkFunc) SensorStateChanged(state domain.SensorState) {
	f(state)
}
