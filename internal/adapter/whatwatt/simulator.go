package whatwatt

import (
	"math"
	"math/rand/v2"
	"time"
)

const (
	SIMULATOR_SYS_ID   = "whatwatt-test"
	SIMULATOR_METER_ID = "meter-test"
)

// Reading is a message in the format the device publishes with the template
// generated during provisioning.
type Reading struct {
	SystemId  string  `json:"sys_id"`
	MeterId   string  `json:"meter_id"`
	Time      string  `json:"time"`
	PowerIn   float64 `json:"power_in"`
	PowerOut  float64 `json:"power_out"`
	EnergyIn  float64 `json:"energy_in"`
	EnergyOut float64 `json:"energy_out"`
	VoltageL1 float64 `json:"voltage_l1"`
	VoltageL2 float64 `json:"voltage_l2"`
	VoltageL3 float64 `json:"voltage_l3"`
}

// Simulator generates plausible readings. Energy counters only grow.
type Simulator struct {
	rng *rand.Rand
	// accumulated Wh
	energyIn  float64
	energyOut float64
}

func NewSimulator(seed uint64) *Simulator {
	return &Simulator{
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

func (s *Simulator) uniform(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}

func (s *Simulator) Next(now time.Time) Reading {
	powerIn := s.uniform(800, 2500)
	var powerOut float64
	if s.rng.Float64() > 0.7 {
		powerOut = s.uniform(0, 100)
	}
	s.energyIn += powerIn / 3600
	s.energyOut += powerOut / 3600

	return Reading{
		SystemId:  SIMULATOR_SYS_ID,
		MeterId:   SIMULATOR_METER_ID,
		Time:      now.UTC().Format("2006-01-02T15:04:05.000000Z"),
		PowerIn:   round(powerIn, 1),
		PowerOut:  round(powerOut, 1),
		EnergyIn:  round(s.energyIn/1000, 3),
		EnergyOut: round(s.energyOut/1000, 3),
		VoltageL1: round(s.uniform(220, 240), 1),
		VoltageL2: round(s.uniform(220, 240), 1),
		VoltageL3: round(s.uniform(220, 240), 1),
	}
}

func round(value float64, decimals int) float64 {
	p := math.Pow10(decimals)
	return math.Round(value*p) / p
}
