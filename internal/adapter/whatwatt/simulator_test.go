package whatwatt

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/berfenger/whatwatt2mqtt/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulatorRanges(t *testing.T) {

	assert := assert.New(t)

	sim := NewSimulator(42)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	var last Reading
	for i := 0; i < 200; i++ {
		r := sim.Next(now.Add(time.Duration(i) * time.Second))
		assert.Equal(SIMULATOR_SYS_ID, r.SystemId)
		assert.Equal(SIMULATOR_METER_ID, r.MeterId)
		assert.GreaterOrEqual(r.PowerIn, 800.0)
		assert.LessOrEqual(r.PowerIn, 2500.0)
		assert.GreaterOrEqual(r.PowerOut, 0.0)
		assert.LessOrEqual(r.PowerOut, 100.0)
		for _, v := range []float64{r.VoltageL1, r.VoltageL2, r.VoltageL3} {
			assert.GreaterOrEqual(v, 220.0)
			assert.LessOrEqual(v, 240.0)
		}
		assert.GreaterOrEqual(r.EnergyIn, last.EnergyIn)
		assert.GreaterOrEqual(r.EnergyOut, last.EnergyOut)
		last = r
	}
	assert.Greater(last.EnergyIn, 0.0)
}

func TestReadingPayload(t *testing.T) {

	require := require.New(t)

	r := NewSimulator(1).Next(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	payload, err := json.Marshal(r)
	require.NoError(err)

	var decoded map[string]any
	require.NoError(json.Unmarshal(payload, &decoded))
	require.Equal("2024-05-01T12:00:00.000000Z", decoded[domain.ATTR_TIME])
	for _, field := range domain.SensorFields() {
		_, ok := decoded[field.Key].(float64)
		require.True(ok, field.Key)
	}
}
