package actor

import (
	"testing"
	"time"

	"github.com/berfenger/whatwatt2mqtt/internal/core/domain"
	"github.com/berfenger/whatwatt2mqtt/internal/core/events"
	"github.com/berfenger/whatwatt2mqtt/internal/util"
	"github.com/berfenger/whatwatt2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMQTTActor(t *testing.T) {

	require := require.New(t)

	cfg := util.LoadTestConfig()

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	defer as.Shutdown()

	context := as.Root

	recorder := NewMQTTRecorder()
	props := actor.PropsFromProducer(func() actor.Actor { return NewTestMQTTActor(&cfg, recorder, logger) })
	pid := context.Spawn(props)

	result, err := context.RequestFuture(pid, domain.ActorHealthRequest{}, 2*time.Second).Result()
	require.NoError(err)
	resp, ok := result.(domain.ActorHealthResponse)
	require.True(ok)
	require.True(resp.Healthy)

	value := 231.4567
	for _, ev := range events.SensorStateToUpdateEvents(domain.SensorState{
		EntryId:   "e1",
		Key:       domain.ATTR_VOLTAGE_L1,
		Value:     &value,
		Available: true,
	}) {
		context.Send(pid, domain.PublishSensorUpdateRequest{Event: ev})
	}

	require.Eventually(func() bool {
		return len(recorder.PublishedWithPrefix("whatwatt/e1/")) == 2
	}, 2*time.Second, 10*time.Millisecond)

	state, ok := recorder.Last("whatwatt/e1/voltage_l1/state")
	require.True(ok)
	assert.Equal(t, "231.457", state.Payload)
	assert.False(t, state.Retain)

	availability, ok := recorder.Last("whatwatt/e1/voltage_l1/availability")
	require.True(ok)
	assert.Equal(t, "online", availability.Payload)
	assert.True(t, availability.Retain)

	context.Stop(pid)
}

func TestMQTTActorBridgeState(t *testing.T) {

	require := require.New(t)

	cfg := util.LoadTestConfig()
	logger := zap.NewNop()

	as := actor.NewActorSystem()
	defer as.Shutdown()
	context := as.Root

	recorder := NewMQTTRecorder()
	pid := context.Spawn(actor.PropsFromProducer(func() actor.Actor { return NewTestMQTTActor(&cfg, recorder, logger) }))

	_, err := context.RequestFuture(pid, domain.ActorHealthRequest{}, 2*time.Second).Result()
	require.NoError(err)

	state, ok := recorder.Last("whatwatt/bridge/state")
	require.True(ok)
	require.Equal("online", state.Payload)
	require.True(state.Retain)

	require.NoError(context.StopFuture(pid).Wait())

	state, ok = recorder.Last("whatwatt/bridge/state")
	require.True(ok)
	require.Equal("offline", state.Payload)
	require.True(state.Retain)
}

func TestMQTTActorSubscriptions(t *testing.T) {

	require := require.New(t)

	cfg := util.LoadTestConfig()
	logger := zap.NewNop()

	as := actor.NewActorSystem()
	defer as.Shutdown()
	context := as.Root

	recorder := NewMQTTRecorder()
	pid := context.Spawn(actor.PropsFromProducer(func() actor.Actor { return NewTestMQTTActor(&cfg, recorder, logger) }))

	subscriber := context.Spawn(actor.PropsFromFunc(func(actor.Context) {}))

	res, err := context.RequestFuture(pid, domain.SubscribeRequest{
		Topic:      "energy/whatwatt/go",
		Subscriber: domain.RefOf(subscriber),
	}, time.Second).Result()
	require.NoError(err)
	subResp, ok := res.(domain.SubscribeResponse)
	require.True(ok)
	require.False(subResp.HasResponseError())
	require.Equal(subscriber, recorder.Subscriber("energy/whatwatt/go"))

	_, err = context.RequestFuture(pid, domain.UnsubscribeRequest{Topic: "energy/whatwatt/go"}, time.Second).Result()
	require.NoError(err)
	require.Nil(recorder.Subscriber("energy/whatwatt/go"))
	require.Equal([]string{"energy/whatwatt/go"}, recorder.Unsubscribed())
}

func TestMQTTActorIgnoresStaleUnsubscribe(t *testing.T) {

	require := require.New(t)

	cfg := util.LoadTestConfig()
	logger := zap.NewNop()

	as := actor.NewActorSystem()
	defer as.Shutdown()
	context := as.Root

	recorder := NewMQTTRecorder()
	pid := context.Spawn(actor.PropsFromProducer(func() actor.Actor { return NewTestMQTTActor(&cfg, recorder, logger) }))

	topic := "energy/whatwatt/go"
	previous := context.Spawn(actor.PropsFromFunc(func(actor.Context) {}))
	current := context.Spawn(actor.PropsFromFunc(func(actor.Context) {}))

	for _, subscriber := range []*actor.PID{previous, current} {
		_, err := context.RequestFuture(pid, domain.SubscribeRequest{
			Topic:      topic,
			Subscriber: domain.RefOf(subscriber),
		}, time.Second).Result()
		require.NoError(err)
	}
	require.Equal(current, recorder.Subscriber(topic))

	// late unsubscribe of the replaced subscriber keeps the current route
	_, err := context.RequestFuture(pid, domain.UnsubscribeRequest{
		Topic:      topic,
		Subscriber: domain.RefOf(previous),
	}, time.Second).Result()
	require.NoError(err)
	require.Equal(current, recorder.Subscriber(topic))
	require.Empty(recorder.Unsubscribed())

	_, err = context.RequestFuture(pid, domain.UnsubscribeRequest{
		Topic:      topic,
		Subscriber: domain.RefOf(current),
	}, time.Second).Result()
	require.NoError(err)
	require.Nil(recorder.Subscriber(topic))
	require.Equal([]string{topic}, recorder.Unsubscribed())
}

func TestMQTTActorDiscovery(t *testing.T) {

	require := require.New(t)

	cfg := util.LoadTestConfig()
	logger := zap.NewNop()

	as := actor.NewActorSystem()
	defer as.Shutdown()
	context := as.Root

	recorder := NewMQTTRecorder()
	pid := context.Spawn(actor.PropsFromProducer(func() actor.Actor { return NewTestMQTTActor(&cfg, recorder, logger) }))

	device := domain.WhatWattDevice(domain.DeviceIdentity{SystemId: "ww-1"}, "Meter", "10.0.0.2", "1.2")
	res, err := context.RequestFuture(pid, domain.PublishDiscoveryRequest{
		Sensors: domain.EntrySensors("e1", device),
	}, time.Second).Result()
	require.NoError(err)
	discResp, ok := res.(domain.PublishDiscoveryResponse)
	require.True(ok)
	require.False(discResp.HasResponseError())

	published := recorder.PublishedWithPrefix("homeassistant/sensor/ww-1/")
	require.Len(published, len(domain.SensorFields()))
	for _, p := range published {
		require.True(p.Retain)
	}
	first, ok := recorder.Last("homeassistant/sensor/ww-1/power_in/config")
	require.True(ok)
	require.Contains(first.Payload, `"unique_id":"ww-1_power_in"`)
	require.Contains(first.Payload, `"state_topic":"whatwatt/e1/power_in/state"`)
}
