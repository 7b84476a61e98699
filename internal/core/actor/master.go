package actor

import (
	"errors"
	"fmt"
	"log"
	"time"

	adactor "github.com/berfenger/whatwatt2mqtt/internal/adapter/actor"
	"github.com/berfenger/whatwatt2mqtt/internal/config"
	"github.com/berfenger/whatwatt2mqtt/internal/core/domain"
	"github.com/berfenger/whatwatt2mqtt/internal/core/port"
	. "github.com/berfenger/whatwatt2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type MQTTActorProvider func() *adactor.MQTTActor

type DeviceAPIProvider func(entry domain.Entry) port.DeviceAPI

// MasterActor supervises the MQTT actor and one entry actor per
// configuration entry. It is the only owner of the entry registry.
type MasterActor struct {
	config   config.Config
	behavior actor.Behavior
	stash    *Stash

	currentHealthCheck healthCheckResult
	mqttActor          *actor.PID
	entries            map[string]*entryRef
	topics             map[string]string
	order              []string
	mqttActorProvider  MQTTActorProvider
	deviceAPIProvider  DeviceAPIProvider
	logger             *zap.Logger
}

type entryRef struct {
	entry domain.Entry
	pid   *actor.PID
}

type healthCheckResult struct {
	mqttActorHealthy bool
	unhealthyEntries []string
	checksExpected   int
	checksReceived   int
	respondTo        *actor.PID
}

func NewMasterActor(config config.Config, mqttActorProvider MQTTActorProvider, deviceAPIProvider DeviceAPIProvider, logger *zap.Logger) *MasterActor {
	act := &MasterActor{
		config:            config,
		behavior:          actor.NewBehavior(),
		stash:             &Stash{},
		logger:            ActorLogger(domain.ACTOR_ID_MASTER, logger),
		entries:           map[string]*entryRef{},
		topics:            map[string]string{},
		mqttActorProvider: mqttActorProvider,
		deviceAPIProvider: deviceAPIProvider,
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MasterActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MasterActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("master@starting started")

		state.currentHealthCheck = healthCheckResult{}

		// start MQTT child
		mqttActorPID, err := state.startMQTTActor(ctx)
		if err != nil {
			panic(err)
		}
		state.mqttActor = mqttActorPID

		// announce bridge
		if state.config.MQTT.HADiscoveryEnable {
			ctx.Send(state.mqttActor, domain.PublishDiscoveryRequest{
				Sensors: domain.BridgeSensors(domain.BridgeDevice(state.config.MQTT.BaseTopic)),
			})
		}

		// start statically configured entries
		for _, entryCfg := range state.config.Entries {
			entry, err := state.createEntry(ctx, entryCfg.MqttTopic, entryCfg.DeviceIp, entryCfg.Name)
			if err != nil {
				state.logger.Error("master@starting could not create entry", zap.String("topic", entryCfg.MqttTopic), zap.Error(err))
				continue
			}
			state.logger.Info("master@starting entry loaded", zap.String("id", entry.Id), zap.String("topic", entry.MqttTopic))
		}

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("master@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("master@default ActorHealthRequest")
		state.currentHealthCheck.reset(1 + len(state.order))
		state.currentHealthCheck.respondTo = ctx.Sender()
		// MQTT Actor Request
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mqttActor, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_MQTT,
				Healthy: false,
			}
		})
		// Entry Actor Requests
		for _, id := range state.order {
			entryId := id
			PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.entries[entryId].pid, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
				return domain.ActorHealthResponse{
					Id:      entryId,
					Healthy: false,
				}
			})
		}

		ctx.SetReceiveTimeout(1 * time.Second)

		state.behavior.BecomeStacked(state.HealthCheckReceive)
	case domain.CreateEntryRequest:
		state.logger.Debug("master@default CreateEntryRequest", zap.String("topic", msg.MqttTopic))
		entry, err := state.createEntry(ctx, msg.MqttTopic, msg.DeviceIp, msg.Name)
		resp := domain.CreateEntryResponse{
			ActorResponseMixIn: domain.ErrorResponseMixIn(err),
		}
		if err == nil {
			resp.Entry = *entry
		}
		ForRequest(msg).Respond(ctx, resp)
	case domain.UnloadEntryRequest:
		state.logger.Debug("master@default UnloadEntryRequest", zap.String("id", msg.EntryId))
		ForRequest(msg).Respond(ctx, domain.UnloadEntryResponse{
			ActorResponseMixIn: domain.ErrorResponseMixIn(state.unloadEntry(ctx, msg.EntryId)),
		})
	case domain.ListEntriesRequest:
		entries := make([]domain.Entry, 0, len(state.order))
		for _, id := range state.order {
			entries = append(entries, state.entries[id].entry)
		}
		ForRequest(msg).Respond(ctx, domain.ListEntriesResponse{Entries: entries})
	case domain.EntryRequest:
		ref, ok := state.entries[msg.TargetEntryId()]
		if !ok {
			state.respondEntryNotFound(ctx, msg)
			return
		}
		ctx.Forward(ref.pid)
	case *actor.Terminated:
		// entry actors that exhausted their restarts are dropped
		for id, ref := range state.entries {
			if ref.pid.Equal(msg.Who) {
				state.logger.Error("master@default entry terminated", zap.String("id", id))
				state.removeEntry(id)
				return
			}
		}
		if state.mqttActor != nil && state.mqttActor.Equal(msg.Who) {
			state.logger.Error("master@default mqtt terminated")
			panic(errors.New("mqtt terminated"))
		}
	default:
		state.logger.Debug("master@default unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *MasterActor) HealthCheckReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.ReceiveTimeout:
		// if some actor does not respond to healthCheck, assume not healthy
		ctx.CancelReceiveTimeout()
		state.currentHealthCheck.respond(ctx)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthResponse:
		state.logger.Debug("master@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.currentHealthCheck.checksReceived++
		if msg.Id == domain.ACTOR_ID_MQTT {
			state.currentHealthCheck.mqttActorHealthy = msg.Healthy
		} else if !msg.Healthy {
			state.currentHealthCheck.unhealthyEntries = append(state.currentHealthCheck.unhealthyEntries, msg.Id)
		}
		if state.currentHealthCheck.allReceived() {
			ctx.CancelReceiveTimeout()
			state.currentHealthCheck.respond(ctx)

			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(ctx)
		} else {
			ctx.SetReceiveTimeout(1 * time.Second)
		}
	default:
		state.logger.Debug("master@healthcheck stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterActor) createEntry(ctx actor.Context, topic, deviceIp, name string) (*domain.Entry, error) {
	if errs := config.ValidateEntryInput(config.EntryConfig{MqttTopic: topic, DeviceIp: deviceIp}); len(errs) > 0 {
		return nil, config.ValidationError{Errors: errs}
	}
	if _, exists := state.topics[topic]; exists {
		return nil, domain.ErrEntryExists
	}
	if name == "" {
		name = domain.DEFAULT_NAME
	}
	entry := domain.Entry{
		Id:        uuid.NewString(),
		MqttTopic: topic,
		DeviceIp:  deviceIp,
		Name:      name,
	}
	pid, err := state.startEntryActor(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("could not start entry actor: %w", err)
	}
	state.entries[entry.Id] = &entryRef{entry: entry, pid: pid}
	state.topics[entry.MqttTopic] = entry.Id
	state.order = append(state.order, entry.Id)
	return &entry, nil
}

func (state *MasterActor) unloadEntry(ctx actor.Context, entryId string) error {
	ref, ok := state.entries[entryId]
	if !ok {
		return domain.ErrEntryNotFound
	}
	state.removeEntry(entryId)
	// the entry actor unsubscribes its topic while stopping
	ctx.Stop(ref.pid)
	return nil
}

func (state *MasterActor) removeEntry(entryId string) {
	ref, ok := state.entries[entryId]
	if !ok {
		return
	}
	delete(state.entries, entryId)
	delete(state.topics, ref.entry.MqttTopic)
	for i, id := range state.order {
		if id == entryId {
			state.order = append(state.order[:i], state.order[i+1:]...)
			break
		}
	}
}

func (state *MasterActor) respondEntryNotFound(ctx actor.Context, req domain.EntryRequest) {
	errResp := domain.ErrorResponseMixIn(domain.ErrEntryNotFound)
	switch req.(type) {
	case domain.GetSensorsRequest:
		ForRequest(req).Respond(ctx, domain.GetSensorsResponse{ActorResponseMixIn: errResp})
	case domain.GetDeviceRequest:
		ForRequest(req).Respond(ctx, domain.GetDeviceResponse{ActorResponseMixIn: errResp})
	}
}

func (state *MasterActor) startMQTTActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	mqttProps := actor.PropsFromProducer(func() actor.Actor {
		return state.mqttActorProvider()
	}, actor.WithSupervisor(supervisor))
	mqttActorPID, err := ctx.SpawnNamed(mqttProps, domain.ACTOR_ID_MQTT)
	if err != nil {
		return nil, err
	}

	return mqttActorPID, nil
}

func (state *MasterActor) startEntryActor(ctx actor.Context, entry domain.Entry) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for entry %s. reason: %v", entry.Id, reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(10, 10*time.Second, decider)

	cfg := state.config
	entryProps := actor.PropsFromProducer(func() actor.Actor {
		return NewEntryActor(&cfg, entry, state.mqttActor, state.deviceAPIProvider(entry), state.logger)
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(entryProps, fmt.Sprintf("%s_%s", domain.ACTOR_ID_ENTRY, entry.Id))
}

func (state *healthCheckResult) reset(expected int) {
	state.mqttActorHealthy = false
	state.unhealthyEntries = nil
	state.checksExpected = expected
	state.checksReceived = 0
}

func (state *healthCheckResult) allReceived() bool {
	return state.checksReceived >= state.checksExpected
}

func (state *healthCheckResult) allHealthy() bool {
	return state.mqttActorHealthy && state.allReceived() && len(state.unhealthyEntries) == 0
}

func (state *healthCheckResult) respond(ctx actor.Context) {
	resp := domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_MASTER,
		Healthy: state.allHealthy(),
		State:   fmt.Sprintf("entries=%d unhealthy=%d", state.checksExpected-1, len(state.unhealthyEntries)),
	}
	if state.respondTo != nil {
		ctx.Send(state.respondTo, resp)
	}
}
