package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/berfenger/whatwatt2mqtt/internal/config"
	"github.com/berfenger/whatwatt2mqtt/internal/core/domain"
	"github.com/berfenger/whatwatt2mqtt/internal/core/events"
	"github.com/berfenger/whatwatt2mqtt/internal/core/port"
	"github.com/berfenger/whatwatt2mqtt/internal/core/service"
	"github.com/berfenger/whatwatt2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

const (
	ENTRY_SUBSCRIBE_TIMEOUT = 15 * time.Second
)

// EntryActor owns the runtime context of one configuration entry: its MQTT
// subscription, identity latch and sensors. Messages of the entry are handled
// one at a time by the actor mailbox.
type EntryActor struct {
	config     *config.Config
	entry      domain.Entry
	behavior   actor.Behavior
	stash      *actorutil.Stash
	mqttActor  *actor.PID
	deviceApi  port.DeviceAPI
	dispatcher *service.Dispatcher
	pending    []domain.SensorState
	logger     *zap.Logger
}

type deviceStatusResult struct {
	ReplyTo *actor.PID
	Error   error
}

func NewEntryActor(config *config.Config, entry domain.Entry, mqttActor *actor.PID, deviceApi port.DeviceAPI, logger *zap.Logger) *EntryActor {
	act := &EntryActor{
		config:    config,
		entry:     entry,
		behavior:  actor.NewBehavior(),
		stash:     &actorutil.Stash{},
		mqttActor: mqttActor,
		deviceApi: deviceApi,
		logger:    actorutil.ActorLogger(fmt.Sprintf("%s_%s", domain.ACTOR_ID_ENTRY, entry.Id), logger),
	}
	sink := port.StateSinkFunc(func(state domain.SensorState) {
		act.pending = append(act.pending, state)
	})
	sensors := service.NewEntrySensors(entry.Id, sink, act.logger)
	act.dispatcher = service.NewDispatcher(entry, sensors, act.logger)
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *EntryActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *EntryActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("entry@starting started", zap.String("topic", state.entry.MqttTopic))
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mqttActor, domain.SubscribeRequest{
			Topic:      state.entry.MqttTopic,
			Subscriber: domain.RefOf(ctx.Self()),
		}, ENTRY_SUBSCRIBE_TIMEOUT), func(err error) any {
			return domain.SubscribeResponse{
				ActorResponseMixIn: domain.ErrorResponseMixIn(err),
				Topic:              state.entry.MqttTopic,
			}
		})
	case domain.SubscribeResponse:
		if msg.HasResponseError() {
			// let supervisor retry the subscription
			state.logger.Error("entry@starting subscribe failed", zap.Error(msg.GetResponseError()))
			panic(msg.GetResponseError())
		}
		state.logger.Info("entry@starting subscribed", zap.String("topic", msg.Topic))
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Stopping:
		state.unsubscribe(ctx)
	case *actor.Restarting:
	default:
		state.logger.Debug("entry@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *EntryActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.InboundMessage:
		state.handleMessage(ctx, msg)
	case domain.GetSensorsRequest:
		actorutil.ForRequest(msg).Respond(ctx, domain.GetSensorsResponse{
			Sensors: state.dispatcher.Sensors(),
		})
	case domain.GetDeviceRequest:
		state.probeDeviceStatus(ctx, actorutil.ForRequest(msg).ReplyTo(ctx))
	case deviceStatusResult:
		resp := domain.GetDeviceResponse{
			Device:   state.dispatcher.Device(),
			Identity: state.dispatcher.Identity(),
			Online:   msg.Error == nil,
		}
		if msg.Error != nil {
			resp.StatusError = msg.Error.Error()
		}
		if msg.ReplyTo != nil {
			ctx.Send(msg.ReplyTo, resp)
		}
	case domain.ActorHealthRequest:
		entryState := "waiting_identity"
		if state.dispatcher.Identity() != nil {
			entryState = "receiving"
		}
		ctx.Respond(domain.ActorHealthResponse{
			Id:      state.entry.Id,
			Healthy: true,
			State:   entryState,
		})
	case *actor.Stopping:
		state.logger.Debug("entry@default stopping")
		state.markUnavailable(ctx)
		state.unsubscribe(ctx)
	case *actor.Restarting:
	default:
		state.logger.Debug("entry@default unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *EntryActor) handleMessage(ctx actor.Context, msg domain.InboundMessage) {
	result := state.dispatcher.HandleMessage(msg.Payload)
	if result.IdentityCaptured && state.config.MQTT.HADiscoveryEnable {
		device := *state.dispatcher.Device()
		device.ViaDevice = domain.BridgeDevice(state.config.MQTT.BaseTopic).Id
		ctx.Send(state.mqttActor, domain.PublishDiscoveryRequest{
			Sensors: domain.EntrySensors(state.entry.Id, device),
		})
	}
	state.flushSensorStates(ctx)
}

func (state *EntryActor) flushSensorStates(ctx actor.Context) {
	for _, sensorState := range state.pending {
		for _, ev := range events.SensorStateToUpdateEvents(sensorState) {
			ctx.Send(state.mqttActor, domain.PublishSensorUpdateRequest{Event: ev})
		}
	}
	state.pending = nil
}

func (state *EntryActor) markUnavailable(ctx actor.Context) {
	if state.dispatcher.Identity() == nil {
		return
	}
	for _, sensorState := range state.dispatcher.Sensors() {
		ctx.Send(state.mqttActor, domain.PublishSensorUpdateRequest{
			Event: domain.AvailabilityUpdateEvent{
				SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
					EntryId: state.entry.Id,
					Id:      sensorState.Key,
				},
				Available: false,
			},
		})
	}
}

func (state *EntryActor) unsubscribe(ctx actor.Context) {
	ctx.Send(state.mqttActor, domain.UnsubscribeRequest{
		Topic:      state.entry.MqttTopic,
		Subscriber: domain.RefOf(ctx.Self()),
	})
}

func (state *EntryActor) probeDeviceStatus(ctx actor.Context, replyTo *actor.PID) {
	timeout := time.Duration(state.config.DeviceConfig.StatusTimeoutMillis) * time.Millisecond
	api := state.deviceApi
	actorutil.NewBackgroundTask(ctx, func() (*deviceStatusResult, error) {
		reqCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return &deviceStatusResult{
			ReplyTo: replyTo,
			Error:   api.Status(reqCtx),
		}, nil
	}).WithTimeout(timeout + 500*time.Millisecond).Recover(func(err error) deviceStatusResult {
		return deviceStatusResult{
			ReplyTo: replyTo,
			Error:   err,
		}
	}).PipeTo(ctx.Self())
}
