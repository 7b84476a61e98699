package actor

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/whatwatt2mqtt/internal/config"
	"github.com/berfenger/whatwatt2mqtt/internal/core/domain"
	"github.com/berfenger/whatwatt2mqtt/internal/core/events"
	"github.com/berfenger/whatwatt2mqtt/internal/mqtt"
	"github.com/berfenger/whatwatt2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const (
	MQTT_CONNECT_TIMEOUT   = 10 * time.Second
	MQTT_SUBSCRIBE_TIMEOUT = 2 * time.Second
	MQTT_PUBLISH_TIMEOUT   = 5 * time.Second
)

type MQTTActor struct {
	config        *config.Config
	behavior      actor.Behavior
	stash         *actorutil.Stash
	client        *mqtt.MQTTClient
	subscriptions map[string]*actor.PID
	recorder      *MQTTRecorder
	logger        *zap.Logger
}

type MQTTConnected struct {
}

type MQTTConnectionLost struct {
	Error error
}

type publishResult struct {
	ReplyTo *actor.PID
	Error   error
}

type subscribeResult struct {
	Topic   string
	ReplyTo *actor.PID
	Error   error
}

type unsubscribeResult struct {
	Topic   string
	ReplyTo *actor.PID
	Error   error
}

type rawMessage struct {
	topic   string
	message string
	retain  bool
}

func NewMQTTActor(config *config.Config, logger *zap.Logger) *MQTTActor {
	act := &MQTTActor{
		config:        config,
		behavior:      actor.NewBehavior(),
		stash:         &actorutil.Stash{},
		subscriptions: map[string]*actor.PID{},
		logger:        actorutil.ActorLogger(domain.ACTOR_ID_MQTT, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MQTTActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MQTTActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("mqtt@starting started")

		root := ctx.ActorSystem().Root
		self := ctx.Self()

		// paho calls OnConnect on the first connection and after every reconnect
		state.client = mqtt.CreateMQTTClient(state.config, mqtt.OptsFromConfig(state.config), func(_ pahomqtt.Client) {
			root.Send(self, MQTTConnected{})
		}, func(_ pahomqtt.Client, err error) {
			root.Send(self, MQTTConnectionLost{Error: err})
		})

		// connect to MQTT server
		state.client.Connect(func(err error) {
			if err != nil {
				root.Send(self, MQTTConnectionLost{Error: err})
			}
		}, MQTT_CONNECT_TIMEOUT)

	case MQTTConnected:
		// init completed, transition to default state
		state.logger.Debug("mqtt@starting connected")
		state.publishBridgeState(true)
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case MQTTConnectionLost:
		// if connection fails while starting, stop actor and let supervisor decide
		state.logger.Error("mqtt@starting connection lost", zap.Error(msg.Error))
		panic(msg.Error)
	case *actor.Restarting:
		state.stop()
	default:
		state.logger.Debug("mqtt@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MQTTActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Restarting:
		state.stop()
	case *actor.Stopping:
		state.stop()
	case domain.ActorHealthRequest:
		state.logger.Debug("mqtt@default ActorHealthRequest")
		connected := state.client.IsConnected()
		healthState := "connected"
		if !connected {
			healthState = "reconnecting"
		}
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MQTT,
			Healthy: connected,
			State:   healthState,
		})
	case MQTTConnected:
		state.logger.Info("mqtt@default reconnected", zap.Int("subscriptions", len(state.subscriptions)))
		state.publishBridgeState(true)
		for topic, subscriber := range state.subscriptions {
			state.subscribe(ctx, topic, subscriber, nil)
		}
	case MQTTConnectionLost:
		// paho reconnects on its own, subscriptions are restored on MQTTConnected
		state.logger.Warn("mqtt@default connection lost", zap.Error(msg.Error))
	case domain.SubscribeRequest:
		state.logger.Debug("mqtt@default SubscribeRequest", zap.String("topic", msg.Topic))
		replyTo := actorutil.ForRequest(msg).ReplyTo(ctx)
		subscriber := replyTo
		if msg.Subscriber != nil {
			subscriber = msg.Subscriber.PID()
		}
		if subscriber == nil {
			state.logger.Error("mqtt@default SubscribeRequest without subscriber", zap.String("topic", msg.Topic))
			return
		}
		state.subscriptions[msg.Topic] = subscriber
		state.subscribe(ctx, msg.Topic, subscriber, replyTo)
	case subscribeResult:
		if msg.Error != nil {
			state.logger.Error("mqtt@default could not subscribe", zap.String("topic", msg.Topic), zap.Error(msg.Error))
			delete(state.subscriptions, msg.Topic)
		}
		if msg.ReplyTo != nil {
			ctx.Send(msg.ReplyTo, domain.SubscribeResponse{
				ActorResponseMixIn: domain.ErrorResponseMixIn(msg.Error),
				Topic:              msg.Topic,
			})
		}
	case domain.UnsubscribeRequest:
		state.logger.Debug("mqtt@default UnsubscribeRequest", zap.String("topic", msg.Topic))
		replyTo := actorutil.ForRequest(msg).ReplyTo(ctx)
		if !state.releaseSubscription(msg.Topic, msg.Subscriber) {
			state.logger.Debug("mqtt@default stale UnsubscribeRequest ignored", zap.String("topic", msg.Topic))
			if replyTo != nil {
				ctx.Send(replyTo, domain.UnsubscribeResponse{})
			}
			return
		}
		root := ctx.ActorSystem().Root
		self := ctx.Self()
		topic := msg.Topic
		state.client.Unsubscribe(topic, func(err error) {
			root.Send(self, unsubscribeResult{Topic: topic, ReplyTo: replyTo, Error: err})
		}, MQTT_SUBSCRIBE_TIMEOUT)
	case unsubscribeResult:
		if msg.Error != nil {
			state.logger.Warn("mqtt@default could not unsubscribe", zap.String("topic", msg.Topic), zap.Error(msg.Error))
		}
		if msg.ReplyTo != nil {
			ctx.Send(msg.ReplyTo, domain.UnsubscribeResponse{
				ActorResponseMixIn: domain.ErrorResponseMixIn(msg.Error),
			})
		}
	case domain.PublishSensorUpdateRequest:
		state.logger.Debug("mqtt@default PublishSensorUpdateRequest", zap.String("type", fmt.Sprintf("%T", msg.Event)))
		state.publishSensorValue(ctx, msg.Event, msg.Retain, msg.ReplyTo())
	case domain.PublishDiscoveryRequest:
		state.logger.Debug("mqtt@default PublishDiscoveryRequest", zap.Int("sensors", len(msg.Sensors)))
		err := state.PublishHomeAssistantDiscovery(msg.Sensors)
		if err != nil {
			state.logger.Error("mqtt@default PublishDiscoveryRequest error", zap.Error(err))
		}
		actorutil.ForRequest(msg).Respond(ctx, domain.PublishDiscoveryResponse{
			ActorResponseMixIn: domain.ErrorResponseMixIn(err),
		})
	default:
		state.logger.Debug("mqtt@default unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *MQTTActor) subscribe(ctx actor.Context, topic string, subscriber *actor.PID, replyTo *actor.PID) {
	root := ctx.ActorSystem().Root
	self := ctx.Self()
	state.client.Subscribe(topic, 0, inboundHandler(root, subscriber), func(err error) {
		root.Send(self, subscribeResult{Topic: topic, ReplyTo: replyTo, Error: err})
	}, MQTT_SUBSCRIBE_TIMEOUT)
}

// releaseSubscription drops the route of topic unless it now belongs to a
// subscriber other than the requester.
func (state *MQTTActor) releaseSubscription(topic string, requester *domain.ActorRef) bool {
	registered, ok := state.subscriptions[topic]
	if ok && requester != nil && !registered.Equal(requester.PID()) {
		return false
	}
	delete(state.subscriptions, topic)
	return true
}

func inboundHandler(root *actor.RootContext, subscriber *actor.PID) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, m pahomqtt.Message) {
		payload := make([]byte, len(m.Payload()))
		copy(payload, m.Payload())
		root.Send(subscriber, domain.InboundMessage{
			Topic:   m.Topic(),
			Payload: payload,
		})
	}
}

func (state *MQTTActor) event2MQTTMessage(event domain.SensorUpdateEvent) *rawMessage {
	switch msg := event.(type) {
	case domain.FloatSensorUpdateEvent:
		return &rawMessage{
			topic:   state.client.SensorStateTopic(msg.EntryId, msg.Id),
			message: fmt.Sprintf(fmt.Sprintf("%%.%df", msg.Decimals), msg.Value),
		}
	case domain.AvailabilityUpdateEvent:
		return &rawMessage{
			topic:   state.client.SensorAvailabilityTopic(msg.EntryId, msg.Id),
			message: availabilityPayload(msg.Available),
			retain:  true,
		}
	case domain.BridgeStateUpdateEvent:
		return &rawMessage{
			topic:   state.client.BridgeStateTopic(),
			message: availabilityPayload(msg.Value),
			retain:  true,
		}
	default:
		return nil
	}
}

func (state *MQTTActor) publishSensorValue(ctx actor.Context, event domain.SensorUpdateEvent, retain bool, replyTo *domain.ActorRef) {
	msg := state.event2MQTTMessage(event)
	if msg == nil {
		return
	}
	var replyPID *actor.PID
	if replyTo != nil {
		replyPID = replyTo.PID()
	}
	state.logger.Sugar().Debugf("mqtt@publish: sensor publish %s => %s", msg.topic, msg.message)
	root := ctx.ActorSystem().Root
	self := ctx.Self()
	state.client.Publish(msg.topic, msg.message, 1, msg.retain || retain, func(err error) {
		root.Send(self, publishResult{ReplyTo: replyPID, Error: err})
	}, MQTT_PUBLISH_TIMEOUT)
	state.behavior.BecomeStacked(state.EventPublishResultReceive)
}

func (state *MQTTActor) EventPublishResultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case publishResult:
		if msg.Error != nil {
			state.logger.Error("mqtt@publishing could not publish a sensor update", zap.Error(msg.Error))
		}
		if msg.ReplyTo != nil {
			ctx.Send(msg.ReplyTo, domain.PublishSensorUpdateResponse{
				ActorResponseMixIn: domain.ErrorResponseMixIn(msg.Error),
			})
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	default:
		state.stash.Stash(ctx, msg)
	}
}

// PublishHomeAssistantDiscovery publishes a retained discovery config for
// every sensor. Publish failures are logged, encoding failures are returned.
func (state *MQTTActor) PublishHomeAssistantDiscovery(sensors []domain.GenericSensor) error {
	var errs []error
	for i := range sensors {
		msg := mqtt.GenericSensorToHADiscoveryMessage(state.client, sensors[i])
		payload, err := json.Marshal(msg)
		if err != nil {
			errs = append(errs, fmt.Errorf("discovery %s: %w", sensors[i].UniqueId, err))
			continue
		}
		topic := mqtt.HADiscoverySensorTopic(state.client.DiscoveryPrefix(), sensors[i])
		if state.recorder != nil {
			state.recorder.record(topic, string(payload), true)
			continue
		}
		state.client.Publish(topic, payload, 0, true, func(err error) {
			if err != nil {
				state.logger.Warn("mqtt@discovery publish failed", zap.String("topic", topic), zap.Error(err))
			}
		}, MQTT_PUBLISH_TIMEOUT)
	}
	return errors.Join(errs...)
}

func (state *MQTTActor) publishBridgeState(online bool) {
	for _, ev := range events.BridgeStateUpdateEvents(online) {
		msg := state.event2MQTTMessage(ev)
		if msg == nil {
			continue
		}
		if state.recorder != nil {
			state.recorder.record(msg.topic, msg.message, msg.retain)
			continue
		}
		state.client.Publish(msg.topic, msg.message, 0, msg.retain, func(error) {}, 500*time.Millisecond)
	}
}

func (state *MQTTActor) stop() {
	if state.client == nil {
		return
	}
	state.logger.Debug("mqtt: disconnect")
	state.publishBridgeState(false)
	state.client.Disconnect(500 * time.Millisecond)
}

func availabilityPayload(value bool) string {
	if value {
		return mqtt.MQTT_PAYLOAD_ONLINE
	}
	return mqtt.MQTT_PAYLOAD_OFFLINE
}
