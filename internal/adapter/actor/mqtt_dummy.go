package actor

import (
	"strings"
	"sync"

	"github.com/berfenger/whatwatt2mqtt/internal/config"
	"github.com/berfenger/whatwatt2mqtt/internal/core/domain"
	"github.com/berfenger/whatwatt2mqtt/internal/mqtt"
	"github.com/berfenger/whatwatt2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

type MQTTPublished struct {
	Topic   string
	Payload string
	Retain  bool
}

// MQTTRecorder captures what a test MQTT actor would have sent to the broker.
type MQTTRecorder struct {
	mu            sync.Mutex
	published     []MQTTPublished
	subscriptions map[string]*actor.PID
	unsubscribed  []string
}

func NewMQTTRecorder() *MQTTRecorder {
	return &MQTTRecorder{
		subscriptions: map[string]*actor.PID{},
	}
}

func (r *MQTTRecorder) record(topic, payload string, retain bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = append(r.published, MQTTPublished{Topic: topic, Payload: payload, Retain: retain})
}

func (r *MQTTRecorder) Published() []MQTTPublished {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]MQTTPublished(nil), r.published...)
}

// PublishedWithPrefix returns the messages whose topic starts with prefix.
func (r *MQTTRecorder) PublishedWithPrefix(prefix string) []MQTTPublished {
	var result []MQTTPublished
	for _, p := range r.Published() {
		if strings.HasPrefix(p.Topic, prefix) {
			result = append(result, p)
		}
	}
	return result
}

// Last returns the most recent message published on topic.
func (r *MQTTRecorder) Last(topic string) (MQTTPublished, bool) {
	published := r.Published()
	for i := len(published) - 1; i >= 0; i-- {
		if published[i].Topic == topic {
			return published[i], true
		}
	}
	return MQTTPublished{}, false
}

func (r *MQTTRecorder) Subscriber(topic string) *actor.PID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.subscriptions[topic]
}

func (r *MQTTRecorder) Unsubscribed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.unsubscribed...)
}

func (r *MQTTRecorder) subscribe(topic string, pid *actor.PID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscriptions[topic] = pid
}

func (r *MQTTRecorder) unsubscribe(topic string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subscriptions, topic)
	r.unsubscribed = append(r.unsubscribed, topic)
}

// Dummy actor
func NewTestMQTTActor(config *config.Config, recorder *MQTTRecorder, logger *zap.Logger) *MQTTActor {
	if recorder == nil {
		recorder = NewMQTTRecorder()
	}
	act := &MQTTActor{
		config:        config,
		behavior:      actor.NewBehavior(),
		stash:         &actorutil.Stash{},
		subscriptions: map[string]*actor.PID{},
		recorder:      recorder,
		logger:        actorutil.ActorLogger(domain.ACTOR_ID_MQTT, logger),
	}
	act.behavior.Become(act.DummyReceive)
	return act
}

func (state *MQTTActor) DummyReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.client = mqtt.CreateMQTTClient(state.config, mqtt.OptsFromConfig(state.config), nil, nil)
		state.publishBridgeState(true)
	case *actor.Stopping:
		state.publishBridgeState(false)
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MQTT,
			Healthy: true,
			State:   "idle",
		})
	case domain.SubscribeRequest:
		replyTo := actorutil.ForRequest(msg).ReplyTo(ctx)
		subscriber := replyTo
		if msg.Subscriber != nil {
			subscriber = msg.Subscriber.PID()
		}
		state.subscriptions[msg.Topic] = subscriber
		state.recorder.subscribe(msg.Topic, subscriber)
		if replyTo != nil {
			ctx.Send(replyTo, domain.SubscribeResponse{Topic: msg.Topic})
		}
	case domain.UnsubscribeRequest:
		if state.releaseSubscription(msg.Topic, msg.Subscriber) {
			state.recorder.unsubscribe(msg.Topic)
		}
		actorutil.ForRequest(msg).Respond(ctx, domain.UnsubscribeResponse{})
	case domain.PublishSensorUpdateRequest:
		if raw := state.event2MQTTMessage(msg.Event); raw != nil {
			state.recorder.record(raw.topic, raw.message, raw.retain || msg.Retain)
		}
		if msg.ReplyToRef != nil {
			ctx.Send(msg.ReplyToRef.PID(), domain.PublishSensorUpdateResponse{})
		}
	case domain.PublishDiscoveryRequest:
		err := state.PublishHomeAssistantDiscovery(msg.Sensors)
		actorutil.ForRequest(msg).Respond(ctx, domain.PublishDiscoveryResponse{
			ActorResponseMixIn: domain.ErrorResponseMixIn(err),
		})
	}
}
