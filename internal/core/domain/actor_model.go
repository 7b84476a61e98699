package domain

const (
	ACTOR_ID_MASTER = "master"
	ACTOR_ID_MQTT   = "mqtt"
	ACTOR_ID_ENTRY  = "entry"
)

type SubscribeRequest struct {
	ActorRequestMixIn
	Topic      string
	Subscriber *ActorRef
}

type SubscribeResponse struct {
	ActorResponseMixIn
	Topic string
}

// UnsubscribeRequest is ignored when Subscriber is set and no longer owns the topic.
type UnsubscribeRequest struct {
	ActorRequestMixIn
	Topic      string
	Subscriber *ActorRef
}

type UnsubscribeResponse struct {
	ActorResponseMixIn
}

// InboundMessage is delivered to a subscriber for every message received on its topic.
type InboundMessage struct {
	Topic   string
	Payload []byte
}

type PublishSensorUpdateRequest struct {
	ActorRequestMixIn
	Retain bool
	Event  SensorUpdateEvent
}

type PublishSensorUpdateResponse struct {
	ActorResponseMixIn
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Sensors []GenericSensor
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
}

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}
