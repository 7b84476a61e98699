package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/berfenger/whatwatt2mqtt/internal/config"
	"github.com/berfenger/whatwatt2mqtt/internal/core/domain"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeMaster answers master requests with canned data
func fakeMaster(c actor.Context) {
	value := 1500.0
	switch msg := c.Message().(type) {
	case domain.ActorHealthRequest:
		c.Respond(domain.ActorHealthResponse{Id: domain.ACTOR_ID_MASTER, Healthy: true})
	case domain.CreateEntryRequest:
		if msg.MqttTopic == "energy/taken" {
			c.Respond(domain.CreateEntryResponse{ActorResponseMixIn: domain.ErrorResponseMixIn(domain.ErrEntryExists)})
			return
		}
		c.Respond(domain.CreateEntryResponse{Entry: domain.Entry{Id: "e1", MqttTopic: msg.MqttTopic, DeviceIp: msg.DeviceIp, Name: msg.Name}})
	case domain.ListEntriesRequest:
		c.Respond(domain.ListEntriesResponse{Entries: []domain.Entry{{Id: "e1", MqttTopic: "energy/whatwatt/go", DeviceIp: "10.0.0.1", Name: "WhatWatt"}}})
	case domain.UnloadEntryRequest:
		var err error
		if msg.EntryId != "e1" {
			err = domain.ErrEntryNotFound
		}
		c.Respond(domain.UnloadEntryResponse{ActorResponseMixIn: domain.ErrorResponseMixIn(err)})
	case domain.GetSensorsRequest:
		c.Respond(domain.GetSensorsResponse{Sensors: []domain.SensorState{
			{Key: domain.ATTR_POWER_IN, Name: "Power In", Unit: "W", Value: &value, Available: true},
			{Key: domain.ATTR_POWER_OUT, Name: "Power Out", Unit: "W"},
		}})
	case domain.GetDeviceRequest:
		if msg.EntryId != "e1" {
			c.Respond(domain.GetDeviceResponse{ActorResponseMixIn: domain.ErrorResponseMixIn(domain.ErrEntryNotFound)})
			return
		}
		identity := domain.DeviceIdentity{SystemId: "ww-1"}
		device := domain.WhatWattDevice(identity, "WhatWatt", "10.0.0.1", "")
		c.Respond(domain.GetDeviceResponse{Device: &device, Identity: &identity, Online: true})
	}
}

func testHandler(t *testing.T) http.Handler {
	as := actor.NewActorSystem()
	t.Cleanup(as.Shutdown)
	pid := as.Root.Spawn(actor.PropsFromFunc(fakeMaster))
	s := &Server{
		rootContext: as.Root,
		masterActor: pid,
		logger:      zap.NewNop(),
	}
	return s.RegisterRoutes()
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {
	rec := do(testHandler(t), http.MethodGet, "/healthcheck", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "health_check: OK", rec.Body.String())
}

func TestCreateEntry(t *testing.T) {

	assert := assert.New(t)

	h := testHandler(t)

	rec := do(h, http.MethodPost, "/api/entries", `{"mqtt_topic": "energy/whatwatt/go", "device_ip": "192.168.1.20", "name": "House"}`)
	assert.Equal(http.StatusCreated, rec.Code)
	var entry domain.Entry
	assert.NoError(json.Unmarshal(rec.Body.Bytes(), &entry))
	assert.Equal("e1", entry.Id)
	assert.Equal("House", entry.Name)

	rec = do(h, http.MethodPost, "/api/entries", `{"mqtt_topic": "energy/#", "device_ip": "192.168.1.256"}`)
	assert.Equal(http.StatusBadRequest, rec.Code)
	var errs errorsBody
	assert.NoError(json.Unmarshal(rec.Body.Bytes(), &errs))
	assert.Equal(map[string]string{
		config.CONF_MQTT_TOPIC: config.ERROR_INVALID_MQTT_TOPIC,
		config.CONF_DEVICE_IP:  config.ERROR_INVALID_IP,
	}, errs.Errors)

	rec = do(h, http.MethodPost, "/api/entries", `{"mqtt_topic": "energy/taken", "device_ip": "192.168.1.20"}`)
	assert.Equal(http.StatusConflict, rec.Code)
	assert.JSONEq(`{"reason": "already_configured"}`, rec.Body.String())
}

func TestEntryQueries(t *testing.T) {

	require := require.New(t)

	h := testHandler(t)

	rec := do(h, http.MethodGet, "/api/entries", "")
	require.Equal(http.StatusOK, rec.Code)
	require.JSONEq(`[{"id":"e1","mqtt_topic":"energy/whatwatt/go","device_ip":"10.0.0.1","name":"WhatWatt"}]`, rec.Body.String())

	rec = do(h, http.MethodGet, "/api/entries/e1/sensors", "")
	require.Equal(http.StatusOK, rec.Code)
	require.JSONEq(`[
		{"key":"power_in","name":"Power In","unit":"W","value":1500,"available":true},
		{"key":"power_out","name":"Power Out","unit":"W","value":null,"available":false}
	]`, rec.Body.String())

	rec = do(h, http.MethodGet, "/api/entries/e1/device", "")
	require.Equal(http.StatusOK, rec.Code)
	var body deviceBody
	require.NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(body.Online)
	require.NotNil(body.Device)
	require.Equal("ww-1", body.Device.SystemId)
	require.Equal("http://10.0.0.1", body.Device.ConfigurationUrl)
	require.Equal(domain.DEFAULT_VERSION, body.Device.Version)

	rec = do(h, http.MethodGet, "/api/entries/nope/device", "")
	require.Equal(http.StatusNotFound, rec.Code)
}

func TestDeleteEntry(t *testing.T) {

	h := testHandler(t)

	rec := do(h, http.MethodDelete, "/api/entries/e1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(h, http.MethodDelete, "/api/entries/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
