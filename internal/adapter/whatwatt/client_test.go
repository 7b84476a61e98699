package whatwatt

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/berfenger/whatwatt2mqtt/internal/core/port"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClientWithBaseUrl(srv.URL, srv.Client(), zap.NewNop())
}

func TestStatus(t *testing.T) {

	assert := assert.New(t)

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(http.MethodGet, r.Method)
		assert.Equal(STATUS_PATH, r.URL.Path)
		w.WriteHeader(http.StatusOK)
	})
	assert.NoError(c.Status(context.Background()))
}

func TestStatusNotOK(t *testing.T) {

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	})
	err := c.Status(context.Background())
	require.ErrorIs(t, err, port.ErrDeviceUnavailable)
	require.Contains(t, err.Error(), "503")
}

func TestStatusNetworkError(t *testing.T) {

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c := NewClientWithBaseUrl(srv.URL, srv.Client(), zap.NewNop())
	srv.Close()

	require.ErrorIs(t, c.Status(context.Background()), port.ErrDeviceUnavailable)
}

func TestStatusTimeout(t *testing.T) {

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.Error(t, c.Status(ctx))
}

func TestConfigureMQTT(t *testing.T) {

	require := require.New(t)

	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, MQTT_CONFIG_PATH, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	})

	err := c.ConfigureMQTT(context.Background(), port.MQTTSettings{
		Active:    true,
		BrokerUrl: "mqtt://broker:1883",
		Username:  "user",
		Password:  "secret",
		ClientId:  "whatwattGO",
		Topic:     "energy/whatwatt/go",
		Template:  "{}",
	})
	require.NoError(err)
	require.Equal(map[string]any{
		"active":     true,
		"broker_url": "mqtt://broker:1883",
		"username":   "user",
		"password":   "secret",
		"client_id":  "whatwattGO",
		"topic":      "energy/whatwatt/go",
		"template":   "{}",
	}, body)
}

func TestConfigureSystem(t *testing.T) {

	require := require.New(t)

	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, SYSTEM_CONFIG_PATH, r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusBadRequest)
	})

	err := c.ConfigureSystem(context.Background(), port.SystemSettings{IntervalToSystems: 30})
	require.ErrorIs(err, port.ErrDeviceUnavailable)
	require.Equal(map[string]any{"interval_to_systems": float64(30)}, body)
}

func TestNewClientBaseUrl(t *testing.T) {

	assert.Equal(t, "http://192.168.1.20", NewClient("192.168.1.20", zap.NewNop()).BaseUrl())
}
