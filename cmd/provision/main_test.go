package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeObisConfig(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"obis_codes": ["1_7_0", "1_8_0"]}`), 0o644))
	return path
}

func TestExecuteFailsWhenDeviceIsUnavailable(t *testing.T) {

	require := require.New(t)

	var configured atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/status" {
			configured.Store(true)
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	output := filepath.Join(t.TempDir(), "sensors.yaml")
	code := execute(context.Background(), []string{
		"--whatwatt-ip", strings.TrimPrefix(srv.URL, "http://"),
		"--mqtt-broker", "192.168.1.10",
		"--config", writeObisConfig(t),
		"--output", output,
		"--log-level", "error",
	})

	require.Equal(1, code)
	require.False(configured.Load(), "no configuration pushed to an unavailable device")
	_, err := os.Stat(output)
	require.True(os.IsNotExist(err), "no sensors file written")
}

func TestExecuteFailsOnInvalidArguments(t *testing.T) {

	for _, args := range [][]string{
		{},
		{"--whatwatt-ip", "192.168.1.20", "--mqtt-broker", "192.168.1.10"},
		{"--whatwatt-ip", "192.168.1.20", "--mqtt-broker", "192.168.1.10", "--config", filepath.Join(t.TempDir(), "missing.json")},
		{"--unknown-flag"},
	} {
		assert.Equal(t, 1, execute(context.Background(), args), "%v", args)
	}
}
