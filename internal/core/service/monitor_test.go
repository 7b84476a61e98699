package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestStatusMonitorCheck(t *testing.T) {

	assert := assert.New(t)

	core, logs := observer.New(zap.DebugLevel)
	api := &fakeDeviceAPI{}
	monitor := NewStatusMonitor(api, time.Minute, zap.New(core))

	assert.NoError(monitor.Check(context.Background()))
	assert.Equal(1, logs.FilterLevelExact(zap.DebugLevel).Len())

	api.statusErr = errors.New("connection refused")
	assert.Error(monitor.Check(context.Background()))
	assert.Equal(1, logs.FilterLevelExact(zap.WarnLevel).Len())
}

func TestStatusMonitorKeepsPollingOnFailure(t *testing.T) {

	require := require.New(t)

	api := &fakeDeviceAPI{statusErr: errors.New("connection refused")}
	monitor := NewStatusMonitor(api, 20*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- monitor.Run(ctx)
	}()

	require.Eventually(func() bool {
		return api.StatusCalls() >= 3
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(err)
	case <-time.After(5 * time.Second):
		require.Fail("monitor did not stop")
	}
}
