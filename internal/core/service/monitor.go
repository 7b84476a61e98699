package service

import (
	"context"
	"fmt"
	"time"

	"github.com/berfenger/whatwatt2mqtt/internal/core/port"

	"github.com/reugn/go-quartz/job"
	"github.com/reugn/go-quartz/quartz"
	"go.uber.org/zap"
)

const (
	MONITOR_INTERVAL       = 60 * time.Second
	MONITOR_STATUS_TIMEOUT = 5 * time.Second
	MONITOR_JOB_KEY        = "whatwatt_status"
)

// StatusMonitor polls the device status. Failures are only logged.
type StatusMonitor struct {
	api      port.DeviceAPI
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger
}

func NewStatusMonitor(api port.DeviceAPI, interval time.Duration, logger *zap.Logger) *StatusMonitor {
	return &StatusMonitor{
		api:      api,
		interval: interval,
		timeout:  MONITOR_STATUS_TIMEOUT,
		logger:   logger,
	}
}

func (m *StatusMonitor) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	err := m.api.Status(ctx)
	if err != nil {
		m.logger.Warn("whatwatt device is not responding correctly", zap.Error(err))
		return err
	}
	m.logger.Debug("whatwatt device is working correctly")
	return nil
}

// Run checks once, then on every interval until ctx is done.
func (m *StatusMonitor) Run(ctx context.Context) error {
	m.Check(ctx)

	sched := quartz.NewStdScheduler()
	sched.Start(ctx)

	statusJob := job.NewFunctionJob(func(ctx context.Context) (bool, error) {
		return m.Check(ctx) == nil, nil
	})
	err := sched.ScheduleJob(quartz.NewJobDetail(statusJob, quartz.NewJobKey(MONITOR_JOB_KEY)),
		quartz.NewSimpleTrigger(m.interval))
	if err != nil {
		sched.Stop()
		return fmt.Errorf("schedule status monitor: %w", err)
	}

	<-ctx.Done()
	sched.Stop()
	sched.Wait(context.Background())
	return nil
}
