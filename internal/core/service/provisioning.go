package service

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/berfenger/whatwatt2mqtt/internal/core/port"

	"go.uber.org/zap"
)

const (
	MQTT_CLIENT_ID            = "whatwattGO"
	PROVISION_REQUEST_TIMEOUT = 10 * time.Second
)

type ProvisionRequest struct {
	BrokerHost        string
	BrokerPort        int
	Username          string
	Password          string
	Topic             string
	ReportingInterval int
	ObisCodes         []string
	OutputPath        string
}

func (r ProvisionRequest) BrokerUrl() string {
	return fmt.Sprintf("mqtt://%s:%d", r.BrokerHost, r.BrokerPort)
}

// Provisioner pushes the MQTT setup to a device and writes the matching
// Home Assistant sensor definitions. Any failed step aborts the run.
type Provisioner struct {
	api    port.DeviceAPI
	logger *zap.Logger
}

func NewProvisioner(api port.DeviceAPI, logger *zap.Logger) *Provisioner {
	return &Provisioner{
		api:    api,
		logger: logger,
	}
}

func (p *Provisioner) Provision(ctx context.Context, req ProvisionRequest) error {
	if err := p.ConfigureDevice(ctx, req); err != nil {
		return err
	}
	if err := p.GenerateSensorConfig(req); err != nil {
		return err
	}
	return nil
}

func (p *Provisioner) ConfigureDevice(ctx context.Context, req ProvisionRequest) error {
	template := BuildTemplate(req.ObisCodes)

	if err := p.call(ctx, func(ctx context.Context) error { return p.api.Status(ctx) }); err != nil {
		return fmt.Errorf("cannot connect to whatwatt device: %w", err)
	}

	settings := port.MQTTSettings{
		Active:    true,
		BrokerUrl: req.BrokerUrl(),
		Username:  req.Username,
		Password:  req.Password,
		ClientId:  MQTT_CLIENT_ID,
		Topic:     req.Topic,
		Template:  template,
	}
	if err := p.call(ctx, func(ctx context.Context) error { return p.api.ConfigureMQTT(ctx, settings) }); err != nil {
		return fmt.Errorf("cannot configure MQTT: %w", err)
	}

	system := port.SystemSettings{IntervalToSystems: req.ReportingInterval}
	if err := p.call(ctx, func(ctx context.Context) error { return p.api.ConfigureSystem(ctx, system) }); err != nil {
		return fmt.Errorf("cannot set reporting interval: %w", err)
	}

	p.logger.Info("whatwatt device configured", zap.String("broker_url", settings.BrokerUrl), zap.String("topic", req.Topic))
	return nil
}

func (p *Provisioner) GenerateSensorConfig(req ProvisionRequest) error {
	cfg := BuildSensorConfig(req.Topic, req.ObisCodes)
	if err := WriteSensorConfig(req.OutputPath, cfg); err != nil {
		return err
	}
	p.logger.Info("sensor configuration written", zap.String("path", req.OutputPath), zap.Int("sensors", len(cfg.MQTT.Sensor)))
	p.logger.Info("add the following line to configuration.yaml",
		zap.String("line", fmt.Sprintf("mqtt: !include %s", filepath.Base(req.OutputPath))))
	return nil
}

func (p *Provisioner) call(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, PROVISION_REQUEST_TIMEOUT)
	defer cancel()
	return fn(ctx)
}
