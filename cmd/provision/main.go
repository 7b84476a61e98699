package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/berfenger/whatwatt2mqtt/internal/adapter/whatwatt"
	"github.com/berfenger/whatwatt2mqtt/internal/config"
	"github.com/berfenger/whatwatt2mqtt/internal/core/service"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func newRootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "whatwatt-provision",
		Short: "Configure a WhatWatt GO device for MQTT and generate Home Assistant sensors",
		Long: `whatwatt-provision pushes the MQTT broker settings and the reporting
interval to a WhatWatt GO device, writes the matching Home Assistant MQTT
sensor definitions and then keeps monitoring the device status.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var cfg config.ProvisionConfig
			if err := v.Unmarshal(&cfg); err != nil {
				return fmt.Errorf("parse flags: %w", err)
			}
			return run(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.String("whatwatt-ip", "", "WhatWatt GO IP address (required)")
	flags.String("mqtt-broker", "", "MQTT broker address (required)")
	flags.String("mqtt-username", "", "MQTT username")
	flags.String("mqtt-password", "", "MQTT password")
	flags.Int("mqtt-port", config.DEFAULT_MQTT_PORT, "MQTT broker port")
	flags.String("mqtt-topic", config.DEFAULT_MQTT_TOPIC, "MQTT topic")
	flags.Int("reporting-interval", config.DEFAULT_REPORTING_INTERVAL, "Reporting interval in seconds")
	flags.String("config", "", "Path to OBIS configuration file (required)")
	flags.String("output", config.DEFAULT_SENSORS_FILE, "Path of the generated Home Assistant sensors file")
	flags.String("log-level", "info", "Log level: debug, info, warn, error")

	v.SetEnvPrefix("whatwatt_provision")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		panic(err)
	}

	cmd.Version = versioninfo.Short()
	return cmd
}

// execute runs the command line and returns the process exit code.
func execute(ctx context.Context, args []string) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

func run(ctx context.Context, cfg config.ProvisionConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(config.ParseLogLevel(cfg.LogLevel, zap.InfoLevel))
	logger := zap.Must(zapCfg.Build())
	defer logger.Sync()

	obis, err := config.LoadObisConfig(cfg.ConfigFile)
	if err != nil {
		logger.Error("could not load configuration", zap.Error(err))
		return err
	}

	api := whatwatt.NewClient(cfg.WhatWattIp, logger)
	provisioner := service.NewProvisioner(api, logger)
	err = provisioner.Provision(ctx, service.ProvisionRequest{
		BrokerHost:        cfg.MQTTBroker,
		BrokerPort:        cfg.MQTTPort,
		Username:          cfg.MQTTUsername,
		Password:          cfg.MQTTPassword,
		Topic:             cfg.MQTTTopic,
		ReportingInterval: cfg.ReportingInterval,
		ObisCodes:         obis.ObisCodes,
		OutputPath:        cfg.Output,
	})
	if err != nil {
		logger.Error("provisioning failed", zap.Error(err))
		return err
	}

	logger.Info("provisioning completed, monitoring device status", zap.String("device", api.BaseUrl()))
	monitor := service.NewStatusMonitor(api, service.MONITOR_INTERVAL, logger)
	if err := monitor.Run(ctx); err != nil {
		logger.Error("status monitor failed", zap.Error(err))
		return err
	}
	return nil
}
