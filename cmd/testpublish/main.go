package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/berfenger/whatwatt2mqtt/internal/adapter/whatwatt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	flagBroker   string
	flagPort     int
	flagTopic    string
	flagInterval int
)

var rootCmd = &cobra.Command{
	Use:          "whatwatt-testpublish",
	Short:        "Publish simulated WhatWatt GO readings to an MQTT topic",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().StringVar(&flagBroker, "broker", "localhost", "MQTT broker address")
	rootCmd.Flags().IntVar(&flagPort, "port", 1883, "MQTT broker port")
	rootCmd.Flags().StringVar(&flagTopic, "topic", "whatwatt/test", "MQTT topic to publish to")
	rootCmd.Flags().IntVar(&flagInterval, "interval", 10, "Publish interval in seconds")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	logger := zap.Must(zap.NewDevelopment())
	defer logger.Sync()

	if flagInterval <= 0 {
		return fmt.Errorf("invalid --interval %d", flagInterval)
	}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", flagBroker, flagPort))
	opts.SetClientID(fmt.Sprintf("whatwatt_testpublish_%d", time.Now().UnixNano()%10000))
	opts.OnConnect = func(pahomqtt.Client) {
		logger.Info("connected to MQTT broker", zap.String("broker", flagBroker), zap.Int("port", flagPort))
	}
	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10*time.Second) || token.Error() != nil {
		err := token.Error()
		if err == nil {
			err = fmt.Errorf("connect timed out")
		}
		logger.Error("error connecting to MQTT broker", zap.Error(err))
		return err
	}
	defer client.Disconnect(250)

	logger.Info("publishing simulated readings", zap.String("topic", flagTopic), zap.Int("interval", flagInterval))
	sim := whatwatt.NewSimulator(uint64(time.Now().UnixNano()))
	ticker := time.NewTicker(time.Duration(flagInterval) * time.Second)
	defer ticker.Stop()

	for {
		payload, err := json.Marshal(sim.Next(time.Now()))
		if err != nil {
			return err
		}
		logger.Info("publishing", zap.ByteString("payload", payload))
		client.Publish(flagTopic, 0, false, payload)

		select {
		case <-ctx.Done():
			logger.Info("stopped by user")
			return nil
		case <-ticker.C:
		}
	}
}
