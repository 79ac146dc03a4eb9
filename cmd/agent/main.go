package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/gofab/printq-agent/internal/cloud"
	"github.com/gofab/printq-agent/internal/printer"
	"github.com/gofab/printq-agent/internal/service_registry"
	"github.com/gofab/printq-agent/internal/utils"
	"github.com/gofab/printq-agent/pkg/file"
	"github.com/gofab/printq-agent/pkg/mqtt"
)

var version = "dev"

// stateSettleTime is how long --once waits for retained status fragments after subscribing.
const stateSettleTime = 2 * time.Second

func newRootCmd() *cobra.Command {
	var (
		flagConfig   string
		flagLogLevel string
		flagOnce     bool
	)

	cmd := &cobra.Command{
		Use:           "printq-agent",
		Short:         "Report printer status to the print queue service and run its commands",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(flagLogLevel)))
			if err != nil {
				return fmt.Errorf("invalid --log-level %q: %w", flagLogLevel, err)
			}
			logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Str("app", "printq-agent").Logger()
			return run(cmd.Context(), flagConfig, flagOnce, logger)
		},
	}

	cmd.Flags().StringVarP(&flagConfig, "config", "c", "configs/config.yaml", "path to the YAML configuration file")
	cmd.Flags().StringVar(&flagLogLevel, "log-level", "info", "log level (trace|debug|info|warn|error)")
	cmd.Flags().BoolVar(&flagOnce, "once", false, "send a single status report, run its commands and exit")
	return cmd
}

func run(ctx context.Context, configPath string, once bool, logger zerolog.Logger) error {
	fileClient := file.NewFileService()

	// Load configuration from file
	config, err := utils.LoadConfig(configPath, fileClient)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	settings := utils.NewSettings(config, configPath, fileClient)

	// Generate a unique MQTT Client ID by appending a UUID
	clientID := config.MQTT.ClientID
	if clientID == "" {
		clientID = "printq-agent"
	}
	clientID = clientID + "-" + uuid.New().String()
	logger.Info().Str("client_id", clientID).Msg("Using MQTT Client ID")

	// Initialize the shared MQTT connection to the printer host
	mqttClient := mqtt.NewMqttService(fileClient, logger.With().Str("component", "mqtt").Logger())
	if err := mqttClient.Initialize(config.MQTT.Broker, clientID, config.MQTT.CACertificate); err != nil {
		return fmt.Errorf("failed to initialize MQTT connection: %w", err)
	}
	defer mqttClient.Disconnect(250)

	bridge := printer.NewMQTTBridge(config.MQTT.TopicPrefix, config.MQTT.QOS, mqttClient, logger.With().Str("component", "printer").Logger())

	reporter := cloud.New(cloud.Options{
		Timeout:   config.Cloud.RequestTimeout,
		UserAgent: "printq-agent/" + version,
		Logger:    logger.With().Str("component", "cloud").Logger(),
	})

	// Downloads are bounded by the file size limit; only waiting for the response headers times out.
	downloadClient := &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			ResponseHeaderTimeout: config.Cloud.RequestTimeout,
		},
	}

	serviceRegistry := service_registry.NewServiceRegistry(service_registry.Dependencies{
		Bridge:     bridge,
		Reporter:   reporter,
		Settings:   settings,
		Storage:    file.NewLocalStorage(config.Storage.Root),
		FileClient: fileClient,
		HTTPClient: downloadClient,
	}, logger)

	status, err := serviceRegistry.RegisterServices(config)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if once {
		return runOnce(ctx, bridge, status.ReportOnce, logger)
	}

	// Start all registered services in the registry
	if err := serviceRegistry.StartServices(); err != nil {
		return err
	}
	logger.Info().Msg("All services started successfully")

	reloadCh := make(chan os.Signal, 1)
	signal.Notify(reloadCh, syscall.SIGHUP)
	defer signal.Stop(reloadCh)

	for {
		select {
		case <-reloadCh:
			if err := settings.Reload(); err != nil {
				logger.Error().Err(err).Msg("Failed to reload configuration, keeping the previous one")
				continue
			}
			logger.Info().Msg("Configuration reloaded")
		case <-ctx.Done():
			logger.Info().Msg("Shutting down gracefully...")
			return serviceRegistry.StopServices()
		}
	}
}

func runOnce(ctx context.Context, bridge *printer.MQTTBridge, report func(context.Context) error, logger zerolog.Logger) error {
	if err := bridge.Start(); err != nil {
		return err
	}
	defer bridge.Stop()

	select {
	case <-time.After(stateSettleTime):
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := report(ctx); err != nil {
		return err
	}
	logger.Info().Msg("Single status report completed")
	return nil
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
