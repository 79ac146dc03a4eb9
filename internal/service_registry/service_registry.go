package service_registry

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/gofab/printq-agent/internal/cloud"
	"github.com/gofab/printq-agent/internal/metrics_collectors"
	"github.com/gofab/printq-agent/internal/printer"
	"github.com/gofab/printq-agent/internal/registry"
	"github.com/gofab/printq-agent/internal/services"
	"github.com/gofab/printq-agent/internal/utils"
	"github.com/gofab/printq-agent/pkg/file"
	"github.com/gofab/printq-agent/pkg/retry"
)

// Service is a long-running component managed by the registry.
type Service = registry.Service

// Names under which the agent services are registered.
const (
	PrinterBridgeService = "printer_bridge"
	JobServiceName       = "jobs"
	StatusSyncService    = "status_sync"
	CleanupServiceName   = "cleanup"
)

// Dependencies are the shared collaborators handed to the services.
type Dependencies struct {
	Bridge     *printer.MQTTBridge
	Reporter   cloud.Reporter
	Settings   utils.SettingsProvider
	Storage    file.Storage
	FileClient file.FileOperations
	HTTPClient *http.Client
}

// ServiceRegistry manages the lifecycle of various services in the system.
type ServiceRegistry struct {
	services    map[string]Service // Stores registered services
	serviceKeys []string           // Maintains order of service registration
	deps        Dependencies
	Logger      zerolog.Logger
}

// NewServiceRegistry initializes a new service registry with dependencies.
func NewServiceRegistry(deps Dependencies, logger zerolog.Logger) *ServiceRegistry {
	return &ServiceRegistry{
		services: make(map[string]Service),
		deps:     deps,
		Logger:   logger,
	}
}

// RegisterService adds a new service to the registry.
func (sr *ServiceRegistry) RegisterService(name string, svc Service) {
	if _, exists := sr.services[name]; exists {
		sr.Logger.Warn().Msgf("Service %s is already registered", name)
		return
	}
	sr.services[name] = svc
	sr.serviceKeys = append(sr.serviceKeys, name)
	sr.Logger.Info().Msgf("Registered service: %s", name)
}

// GetService returns a registered service by name.
func (sr *ServiceRegistry) GetService(name string) (Service, bool) {
	svc, ok := sr.services[name]
	return svc, ok
}

// StartServices initiates all registered services in order.
// If a service fails to start, it stops already started services.
func (sr *ServiceRegistry) StartServices() error {
	startedServices := []string{}

	for _, name := range sr.serviceKeys {
		svc := sr.services[name]
		sr.Logger.Info().Msgf("Starting service: %s", name)
		if err := svc.Start(); err != nil {
			sr.Logger.Error().Err(err).Msgf("Failed to start service: %s", name)

			// Stop already started services before returning
			sr.Logger.Warn().Msg("Stopping already started services due to startup failure...")
			for i := len(startedServices) - 1; i >= 0; i-- {
				_ = sr.services[startedServices[i]].Stop()
			}
			return fmt.Errorf("failed to start %s: %w", name, err)
		}
		startedServices = append(startedServices, name)
	}

	return nil
}

// StopServices stops all services in reverse order.
func (sr *ServiceRegistry) StopServices() error {
	var stopErrors []error
	for i := len(sr.serviceKeys) - 1; i >= 0; i-- {
		name := sr.serviceKeys[i]
		if err := sr.services[name].Stop(); err != nil {
			stopErrors = append(stopErrors, fmt.Errorf("failed to stop %s: %w", name, err))
		}
	}
	if len(stopErrors) > 0 {
		for _, e := range stopErrors {
			sr.Logger.Error().Err(e).Msg("Service stop failure")
		}
		return errors.Join(stopErrors...)
	}
	return nil
}

// RegisterServices builds and registers the enabled services. The bridge comes first so status is
// flowing before the first report, and the job service precedes the status loop so the queue
// folder exists when the first command arrives.
func (sr *ServiceRegistry) RegisterServices(config *utils.Config) (*services.StatusService, error) {
	if sr.deps.Bridge == nil {
		return nil, errors.New("printer bridge is required")
	}

	jobs := services.NewJobService(
		config.Storage.QueueFolder,
		config.Storage.MaxFileSize,
		sr.deps.Storage,
		sr.deps.FileClient,
		sr.deps.HTTPClient,
		sr.deps.Bridge,
		sr.Logger.With().Str("service", JobServiceName).Logger(),
	)

	syncConfig := config.Services.StatusSync
	status := services.NewStatusService(
		services.StatusSyncOptions{
			TimerEnabled:  syncConfig.TimerEnabled,
			EventsEnabled: syncConfig.EventsEnabled,
			Interval:      syncConfig.Interval,
			EventPrefix:   syncConfig.EventPrefix,
		},
		sr.deps.Settings,
		sr.deps.Reporter,
		sr.deps.Bridge,
		sr.deps.Bridge,
		sr.metadataRegistry(config),
		services.NewCommandService(sr.deps.Bridge, jobs, sr.Logger.With().Str("service", "commands").Logger()),
		retry.NewSupervisor(syncConfig.BaseDelay, syncConfig.MaxBackoff, sr.Logger.With().Str("component", "supervisor").Logger()),
		sr.Logger.With().Str("service", StatusSyncService).Logger(),
	)

	// Ordered service definitions with inline constructors
	servicesInOrder := []struct {
		name        string
		enabled     bool
		constructor func() Service
	}{
		{
			name:        PrinterBridgeService,
			enabled:     true,
			constructor: func() Service { return sr.deps.Bridge },
		},
		{
			name:        JobServiceName,
			enabled:     true,
			constructor: func() Service { return jobs },
		},
		{
			name:        StatusSyncService,
			enabled:     syncConfig.Enabled,
			constructor: func() Service { return status },
		},
		{
			name:    CleanupServiceName,
			enabled: config.Services.Cleanup.Enabled,
			constructor: func() Service {
				return services.NewCleanupService(
					config.Services.Cleanup.Interval,
					config.Services.Cleanup.MaxAge,
					jobs,
					sr.deps.FileClient,
					sr.Logger.With().Str("service", CleanupServiceName).Logger(),
				)
			},
		},
	}

	// Register services in the predefined order
	registeredServices := []string{}
	for _, svc := range servicesInOrder {
		if svc.enabled {
			sr.RegisterService(svc.name, svc.constructor())
			registeredServices = append(registeredServices, svc.name)
		}
	}

	sr.Logger.Info().Msgf("Registered services in order: %v", registeredServices)
	return status, nil
}

func (sr *ServiceRegistry) metadataRegistry(config *utils.Config) services.SnapshotEnricher {
	metadata := metrics_collectors.NewMetricsRegistry(sr.Logger)
	metadata.Register(&metrics_collectors.NetworkMetricCollector{Logger: sr.Logger})
	metadata.Register(&metrics_collectors.PortMetricCollector{Port: config.Host.UIPort})
	if config.Host.MetadataEnabled {
		metadata.Register(&metrics_collectors.HostMetricCollector{Logger: sr.Logger})
	}
	return metadata
}
