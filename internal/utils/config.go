package utils

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"

	"github.com/gofab/printq-agent/internal/constants"
	"github.com/gofab/printq-agent/pkg/file"
)

// Environment variables that override the configuration file.
const (
	EnvEndpointPrefix = "PRINTQ_ENDPOINT_PREFIX"
	EnvAuthToken      = "PRINTQ_AUTH_TOKEN"
	EnvMQTTBroker     = "PRINTQ_MQTT_BROKER"
)

// Config represents the structure of the configuration file.
type Config struct {
	Cloud struct {
		EndpointPrefix string        `yaml:"endpoint_prefix"` // Base URL of the remote service, with trailing slash
		AuthToken      string        `yaml:"auth_token"`      // "<printer id><delimiter><printer token>"
		TokenDelimiter string        `yaml:"token_delimiter"` // Separator inside auth_token
		RequestTimeout time.Duration `yaml:"request_timeout"` // Timeout for a single report or download request
	} `yaml:"cloud"`

	MQTT struct {
		Broker        string `yaml:"broker"`         // MQTT broker address of the host printer controller
		ClientID      string `yaml:"client_id"`      // MQTT client ID
		CACertificate string `yaml:"ca_certificate"` // Path to the CA certificate, empty for plain TCP
		TopicPrefix   string `yaml:"topic_prefix"`   // Root of the printer topics
		QOS           int    `yaml:"qos"`            // MQTT QoS level for bridge traffic
	} `yaml:"mqtt"`

	Storage struct {
		Root        string `yaml:"root"`          // Root of the local file namespace
		QueueFolder string `yaml:"queue_folder"`  // Logical name of the job queue folder
		MaxFileSize int64  `yaml:"max_file_size"` // Maximum size of a downloaded job file in bytes
	} `yaml:"storage"`

	Host struct {
		UIPort          int  `yaml:"ui_port"`          // Port of the local printer UI, reported as-is
		MetadataEnabled bool `yaml:"metadata_enabled"` // Attach host metadata to the snapshot
	} `yaml:"host"`

	Services struct {
		StatusSync struct {
			Enabled       bool          `yaml:"enabled"`        // Enable/disable status sync service
			TimerEnabled  bool          `yaml:"timer_enabled"`  // Report on a fixed interval
			EventsEnabled bool          `yaml:"events_enabled"` // Report immediately on matching lifecycle events
			Interval      time.Duration `yaml:"interval"`       // Interval between timer-driven reports
			EventPrefix   string        `yaml:"event_prefix"`   // Lifecycle events starting with this prefix trigger a report
			BaseDelay     time.Duration `yaml:"base_delay"`     // First delay after a failed cycle
			MaxBackoff    time.Duration `yaml:"max_backoff"`    // Ceiling of the retry delay
		} `yaml:"status_sync"`

		Cleanup struct {
			Enabled  bool          `yaml:"enabled"`  // Enable/disable queue folder cleanup
			Interval time.Duration `yaml:"interval"` // Interval between cleanup passes
			MaxAge   time.Duration `yaml:"max_age"`  // Files older than this are removed
		} `yaml:"cleanup"`
	} `yaml:"services"`
}

// LoadConfig loads the YAML configuration from the specified file, applies .env and environment
// overrides, and fills defaults for unset values.
func LoadConfig(filename string, fileClient file.FileOperations) (*Config, error) {
	var config Config
	if err := fileClient.ReadYamlFile(filename, &config); err != nil {
		return nil, err
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	config.applyEnv()
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvEndpointPrefix)); v != "" {
		c.Cloud.EndpointPrefix = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvAuthToken)); v != "" {
		c.Cloud.AuthToken = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvMQTTBroker)); v != "" {
		c.MQTT.Broker = v
	}
}

func (c *Config) applyDefaults() {
	if c.Cloud.EndpointPrefix == "" {
		c.Cloud.EndpointPrefix = constants.DefaultEndpointPrefix
	}
	if c.Cloud.TokenDelimiter == "" {
		c.Cloud.TokenDelimiter = constants.DefaultTokenDelimiter
	}
	if c.Cloud.RequestTimeout == 0 {
		c.Cloud.RequestTimeout = constants.DefaultRequestTimeout
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = constants.DefaultTopicPrefix
	}
	if c.Storage.QueueFolder == "" {
		c.Storage.QueueFolder = constants.DefaultQueueFolder
	}
	if c.Storage.Root == "" {
		c.Storage.Root = "."
	}
	if c.Storage.MaxFileSize == 0 {
		c.Storage.MaxFileSize = constants.DefaultMaxJobFileSize
	}

	status := &c.Services.StatusSync
	if status.Interval == 0 {
		status.Interval = constants.DefaultPollInterval
	}
	if status.EventPrefix == "" {
		status.EventPrefix = constants.DefaultEventPrefix
	}
	if status.BaseDelay == 0 {
		status.BaseDelay = constants.DefaultBackoffBase
	}
	if status.MaxBackoff == 0 {
		status.MaxBackoff = constants.DefaultBackoffCeiling
	}

	cleanup := &c.Services.Cleanup
	if cleanup.Interval == 0 {
		cleanup.Interval = constants.DefaultCleanupInterval
	}
	if cleanup.MaxAge == 0 {
		cleanup.MaxAge = constants.DefaultCleanupMaxAge
	}
}

// Validate checks the values that would otherwise fail at runtime.
func (c *Config) Validate() error {
	prefix := c.Cloud.EndpointPrefix
	if !strings.HasPrefix(prefix, "http://") && !strings.HasPrefix(prefix, "https://") {
		return errors.New("cloud.endpoint_prefix must start with http:// or https://")
	}
	if c.Cloud.RequestTimeout < 0 {
		return errors.New("cloud.request_timeout must not be negative")
	}

	status := c.Services.StatusSync
	if status.Enabled && !status.TimerEnabled && !status.EventsEnabled {
		return errors.New("services.status_sync needs timer_enabled or events_enabled")
	}
	if status.Interval <= 0 {
		return errors.New("services.status_sync.interval must be positive")
	}
	if status.BaseDelay <= 0 || status.MaxBackoff <= 0 {
		return errors.New("services.status_sync backoff delays must be positive")
	}
	if status.BaseDelay > status.MaxBackoff {
		return fmt.Errorf("services.status_sync.base_delay (%s) exceeds max_backoff (%s)", status.BaseDelay, status.MaxBackoff)
	}

	cleanup := c.Services.Cleanup
	if cleanup.Interval <= 0 || cleanup.MaxAge <= 0 {
		return errors.New("services.cleanup interval and max_age must be positive")
	}
	return nil
}

// SettingsProvider exposes the settings that may change while the agent is running.
type SettingsProvider interface {
	EndpointPrefix() string
	AuthToken() string
	TokenDelimiter() string
}

// Settings holds the live configuration. Readers always observe the latest successful load.
type Settings struct {
	mu         sync.RWMutex
	config     *Config
	filename   string
	fileClient file.FileOperations
}

// NewSettings wraps an already loaded configuration.
func NewSettings(config *Config, filename string, fileClient file.FileOperations) *Settings {
	return &Settings{config: config, filename: filename, fileClient: fileClient}
}

// Config returns the current configuration snapshot. Callers must not modify it.
func (s *Settings) Config() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// Reload re-reads the configuration file. The previous configuration stays active on error.
func (s *Settings) Reload() error {
	config, err := LoadConfig(s.filename, s.fileClient)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.config = config
	s.mu.Unlock()
	return nil
}

func (s *Settings) EndpointPrefix() string { return s.Config().Cloud.EndpointPrefix }
func (s *Settings) AuthToken() string { return s.Config().Cloud.AuthToken }
func (s *Settings) TokenDelimiter() string { return s.Config().Cloud.TokenDelimiter }
