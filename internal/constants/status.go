package constants

import "time"

const (
	// DefaultPollInterval is the timer-driven reporting period.
	DefaultPollInterval = 30 * time.Second
	// DefaultEventPrefix selects the lifecycle events that trigger an immediate report.
	DefaultEventPrefix  = "Print"

	// DefaultBackoffBase is the first delay applied after a failed report cycle.
	DefaultBackoffBase    = 1 * time.Second
	// DefaultBackoffCeiling caps the delay between retries.
	DefaultBackoffCeiling = 240 * time.Second
)

// DefaultQueueFolder is the logical name of the managed job directory.
const DefaultQueueFolder = "_printq_"

// DefaultMaxJobFileSize bounds a single downloaded job file.
const DefaultMaxJobFileSize int64 = 512 << 20 // 512MB

const (
	DefaultCleanupInterval = 1 * time.Hour
	DefaultCleanupMaxAge   = 14 * 24 * time.Hour // 2 weeks
)

// Snapshot keys added by the agent on top of the device fragments.
const (
	SnapshotKeyTemperatures = "temperatures"
	SnapshotKeyIP           = "octoprint_ip"
	SnapshotKeyPort         = "octoprint_port"
	SnapshotKeyHost         = "host"
)
