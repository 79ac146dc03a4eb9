package constants

import "time"

const (
	DefaultTopicPrefix    = "printer"
	DefaultPublishTimeout = 5 * time.Second
	DefaultEventQueueSize = 64
)

// Topic segments below the configured prefix.
const (
	TopicState   = "state"
	TopicEvent   = "event"
	TopicCommand = "command"

	// CommandSelect asks the host to select a file and print it right away.
	CommandSelect = "select"
)
