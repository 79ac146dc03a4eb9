package models

// StatusSnapshot is the device state as reported by the host. Values are passed through to the
// remote service untouched; the agent only adds its own metadata keys.
type StatusSnapshot map[string]any

// EventEnvelope describes the lifecycle event that triggered an out-of-band report.
type EventEnvelope struct {
	EventType string `json:"event_type"`
	Data      any    `json:"data"`
}

// ReportPayload is the body of a single status report.
type ReportPayload struct {
	Data  StatusSnapshot `json:"octoprint_data"`
	Event *EventEnvelope `json:"octoprint_event,omitempty"`
}
