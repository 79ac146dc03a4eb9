package models

import "encoding/json"

// DeviceEvent is a lifecycle notification emitted by the host, e.g. PrintStarted.
type DeviceEvent struct {
	Name    string
	Payload json.RawMessage
}

// Envelope converts the event into the form embedded in a report payload.
func (e DeviceEvent) Envelope() *EventEnvelope {
	var data any
	if len(e.Payload) > 0 {
		data = e.Payload
	}
	return &EventEnvelope{EventType: e.Name, Data: data}
}
