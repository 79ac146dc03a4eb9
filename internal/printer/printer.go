package printer

import (
	"context"

	"github.com/gofab/printq-agent/internal/models"
)

// Printer is the device-control surface of the host.
type Printer interface {
	GetCurrentStatus(ctx context.Context) (models.StatusSnapshot, error)
	// SelectAndPrint selects the file at path and starts printing it once selected. It returns as
	// soon as the host accepted the request.
	SelectAndPrint(ctx context.Context, path string) error
	Cancel(ctx context.Context) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
}

// EventHandler receives host lifecycle events. Handlers are called one at a time, in the order
// the host emitted the events.
type EventHandler func(event models.DeviceEvent)

// EventSource emits host lifecycle events.
type EventSource interface {
	OnEvent(handler EventHandler)
}
