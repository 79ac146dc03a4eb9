package metrics_collectors

import (
	"context"
)

// MetadataCollector contributes one key of host metadata to the status snapshot.
type MetadataCollector interface {
	Name() string                    // Snapshot key the value is stored under
	Collect(ctx context.Context) any // Collected value, nil when unavailable
	Description() string             // Description of the metadata
}
