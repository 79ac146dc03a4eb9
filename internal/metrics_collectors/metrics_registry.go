package metrics_collectors

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/gofab/printq-agent/internal/constants"
	"github.com/gofab/printq-agent/internal/models"
)

// MetricsRegistry manages the metadata collectors that enrich outgoing status snapshots.
type MetricsRegistry struct {
	collectors []MetadataCollector
	logger     zerolog.Logger
}

// NewMetricsRegistry creates a new MetricsRegistry instance.
func NewMetricsRegistry(logger zerolog.Logger) *MetricsRegistry {
	return &MetricsRegistry{logger: logger}
}

// Register adds a collector. Collectors run in registration order.
func (r *MetricsRegistry) Register(collector MetadataCollector) {
	r.collectors = append(r.collectors, collector)
}

// GetCollectors returns all the collectors registered in the registry.
func (r *MetricsRegistry) GetCollectors() []MetadataCollector {
	return r.collectors
}

// Enrich returns a copy of snapshot with collector values added. Keys already published by the
// device are left untouched, and a missing temperatures key is reported as an empty object.
func (r *MetricsRegistry) Enrich(ctx context.Context, snapshot models.StatusSnapshot) models.StatusSnapshot {
	out := make(models.StatusSnapshot, len(snapshot)+len(r.collectors)+1)
	for key, value := range snapshot {
		out[key] = value
	}
	if _, ok := out[constants.SnapshotKeyTemperatures]; !ok {
		out[constants.SnapshotKeyTemperatures] = map[string]any{}
	}

	for _, collector := range r.collectors {
		name := collector.Name()
		if _, ok := out[name]; ok {
			continue
		}
		value := collector.Collect(ctx)
		if value == nil {
			r.logger.Debug().Str("collector", name).Msg("No metadata collected")
			continue
		}
		out[name] = value
	}
	return out
}
