package metrics_collectors

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/host"

	"github.com/gofab/printq-agent/internal/constants"
)

// HostMetadata is the host section of the snapshot.
type HostMetadata struct {
	Hostname        string `json:"hostname"`
	OS              string `json:"os"`
	Platform        string `json:"platform,omitempty"`
	PlatformVersion string `json:"platform_version,omitempty"`
	KernelVersion   string `json:"kernel_version,omitempty"`
	Uptime          uint64 `json:"uptime"` // seconds
}

// HostInfoFunc returns host information.
type HostInfoFunc func(ctx context.Context) (*host.InfoStat, error)

// HostMetricCollector collects static host information.
type HostMetricCollector struct {
	Logger zerolog.Logger
	Info   HostInfoFunc
}

func (h *HostMetricCollector) Name() string {
	return constants.SnapshotKeyHost
}

func (h *HostMetricCollector) Collect(ctx context.Context) any {
	info := h.Info
	if info == nil {
		info = host.InfoWithContext
	}

	stat, err := info(ctx)
	if err != nil || stat == nil {
		h.Logger.Error().Err(err).Msg("Failed to get host info")
		return nil
	}

	h.Logger.Debug().Str("hostname", stat.Hostname).Msg("Host info collected successfully")
	return HostMetadata{
		Hostname:        stat.Hostname,
		OS:              stat.OS,
		Platform:        stat.Platform,
		PlatformVersion: stat.PlatformVersion,
		KernelVersion:   stat.KernelVersion,
		Uptime:          stat.Uptime,
	}
}

func (h *HostMetricCollector) Description() string {
	return "Hostname, operating system and uptime of the host."
}
