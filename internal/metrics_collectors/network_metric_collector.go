package metrics_collectors

import (
	"context"
	"net/netip"
	"slices"
	"strings"

	"github.com/rs/zerolog"
	psnet "github.com/shirou/gopsutil/net"

	"github.com/gofab/printq-agent/internal/constants"
)

// InterfaceLister returns the host network interfaces.
type InterfaceLister func(ctx context.Context) ([]psnet.InterfaceStat, error)

// SystemInterfaces lists interfaces through gopsutil.
func SystemInterfaces(ctx context.Context) ([]psnet.InterfaceStat, error) {
	return psnet.InterfacesWithContext(ctx)
}

// NetworkMetricCollector reports the primary non-loopback IPv4 address of the host.
type NetworkMetricCollector struct {
	Logger     zerolog.Logger
	Interfaces InterfaceLister
}

// Name returns the snapshot key for the host address.
func (n *NetworkMetricCollector) Name() string {
	return constants.SnapshotKeyIP
}

// Collect returns the first usable IPv4 address of an interface that is up, or nil.
func (n *NetworkMetricCollector) Collect(ctx context.Context) any {
	list := n.Interfaces
	if list == nil {
		list = SystemInterfaces
	}

	interfaces, err := list(ctx)
	if err != nil {
		n.Logger.Error().Err(err).Msg("Failed to list network interfaces")
		return nil
	}

	for _, iface := range interfaces {
		if slices.Contains(iface.Flags, "loopback") || !slices.Contains(iface.Flags, "up") {
			continue
		}
		for _, addr := range iface.Addrs {
			ip, ok := parseInterfaceAddr(addr.Addr)
			if !ok || !ip.Is4() || ip.IsLoopback() || ip.IsLinkLocalUnicast() {
				continue
			}
			n.Logger.Debug().Str("interface", iface.Name).Str("ip", ip.String()).Msg("Host address collected successfully")
			return ip.String()
		}
	}

	n.Logger.Warn().Msg("No usable IPv4 address found")
	return nil
}

// Description provides a summary of the collected value.
func (n *NetworkMetricCollector) Description() string {
	return "Primary non-loopback IPv4 address of the host."
}

func parseInterfaceAddr(addr string) (netip.Addr, bool) {
	if strings.Contains(addr, "/") {
		prefix, err := netip.ParsePrefix(addr)
		if err != nil {
			return netip.Addr{}, false
		}
		return prefix.Addr(), true
	}
	ip, err := netip.ParseAddr(addr)
	return ip, err == nil
}

// PortMetricCollector reports the configured UI port of the host application.
type PortMetricCollector struct {
	Port int
}

func (p *PortMetricCollector) Name() string {
	return constants.SnapshotKeyPort
}

func (p *PortMetricCollector) Collect(context.Context) any {
	if p.Port <= 0 {
		return nil
	}
	return p.Port
}

func (p *PortMetricCollector) Description() string {
	return "Port the host UI listens on."
}
