package server

import (
	"github.com/shirou/gopsutil/v4/mem"
	"go.uber.org/zap"
)

const pingMessage = "Service is up"

// pingHandler answers liveness checks, optionally with host memory and
// event buffer statistics.
func (a *App) pingHandler(rc *RequestContext) {
	if !a.cfg.Ping.SystemStats {
		rc.WriteResult(0, pingMessage, nil)
		return
	}

	extra := map[string]any{
		"server_name":  a.cfg.Server.Name,
		"version":      a.cfg.Server.Version,
		"events_queue": a.events.Len(),
		"flush_state":  a.driverState(),
	}

	vm, err := mem.VirtualMemoryWithContext(rc)
	if err != nil {
		a.logger.Warn("Failed to read memory stats", zap.Error(err))
	} else {
		extra["memory"] = map[string]any{
			"total":        vm.Total,
			"available":    vm.Available,
			"used_percent": vm.UsedPercent,
		}
	}

	rc.WriteResult(0, pingMessage, extra)
}
