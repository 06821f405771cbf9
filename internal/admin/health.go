package admin

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/sadewadee/maboo-spoa/internal/dispatch"
	"github.com/sadewadee/maboo-spoa/internal/spoe/agent"
)

var startTime = time.Now()

// HealthHandler serves liveness and readiness endpoints for the admin
// surface, reporting dispatch pool occupancy and SPOP connection count
// instead of PHP worker occupancy.
type HealthHandler struct {
	pool   *dispatch.Pool
	engine *agent.Engine
}

// NewHealthHandler creates a health handler backed by pool. engine is
// nilable; when absent, readiness reports no connection count.
func NewHealthHandler(pool *dispatch.Pool, engine *agent.Engine) *HealthHandler {
	return &HealthHandler{pool: pool, engine: engine}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/ready", "/readyz":
		h.readiness(w)
	default:
		h.liveness(w)
	}
}

func (h *HealthHandler) liveness(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(startTime).String(),
	})
}

func (h *HealthHandler) readiness(w http.ResponseWriter) {
	stats := h.pool.Stats()

	ready := stats.IdleSlots > 0
	status := http.StatusOK
	statusStr := "ready"
	if !ready {
		status = http.StatusServiceUnavailable
		statusStr = "not_ready"
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	body := map[string]interface{}{
		"status":         statusStr,
		"uptime":         time.Since(startTime).String(),
		"uptime_seconds": time.Since(startTime).Seconds(),
		"dispatch": map[string]interface{}{
			"total": stats.TotalSlots,
			"busy":  stats.BusySlots,
			"idle":  stats.IdleSlots,
		},
		"messages_dispatched": stats.TotalTasks,
		"memory": map[string]interface{}{
			"alloc_mb":  mem.Alloc / 1024 / 1024,
			"sys_mb":    mem.Sys / 1024 / 1024,
			"gc_cycles": mem.NumGC,
		},
		"go_version": runtime.Version(),
		"goroutines": runtime.NumGoroutine(),
	}
	if h.engine != nil {
		body["connections"] = h.engine.Stats().ActiveConnections
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
