package admin

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/sadewadee/maboo-spoa/internal/dispatch"
	"github.com/sadewadee/maboo-spoa/internal/monitor"
	"github.com/sadewadee/maboo-spoa/internal/record"
	"github.com/sadewadee/maboo-spoa/internal/spoe/agent"
)

// Router dispatches admin HTTP requests: health/readiness, a /stats
// snapshot, metrics (handled upstream by Metrics.Middleware), the live
// dashboard's websocket upgrade, and its static assets.
type Router struct {
	logger        *slog.Logger
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	dashboardWS   http.Handler
	static        http.Handler
	staticPrefix  string
}

// RouterConfig collects the router's dependencies.
type RouterConfig struct {
	Pool         *dispatch.Pool
	Engine       *agent.Engine
	Recorder     *record.Recorder
	Hub          *monitor.Hub
	StaticRoot   string
	StaticPrefix string // e.g. "/dashboard/"; empty disables static serving
	CacheControl string
}

// NewRouter builds the admin request router.
func NewRouter(cfg RouterConfig, logger *slog.Logger) *Router {
	r := &Router{
		logger:        logger,
		healthHandler: NewHealthHandler(cfg.Pool, cfg.Engine),
		statsHandler:  NewStatsHandler(cfg.Pool, cfg.Engine, cfg.Recorder),
		staticPrefix:  cfg.StaticPrefix,
	}
	if cfg.Hub != nil {
		r.dashboardWS = monitor.NewHandler(cfg.Hub, logger)
	}
	if cfg.StaticRoot != "" {
		r.static = NewStaticHandler(cfg.StaticRoot, cfg.CacheControl)
	}
	return r
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	switch req.URL.Path {
	case "/health", "/healthz", "/ready", "/readyz":
		r.healthHandler.ServeHTTP(w, req)
		return
	case "/stats":
		r.statsHandler.ServeHTTP(w, req)
		return
	case "/dashboard/ws":
		if r.dashboardWS != nil {
			r.dashboardWS.ServeHTTP(w, req)
			return
		}
	}

	if r.static != nil && r.staticPrefix != "" && strings.HasPrefix(req.URL.Path, r.staticPrefix) {
		http.StripPrefix(r.staticPrefix, r.static).ServeHTTP(w, req)
		return
	}

	http.NotFound(w, req)
}
