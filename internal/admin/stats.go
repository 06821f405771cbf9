package admin

import (
	"encoding/json"
	"net/http"

	"github.com/sadewadee/maboo-spoa/internal/dispatch"
	"github.com/sadewadee/maboo-spoa/internal/record"
	"github.com/sadewadee/maboo-spoa/internal/spoe/agent"
)

// StatsHandler serves a point-in-time JSON snapshot combining engine,
// dispatch, and recorder state, for operators polling outside of the
// Prometheus scrape interval.
type StatsHandler struct {
	pool     *dispatch.Pool
	engine   *agent.Engine
	recorder *record.Recorder
}

// NewStatsHandler creates a stats handler. engine and recorder are
// nilable; either's section is omitted from the snapshot when absent.
func NewStatsHandler(pool *dispatch.Pool, engine *agent.Engine, recorder *record.Recorder) *StatsHandler {
	return &StatsHandler{pool: pool, engine: engine, recorder: recorder}
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{
		"dispatch": h.pool.Stats(),
	}
	if h.engine != nil {
		body["engine"] = h.engine.Stats()
	}
	if h.recorder != nil {
		body["record"] = h.recorder.Stats()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(body)
}
