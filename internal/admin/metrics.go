package admin

import (
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sadewadee/maboo-spoa/internal/dispatch"
	"github.com/sadewadee/maboo-spoa/internal/record"
)

// Metrics collects Prometheus text-exposition metrics for the admin
// HTTP surface, hand-rolled rather than pulling in client_golang for
// a handful of counters.
type Metrics struct {
	totalRequests  sync.Map // "method:status" -> *atomic.Int64
	activeRequests atomic.Int32
	totalBytes     atomic.Int64

	durationBuckets []float64
	durationCounts  sync.Map // bucket key -> *atomic.Int64
	durationSum     atomic.Int64
	durationCount   atomic.Int64

	pool     *dispatch.Pool
	recorder *record.Recorder
}

// NewMetrics creates a metrics collector backed by pool and an
// optional recorder (nil if frame recording is disabled).
func NewMetrics(pool *dispatch.Pool, recorder *record.Recorder) *Metrics {
	return &Metrics{
		pool:            pool,
		recorder:        recorder,
		durationBuckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
	}
}

// Middleware returns a middleware that records per-request metrics and
// serves metricsPath directly, bypassing the wrapped handler.
func (m *Metrics) Middleware(metricsPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == metricsPath {
				m.serveMetrics(w)
				return
			}

			start := time.Now()
			m.activeRequests.Add(1)
			defer m.activeRequests.Add(-1)

			rw := &metricsResponseWriter{ResponseWriter: w, statusCode: 200}
			next.ServeHTTP(rw, r)

			duration := time.Since(start)

			key := fmt.Sprintf("%s:%d", r.Method, rw.statusCode)
			counter, _ := m.totalRequests.LoadOrStore(key, &atomic.Int64{})
			counter.(*atomic.Int64).Add(1)

			m.totalBytes.Add(int64(rw.bytesWritten))

			m.durationSum.Add(int64(duration))
			m.durationCount.Add(1)
			durationSec := duration.Seconds()
			for _, bucket := range m.durationBuckets {
				if durationSec <= bucket {
					bkey := fmt.Sprintf("%.3f", bucket)
					bc, _ := m.durationCounts.LoadOrStore(bkey, &atomic.Int64{})
					bc.(*atomic.Int64).Add(1)
					break
				}
			}
		})
	}
}

func (m *Metrics) serveMetrics(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	var b strings.Builder

	b.WriteString("# HELP spoa_admin_requests_total Total number of admin HTTP requests.\n")
	b.WriteString("# TYPE spoa_admin_requests_total counter\n")
	m.totalRequests.Range(func(key, value interface{}) bool {
		parts := strings.SplitN(key.(string), ":", 2)
		method, status := parts[0], parts[1]
		count := value.(*atomic.Int64).Load()
		fmt.Fprintf(&b, "spoa_admin_requests_total{method=\"%s\",status=\"%s\"} %d\n", method, status, count)
		return true
	})

	b.WriteString("# HELP spoa_admin_requests_active Current number of active admin HTTP requests.\n")
	b.WriteString("# TYPE spoa_admin_requests_active gauge\n")
	fmt.Fprintf(&b, "spoa_admin_requests_active %d\n", m.activeRequests.Load())

	b.WriteString("# HELP spoa_admin_response_bytes_total Total bytes sent in admin HTTP responses.\n")
	b.WriteString("# TYPE spoa_admin_response_bytes_total counter\n")
	fmt.Fprintf(&b, "spoa_admin_response_bytes_total %d\n", m.totalBytes.Load())

	b.WriteString("# HELP spoa_admin_request_duration_seconds Admin HTTP request duration in seconds.\n")
	b.WriteString("# TYPE spoa_admin_request_duration_seconds histogram\n")
	cumulative := int64(0)
	totalCount := m.durationCount.Load()
	for _, bucket := range m.durationBuckets {
		bkey := fmt.Sprintf("%.3f", bucket)
		if bc, ok := m.durationCounts.Load(bkey); ok {
			cumulative += bc.(*atomic.Int64).Load()
		}
		fmt.Fprintf(&b, "spoa_admin_request_duration_seconds_bucket{le=\"%.3f\"} %d\n", bucket, cumulative)
	}
	fmt.Fprintf(&b, "spoa_admin_request_duration_seconds_bucket{le=\"+Inf\"} %d\n", totalCount)
	fmt.Fprintf(&b, "spoa_admin_request_duration_seconds_sum %.6f\n", float64(m.durationSum.Load())/float64(time.Second))
	fmt.Fprintf(&b, "spoa_admin_request_duration_seconds_count %d\n", totalCount)

	if m.pool != nil {
		stats := m.pool.Stats()
		b.WriteString("# HELP spoa_dispatch_slots_total Total dispatch pool slots.\n")
		b.WriteString("# TYPE spoa_dispatch_slots_total gauge\n")
		fmt.Fprintf(&b, "spoa_dispatch_slots_total %d\n", stats.TotalSlots)

		b.WriteString("# HELP spoa_dispatch_slots_busy Busy dispatch pool slots.\n")
		b.WriteString("# TYPE spoa_dispatch_slots_busy gauge\n")
		fmt.Fprintf(&b, "spoa_dispatch_slots_busy %d\n", stats.BusySlots)

		b.WriteString("# HELP spoa_dispatch_messages_total Total messages dispatched to the handler.\n")
		b.WriteString("# TYPE spoa_dispatch_messages_total counter\n")
		fmt.Fprintf(&b, "spoa_dispatch_messages_total %d\n", stats.TotalTasks)
	}

	if m.recorder != nil {
		rs := m.recorder.Stats()
		b.WriteString("# HELP spoa_record_entries_written_total Frame log entries written.\n")
		b.WriteString("# TYPE spoa_record_entries_written_total counter\n")
		fmt.Fprintf(&b, "spoa_record_entries_written_total %d\n", rs.Written)

		b.WriteString("# HELP spoa_record_entries_dropped_total Frame log entries dropped (sink backpressure).\n")
		b.WriteString("# TYPE spoa_record_entries_dropped_total counter\n")
		fmt.Fprintf(&b, "spoa_record_entries_dropped_total %d\n", rs.Dropped)
	}

	b.WriteString("# HELP spoa_go_goroutines Number of goroutines.\n")
	b.WriteString("# TYPE spoa_go_goroutines gauge\n")
	fmt.Fprintf(&b, "spoa_go_goroutines %d\n", runtime.NumGoroutine())

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	b.WriteString("# HELP spoa_go_memstats_alloc_bytes Number of bytes allocated.\n")
	b.WriteString("# TYPE spoa_go_memstats_alloc_bytes gauge\n")
	fmt.Fprintf(&b, "spoa_go_memstats_alloc_bytes %d\n", mem.Alloc)

	w.Write([]byte(b.String()))
}

type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *metricsResponseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}
