package chi

import (
	"fmt"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// Metrics counts requests and guarded-query outcomes for the /metrics
// endpoint, in Prometheus text format.
type Metrics struct {
	requests  atomic.Int64
	startTime time.Time

	mu       sync.Mutex
	outcomes map[string]int64
	statuses map[int]int64
}

func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),
		outcomes:  make(map[string]int64),
		statuses:  make(map[int]int64),
	}
}

// RecordOutcome counts one query result by kind, such as "completed",
// "awaiting_confirmation" or "access_denied".
func (m *Metrics) RecordOutcome(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[kind]++
}

// Collector middleware counts requests and response statuses
func (m *Metrics) Collector(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.requests.Add(1)
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		m.mu.Lock()
		m.statuses[ww.Status()]++
		m.mu.Unlock()
	})
}

// Handler renders the counters
func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")

		fmt.Fprintf(w, "# HELP query_gateway_requests_total Total number of requests\n")
		fmt.Fprintf(w, "# TYPE query_gateway_requests_total counter\n")
		fmt.Fprintf(w, "query_gateway_requests_total %d\n", m.requests.Load())

		m.mu.Lock()
		outcomes := sortedKeys(m.outcomes)
		statuses := make([]int, 0, len(m.statuses))
		for code := range m.statuses {
			statuses = append(statuses, code)
		}
		sort.Ints(statuses)

		fmt.Fprintf(w, "\n# HELP query_gateway_responses_total Responses by HTTP status\n")
		fmt.Fprintf(w, "# TYPE query_gateway_responses_total counter\n")
		for _, code := range statuses {
			fmt.Fprintf(w, "query_gateway_responses_total{status=\"%d\"} %d\n", code, m.statuses[code])
		}

		fmt.Fprintf(w, "\n# HELP query_gateway_query_outcomes_total Guarded query outcomes by kind\n")
		fmt.Fprintf(w, "# TYPE query_gateway_query_outcomes_total counter\n")
		for _, kind := range outcomes {
			fmt.Fprintf(w, "query_gateway_query_outcomes_total{kind=%q} %d\n", kind, m.outcomes[kind])
		}
		m.mu.Unlock()

		fmt.Fprintf(w, "\n# HELP query_gateway_uptime_seconds Service uptime in seconds\n")
		fmt.Fprintf(w, "# TYPE query_gateway_uptime_seconds gauge\n")
		fmt.Fprintf(w, "query_gateway_uptime_seconds %.0f\n", time.Since(m.startTime).Seconds())
	})
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
