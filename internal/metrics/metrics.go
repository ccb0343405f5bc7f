package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Counter: oracle decisions by outcome (hit | miss | reroll | error).
	OracleResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_resolutions_total",
			Help: "Total number of oracle resolutions by outcome.",
		},
		[]string{"outcome"},
	)

	// Counter: answer store operations by backend, op and result.
	StoreOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_store_operations_total",
			Help: "Total number of answer store operations.",
		},
		[]string{"backend", "op", "result"},
	)

	StoreLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "oracle_store_latency_seconds",
			Help:    "Answer store operation latency in seconds.",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		},
		[]string{"backend", "op"},
	)

	// Histogram: answer generation latency, labelled by generator kind.
	GenerationLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "oracle_generation_latency_seconds",
			Help:    "Answer generation latency in seconds.",
			Buckets: []float64{0.001, 0.01, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
		},
		[]string{"generator", "result"},
	)

	// Histogram: HTTP latency in seconds.
	HTTPLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "oracle_http_latency_seconds",
			Help:    "HTTP request latency for the oracle in seconds.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"path", "method", "status_code"},
	)
)

// Register is called once by the serve command.
func Register() {
	prometheus.MustRegister(
		OracleResolutionsTotal,
		StoreOperationsTotal,
		StoreLatencySeconds,
		GenerationLatencySeconds,
		HTTPLatencySeconds,
	)
}

// Handler exposes the /metrics endpoint for Prometheus to scrape.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware measures latency for each HTTP request. The path label is the
// matched chi route pattern so raw paths cannot blow up label cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rec := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rec, r)

		path := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}

		HTTPLatencySeconds.
			WithLabelValues(path, r.Method, strconv.Itoa(rec.statusCode)).
			Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}
