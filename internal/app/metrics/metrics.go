package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ai_backend",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ai_backend",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ai_backend",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	generations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ai_backend",
			Subsystem: "engine",
			Name:      "generations_total",
			Help:      "Total number of text generation requests by category.",
		},
		[]string{"category"},
	)

	codeExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ai_backend",
			Subsystem: "compute",
			Name:      "executions_total",
			Help:      "Total number of sandboxed code executions.",
		},
		[]string{"status"},
	)

	codeExecutionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ai_backend",
			Subsystem: "compute",
			Name:      "execution_duration_seconds",
			Help:      "Duration of sandboxed code executions.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"status"},
	)

	workflowRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ai_backend",
			Subsystem: "workflows",
			Name:      "runs_total",
			Help:      "Total number of workflow runs.",
		},
		[]string{"workflow_type", "status"},
	)

	workflowDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ai_backend",
			Subsystem: "workflows",
			Name:      "run_duration_seconds",
			Help:      "Duration of workflow runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		},
		[]string{"workflow_type"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		generations,
		codeExecutions,
		codeExecutionDuration,
		workflowRuns,
		workflowDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordGeneration records a text generation by response category.
func RecordGeneration(category string) {
	if category == "" {
		category = "general"
	}
	generations.WithLabelValues(category).Inc()
}

// RecordCodeExecution records metrics for a sandboxed execution.
func RecordCodeExecution(status string, duration time.Duration) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	codeExecutions.WithLabelValues(status).Inc()
	codeExecutionDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordWorkflowRun records metrics for a workflow run.
func RecordWorkflowRun(workflowType, status string, duration time.Duration) {
	if workflowType == "" {
		workflowType = "unknown"
	}
	if duration <= 0 {
		duration = time.Millisecond
	}
	workflowRuns.WithLabelValues(workflowType, status).Inc()
	workflowDuration.WithLabelValues(workflowType).Observe(duration.Seconds())
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// canonicalPath collapses ID path segments so metric cardinality stays
// bounded.
func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")

	// API routes live under a versioned prefix, e.g. /api/v1/workflow/{id}.
	if len(parts) >= 3 && parts[0] == "api" {
		resource := parts[2]
		if len(parts) > 3 {
			return "/" + parts[0] + "/" + parts[1] + "/" + resource + "/:id"
		}
		return "/" + parts[0] + "/" + parts[1] + "/" + resource
	}
	return "/" + parts[0]
}
