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
			Namespace: "ledger_layer",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ledger_layer",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ledger_layer",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	verifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ledger_layer",
			Subsystem: "submissions",
			Name:      "verifications_total",
			Help:      "Total number of submission verification decisions.",
		},
		[]string{"status", "auto"},
	)

	rewardsIssued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ledger_layer",
			Subsystem: "rewards",
			Name:      "issued_total",
			Help:      "Total number of reward transactions created.",
		},
	)

	rewardsAmount = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ledger_layer",
			Subsystem: "rewards",
			Name:      "issued_tokens_total",
			Help:      "Total token amount issued as rewards.",
		},
	)

	batchTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ledger_layer",
			Subsystem: "batches",
			Name:      "transitions_total",
			Help:      "Total number of batch status transitions.",
		},
		[]string{"status"},
	)

	settlementEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ledger_layer",
			Subsystem: "settlement",
			Name:      "events_total",
			Help:      "Total number of settlement events reconciled, by outcome.",
		},
		[]string{"event_type", "outcome"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		verifications,
		rewardsIssued,
		rewardsAmount,
		batchTransitions,
		settlementEvents,
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

// RecordVerification records a submission verification decision.
func RecordVerification(status string, auto bool) {
	flag := "false"
	if auto {
		flag = "true"
	}
	verifications.WithLabelValues(status, flag).Inc()
}

// RecordRewardIssued records a created reward transaction.
func RecordRewardIssued(amount float64) {
	rewardsIssued.Inc()
	if amount > 0 {
		rewardsAmount.Add(amount)
	}
}

// RecordBatchTransition records a batch status change.
func RecordBatchTransition(status string) {
	batchTransitions.WithLabelValues(status).Inc()
}

// RecordSettlementEvent records a reconciled settlement event.
func RecordSettlementEvent(eventType, outcome string) {
	settlementEvents.WithLabelValues(eventType, outcome).Inc()
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

func canonicalPath(raw string) string {
	if raw == "" || raw == "/" {
		return "/"
	}
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if len(parts) == 1 {
		return "/" + parts[0]
	}
	// Collapse entity ids so label cardinality stays bounded.
	return "/" + parts[0] + "/:id"
}
