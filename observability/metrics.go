package observability

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// InvocationMetrics tracks runtime invocations by module and operation.
type InvocationMetrics struct {
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

var (
	invocationOnce     sync.Once
	invocationRegistry *InvocationMetrics
)

// Invocations returns the lazily-initialised invocation registry.
func Invocations() *InvocationMetrics {
	invocationOnce.Do(func() {
		invocationRegistry = &InvocationMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "dex",
				Subsystem: "runtime",
				Name:      "invocations_total",
				Help:      "Total invocations segmented by module, operation and outcome.",
			}, []string{"module", "operation", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "dex",
				Subsystem: "runtime",
				Name:      "errors_total",
				Help:      "Failed invocations segmented by module, operation and error class.",
			}, []string{"module", "operation", "class"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "dex",
				Subsystem: "runtime",
				Name:      "invocation_duration_seconds",
				Help:      "Latency distribution of runtime invocations.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "operation"}),
		}
		prometheus.MustRegister(invocationRegistry.requests, invocationRegistry.errors, invocationRegistry.latency)
	})
	return invocationRegistry
}

// Observe records one invocation. class labels failures, typically the
// sentinel error the invocation failed with.
func (m *InvocationMetrics) Observe(module, operation string, duration time.Duration, class string) {
	if m == nil {
		return
	}
	module = normalise(module)
	operation = normalise(operation)
	outcome := "ok"
	if class != "" {
		outcome = "error"
		m.errors.WithLabelValues(module, operation, normalise(class)).Inc()
	}
	m.requests.WithLabelValues(module, operation, outcome).Inc()
	m.latency.WithLabelValues(module, operation).Observe(duration.Seconds())
}

func normalise(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return "unknown"
	}
	return v
}
