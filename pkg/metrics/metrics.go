package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	invocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "apibridge",
			Subsystem: "invocation",
			Name:      "total",
			Help:      "Host invocations by outcome and final status.",
		},
		[]string{"method", "outcome", "status"},
	)
	invocationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "apibridge",
			Subsystem: "invocation",
			Name:      "duration_seconds",
			Help:      "Time from host invocation to resolution.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)
	inflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "apibridge",
			Subsystem: "invocation",
			Name:      "inflight",
			Help:      "Invocations currently pending.",
		},
	)
	resolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "apibridge",
			Subsystem: "resolver",
			Name:      "loads_total",
			Help:      "Application loads by loader source and result.",
		},
		[]string{"source", "result"},
	)
	resolveDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "apibridge",
			Subsystem: "resolver",
			Name:      "load_duration_seconds",
			Help:      "Application load latency, including cold starts.",
			Buckets:   []float64{.001, .01, .1, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"source"},
	)
)

// Register adds the bridge collectors to the default registry. Safe to call
// more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(invocations, invocationDuration, inflight, resolutions, resolveDuration)
	})
}

// InvocationStarted bumps the in-flight gauge; call the returned func once
// the invocation resolves.
func InvocationStarted() func() {
	Register()
	inflight.Inc()
	return inflight.Dec
}

func RecordInvocation(method, outcome string, status int, duration time.Duration) {
	Register()
	invocations.WithLabelValues(method, outcome, strconv.Itoa(status)).Inc()
	invocationDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func RecordResolve(source string, err error, duration time.Duration) {
	Register()
	result := "ok"
	if err != nil {
		result = "error"
	}
	resolutions.WithLabelValues(source, result).Inc()
	resolveDuration.WithLabelValues(source).Observe(duration.Seconds())
}
