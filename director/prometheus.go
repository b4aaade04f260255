package director

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "suitedirector"

var (
	SuitesRegistered = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "suites",
		Name:      "registered_total",
		Help:      "Number of suite requests accepted by /register-suites.",
	})

	ChunksPublished = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "chunks",
		Name:      "published_total",
		Help:      "Number of suite chunks published to the event bus.",
	})

	DeviceRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "devices",
		Name:      "runs_total",
		Help:      "Completed device runs by outcome.",
	}, []string{"outcome"})

	TeardownFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "teardown_failures_total",
		Help:      "Instances that could not be terminated and may still be running.",
	})

	PersistenceFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "sessions",
		Name:      "persistence_failures_total",
		Help:      "Sessions that could not be written to the session store.",
	})

	DeviceRunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "devices",
		Name:      "run_duration_seconds",
		Help:      "Wall time of one device run, provisioning through teardown.",
		Buckets:   prometheus.ExponentialBuckets(15, 2, 10),
	})
)

func Metrics() {
	prometheus.MustRegister(SuitesRegistered)
	prometheus.MustRegister(ChunksPublished)
	prometheus.MustRegister(DeviceRuns)
	prometheus.MustRegister(TeardownFailures)
	prometheus.MustRegister(PersistenceFailures)
	prometheus.MustRegister(DeviceRunDuration)
}
