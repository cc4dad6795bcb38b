package engine

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	outboundLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "courier_outbound_latency_seconds",
		Help:    "Time spent executing outbound requests against origins",
		Buckets: prometheus.DefBuckets,
	})
	executionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courier_executions_total",
		Help: "Outbound executions that completed with an HTTP response, by status class",
	}, []string{"class"})
	executionFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "courier_execution_failures_total",
		Help: "Outbound executions that failed before an HTTP response arrived",
	})
)

// statusLabel buckets a status code into its class ("2xx", "5xx", ...).
func statusLabel(status int) prometheus.Labels {
	return prometheus.Labels{"class": strconv.Itoa(status/100) + "xx"}
}
