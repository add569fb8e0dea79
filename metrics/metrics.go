package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	FetchAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vastlogmon_fetch_attempts_total",
			Help: "Total number of provider endpoint calls, by endpoint and result.",
		},
		[]string{"endpoint", "result"},
	)

	FetchFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vastlogmon_fetch_failures_total",
			Help: "Total number of poll cycles in which every log endpoint failed.",
		},
		[]string{"instance"},
	)

	LinesEmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vastlogmon_lines_emitted_total",
			Help: "Total number of lines emitted to sinks.",
		},
		[]string{"instance", "tag"},
	)

	AlertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vastlogmon_alerts_total",
			Help: "Total number of log lines matched by the alert detector.",
		},
		[]string{"instance"},
	)

	StreamTerminationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vastlogmon_stream_terminations_total",
			Help: "Total number of finished streams, by terminal reason.",
		},
		[]string{"reason"},
	)

	SinkErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vastlogmon_sink_errors_total",
			Help: "Total number of lines a sink failed to deliver.",
		},
		[]string{"sink"},
	)

	LastActivityTimestamp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vastlogmon_last_activity_timestamp_seconds",
			Help: "Unix timestamp of the last successful fetch for the instance.",
		},
		[]string{"instance"},
	)
)

func init() {
	prometheus.MustRegister(FetchAttemptsTotal)
	prometheus.MustRegister(FetchFailuresTotal)
	prometheus.MustRegister(LinesEmittedTotal)
	prometheus.MustRegister(AlertsTotal)
	prometheus.MustRegister(StreamTerminationsTotal)
	prometheus.MustRegister(SinkErrorsTotal)
	prometheus.MustRegister(LastActivityTimestamp)
}
