package escore

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the set of Prometheus collectors the core exposes for
// operators to register against their own registry. The core never
// touches a global registry itself, matching spec §1's "out of scope:
// ... logging initialization" boundary extended to metrics registration.
type Metrics struct {
	CommandsTotal     *prometheus.CounterVec
	CommandDuration   *prometheus.HistogramVec
	EventsHandled     *prometheus.CounterVec
	EventHandlerFails *prometheus.CounterVec
	ProcessorLag      *prometheus.GaugeVec
	CacheHits         prometheus.Counter
	CacheMisses       prometheus.Counter
}

// NewMetrics constructs a Metrics set with a namespace prefix and
// registers every collector with reg.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	m := &Metrics{
		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "commands_total", Help: "Commands sent, by command type and outcome.",
		}, []string{"command_type", "outcome"}),
		CommandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "command_duration_seconds", Help: "Command Router send() latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"command_type"}),
		EventsHandled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "events_handled_total", Help: "Events dispatched to handlers, by group and event type.",
		}, []string{"group", "event_type"}),
		EventHandlerFails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "event_handler_failures_total", Help: "Event handler invocations that returned an error.",
		}, []string{"group", "event_type"}),
		ProcessorLag: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "processor_lag_events", Help: "Events behind the stream head for a (group, partition).",
		}, []string{"group", "partition"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "state_cache_hits_total", Help: "State Rebuilding Cache hits (a non-sentinel prior value existed).",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "state_cache_misses_total", Help: "State Rebuilding Cache misses.",
		}),
	}
	reg.MustRegister(m.CommandsTotal, m.CommandDuration, m.EventsHandled, m.EventHandlerFails, m.ProcessorLag, m.CacheHits, m.CacheMisses)
	return m
}

// ObserveCommand records the outcome and latency of one Send call.
func (m *Metrics) ObserveCommand(commandType string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.CommandsTotal.WithLabelValues(commandType, outcome).Inc()
	m.CommandDuration.WithLabelValues(commandType).Observe(time.Since(start).Seconds())
}
