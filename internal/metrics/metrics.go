package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lead_triage"

// Mutation results.
const (
	ResultOK       = "ok"
	ResultInvalid  = "invalid"
	ResultNotFound = "not_found"
	ResultConflict = "conflict"
	ResultError    = "error"
)

// Recorder owns the service's Prometheus collectors. A nil *Recorder is
// valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	eventsIngested   *prometheus.CounterVec
	mutations        *prometheus.CounterVec
	publishFailures  prometheus.Counter
	requestDuration  *prometheus.HistogramVec
	unhandledOverdue prometheus.Gauge

	ledgerActivities *prometheus.CounterVec
	ledgerDropped    *prometheus.CounterVec
}

// New creates a Recorder with its own registry, including Go runtime and
// process collectors.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		eventsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_ingested_total",
			Help:      "Inbound events stored, by source and whether they were created or merged",
		}, []string{"source", "action"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "triage_mutations_total",
			Help:      "Triage mutations by field and result",
		}, []string{"field", "result"}),
		publishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activity_publish_failures_total",
			Help:      "Lead activity messages that could not be published",
		}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method, route and status",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		unhandledOverdue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "overdue_leads",
			Help:      "Unhandled leads past the SLA threshold at the last summary",
		}),
		ledgerActivities: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_activities_total",
			Help:      "Activities handled by the ledger writer, by result",
		}, []string{"result"}),
		ledgerDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_messages_dropped_total",
			Help:      "Queue messages discarded before reaching the ledger, by reason",
		}, []string{"reason"}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.eventsIngested,
		r.mutations,
		r.publishFailures,
		r.requestDuration,
		r.unhandledOverdue,
		r.ledgerActivities,
		r.ledgerDropped,
	)
	return r
}

// EventIngested counts a stored event. action is "created" or "merged".
func (r *Recorder) EventIngested(source, action string) {
	if r == nil {
		return
	}
	r.eventsIngested.WithLabelValues(source, action).Inc()
}

// Mutation counts a triage mutation on field with the given result.
func (r *Recorder) Mutation(field, result string) {
	if r == nil {
		return
	}
	r.mutations.WithLabelValues(field, result).Inc()
}

// PublishFailed counts an activity that could not be published.
func (r *Recorder) PublishFailed() {
	if r == nil {
		return
	}
	r.publishFailures.Inc()
}

// SetOverdue records the overdue count seen by the latest summary.
func (r *Recorder) SetOverdue(n int) {
	if r == nil {
		return
	}
	r.unhandledOverdue.Set(float64(n))
}

// LedgerWrite counts n activities the ledger writer settled with result.
func (r *Recorder) LedgerWrite(result string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.ledgerActivities.WithLabelValues(result).Add(float64(n))
}

// LedgerDropped counts a queue message discarded for reason.
func (r *Recorder) LedgerDropped(reason string) {
	if r == nil {
		return
	}
	r.ledgerDropped.WithLabelValues(reason).Inc()
}

// ObserveRequest records one HTTP request.
func (r *Recorder) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if r == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	r.requestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}
