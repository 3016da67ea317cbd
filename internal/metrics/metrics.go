// Package metrics exposes Prometheus counters for task, calendar and auth
// operations. A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

const namespace = "todo"

// Result labels.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

type Metrics struct {
	registry *prometheus.Registry
	tasks    *prometheus.CounterVec
	calendar *prometheus.CounterVec
	auth     *prometheus.CounterVec
	streams  prometheus.Gauge
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_operations_total",
			Help:      "Task mutations by operation and result.",
		}, []string{"operation", "result"}),
		calendar: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calendar_requests_total",
			Help:      "Calls to the calendar API by operation and result.",
		}, []string{"operation", "result"}),
		auth: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_operations_total",
			Help:      "Authentication operations by operation and result.",
		}, []string{"operation", "result"}),
		streams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "task_streams_active",
			Help:      "Open task snapshot streams.",
		}),
	}
	m.registry.MustRegister(
		m.tasks,
		m.calendar,
		m.auth,
		m.streams,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) TaskOperation(operation string, err error) {
	if m == nil {
		return
	}
	m.tasks.WithLabelValues(operation, result(err)).Inc()
}

func (m *Metrics) CalendarRequest(operation string, err error) {
	if m == nil {
		return
	}
	m.calendar.WithLabelValues(operation, result(err)).Inc()
}

func (m *Metrics) AuthOperation(operation string, err error) {
	if m == nil {
		return
	}
	m.auth.WithLabelValues(operation, result(err)).Inc()
}

// StreamOpened increments the active stream gauge and returns its decrement.
func (m *Metrics) StreamOpened() func() {
	if m == nil {
		return func() {}
	}
	m.streams.Inc()
	return m.streams.Dec
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() fasthttp.RequestHandler {
	return fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}
