// Package observability turns lifecycle events into Prometheus metrics.
package observability

import (
	"context"
	"net/http"

	"tubewatch/internal/eventbus"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tubewatch"

// Metrics holds all Prometheus metrics for the daemon.
type Metrics struct {
	reg *prometheus.Registry

	// Watch loop
	PassesTotal       *prometheus.CounterVec
	PassDuration      prometheus.Histogram
	ProbesTotal       *prometheus.CounterVec
	ItemsDetected     *prometheus.CounterVec
	SaveFailures      prometheus.Counter
	LastPassTimestamp prometheus.Gauge

	// Notifier
	NotificationsTotal *prometheus.CounterVec
	NotifyLatency      prometheus.Histogram

	// Runtime
	TaskFailures *prometheus.CounterVec
}

// NewMetrics registers every metric on a fresh registry, together with the
// Go and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,

		PassesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watch",
			Name:      "passes_total",
			Help:      "Total number of passes by result",
		}, []string{"result"}),
		PassDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "watch",
			Name:      "pass_duration_seconds",
			Help:      "Pass duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		ProbesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watch",
			Name:      "probes_total",
			Help:      "Total number of channel probes by outcome",
		}, []string{"channel", "outcome"}),
		ItemsDetected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watch",
			Name:      "items_detected_total",
			Help:      "Total number of new items detected",
		}, []string{"channel"}),
		SaveFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watch",
			Name:      "save_failures_total",
			Help:      "Total number of failed state saves",
		}),
		LastPassTimestamp: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "watch",
			Name:      "last_pass_timestamp",
			Help:      "Unix timestamp of the last finished pass",
		}),

		NotificationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifier",
			Name:      "notifications_total",
			Help:      "Total number of webhook deliveries by status",
		}, []string{"channel", "status"}),
		NotifyLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "notifier",
			Name:      "latency_seconds",
			Help:      "Webhook delivery latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		TaskFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runtime",
			Name:      "task_failures_total",
			Help:      "Total number of supervised task failures",
		}, []string{"task"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Observe applies one event.
func (m *Metrics) Observe(e eventbus.Event) {
	switch d := e.Data.(type) {
	case eventbus.ProbeEvent:
		switch e.Type {
		case eventbus.TypeItemDetected:
			m.ItemsDetected.WithLabelValues(d.Channel).Inc()
			m.ProbesTotal.WithLabelValues(d.Channel, "item").Inc()
		case eventbus.TypeProbeNoItem:
			m.ProbesTotal.WithLabelValues(d.Channel, "no_item").Inc()
		case eventbus.TypeProbeRateLimited:
			m.ProbesTotal.WithLabelValues(d.Channel, "rate_limited").Inc()
		case eventbus.TypeProbeFailed:
			m.ProbesTotal.WithLabelValues(d.Channel, "request_failed").Inc()
		}
	case eventbus.DeliveryEvent:
		status := "ok"
		if e.Type == eventbus.TypeNotifierFailed {
			status = "failed"
		}
		m.NotificationsTotal.WithLabelValues(d.Channel, status).Inc()
		m.NotifyLatency.Observe(d.Took.Seconds())
	case eventbus.PassEvent:
		switch e.Type {
		case eventbus.TypeSaveFailed:
			m.SaveFailures.Inc()
		case eventbus.TypePassCompleted:
			result := "ok"
			if d.Fault != "" {
				result = "fault"
			}
			m.PassesTotal.WithLabelValues(result).Inc()
			m.PassDuration.Observe(d.Took.Seconds())
			m.LastPassTimestamp.Set(float64(e.Time.Unix()))
		}
	case eventbus.TaskFailure:
		m.TaskFailures.WithLabelValues(d.Task).Inc()
	}
}

// Consume subscribes to bus and observes events until ctx is done.
func (m *Metrics) Consume(ctx context.Context, bus eventbus.Bus) error {
	ch, unsub := bus.Subscribe(256)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-ch:
			if !ok {
				return nil
			}
			m.Observe(e)
		}
	}
}
