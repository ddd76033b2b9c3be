package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"streampay/internal/core/domain"
)

// PrometheusCollector implements ports.MetricsRecorder and carries the gauges
// for the event feed.
type PrometheusCollector struct {
	transitionsTotal   *prometheus.CounterVec
	transitionDuration *prometheus.HistogramVec
	valueMovedTotal    *prometheus.CounterVec
	publishFailures    prometheus.Counter

	feedClients  prometheus.Gauge
	busState     prometheus.Gauge
	snapshotsRun *prometheus.CounterVec
}

// NewPrometheusCollector registers the escrow metrics with reg. Pass
// prometheus.DefaultRegisterer to serve them from promhttp.Handler.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	factory := promauto.With(reg)
	return &PrometheusCollector{
		transitionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "streampay_transitions_total",
			Help: "Escrow transitions by kind and outcome",
		}, []string{"transition", "outcome"}),

		transitionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "streampay_transition_duration_seconds",
			Help:    "Latency of escrow transitions including ledger locking",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"transition"}),

		valueMovedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "streampay_value_moved_total",
			Help: "Value moved by committed transitions",
		}, []string{"transition"}),

		publishFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "streampay_event_publish_failures_total",
			Help: "Transition events that could not be published",
		}),

		feedClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "streampay_feed_clients",
			Help: "Connected websocket feed clients",
		}),

		busState: factory.NewGauge(prometheus.GaugeOpts{
			Name: "streampay_event_bus_breaker_state",
			Help: "Event bus circuit breaker state (0 closed, 1 open, 2 half-open)",
		}),

		snapshotsRun: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "streampay_snapshots_total",
			Help: "Ledger snapshots by outcome",
		}, []string{"outcome"}),
	}
}

func (c *PrometheusCollector) ObserveTransition(kind string, err error, duration time.Duration) {
	c.transitionsTotal.WithLabelValues(kind, domain.Kind(err)).Inc()
	c.transitionDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

func (c *PrometheusCollector) AddValueMoved(kind string, value uint64) {
	c.valueMovedTotal.WithLabelValues(kind).Add(float64(value))
}

func (c *PrometheusCollector) IncPublishFailures() {
	c.publishFailures.Inc()
}

func (c *PrometheusCollector) SetFeedClients(n int) {
	c.feedClients.Set(float64(n))
}

func (c *PrometheusCollector) SetBusBreakerState(state int) {
	c.busState.Set(float64(state))
}

func (c *PrometheusCollector) ObserveSnapshot(err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.snapshotsRun.WithLabelValues(outcome).Inc()
}
