package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tckz/visitor-counter/internal/counter"
)

type Metrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	value      prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "visitor_counter_operations_total",
				Help: "Number of counter store operations by result",
			},
			[]string{"op", "result"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "visitor_counter_operation_duration_seconds",
				Help:    "Latency of counter store operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		value: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "visitor_counter_value",
				Help: "Last counter value observed by this process",
			},
		),
	}
	reg.MustRegister(m.operations, m.duration, m.value)
	return m
}

// Instrument wraps c so every Up/Get is counted and timed.
func (m *Metrics) Instrument(c counter.Counter) counter.Counter {
	return &instrumented{next: c, m: m}
}

func (m *Metrics) observe(op string, start time.Time, n int64, err error) {
	m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		m.operations.WithLabelValues(op, "error").Inc()
		return
	}
	m.operations.WithLabelValues(op, "ok").Inc()
	m.value.Set(float64(n))
}

var _ counter.Counter = (*instrumented)(nil)

type instrumented struct {
	next counter.Counter
	m    *Metrics
}

func (c *instrumented) Up(ctx context.Context) (int64, error) {
	start := time.Now()
	n, err := c.next.Up(ctx)
	c.m.observe("up", start, n, err)
	return n, err
}

func (c *instrumented) Get(ctx context.Context) (int64, error) {
	start := time.Now()
	n, err := c.next.Get(ctx)
	c.m.observe("get", start, n, err)
	return n, err
}
