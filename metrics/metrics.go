// Package metrics exposes schemapack encode and decode activity as
// Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Neumenon/schemapack/schemapack"
)

const namespace = "schemapack"

// Collector records model activity. It implements schemapack.Observer and is
// safe for concurrent use.
type Collector struct {
	operations *prometheus.CounterVec
	payload    *prometheus.HistogramVec
}

var _ schemapack.Observer = (*Collector)(nil)

// NewCollector creates a collector and registers it with reg. A nil reg
// leaves registration to the caller.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Encode and decode calls by schema and result.",
			},
			[]string{"schema", "op", "result"},
		),
		payload: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "payload_bytes",
				Help:      "Size of successfully encoded or decoded buffers.",
				Buckets:   prometheus.ExponentialBuckets(16, 4, 8),
			},
			[]string{"schema", "op"},
		),
	}
	if reg != nil {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.operations.Describe(ch)
	c.payload.Describe(ch)
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.operations.Collect(ch)
	c.payload.Collect(ch)
}

// ObserveEncode implements schemapack.Observer.
func (c *Collector) ObserveEncode(s *schemapack.Schema, size int, err error) {
	c.observe(s, "encode", size, err)
}

// ObserveDecode implements schemapack.Observer.
func (c *Collector) ObserveDecode(s *schemapack.Schema, size int, err error) {
	c.observe(s, "decode", size, err)
}

func (c *Collector) observe(s *schemapack.Schema, op string, size int, err error) {
	label := s.Label()
	if err != nil {
		c.operations.WithLabelValues(label, op, "error").Inc()
		return
	}
	c.operations.WithLabelValues(label, op, "ok").Inc()
	c.payload.WithLabelValues(label, op).Observe(float64(size))
}
