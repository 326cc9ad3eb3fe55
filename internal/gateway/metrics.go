package gateway

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics instruments the gateway. A nil *Metrics records nothing.
type Metrics struct {
	BridgeCalls   *prometheus.CounterVec
	BridgeLatency *prometheus.HistogramVec
	ReadCycles    *prometheus.CounterVec
	MetricReads   *prometheus.CounterVec
	Writes        *prometheus.CounterVec
}

// NewMetrics creates the gateway collectors and registers them with reg when
// reg is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BridgeCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "healthgw_bridge_calls_total",
			Help: "Bridge method invocations by method and transport result.",
		}, []string{"method", "result"}),
		BridgeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "healthgw_bridge_call_duration_seconds",
			Help:    "Latency of bridge method invocations.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"method"}),
		ReadCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "healthgw_read_cycles_total",
			Help: "Read cycles by outcome.",
		}, []string{"outcome"}),
		MetricReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "healthgw_metric_reads_total",
			Help: "Per-metric read results by decoded status.",
		}, []string{"kind", "status"}),
		Writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "healthgw_writes_total",
			Help: "Write requests by metric and result.",
		}, []string{"kind", "result"}),
	}
	if reg != nil {
		reg.MustRegister(m.BridgeCalls, m.BridgeLatency, m.ReadCycles, m.MetricReads, m.Writes)
	}
	return m
}

func (m *Metrics) observeBridgeCall(method string, err error, d time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.BridgeCalls.WithLabelValues(method, result).Inc()
	m.BridgeLatency.WithLabelValues(method).Observe(d.Seconds())
}

func (m *Metrics) observeCycle(outcome string) {
	if m == nil {
		return
	}
	m.ReadCycles.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeMetricRead(kind, status string) {
	if m == nil {
		return
	}
	m.MetricReads.WithLabelValues(kind, status).Inc()
}

func (m *Metrics) observeWrite(kind, result string) {
	if m == nil {
		return
	}
	m.Writes.WithLabelValues(kind, result).Inc()
}
