package middleware

import (
	"context"
	"path"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// NewRequestMetrics creates the request counter and latency histogram and
// registers them with reg when reg is not nil.
func NewRequestMetrics(reg prometheus.Registerer) (*prometheus.CounterVec, *prometheus.HistogramVec, error) {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "healthgw",
		Subsystem: "grpc",
		Name:      "requests_total",
		Help:      "gRPC requests by method and status code.",
	}, []string{"method", "code"})

	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "healthgw",
		Subsystem: "grpc",
		Name:      "request_duration_seconds",
		Help:      "gRPC request latency by method.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"})

	if reg != nil {
		for _, c := range []prometheus.Collector{requests, latency} {
			if err := reg.Register(c); err != nil {
				return nil, nil, err
			}
		}
	}
	return requests, latency, nil
}

func NewMetricsInterceptor(
	requests *prometheus.CounterVec,
	latency *prometheus.HistogramVec,
) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()

		resp, err := handler(ctx, req)

		// Record metrics
		duration := time.Since(start).Seconds()
		method := path.Base(info.FullMethod)

		requests.WithLabelValues(method, status.Code(err).String()).Inc()
		latency.WithLabelValues(method).Observe(duration)

		return resp, err
	}
}
