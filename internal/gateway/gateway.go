// Package gateway implements the health data gateway.
//
// The gateway validates health-metric inputs, forwards reads and writes to the
// platform bridge and turns the bridge's replies into typed samples. Results
// are handed to an events.Publisher: a full dataset at the end of every
// successful read cycle, and one outcome per write.
//
// Operations run one at a time. A read cycle that is aborted, because
// permissions are missing or the platform reports a security error, publishes
// nothing and leaves the last published dataset in place.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tejusbharadwaj/healthgw/internal/bridge"
	"github.com/tejusbharadwaj/healthgw/internal/events"
	"github.com/tejusbharadwaj/healthgw/internal/metric"
	"github.com/tejusbharadwaj/healthgw/internal/models"
)

// isoLayout is the timestamp format the bridge expects: UTC, milliseconds.
const isoLayout = "2006-01-02T15:04:05.000Z07:00"

var (
	// ErrContextInvalid is returned when the platform execution context is unusable.
	ErrContextInvalid = bridge.ErrContextInvalid
	// ErrNotInstalled means the platform health service is missing.
	ErrNotInstalled = errors.New("health service is not installed")
	// ErrVersionTooOld means the OS is too old for the health service.
	ErrVersionTooOld = errors.New("platform version too old")
	// ErrInitFailed covers any other initialisation failure.
	ErrInitFailed = errors.New("health service initialisation failed")
	// ErrPermissionPending aborts a read cycle after a permission request was issued.
	ErrPermissionPending = errors.New("permissions not granted, request issued")
	// ErrSecurity aborts a read cycle when the platform rejects a read.
	ErrSecurity = errors.New("security error from health service")
	// ErrUnknownMetric is returned for writes of an unsupported kind.
	ErrUnknownMetric = errors.New("unknown metric")
)

// Config holds gateway settings.
type Config struct {
	// ReadWindowMonths bounds reads to the last N months. Zero reads without
	// an explicit window.
	ReadWindowMonths int
	// Locale selects the language of validation messages ("en" or "fa").
	Locale string
}

// DefaultConfig reads the last month with English messages.
func DefaultConfig() Config {
	return Config{ReadWindowMonths: 1, Locale: "en"}
}

// Option customises a Gateway.
type Option func(*Gateway)

// WithPublisher sets where datasets and write outcomes are published.
func WithPublisher(p events.Publisher) Option {
	return func(g *Gateway) { g.publisher = p }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// Gateway is the health data gateway. Build it with New.
type Gateway struct {
	mu sync.Mutex

	bridge      bridge.Invoker
	publisher   events.Publisher
	metrics     *Metrics
	logger      logrus.FieldLogger
	messages    *Messages
	descriptors []metric.Descriptor
	now         func() time.Time

	windowMonths int
	latest       *models.ReadResult
	cycle        uint64

	// publishMu orders dataset events; published is the last cycle sent.
	publishMu sync.Mutex
	published uint64
}

// New builds a gateway on the given bridge handle. The gateway owns the
// handle and releases it on Close.
func New(b bridge.Invoker, cfg Config, logger logrus.FieldLogger, opts ...Option) (*Gateway, error) {
	if b == nil {
		return nil, fmt.Errorf("bridge handle is required")
	}
	if cfg.ReadWindowMonths < 0 {
		return nil, fmt.Errorf("read window must not be negative: %d", cfg.ReadWindowMonths)
	}

	g := &Gateway{
		bridge:       b,
		publisher:    events.Discard{},
		logger:       logger.WithField("component", "gateway"),
		messages:     MessagesFor(cfg.Locale),
		descriptors:  metric.All(),
		now:          time.Now,
		windowMonths: cfg.ReadWindowMonths,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.latest = models.NewReadResult(metric.Kinds())
	return g, nil
}

// SetReadWindow changes the read window used by subsequent cycles.
func (g *Gateway) SetReadWindow(months int) error {
	if months < 0 {
		return fmt.Errorf("read window must not be negative: %d", months)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.windowMonths = months
	g.logger.WithField("months", months).Info("Read window updated")
	return nil
}

// Latest returns the last published dataset.
func (g *Gateway) Latest() *models.ReadResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.latest
}

// Close releases the bridge handle.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.bridge.Close()
}

func (g *Gateway) call(ctx context.Context, m bridge.Method, args ...any) (string, error) {
	start := time.Now()
	raw, err := g.bridge.Call(ctx, m, args...)
	g.metrics.observeBridgeCall(m.Name, err, time.Since(start))
	return raw, err
}

func (g *Gateway) publish(ctx context.Context, e events.Event) {
	if err := g.publisher.Publish(ctx, e); err != nil {
		g.logger.WithFields(logrus.Fields{
			"event_id": e.ID,
			"type":     e.Type,
			"error":    err,
		}).Error("Failed to publish event")
	}
}

// publishDataset sends the dataset of cycle unless a later cycle has been
// published already.
func (g *Gateway) publishDataset(ctx context.Context, cycle uint64, r *models.ReadResult) {
	g.publishMu.Lock()
	defer g.publishMu.Unlock()
	if cycle < g.published {
		g.logger.WithField("read_at", r.ReadAt).Debug("Dropping superseded dataset")
		return
	}
	g.published = cycle
	g.publish(ctx, events.NewDatasetEvent(r))
}

func (g *Gateway) timestamp(t time.Time) string {
	return t.UTC().Format(isoLayout)
}
