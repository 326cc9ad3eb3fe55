package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// HTTPConfig configures an HTTPBridge.
type HTTPConfig struct {
	URL     string
	Timeout time.Duration

	// Breaker trips after BreakerFailures consecutive transport failures and
	// stays open for BreakerCooldown.
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

type invokeRequest struct {
	Class     string `json:"class"`
	Method    string `json:"method"`
	Signature string `json:"signature"`
	Args      []any  `json:"args"`
}

// HTTPBridge forwards bridge calls to a device-side shim. The shim receives
// POST {url}/invoke with the class, method, signature and arguments, and
// answers with the method's string reply as the response body.
type HTTPBridge struct {
	url     string
	timeout time.Duration
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  logrus.FieldLogger

	mu     sync.RWMutex
	closed bool
}

// NewHTTPBridge opens a handle on the shim at cfg.URL.
func NewHTTPBridge(cfg HTTPConfig, logger logrus.FieldLogger) (*HTTPBridge, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("bridge url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 30 * time.Second
	}

	b := &HTTPBridge{
		url:     strings.TrimRight(cfg.URL, "/"),
		timeout: cfg.Timeout,
		client:  &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()},
		logger:  logger,
	}
	b.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "health-bridge",
		Timeout: cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Bridge circuit breaker changed state")
		},
	})
	return b, nil
}

// Ready implements Invoker.
func (b *HTTPBridge) Ready(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return fmt.Errorf("%w: %v", ErrContextInvalid, ErrClosed)
	}
	if b.breaker.State() == gobreaker.StateOpen {
		return fmt.Errorf("%w: bridge unreachable", ErrContextInvalid)
	}
	return nil
}

// Call implements Invoker.
func (b *HTTPBridge) Call(ctx context.Context, m Method, args ...any) (string, error) {
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return "", ErrClosed
	}

	if args == nil {
		args = []any{}
	}
	body, err := json.Marshal(invokeRequest{
		Class:     ClassName,
		Method:    m.Name,
		Signature: m.Signature,
		Args:      args,
	})
	if err != nil {
		return "", callError(m, err)
	}

	out, err := b.breaker.Execute(func() (interface{}, error) {
		return b.do(ctx, body)
	})
	if err != nil {
		return "", callError(m, err)
	}
	return out.(string), nil
}

func (b *HTTPBridge) do(ctx context.Context, body []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url+"/invoke", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: got %d", ErrBridgeStatus, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read reply: %w", err)
	}
	return string(data), nil
}

// Close implements Invoker.
func (b *HTTPBridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	b.client.CloseIdleConnections()
	return nil
}

var _ Invoker = (*HTTPBridge)(nil)
