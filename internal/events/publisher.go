// Package events carries gateway results toward display clients.
package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tejusbharadwaj/healthgw/internal/models"
)

// Type distinguishes the two kinds of published events.
type Type string

const (
	TypeDataset Type = "dataset"
	TypeWrite   Type = "write"
)

// Event is one published gateway result. Exactly one of Dataset and Write is
// set, matching Type.
type Event struct {
	ID      string               `json:"id"`
	Type    Type                 `json:"type"`
	At      time.Time            `json:"at"`
	Dataset *models.ReadResult   `json:"dataset,omitempty"`
	Write   *models.WriteOutcome `json:"write,omitempty"`
}

// NewDatasetEvent wraps a completed read cycle.
func NewDatasetEvent(r *models.ReadResult) Event {
	return Event{ID: uuid.NewString(), Type: TypeDataset, At: time.Now().UTC(), Dataset: r}
}

// NewWriteEvent wraps a write outcome.
func NewWriteEvent(o models.WriteOutcome) Event {
	return Event{ID: uuid.NewString(), Type: TypeWrite, At: time.Now().UTC(), Write: &o}
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Multi fans an event out to several publishers. Every publisher is tried;
// the returned error joins the individual failures.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, Event) error { return nil }

// Late forwards to a publisher set after construction, for consumers that
// are built after the gateway. Events published before Set are dropped.
type Late struct {
	mu sync.RWMutex
	p  Publisher
}

// Set installs the target publisher.
func (l *Late) Set(p Publisher) {
	l.mu.Lock()
	l.p = p
	l.mu.Unlock()
}

func (l *Late) Publish(ctx context.Context, e Event) error {
	l.mu.RLock()
	p := l.p
	l.mu.RUnlock()
	if p == nil {
		return nil
	}
	return p.Publish(ctx, e)
}
