package events

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/tejusbharadwaj/healthgw/internal/models"
)

// SampleWriter persists samples of one metric.
type SampleWriter interface {
	BatchInsertSamples(ctx context.Context, kind models.Kind, samples []models.MetricSample) error
}

// StoreSink persists published datasets. Write events are ignored.
type StoreSink struct {
	writer SampleWriter
}

func NewStoreSink(w SampleWriter) *StoreSink {
	return &StoreSink{writer: w}
}

// Publish implements Publisher. Every metric is attempted in name order; the
// returned error joins the failed inserts.
func (s *StoreSink) Publish(ctx context.Context, e Event) error {
	if e.Type != TypeDataset || e.Dataset == nil {
		return nil
	}

	kinds := make([]models.Kind, 0, len(e.Dataset.Samples))
	for kind, samples := range e.Dataset.Samples {
		if len(samples) > 0 {
			kinds = append(kinds, kind)
		}
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	var errs []error
	for _, kind := range kinds {
		if err := s.writer.BatchInsertSamples(ctx, kind, e.Dataset.Samples[kind]); err != nil {
			errs = append(errs, fmt.Errorf("failed to store %s samples: %w", kind, err))
		}
	}
	return errors.Join(errs...)
}

var _ Publisher = (*StoreSink)(nil)
