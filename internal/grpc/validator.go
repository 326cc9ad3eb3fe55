package server

import (
	"fmt"
	"time"

	"github.com/tejusbharadwaj/healthgw/internal/database"
	"github.com/tejusbharadwaj/healthgw/internal/metric"
	"github.com/tejusbharadwaj/healthgw/internal/models"
)

const maxTimeRange = 2 * 365 * 24 * time.Hour

// HistoryQuery is a validated History request.
type HistoryQuery struct {
	Kind        models.Kind
	Start, End  time.Time
	Window      string
	Aggregation string
}

type RequestValidator struct {
	validWindows      map[string]string
	validAggregations map[string]bool
}

func NewRequestValidator() *RequestValidator {
	return &RequestValidator{
		validWindows:      database.Windows,
		validAggregations: database.Aggregations,
	}
}

// Validate checks a History request and resolves the metric name.
func (v *RequestValidator) Validate(kind string, start, end time.Time, window, aggregation string) (HistoryQuery, error) {
	k, err := metric.ParseKind(kind)
	if err != nil {
		return HistoryQuery{}, err
	}

	if start.IsZero() || end.IsZero() {
		return HistoryQuery{}, fmt.Errorf("missing timestamp")
	}

	if start.After(end) {
		return HistoryQuery{}, fmt.Errorf("start time must be before end time")
	}

	if end.Sub(start) > maxTimeRange {
		return HistoryQuery{}, fmt.Errorf("time range exceeds maximum allowed")
	}

	if _, ok := v.validWindows[window]; !ok {
		return HistoryQuery{}, fmt.Errorf("invalid window: %s", window)
	}

	if aggregation == "" {
		return HistoryQuery{}, fmt.Errorf("invalid aggregation")
	}
	if !v.validAggregations[aggregation] {
		return HistoryQuery{}, fmt.Errorf("invalid aggregation: %s", aggregation)
	}

	return HistoryQuery{Kind: k, Start: start, End: end, Window: window, Aggregation: aggregation}, nil
}
