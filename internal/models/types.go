package models

import "time"

// Kind identifies a health metric handled by the gateway.
type Kind string

const (
	KindHeight        Kind = "height"
	KindWeight        Kind = "weight"
	KindBloodPressure Kind = "blood_pressure"
	KindHeartRate     Kind = "heart_rate"
	KindBloodGlucose  Kind = "blood_glucose"
)

// Series names of a published dataset. Blood pressure is split into two
// series for charting.
const (
	SeriesHeight       = "height"
	SeriesWeight       = "weight"
	SeriesSystolic     = "systolic"
	SeriesDiastolic    = "diastolic"
	SeriesHeartRate    = "heart_rate"
	SeriesBloodGlucose = "blood_glucose"
)

// MetricSample is one timestamped measurement. Secondary is only set for
// paired metrics (diastolic for blood pressure).
type MetricSample struct {
	TimestampMillis int64    `json:"time_ms"`
	Value           float64  `json:"value"`
	Secondary       *float64 `json:"secondary,omitempty"`
}

// Time returns the sample timestamp in UTC.
func (s MetricSample) Time() time.Time {
	return time.UnixMilli(s.TimestampMillis).UTC()
}

// ReadResult holds the samples produced by one read cycle, keyed by metric.
type ReadResult struct {
	Samples map[Kind][]MetricSample `json:"samples"`
	ReadAt  time.Time               `json:"read_at"`
}

// NewReadResult returns an empty result with a list for every kind.
func NewReadResult(kinds []Kind) *ReadResult {
	r := &ReadResult{Samples: make(map[Kind][]MetricSample, len(kinds))}
	for _, k := range kinds {
		r.Samples[k] = []MetricSample{}
	}
	return r
}

// Series flattens the result into the six chart series.
func (r *ReadResult) Series() map[string][]MetricSample {
	out := map[string][]MetricSample{
		SeriesHeight:       {},
		SeriesWeight:       {},
		SeriesSystolic:     {},
		SeriesDiastolic:    {},
		SeriesHeartRate:    {},
		SeriesBloodGlucose: {},
	}
	if r == nil {
		return out
	}
	out[SeriesHeight] = append(out[SeriesHeight], r.Samples[KindHeight]...)
	out[SeriesWeight] = append(out[SeriesWeight], r.Samples[KindWeight]...)
	out[SeriesHeartRate] = append(out[SeriesHeartRate], r.Samples[KindHeartRate]...)
	out[SeriesBloodGlucose] = append(out[SeriesBloodGlucose], r.Samples[KindBloodGlucose]...)
	for _, s := range r.Samples[KindBloodPressure] {
		out[SeriesSystolic] = append(out[SeriesSystolic], MetricSample{
			TimestampMillis: s.TimestampMillis,
			Value:           s.Value,
		})
		if s.Secondary != nil {
			out[SeriesDiastolic] = append(out[SeriesDiastolic], MetricSample{
				TimestampMillis: s.TimestampMillis,
				Value:           *s.Secondary,
			})
		}
	}
	return out
}

// Len returns the total number of samples across all kinds.
func (r *ReadResult) Len() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, s := range r.Samples {
		n += len(s)
	}
	return n
}

// WriteOutcome is the result of a single write request.
type WriteOutcome struct {
	Kind    Kind   `json:"kind"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// TimeSeriesData represents a single aggregated history point
type TimeSeriesData struct {
	Time      time.Time `json:"time"`
	Value     float64   `json:"value"`
	Secondary *float64  `json:"secondary,omitempty"`
}
