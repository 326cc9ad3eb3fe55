package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tejusbharadwaj/healthgw/internal/bridge"
	"github.com/tejusbharadwaj/healthgw/internal/metric"
	"github.com/tejusbharadwaj/healthgw/internal/models"
)

// Refresh runs one read cycle. On success the complete dataset is published
// and returned; a dataset overtaken by a newer cycle is not published.
// ErrPermissionPending and ErrSecurity abort the cycle without
// publishing anything.
func (g *Gateway) Refresh(ctx context.Context) (*models.ReadResult, error) {
	g.mu.Lock()
	result, err := g.readCycle(ctx)
	var cycle uint64
	if err == nil {
		g.cycle++
		cycle = g.cycle
		g.latest = result
	}
	g.mu.Unlock()

	switch {
	case err == nil:
		g.metrics.observeCycle("published")
	case errors.Is(err, ErrPermissionPending):
		g.metrics.observeCycle("permission_pending")
	case errors.Is(err, ErrSecurity):
		g.metrics.observeCycle("security_error")
	default:
		g.metrics.observeCycle("failed")
	}
	if err != nil {
		return nil, err
	}

	g.publishDataset(ctx, cycle, result)
	return result, nil
}

func (g *Gateway) readCycle(ctx context.Context) (*models.ReadResult, error) {
	result := models.NewReadResult(metric.Kinds())

	if err := g.bridge.Ready(ctx); err != nil {
		g.logger.WithError(err).Error("Bridge context is invalid")
		return nil, err
	}

	raw, err := g.call(ctx, bridge.MethodCheckPermissions)
	if err != nil {
		g.logger.WithError(err).Error("Permission check failed")
		return nil, fmt.Errorf("permission check: %w", err)
	}
	perm := bridge.DecodePermissions(raw)
	g.logger.WithField("permissions", raw).Debug("Permission state")

	if !perm.OK() {
		g.logger.Warn("Permissions not granted, requesting")
		if err := g.requestPermissions(ctx); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrPermissionPending, err)
		}
		return nil, ErrPermissionPending
	}

	now := g.now()
	var args []any
	windowed := g.windowMonths > 0
	if windowed {
		start := now.AddDate(0, -g.windowMonths, 0)
		args = []any{g.timestamp(start), g.timestamp(now)}
		g.logger.WithFields(logrus.Fields{
			"start": args[0],
			"end":   args[1],
		}).Debug("Reading health data")
	}

	for _, d := range g.descriptors {
		log := g.logger.WithField("kind", d.Kind)

		raw, err := g.call(ctx, bridge.ReadMethod(d, windowed), args...)
		if err != nil {
			log.WithError(err).Warn("Read failed, treating as no data")
			g.metrics.observeMetricRead(string(d.Kind), "transport_error")
			continue
		}

		res := bridge.DecodeRead(raw, d.IsNoData)
		g.metrics.observeMetricRead(string(d.Kind), res.Status.String())

		switch res.Status {
		case bridge.StatusSecurityError:
			log.Error("Security error, aborting read cycle")
			return nil, fmt.Errorf("%w: %s", ErrSecurity, d.Kind)
		case bridge.StatusNoData:
			log.Debug("No data")
			continue
		case bridge.StatusOK:
		default:
			log.WithField("reply", truncate(res.Detail, 80)).Warn("Read returned an error, treating as no data")
			continue
		}

		samples, skipped, err := ParseSamples(d, res.Payload)
		if err != nil {
			log.WithError(err).Warn("Malformed read payload, treating as no data")
			continue
		}
		if skipped > 0 {
			log.WithField("skipped", skipped).Warn("Skipped malformed records")
		}
		result.Samples[d.Kind] = samples
		log.WithField("samples", len(samples)).Debug("Read complete")
	}

	result.ReadAt = now.UTC()
	return result, nil
}

// ParseSamples decodes a JSON array of read records for d. Records without a
// parsable timestamp or value are skipped and counted.
func ParseSamples(d metric.Descriptor, payload string) ([]models.MetricSample, int, error) {
	var records []map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &records); err != nil {
		return nil, 0, fmt.Errorf("decode %s records: %w", d.Kind, err)
	}

	samples := make([]models.MetricSample, 0, len(records))
	skipped := 0
	for _, rec := range records {
		ts, ok := recordTime(rec, d.TimeFields)
		if !ok {
			skipped++
			continue
		}
		value, ok := recordNumber(rec, d.ValueFields)
		if !ok {
			skipped++
			continue
		}
		s := models.MetricSample{TimestampMillis: ts.UnixMilli(), Value: value}
		if d.Paired() {
			sec, ok := recordNumber(rec, d.SecondaryFields)
			if !ok {
				skipped++
				continue
			}
			s.Secondary = &sec
		}
		samples = append(samples, s)
	}
	return samples, skipped, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

func recordTime(rec map[string]json.RawMessage, fields []string) (time.Time, bool) {
	for _, f := range fields {
		raw, ok := rec[f]
		if !ok || string(raw) == "null" {
			continue
		}
		var str string
		if err := json.Unmarshal(raw, &str); err == nil {
			for _, layout := range timeLayouts {
				if t, err := time.Parse(layout, str); err == nil {
					return t, true
				}
			}
			return time.Time{}, false
		}
		// Some bridge builds send epoch milliseconds.
		var ms int64
		if err := json.Unmarshal(raw, &ms); err == nil {
			return time.UnixMilli(ms), true
		}
	}
	return time.Time{}, false
}

func recordNumber(rec map[string]json.RawMessage, fields []string) (float64, bool) {
	for _, f := range fields {
		raw, ok := rec[f]
		if !ok || string(raw) == "null" {
			continue
		}
		var v float64
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, true
		}
	}
	return 0, false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
