package gateway

import (
	"context"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/tejusbharadwaj/healthgw/internal/bridge"
	"github.com/tejusbharadwaj/healthgw/internal/events"
	"github.com/tejusbharadwaj/healthgw/internal/metric"
	"github.com/tejusbharadwaj/healthgw/internal/models"
)

// GlucoseMeta is the enumerated metadata attached to a glucose reading.
type GlucoseMeta struct {
	SpecimenSource int
	MealType       int
	RelationToMeal int
}

// DefaultGlucoseMeta returns the metadata used when none is supplied.
func DefaultGlucoseMeta() GlucoseMeta {
	return GlucoseMeta{
		SpecimenSource: metric.DefaultSpecimenSource,
		MealType:       metric.DefaultMealType,
		RelationToMeal: metric.DefaultRelationToMeal,
	}
}

// WriteRequest is a kind-agnostic write. Secondary is only read for blood
// pressure (diastolic) and Glucose only for blood glucose.
type WriteRequest struct {
	Kind      models.Kind
	Value     float64
	Secondary float64
	Glucose   GlucoseMeta
}

// WriteHeight records a height in meters.
func (g *Gateway) WriteHeight(ctx context.Context, meters float64) models.WriteOutcome {
	return g.Write(ctx, WriteRequest{Kind: models.KindHeight, Value: meters})
}

// WriteWeight records a weight in kilograms.
func (g *Gateway) WriteWeight(ctx context.Context, kg float64) models.WriteOutcome {
	return g.Write(ctx, WriteRequest{Kind: models.KindWeight, Value: kg})
}

// WriteBloodPressure records a systolic/diastolic pair in mmHg.
func (g *Gateway) WriteBloodPressure(ctx context.Context, systolic, diastolic float64) models.WriteOutcome {
	return g.Write(ctx, WriteRequest{Kind: models.KindBloodPressure, Value: systolic, Secondary: diastolic})
}

// WriteHeartRate records a heart rate in beats per minute.
func (g *Gateway) WriteHeartRate(ctx context.Context, bpm int) models.WriteOutcome {
	return g.Write(ctx, WriteRequest{Kind: models.KindHeartRate, Value: float64(bpm)})
}

// WriteBloodGlucose records a glucose level in mg/dL.
func (g *Gateway) WriteBloodGlucose(ctx context.Context, mgdl float64, meta GlucoseMeta) models.WriteOutcome {
	return g.Write(ctx, WriteRequest{Kind: models.KindBloodGlucose, Value: mgdl, Glucose: meta})
}

// Write validates req, forwards it to the bridge and publishes the outcome.
// Invalid input never reaches the bridge.
func (g *Gateway) Write(ctx context.Context, req WriteRequest) models.WriteOutcome {
	g.mu.Lock()
	outcome, result := g.write(ctx, req)
	g.mu.Unlock()

	g.metrics.observeWrite(string(req.Kind), result)
	g.publish(ctx, events.NewWriteEvent(outcome))
	return outcome
}

func (g *Gateway) write(ctx context.Context, req WriteRequest) (models.WriteOutcome, string) {
	log := g.logger.WithField("kind", req.Kind)

	d, ok := metric.Lookup(req.Kind)
	if !ok {
		log.Warn("Write for unknown metric")
		return g.failure(req.Kind, g.messages.UnsupportedKind(string(req.Kind))), "rejected"
	}

	if msg, valid := g.validate(d, req); !valid {
		log.WithFields(logrus.Fields{
			"value":     req.Value,
			"secondary": req.Secondary,
			"reason":    msg,
		}).Warn("Rejected invalid write")
		return g.failure(req.Kind, msg), "rejected"
	}

	if err := g.bridge.Ready(ctx); err != nil {
		log.WithError(err).Error("Bridge context is invalid")
		return g.failure(req.Kind, g.messages.ContextInvalid()), "failed"
	}

	args := append(writeArgs(req), g.timestamp(g.now()))
	raw, err := g.call(ctx, bridge.WriteMethod(d), args...)
	if err != nil {
		log.WithError(err).Error("Bridge write failed")
		return g.failure(req.Kind, err.Error()), "failed"
	}

	res := bridge.DecodeWrite(raw)
	if !res.OK() {
		log.WithField("reply", res.Detail).Error("Bridge rejected write")
		return g.failure(req.Kind, res.Detail), "failed"
	}

	msg := successMessage(d, req)
	log.WithField("message", msg).Info("Write stored")
	return models.WriteOutcome{Kind: req.Kind, Success: true, Message: msg}, "success"
}

func (g *Gateway) failure(kind models.Kind, msg string) models.WriteOutcome {
	return models.WriteOutcome{Kind: kind, Success: false, Message: msg}
}

// validate checks req against the descriptor ranges. It returns the
// user facing message when the request is invalid.
func (g *Gateway) validate(d metric.Descriptor, req WriteRequest) (string, bool) {
	m := g.messages

	switch d.Kind {
	case models.KindHeight:
		if !d.Range.Contains(req.Value) {
			return m.InvalidValue(fieldHeight, req.Value), false
		}
	case models.KindWeight:
		if !d.Range.Contains(req.Value) {
			return m.InvalidValue(fieldWeight, req.Value), false
		}
	case models.KindBloodPressure:
		if !d.Range.Contains(req.Value) {
			return m.InvalidValue(fieldSystolic, req.Value), false
		}
		if !d.SecondaryRange.Contains(req.Secondary) {
			return m.InvalidValue(fieldDiastolic, req.Secondary), false
		}
		if req.Value <= req.Secondary {
			return m.SystolicNotAboveDiastolic(), false
		}
	case models.KindHeartRate:
		if !d.Range.Contains(req.Value) {
			return m.InvalidValue(fieldHeartRate, req.Value), false
		}
		if req.Value != math.Trunc(req.Value) {
			return m.WholeNumber(req.Value), false
		}
	case models.KindBloodGlucose:
		if !d.Range.Contains(req.Value) {
			return m.InvalidValue(fieldGlucose, req.Value), false
		}
		meta := req.Glucose
		if !metric.SpecimenSourceRange.Contains(float64(meta.SpecimenSource)) {
			return m.EnumOutOfRange("specimen_source", 0, 4), false
		}
		if !metric.MealTypeRange.Contains(float64(meta.MealType)) {
			return m.EnumOutOfRange("meal_type", 0, 3), false
		}
		if !metric.RelationToMealRange.Contains(float64(meta.RelationToMeal)) {
			return m.EnumOutOfRange("relation_to_meal", 0, 4), false
		}
	default:
		return m.UnsupportedKind(string(d.Kind)), false
	}
	return "", true
}

// writeArgs returns the bridge arguments that precede the timestamp.
func writeArgs(req WriteRequest) []any {
	switch req.Kind {
	case models.KindBloodPressure:
		return []any{req.Value, req.Secondary}
	case models.KindHeartRate:
		return []any{int64(req.Value)}
	case models.KindBloodGlucose:
		return []any{req.Value, req.Glucose.SpecimenSource, req.Glucose.MealType, req.Glucose.RelationToMeal}
	}
	return []any{req.Value}
}

func successMessage(d metric.Descriptor, req WriteRequest) string {
	switch d.Kind {
	case models.KindBloodPressure:
		return fmt.Sprintf("%s/%s %s", formatNumber(req.Value), formatNumber(req.Secondary), d.Unit)
	case models.KindHeartRate:
		return fmt.Sprintf("%d %s", int64(req.Value), d.Unit)
	}
	return fmt.Sprintf("%s %s", formatNumber(req.Value), d.Unit)
}
