package server

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tejusbharadwaj/healthgw/internal/gateway"
	"github.com/tejusbharadwaj/healthgw/internal/metric"
	"github.com/tejusbharadwaj/healthgw/internal/models"
)

// datasetView is the wire form of a ReadResult.
type datasetView struct {
	ReadAt  time.Time                             `json:"read_at"`
	Samples map[models.Kind][]models.MetricSample `json:"samples"`
	Series  map[string][]models.MetricSample      `json:"series"`
	Count   int                                   `json:"count"`
}

type historyView struct {
	Kind        models.Kind             `json:"kind"`
	Window      string                  `json:"window"`
	Aggregation string                  `json:"aggregation"`
	Data        []models.TimeSeriesData `json:"data"`
}

// toStruct converts any JSON-encodable value into a protobuf Struct.
func toStruct(v interface{}) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, err
	}
	return out, nil
}

func datasetStruct(r *models.ReadResult) (*structpb.Struct, error) {
	if r == nil {
		r = models.NewReadResult(metric.Kinds())
	}
	return toStruct(datasetView{
		ReadAt:  r.ReadAt,
		Samples: r.Samples,
		Series:  r.Series(),
		Count:   r.Len(),
	})
}

// decodeWrite reads a Write request:
//
//	kind             string, required
//	value            number, required
//	secondary        number, diastolic pressure for blood_pressure
//	specimen_source  number, glucose only
//	meal_type        number, glucose only
//	relation_to_meal number, glucose only
func decodeWrite(in *structpb.Struct) (gateway.WriteRequest, error) {
	name := stringField(in, "kind")
	if name == "" {
		return gateway.WriteRequest{}, fmt.Errorf("kind is required")
	}
	kind, err := metric.ParseKind(name)
	if err != nil {
		return gateway.WriteRequest{}, err
	}

	value, ok := numberField(in, "value")
	if !ok {
		return gateway.WriteRequest{}, fmt.Errorf("value is required")
	}
	req := gateway.WriteRequest{Kind: kind, Value: value}

	if d, _ := metric.Lookup(kind); d.Paired() {
		secondary, ok := numberField(in, "secondary")
		if !ok {
			return gateway.WriteRequest{}, fmt.Errorf("secondary is required for %s", kind)
		}
		req.Secondary = secondary
	}

	if kind == models.KindBloodGlucose {
		req.Glucose = gateway.DefaultGlucoseMeta()
		for name, dst := range map[string]*int{
			"specimen_source":  &req.Glucose.SpecimenSource,
			"meal_type":        &req.Glucose.MealType,
			"relation_to_meal": &req.Glucose.RelationToMeal,
		} {
			v, ok := numberField(in, name)
			if !ok {
				continue
			}
			if v != math.Trunc(v) {
				return gateway.WriteRequest{}, fmt.Errorf("%s must be a whole number", name)
			}
			*dst = int(v)
		}
	}
	return req, nil
}

func stringField(s *structpb.Struct, name string) string {
	return s.GetFields()[name].GetStringValue()
}

func numberField(s *structpb.Struct, name string) (float64, bool) {
	v, ok := s.GetFields()[name]
	if !ok {
		return 0, false
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, false
	}
	return n.NumberValue, true
}

func timeField(s *structpb.Struct, name string) (time.Time, error) {
	raw := stringField(s, name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s time: %q", name, raw)
	}
	return t, nil
}
