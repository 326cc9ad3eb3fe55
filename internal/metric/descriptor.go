// Package metric describes the health metrics known to the gateway.
//
// A Descriptor carries everything that differs between metrics: the bridge
// methods used to read and write them, the sentinels the bridge returns when
// there is nothing to read, the JSON fields of a read record and the accepted
// physiological range. Gateway code is written once against descriptors.
package metric

import (
	"fmt"
	"strings"

	"github.com/tejusbharadwaj/healthgw/internal/models"
)

// Range is an inclusive numeric interval.
type Range struct {
	Min float64
	Max float64
}

// Contains reports whether v lies inside the range.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Descriptor describes one metric kind.
type Descriptor struct {
	Kind models.Kind

	// Bridge methods.
	ReadMethod     string
	WriteMethod    string
	WriteSignature string

	// NoDataTokens are the sentinels meaning "no records in range".
	NoDataTokens []string

	// TimeFields, ValueFields and SecondaryFields list accepted JSON keys in
	// order of preference.
	TimeFields      []string
	ValueFields     []string
	SecondaryFields []string

	Range          Range
	SecondaryRange *Range
	Unit           string
}

// Paired reports whether samples of this metric carry a secondary value.
func (d Descriptor) Paired() bool {
	return len(d.SecondaryFields) > 0
}

// IsNoData reports whether raw is one of the metric's no-data sentinels.
func (d Descriptor) IsNoData(raw string) bool {
	raw = strings.TrimSpace(raw)
	for _, t := range d.NoDataTokens {
		if raw == t {
			return true
		}
	}
	return false
}

var defaultTimeFields = []string{"time", "timestamp"}

var descriptors = []Descriptor{
	{
		Kind:           models.KindHeight,
		ReadMethod:     "readHeight",
		WriteMethod:    "writeHeight",
		WriteSignature: "(DLjava/lang/String;)Ljava/lang/String;",
		NoDataTokens:   []string{"NO_HEIGHT_DATA"},
		TimeFields:     defaultTimeFields,
		ValueFields:    []string{"height_m"},
		Range:          Range{Min: 0.1, Max: 3.0},
		Unit:           "m",
	},
	{
		Kind:           models.KindWeight,
		ReadMethod:     "readWeight",
		WriteMethod:    "writeWeight",
		WriteSignature: "(DLjava/lang/String;)Ljava/lang/String;",
		NoDataTokens:   []string{"NO_WEIGHT_DATA"},
		TimeFields:     defaultTimeFields,
		ValueFields:    []string{"weight_kg"},
		Range:          Range{Min: 0.1, Max: 300},
		Unit:           "Kg",
	},
	{
		Kind:            models.KindBloodPressure,
		ReadMethod:      "readBloodPressure",
		WriteMethod:     "writeBloodPressure",
		WriteSignature:  "(DDLjava/lang/String;)Ljava/lang/String;",
		NoDataTokens:    []string{"NO_BP_DATA"},
		TimeFields:      defaultTimeFields,
		ValueFields:     []string{"systolic", "systolic_mmhg"},
		SecondaryFields: []string{"diastolic", "diastolic_mmhg"},
		Range:           Range{Min: 80, Max: 200},
		SecondaryRange:  &Range{Min: 40, Max: 130},
		Unit:            "mmHg",
	},
	{
		Kind:           models.KindHeartRate,
		ReadMethod:     "readHeartRate",
		WriteMethod:    "writeHeartRate",
		WriteSignature: "(JLjava/lang/String;)Ljava/lang/String;",
		NoDataTokens:   []string{"NO_HEART_RATE_DATA"},
		TimeFields:     defaultTimeFields,
		ValueFields:    []string{"bpm"},
		Range:          Range{Min: 30, Max: 250},
		Unit:           "bpm",
	},
	{
		Kind:           models.KindBloodGlucose,
		ReadMethod:     "readBloodGlucose",
		WriteMethod:    "writeBloodGlucose",
		WriteSignature: "(DIIILjava/lang/String;)Ljava/lang/String;",
		// The bridge has shipped both spellings.
		NoDataTokens: []string{"NO_BLOOD_GLUCOSE_DATA", "NO_GLUCOSE_DATA"},
		TimeFields:   defaultTimeFields,
		ValueFields:  []string{"glucose_mg_dl"},
		Range:        Range{Min: 20, Max: 600},
		Unit:         "mg/dl",
	},
}

// Glucose metadata bounds, matching the platform's enumerations.
var (
	SpecimenSourceRange = Range{Min: 0, Max: 4}
	MealTypeRange       = Range{Min: 0, Max: 3}
	RelationToMealRange = Range{Min: 0, Max: 4}
)

// Default glucose metadata: capillary blood, unknown meal, unknown relation.
const (
	DefaultSpecimenSource = 2
	DefaultMealType       = 0
	DefaultRelationToMeal = 0
)

// All returns the descriptors in read-cycle order.
func All() []Descriptor {
	out := make([]Descriptor, len(descriptors))
	copy(out, descriptors)
	return out
}

// Kinds returns every known kind in read-cycle order.
func Kinds() []models.Kind {
	out := make([]models.Kind, len(descriptors))
	for i, d := range descriptors {
		out[i] = d.Kind
	}
	return out
}

// Lookup returns the descriptor for kind.
func Lookup(kind models.Kind) (Descriptor, bool) {
	for _, d := range descriptors {
		if d.Kind == kind {
			return d, true
		}
	}
	return Descriptor{}, false
}

// ParseKind maps a user supplied name onto a Kind.
func ParseKind(name string) (models.Kind, error) {
	k := models.Kind(strings.ToLower(strings.TrimSpace(name)))
	switch k {
	case "bp":
		k = models.KindBloodPressure
	case "glucose":
		k = models.KindBloodGlucose
	}
	if _, ok := Lookup(k); !ok {
		return "", fmt.Errorf("unknown metric: %q", name)
	}
	return k, nil
}
