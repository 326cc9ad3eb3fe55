package gateway

import (
	"fmt"
	"strconv"
	"strings"
)

// Field keys used in validation messages.
const (
	fieldHeight    = "height"
	fieldWeight    = "weight"
	fieldSystolic  = "systolic"
	fieldDiastolic = "diastolic"
	fieldHeartRate = "heart_rate"
	fieldGlucose   = "blood_glucose"
)

type fieldLabel struct {
	name string
	unit string
}

// Messages is a catalogue of user facing validation messages.
type Messages struct {
	invalidValue    string
	labels          map[string]fieldLabel
	systolicTooLow  string
	enumOutOfRange  string
	wholeNumber     string
	contextInvalid  string
	unsupportedKind string
}

var catalogues = map[string]*Messages{
	"en": {
		invalidValue: "invalid %s value: %s %s",
		labels: map[string]fieldLabel{
			fieldHeight:    {"height", "m"},
			fieldWeight:    {"weight", "kg"},
			fieldSystolic:  {"systolic pressure", "mmHg"},
			fieldDiastolic: {"diastolic pressure", "mmHg"},
			fieldHeartRate: {"heart rate", "bpm"},
			fieldGlucose:   {"blood glucose", "mg/dL"},
		},
		systolicTooLow:  "systolic pressure must be greater than diastolic",
		enumOutOfRange:  "%s is invalid (must be %d-%d)",
		wholeNumber:     "heart rate must be a whole number: %s bpm",
		contextInvalid:  "Activity is invalid",
		unsupportedKind: "unsupported metric: %s",
	},
	"fa": {
		invalidValue: "مقدار %s نامعتبر است: %s %s",
		labels: map[string]fieldLabel{
			fieldHeight:    {"قد", "متر"},
			fieldWeight:    {"وزن", "کیلوگرم"},
			fieldSystolic:  {"فشار سیستولیک", "mmHg"},
			fieldDiastolic: {"فشار دیاستولیک", "mmHg"},
			fieldHeartRate: {"ضربان قلب", "bpm"},
			fieldGlucose:   {"قند خون", "mg/dL"},
		},
		systolicTooLow:  "فشار سیستولیک باید بزرگتر از دیاستولیک باشد",
		enumOutOfRange:  "%s نامعتبر است (باید %d-%d باشد)",
		wholeNumber:     "ضربان قلب باید عدد صحیح باشد: %s bpm",
		contextInvalid:  "Activity is invalid",
		unsupportedKind: "متریک پشتیبانی نمی‌شود: %s",
	},
}

// MessagesFor returns the catalogue for locale, falling back to English.
func MessagesFor(locale string) *Messages {
	if m, ok := catalogues[strings.ToLower(strings.TrimSpace(locale))]; ok {
		return m
	}
	return catalogues["en"]
}

// InvalidValue reports an out-of-range value for field.
func (m *Messages) InvalidValue(field string, v float64) string {
	l := m.labels[field]
	return fmt.Sprintf(m.invalidValue, l.name, formatNumber(v), l.unit)
}

// SystolicNotAboveDiastolic rejects a pressure pair with systolic <= diastolic.
func (m *Messages) SystolicNotAboveDiastolic() string { return m.systolicTooLow }

// EnumOutOfRange reports a glucose metadata code outside [min, max].
func (m *Messages) EnumOutOfRange(name string, min, max int) string {
	return fmt.Sprintf(m.enumOutOfRange, name, min, max)
}

// WholeNumber rejects a fractional heart rate.
func (m *Messages) WholeNumber(v float64) string {
	return fmt.Sprintf(m.wholeNumber, formatNumber(v))
}

// ContextInvalid is returned when the bridge has no usable context.
func (m *Messages) ContextInvalid() string { return m.contextInvalid }

// UnsupportedKind reports a write for a metric the gateway does not know.
func (m *Messages) UnsupportedKind(kind string) string {
	return fmt.Sprintf(m.unsupportedKind, kind)
}

// formatNumber prints v with the fewest digits needed: 55 -> "55", 1.8 -> "1.8".
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
