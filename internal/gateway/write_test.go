package gateway_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tejusbharadwaj/healthgw/internal/bridge"
	"github.com/tejusbharadwaj/healthgw/internal/bridge/mocks"
	"github.com/tejusbharadwaj/healthgw/internal/events"
	"github.com/tejusbharadwaj/healthgw/internal/gateway"
	"github.com/tejusbharadwaj/healthgw/internal/metric"
	"github.com/tejusbharadwaj/healthgw/internal/models"
)

var fixedNow = time.Date(2024, 5, 15, 10, 0, 0, 0, time.UTC)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type recordingPublisher struct {
	events []events.Event
}

func (r *recordingPublisher) Publish(ctx context.Context, e events.Event) error {
	r.events = append(r.events, e)
	return nil
}

func newGateway(t *testing.T, b bridge.Invoker, cfg gateway.Config, opts ...gateway.Option) *gateway.Gateway {
	t.Helper()
	opts = append([]gateway.Option{gateway.WithClock(func() time.Time { return fixedNow })}, opts...)
	g, err := gateway.New(b, cfg, quietLogger(), opts...)
	require.NoError(t, err)
	return g
}

func TestWriteRejectsInvalidInputWithoutBridgeCall(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// No expectations: any bridge interaction fails the test.
	mockBridge := mocks.NewMockInvoker(ctrl)
	g := newGateway(t, mockBridge, gateway.DefaultConfig())

	tests := []struct {
		name    string
		req     gateway.WriteRequest
		message string
	}{
		{"height too low", gateway.WriteRequest{Kind: models.KindHeight, Value: 0.05}, "invalid height value: 0.05 m"},
		{"height too high", gateway.WriteRequest{Kind: models.KindHeight, Value: 3.2}, "invalid height value: 3.2 m"},
		{"weight too high", gateway.WriteRequest{Kind: models.KindWeight, Value: 500}, "invalid weight value: 500 kg"},
		{"weight zero", gateway.WriteRequest{Kind: models.KindWeight, Value: 0}, "invalid weight value: 0 kg"},
		{"systolic too low", gateway.WriteRequest{Kind: models.KindBloodPressure, Value: 70, Secondary: 50}, "invalid systolic pressure value: 70 mmHg"},
		{"diastolic too high", gateway.WriteRequest{Kind: models.KindBloodPressure, Value: 190, Secondary: 140}, "invalid diastolic pressure value: 140 mmHg"},
		{"systolic equals diastolic", gateway.WriteRequest{Kind: models.KindBloodPressure, Value: 100, Secondary: 100}, "systolic pressure must be greater than diastolic"},
		{"systolic below diastolic", gateway.WriteRequest{Kind: models.KindBloodPressure, Value: 90, Secondary: 120}, "systolic pressure must be greater than diastolic"},
		{"heart rate too low", gateway.WriteRequest{Kind: models.KindHeartRate, Value: 20}, "invalid heart rate value: 20 bpm"},
		{"heart rate fractional", gateway.WriteRequest{Kind: models.KindHeartRate, Value: 72.5}, "heart rate must be a whole number: 72.5 bpm"},
		{"glucose too high", gateway.WriteRequest{Kind: models.KindBloodGlucose, Value: 700}, "invalid blood glucose value: 700 mg/dL"},
		{"specimen out of range", gateway.WriteRequest{Kind: models.KindBloodGlucose, Value: 100, Glucose: gateway.GlucoseMeta{SpecimenSource: 5}}, "specimen_source is invalid (must be 0-4)"},
		{"meal type out of range", gateway.WriteRequest{Kind: models.KindBloodGlucose, Value: 100, Glucose: gateway.GlucoseMeta{MealType: 4}}, "meal_type is invalid (must be 0-3)"},
		{"relation out of range", gateway.WriteRequest{Kind: models.KindBloodGlucose, Value: 100, Glucose: gateway.GlucoseMeta{RelationToMeal: -1}}, "relation_to_meal is invalid (must be 0-4)"},
		{"unknown metric", gateway.WriteRequest{Kind: "steps", Value: 1000}, "unsupported metric: steps"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := g.Write(context.Background(), tt.req)
			assert.False(t, out.Success)
			assert.Equal(t, tt.message, out.Message)
			assert.Equal(t, tt.req.Kind, out.Kind)
		})
	}
}

func TestWriteClassifiesBridgeReply(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		success bool
		message string
	}{
		{"plain ok", "OK", true, "1.8 m"},
		{"ok with detail", "WRITE_OK id=42", true, "1.8 m"},
		{"error reply", "ERROR: Invalid height value", false, "ERROR: Invalid height value"},
		{"client missing", "CLIENT_NULL", false, "CLIENT_NULL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			d, _ := metric.Lookup(models.KindHeight)
			mockBridge := mocks.NewMockInvoker(ctrl)
			mockBridge.EXPECT().Ready(gomock.Any()).Return(nil)
			mockBridge.EXPECT().
				Call(gomock.Any(), bridge.WriteMethod(d), 1.8, "2024-05-15T10:00:00.000Z").
				Return(tt.reply, nil)

			g := newGateway(t, mockBridge, gateway.DefaultConfig())
			out := g.WriteHeight(context.Background(), 1.8)
			assert.Equal(t, tt.success, out.Success)
			assert.Equal(t, tt.message, out.Message)
		})
	}
}

func TestWriteBridgeArguments(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	bp, _ := metric.Lookup(models.KindBloodPressure)
	hr, _ := metric.Lookup(models.KindHeartRate)
	glu, _ := metric.Lookup(models.KindBloodGlucose)
	ts := "2024-05-15T10:00:00.000Z"

	mockBridge := mocks.NewMockInvoker(ctrl)
	mockBridge.EXPECT().Ready(gomock.Any()).Return(nil).Times(3)
	gomock.InOrder(
		mockBridge.EXPECT().Call(gomock.Any(), bridge.WriteMethod(bp), 120.0, 80.0, ts).Return("OK", nil),
		mockBridge.EXPECT().Call(gomock.Any(), bridge.WriteMethod(hr), int64(72), ts).Return("OK", nil),
		mockBridge.EXPECT().Call(gomock.Any(), bridge.WriteMethod(glu), 95.5, 2, 0, 0, ts).Return("OK", nil),
	)

	g := newGateway(t, mockBridge, gateway.DefaultConfig())
	ctx := context.Background()

	out := g.WriteBloodPressure(ctx, 120, 80)
	assert.True(t, out.Success)
	assert.Equal(t, "120/80 mmHg", out.Message)

	out = g.WriteHeartRate(ctx, 72)
	assert.True(t, out.Success)
	assert.Equal(t, "72 bpm", out.Message)

	out = g.WriteBloodGlucose(ctx, 95.5, gateway.DefaultGlucoseMeta())
	assert.True(t, out.Success)
	assert.Equal(t, "95.5 mg/dl", out.Message)
}

func TestWriteWeightExample(t *testing.T) {
	sim := bridge.NewSimulator()
	sim.SetGranted(true)
	pub := &recordingPublisher{}
	g := newGateway(t, sim, gateway.DefaultConfig(), gateway.WithPublisher(pub))
	ctx := context.Background()

	out := g.WriteWeight(ctx, 55.0)
	assert.True(t, out.Success)
	assert.Equal(t, "55 Kg", out.Message)
	assert.Equal(t, []string{"writeWeight"}, sim.Calls())

	out = g.WriteWeight(ctx, 500.0)
	assert.False(t, out.Success)
	assert.Contains(t, out.Message, "500")
	assert.Equal(t, []string{"writeWeight"}, sim.Calls(), "rejected write must not reach the bridge")

	require.Len(t, pub.events, 2)
	assert.Equal(t, events.TypeWrite, pub.events[0].Type)
	assert.True(t, pub.events[0].Write.Success)
	assert.False(t, pub.events[1].Write.Success)
}

func TestWriteInvalidContext(t *testing.T) {
	sim := bridge.NewSimulator()
	sim.SetValid(false)
	g := newGateway(t, sim, gateway.DefaultConfig())

	out := g.WriteHeight(context.Background(), 1.7)
	assert.False(t, out.Success)
	assert.Equal(t, "Activity is invalid", out.Message)
	assert.Empty(t, sim.Calls())
}

func TestWriteTransportError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockBridge := mocks.NewMockInvoker(ctrl)
	mockBridge.EXPECT().Ready(gomock.Any()).Return(nil)
	mockBridge.EXPECT().Call(gomock.Any(), gomock.Any(), gomock.Any()).
		Return("", errors.New("connection reset"))

	g := newGateway(t, mockBridge, gateway.DefaultConfig())
	out := g.WriteWeight(context.Background(), 70)
	assert.False(t, out.Success)
	assert.Contains(t, out.Message, "connection reset")
}

func TestWritePersianMessages(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	g := newGateway(t, mocks.NewMockInvoker(ctrl), gateway.Config{ReadWindowMonths: 1, Locale: "fa"})

	out := g.WriteHeight(context.Background(), 5)
	assert.False(t, out.Success)
	assert.Equal(t, "مقدار قد نامعتبر است: 5 متر", out.Message)

	out = g.WriteBloodPressure(context.Background(), 100, 110)
	assert.Equal(t, "فشار سیستولیک باید بزرگتر از دیاستولیک باشد", out.Message)
}

func TestNewValidatesArguments(t *testing.T) {
	_, err := gateway.New(nil, gateway.DefaultConfig(), quietLogger())
	assert.Error(t, err)

	_, err = gateway.New(bridge.NewSimulator(), gateway.Config{ReadWindowMonths: -1}, quietLogger())
	assert.Error(t, err)
}
