package server_test

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tejusbharadwaj/healthgw/internal/bridge"
	"github.com/tejusbharadwaj/healthgw/internal/database/mocks"
	"github.com/tejusbharadwaj/healthgw/internal/events"
	"github.com/tejusbharadwaj/healthgw/internal/gateway"
	server "github.com/tejusbharadwaj/healthgw/internal/grpc"
	"github.com/tejusbharadwaj/healthgw/internal/models"
)

type harness struct {
	client      *server.HealthGatewayClient
	health      grpc_health_v1.HealthClient
	sim         *bridge.Simulator
	repo        *mocks.MockSampleRepository
	broadcaster *events.Broadcaster
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newHarness(t *testing.T, cfg server.ServerConfig) *harness {
	t.Helper()
	ctrl := gomock.NewController(t)
	logger := quietLogger()

	sim := bridge.NewSimulator()
	repo := mocks.NewMockSampleRepository(ctrl)
	broadcaster := events.NewBroadcaster(logger)

	invalidator := &events.Late{}
	gw, err := gateway.New(sim, gateway.DefaultConfig(), logger,
		gateway.WithPublisher(events.Multi{broadcaster, invalidator}))
	require.NoError(t, err)

	svc := server.NewHealthGatewayService(gw, repo, broadcaster, logger)
	srv, err := server.SetupServer(svc, cfg, logger, prometheus.NewRegistry())
	require.NoError(t, err)
	invalidator.Set(srv)

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return &harness{
		client:      server.NewHealthGatewayClient(conn),
		health:      grpc_health_v1.NewHealthClient(conn),
		sim:         sim,
		repo:        repo,
		broadcaster: broadcaster,
	}
}

func mustStruct(t *testing.T, m map[string]interface{}) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func TestWrite(t *testing.T) {
	h := newHarness(t, server.DefaultServerConfig())
	h.sim.SetGranted(true)
	ctx := context.Background()

	tests := []struct {
		name    string
		request map[string]interface{}
		success bool
		message string
		code    codes.Code
	}{
		{
			name:    "weight accepted",
			request: map[string]interface{}{"kind": "weight", "value": 55.0},
			success: true,
			message: "55 Kg",
		},
		{
			name:    "weight out of range",
			request: map[string]interface{}{"kind": "weight", "value": 500.0},
			message: "invalid weight value: 500 kg",
		},
		{
			name:    "blood pressure",
			request: map[string]interface{}{"kind": "bp", "value": 120.0, "secondary": 80.0},
			success: true,
			message: "120/80 mmHg",
		},
		{
			name:    "glucose with metadata",
			request: map[string]interface{}{"kind": "blood_glucose", "value": 95.5, "meal_type": 1.0},
			success: true,
			message: "95.5 mg/dl",
		},
		{
			name:    "unknown metric",
			request: map[string]interface{}{"kind": "steps", "value": 1000.0},
			code:    codes.InvalidArgument,
		},
		{
			name:    "missing value",
			request: map[string]interface{}{"kind": "height"},
			code:    codes.InvalidArgument,
		},
		{
			name:    "missing diastolic",
			request: map[string]interface{}{"kind": "blood_pressure", "value": 120.0},
			code:    codes.InvalidArgument,
		},
		{
			name:    "fractional meal type",
			request: map[string]interface{}{"kind": "glucose", "value": 90.0, "meal_type": 1.5},
			code:    codes.InvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := h.client.Write(ctx, mustStruct(t, tt.request))
			if tt.code != codes.OK {
				require.Error(t, err)
				assert.Equal(t, tt.code, status.Code(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.success, resp.Fields["success"].GetBoolValue())
			assert.Equal(t, tt.message, resp.Fields["message"].GetStringValue())
		})
	}
}

func TestRefreshAndLatest(t *testing.T) {
	h := newHarness(t, server.DefaultServerConfig())
	h.sim.Seed(models.KindHeartRate, time.Now().Add(-time.Hour), 72, nil)
	ctx := context.Background()

	latest, err := h.client.Latest(ctx, &emptypb.Empty{})
	require.NoError(t, err)
	assert.Equal(t, 0.0, latest.Fields["count"].GetNumberValue())

	_, err = h.client.Refresh(ctx, &emptypb.Empty{})
	require.Error(t, err)
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	resp, err := h.client.Refresh(ctx, &emptypb.Empty{})
	require.NoError(t, err)
	assert.Equal(t, 1.0, resp.Fields["count"].GetNumberValue())

	series := resp.Fields["series"].GetStructValue().Fields
	rates := series[models.SeriesHeartRate].GetListValue().GetValues()
	require.Len(t, rates, 1)
	assert.Equal(t, 72.0, rates[0].GetStructValue().Fields["value"].GetNumberValue())
	assert.Empty(t, series[models.SeriesSystolic].GetListValue().GetValues())

	latest, err = h.client.Latest(ctx, &emptypb.Empty{})
	require.NoError(t, err)
	assert.Equal(t, 1.0, latest.Fields["count"].GetNumberValue())
}

func TestRefreshSecurityError(t *testing.T) {
	h := newHarness(t, server.DefaultServerConfig())
	h.sim.SetGranted(true)
	h.sim.Override("readHeight", "SECURITY_ERROR")

	_, err := h.client.Refresh(context.Background(), &emptypb.Empty{})
	require.Error(t, err)
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
}

func TestRequestPermissionsAndHealth(t *testing.T) {
	h := newHarness(t, server.DefaultServerConfig())
	ctx := context.Background()

	check := func() grpc_health_v1.HealthCheckResponse_ServingStatus {
		resp, err := h.health.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: server.ServiceName})
		require.NoError(t, err)
		return resp.Status
	}
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, check())

	h.sim.SetInstalled(false)
	_, err := h.client.RequestPermissions(ctx, &emptypb.Empty{})
	require.Error(t, err)
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, check())

	h.sim.SetInstalled(true)
	_, err = h.client.RequestPermissions(ctx, &emptypb.Empty{})
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, check())

	_, err = h.health.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: "unknown"})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestHistory(t *testing.T) {
	h := newHarness(t, server.DefaultServerConfig())
	ctx := context.Background()

	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(48 * time.Hour)
	request := mustStruct(t, map[string]interface{}{
		"kind":        "weight",
		"start":       start.Format(time.RFC3339),
		"end":         end.Format(time.RFC3339),
		"window":      "1d",
		"aggregation": "AVG",
	})

	h.repo.EXPECT().
		Query(gomock.Any(), models.KindWeight, start, end, "1d", "AVG").
		Return([]models.TimeSeriesData{
			{Time: start, Value: 70.5},
			{Time: start.Add(24 * time.Hour), Value: 70.1},
		}, nil).
		Times(1)

	resp, err := h.client.History(ctx, request)
	require.NoError(t, err)
	data := resp.Fields["data"].GetListValue().GetValues()
	require.Len(t, data, 2)
	assert.Equal(t, 70.5, data[0].GetStructValue().Fields["value"].GetNumberValue())
	assert.Equal(t, "weight", resp.Fields["kind"].GetStringValue())

	// Served from cache: the repository expects exactly one query.
	again, err := h.client.History(ctx, request)
	require.NoError(t, err)
	assert.Len(t, again.Fields["data"].GetListValue().GetValues(), 2)
}

func TestHistoryCacheInvalidatedByDataset(t *testing.T) {
	h := newHarness(t, server.DefaultServerConfig())
	h.sim.SetGranted(true)
	ctx := context.Background()

	request := mustStruct(t, map[string]interface{}{
		"kind":        "height",
		"start":       "2024-05-01T00:00:00Z",
		"end":         "2024-05-02T00:00:00Z",
		"window":      "1h",
		"aggregation": "MAX",
	})
	h.repo.EXPECT().
		Query(gomock.Any(), models.KindHeight, gomock.Any(), gomock.Any(), "1h", "MAX").
		Return(nil, nil).
		Times(2)

	_, err := h.client.History(ctx, request)
	require.NoError(t, err)
	_, err = h.client.Refresh(ctx, &emptypb.Empty{})
	require.NoError(t, err)
	resp, err := h.client.History(ctx, request)
	require.NoError(t, err)
	assert.Empty(t, resp.Fields["data"].GetListValue().GetValues())
}

func TestHistoryInvalidArguments(t *testing.T) {
	h := newHarness(t, server.DefaultServerConfig())
	ctx := context.Background()

	tests := []struct {
		name    string
		request map[string]interface{}
		message string
	}{
		{
			name:    "bad start",
			request: map[string]interface{}{"kind": "weight", "start": "yesterday", "end": "2024-05-02T00:00:00Z", "window": "1h", "aggregation": "AVG"},
			message: `invalid start time: "yesterday"`,
		},
		{
			name:    "invalid window",
			request: map[string]interface{}{"kind": "weight", "start": "2024-05-01T00:00:00Z", "end": "2024-05-02T00:00:00Z", "window": "2h", "aggregation": "AVG"},
			message: "invalid window: 2h",
		},
		{
			name:    "missing end",
			request: map[string]interface{}{"kind": "weight", "start": "2024-05-01T00:00:00Z", "window": "1h", "aggregation": "AVG"},
			message: "missing timestamp",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.client.History(ctx, mustStruct(t, tt.request))
			require.Error(t, err)
			st, ok := status.FromError(err)
			require.True(t, ok)
			assert.Equal(t, codes.InvalidArgument, st.Code())
			assert.Equal(t, tt.message, st.Message())
		})
	}
}

func TestSubscribe(t *testing.T) {
	h := newHarness(t, server.DefaultServerConfig())
	h.sim.SetGranted(true)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := h.client.Subscribe(ctx, &emptypb.Empty{})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return h.broadcaster.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	_, err = h.client.Write(ctx, mustStruct(t, map[string]interface{}{"kind": "height", "value": 1.75}))
	require.NoError(t, err)

	msg, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "write", msg.Fields["type"].GetStringValue())
	write := msg.Fields["write"].GetStructValue().Fields
	assert.Equal(t, "height", write["kind"].GetStringValue())
	assert.True(t, write["success"].GetBoolValue())
	assert.NotEmpty(t, msg.Fields["id"].GetStringValue())

	cancel()
	assert.Eventually(t, func() bool { return h.broadcaster.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestRateLimit(t *testing.T) {
	h := newHarness(t, server.ServerConfig{CacheSize: 10, RateLimit: 0.001, RateLimitBurst: 1})
	ctx := context.Background()

	_, err := h.client.Latest(ctx, &emptypb.Empty{})
	require.NoError(t, err)

	_, err = h.client.Latest(ctx, &emptypb.Empty{})
	require.Error(t, err)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
}

func TestSetupServerInvalidConfig(t *testing.T) {
	svc := server.NewHealthGatewayService(nil, nil, nil, quietLogger())
	srv, err := server.SetupServer(svc, server.ServerConfig{CacheSize: -1}, quietLogger(), nil)
	require.Error(t, err)
	require.Nil(t, srv)
}

func TestUnconfiguredHistoryAndSubscribe(t *testing.T) {
	logger := quietLogger()
	gw, err := gateway.New(bridge.NewSimulator(), gateway.DefaultConfig(), logger)
	require.NoError(t, err)
	svc := server.NewHealthGatewayService(gw, nil, nil, logger)

	_, err = svc.History(context.Background(), &structpb.Struct{})
	assert.Equal(t, codes.Unimplemented, status.Code(err))

	err = svc.Subscribe(&emptypb.Empty{}, nil)
	assert.Equal(t, codes.Unimplemented, status.Code(err))
}
