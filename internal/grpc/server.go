// Package server exposes the health data gateway over gRPC.
//
// The service reports datasets and write outcomes as google.protobuf.Struct
// messages so clients need no generated code beyond the well-known types.
package server

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tejusbharadwaj/healthgw/internal/bridge"
	"github.com/tejusbharadwaj/healthgw/internal/events"
	"github.com/tejusbharadwaj/healthgw/internal/gateway"
	middleware "github.com/tejusbharadwaj/healthgw/internal/grpc/middlewares"
	"github.com/tejusbharadwaj/healthgw/internal/models"
)

// ServerConfig holds configuration options for the gRPC server
type ServerConfig struct {
	CacheSize       int     // Size of the History response cache
	RateLimit       float64 // Requests per second
	RateLimitBurst  int     // Maximum burst size for rate limiting
	SubscribeBuffer int     // Per-subscriber event buffer
}

// DefaultServerConfig returns a ServerConfig with sensible defaults
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		CacheSize:       1000,
		RateLimit:       5.0, // 5 requests per second
		RateLimitBurst:  10,  // Burst of 10 requests
		SubscribeBuffer: 16,
	}
}

// Gateway is the part of the health data gateway served over gRPC.
type Gateway interface {
	Refresh(ctx context.Context) (*models.ReadResult, error)
	Latest() *models.ReadResult
	Write(ctx context.Context, req gateway.WriteRequest) models.WriteOutcome
	RequestPermissions(ctx context.Context) error
}

// DataRepository answers History queries.
type DataRepository interface {
	Query(
		ctx context.Context,
		kind models.Kind,
		start, end time.Time,
		window string,
		aggregation string,
	) ([]models.TimeSeriesData, error)
}

// EventSource feeds the Subscribe stream.
type EventSource interface {
	Subscribe(buffer int) (<-chan events.Event, func())
}

// HealthGatewayService implements HealthGatewayServer.
//
// Write takes a Struct with "kind", "value" and, depending on the metric,
// "secondary", "specimen_source", "meal_type" and "relation_to_meal"; it
// answers with {"kind", "success", "message"}. History takes "kind",
// "start", "end" (RFC 3339), "window" and "aggregation". Refresh and Latest
// answer with {"read_at", "samples", "series", "count"}.
type HealthGatewayService struct {
	gateway    Gateway
	repository DataRepository
	source     EventSource
	validator  *RequestValidator
	health     *HealthChecker
	logger     logrus.FieldLogger
	buffer     int
}

// NewHealthGatewayService creates a new service instance. repo and source
// may be nil, in which case History and Subscribe are unavailable.
func NewHealthGatewayService(gw Gateway, repo DataRepository, source EventSource, logger logrus.FieldLogger) *HealthGatewayService {
	return &HealthGatewayService{
		gateway:    gw,
		repository: repo,
		source:     source,
		validator:  NewRequestValidator(),
		logger:     logger.WithField("component", "grpc"),
		buffer:     DefaultServerConfig().SubscribeBuffer,
	}
}

// Refresh runs one read cycle.
func (s *HealthGatewayService) Refresh(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	res, err := s.gateway.Refresh(ctx)
	s.reportHealth(err)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(datasetStruct(res))
}

// Latest returns the last published dataset.
func (s *HealthGatewayService) Latest(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return encode(datasetStruct(s.gateway.Latest()))
}

// Write stores one measurement. A rejected measurement is not an RPC error:
// the outcome carries success=false and the reason.
func (s *HealthGatewayService) Write(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := decodeWrite(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return encode(toStruct(s.gateway.Write(ctx, req)))
}

// RequestPermissions initialises the health service and asks for access.
func (s *HealthGatewayService) RequestPermissions(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	err := s.gateway.RequestPermissions(ctx)
	s.reportHealth(err)
	if err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// History returns aggregated samples from storage.
func (s *HealthGatewayService) History(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.repository == nil {
		return nil, status.Error(codes.Unimplemented, "history storage is not configured")
	}

	start, err := timeField(in, "start")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	end, err := timeField(in, "end")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	q, err := s.validator.Validate(
		stringField(in, "kind"), start, end, stringField(in, "window"), stringField(in, "aggregation"),
	)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	data, err := s.repository.Query(ctx, q.Kind, q.Start, q.End, q.Window, q.Aggregation)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "query failed: %v", err)
	}
	if data == nil {
		data = []models.TimeSeriesData{}
	}

	return encode(toStruct(historyView{
		Kind:        q.Kind,
		Window:      q.Window,
		Aggregation: q.Aggregation,
		Data:        data,
	}))
}

// Subscribe streams published events until the client cancels.
func (s *HealthGatewayService) Subscribe(_ *emptypb.Empty, stream HealthGateway_SubscribeServer) error {
	if s.source == nil {
		return status.Error(codes.Unimplemented, "event stream is not configured")
	}

	ch, cancel := s.source.Subscribe(s.buffer)
	defer cancel()

	logger := s.logger.WithField("request_id", middleware.RequestIDFromContext(stream.Context()))
	logger.Debug("Subscriber connected")
	defer logger.Debug("Subscriber disconnected")

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-ch:
			if !ok {
				return nil
			}
			msg, err := toStruct(e)
			if err != nil {
				return status.Errorf(codes.Internal, "failed to encode event: %v", err)
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
		}
	}
}

// reportHealth maps platform availability onto the gRPC health status.
func (s *HealthGatewayService) reportHealth(err error) {
	if s.health == nil {
		return
	}
	st := grpc_health_v1.HealthCheckResponse_SERVING
	if errors.Is(err, gateway.ErrContextInvalid) ||
		errors.Is(err, gateway.ErrNotInstalled) ||
		errors.Is(err, gateway.ErrVersionTooOld) {
		st = grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus(ServiceName, st)
}

func encode(msg *structpb.Struct, err error) (*structpb.Struct, error) {
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return msg, nil
}

// toStatus maps gateway errors onto gRPC status codes.
func toStatus(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gateway.ErrSecurity):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, gateway.ErrContextInvalid),
		errors.Is(err, gateway.ErrNotInstalled),
		errors.Is(err, gateway.ErrVersionTooOld),
		errors.Is(err, gateway.ErrPermissionPending):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, gateway.ErrInitFailed),
		errors.Is(err, bridge.ErrClosed),
		errors.Is(err, bridge.ErrBridgeRequest),
		errors.Is(err, bridge.ErrBridgeStatus),
		errors.Is(err, gobreaker.ErrOpenState),
		errors.Is(err, gobreaker.ErrTooManyRequests):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// Server bundles the gRPC server with the pieces callers interact with after
// setup.
type Server struct {
	*grpc.Server
	Health *HealthChecker
	cache  *middleware.ResponseCache
}

// Publish implements events.Publisher: a new dataset invalidates cached
// History responses.
func (s *Server) Publish(ctx context.Context, e events.Event) error {
	if e.Type == events.TypeDataset {
		s.cache.Purge()
	}
	return nil
}

// SetupServer initializes and configures the gRPC server with all middleware.
// Metrics are registered with reg unless it is nil.
func SetupServer(svc *HealthGatewayService, config ServerConfig, logger logrus.FieldLogger, reg prometheus.Registerer) (*Server, error) {
	cache, err := middleware.NewResponseCache(config.CacheSize, HealthGateway_History_FullMethodName)
	if err != nil {
		return nil, err
	}

	requests, latency, err := middleware.NewRequestMetrics(reg)
	if err != nil {
		return nil, err
	}

	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			// Request ID first so every later stage can log it
			middleware.ContextMiddleware,
			middleware.NewRateLimitingInterceptor(config.RateLimit, config.RateLimitBurst),
			middleware.NewLoggingInterceptor(logger),
			middleware.NewMetricsInterceptor(requests, latency),
			// Cache last to avoid caching errors
			cache.Interceptor(),
		),
		grpc.ChainStreamInterceptor(
			middleware.StreamContextMiddleware,
			middleware.NewStreamLoggingInterceptor(logger),
		),
	)

	health := NewHealthChecker()
	health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	health.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	svc.health = health
	if config.SubscribeBuffer > 0 {
		svc.buffer = config.SubscribeBuffer
	}

	RegisterHealthGatewayServer(server, svc)
	grpc_health_v1.RegisterHealthServer(server, health)

	return &Server{Server: server, Health: health, cache: cache}, nil
}

var _ HealthGatewayServer = (*HealthGatewayService)(nil)
