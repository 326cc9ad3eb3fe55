package middleware

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// NewLoggingInterceptor logs every unary call with its request id.
func NewLoggingInterceptor(logger logrus.FieldLogger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()

		resp, err := handler(ctx, req)

		logCall(logger, ctx, info.FullMethod, start, err)
		return resp, err
	}
}

// NewStreamLoggingInterceptor logs streaming calls once they end.
func NewStreamLoggingInterceptor(logger logrus.FieldLogger) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()

		err := handler(srv, ss)

		logCall(logger, ss.Context(), info.FullMethod, start, err)
		return err
	}
}

func logCall(logger logrus.FieldLogger, ctx context.Context, method string, start time.Time, err error) {
	entry := logger.WithFields(logrus.Fields{
		"request_id": RequestIDFromContext(ctx),
		"method":     method,
		"duration":   time.Since(start).String(),
		"code":       status.Code(err).String(),
	})
	if err != nil {
		entry.WithError(err).Warn("Request failed")
		return
	}
	entry.Info("Request handled")
}
