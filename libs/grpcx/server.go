package grpcx

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/apptbook/libs/httpx"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// NewServer builds a grpc.Server with tracing, request id propagation and
// per-call logging installed.
func NewServer(logger *slog.Logger, extra ...grpc.ServerOption) *grpc.Server {
	opts := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			UnaryServerRequestIDInterceptor(),
			UnaryServerLoggingInterceptor(logger),
		),
	}
	return grpc.NewServer(append(opts, extra...)...)
}

func UnaryServerLoggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if logger != nil {
			level := slog.LevelInfo
			if err != nil {
				level = slog.LevelWarn
			}
			logger.Log(ctx, level, "grpc request",
				"request_id", httpx.RequestIDFromContext(ctx),
				"method", info.FullMethod,
				"code", status.Code(err).String(),
				"duration_ms", time.Since(start).Milliseconds(),
			)
		}
		return resp, err
	}
}
