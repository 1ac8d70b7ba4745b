package server

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"
)

// ServiceName is the health service name reported alongside the overall status.
const ServiceName = "letterbox.Server"

// HealthServer is the gRPC side of the server: it only serves the standard
// health protocol.
type HealthServer struct {
	grpc   *grpc.Server
	health *health.Server
	logger *zap.Logger
}

// NewHealthServer builds a gRPC server that reports NOT_SERVING until
// MarkServing is called.
func NewHealthServer(logger *zap.Logger) *HealthServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("grpc")

	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			RecoveryInterceptor(logger),
			LoggingInterceptor(logger),
		),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    30 * time.Second,
			Timeout: 10 * time.Second,
		}),
	)
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	return &HealthServer{grpc: srv, health: hs, logger: logger}
}

// MarkServing flips every service to SERVING.
func (h *HealthServer) MarkServing() {
	h.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	h.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
}

// Serve blocks serving l.
func (h *HealthServer) Serve(l net.Listener) error {
	h.logger.Info("gRPC health server listening", zap.String("address", l.Addr().String()))
	return h.grpc.Serve(l)
}

// Stop reports NOT_SERVING and drains in-flight calls.
func (h *HealthServer) Stop() {
	h.health.Shutdown()
	h.grpc.GracefulStop()
	h.logger.Info("gRPC health server stopped")
}

// RecoveryInterceptor turns handler panics into Internal errors.
func RecoveryInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic in gRPC handler",
					zap.String("method", info.FullMethod),
					zap.Any("panic", r),
				)
				err = status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}

// LoggingInterceptor logs each call at debug level.
func LoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Debug("gRPC call",
			zap.String("method", info.FullMethod),
			zap.Duration("duration", time.Since(start)),
			zap.Stringer("code", status.Code(err)),
		)
		return resp, err
	}
}
