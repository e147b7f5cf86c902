package grpc

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type Options struct {
	RequestTimeout time.Duration
	Verifier       tokenVerifier
	Log            *slog.Logger
	// Tracing installs the otelgrpc stats handler.
	Tracing bool
}

// NewGRPCServer builds the server with the interceptor chain, the
// BarbershopService and the standard health service registered.
func NewGRPCServer(srv BarbershopServer, opts Options) (*grpc.Server, *health.Server) {
	serverOpts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			RequestIDInterceptor(),
			TimeoutInterceptor(opts.RequestTimeout),
			AuthInterceptor(opts.Verifier, opts.Log),
		),
	}
	if opts.Tracing {
		serverOpts = append(serverOpts, grpc.StatsHandler(otelgrpc.NewServerHandler()))
	}

	s := grpc.NewServer(serverOpts...)
	RegisterBarbershopServer(s, srv)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)

	return s, hs
}
