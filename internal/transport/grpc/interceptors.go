package grpc

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"barbershop/backend/internal/auth"
	"barbershop/backend/internal/domain"
)

type tokenVerifier interface {
	Verify(raw string) (domain.Principal, error)
}

// AuthInterceptor resolves the bearer token into a principal for every
// BarbershopService call except the public ones. Other services, such as
// health, pass through untouched.
func AuthInterceptor(v tokenVerifier, log *slog.Logger) grpc.UnaryServerInterceptor {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "grpc.auth"))
	prefix := "/" + ServiceName + "/"

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !strings.HasPrefix(info.FullMethod, prefix) || publicMethods[info.FullMethod] {
			return handler(ctx, req)
		}
		var header string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if values := md.Get("authorization"); len(values) > 0 {
				header = values[0]
			}
		}
		p, err := v.Verify(auth.BearerToken(header))
		if err != nil {
			log.Info("unauthenticated call", slog.String("method", info.FullMethod), slog.Any("err", err))
			return nil, status.Error(codes.Unauthenticated, "a valid bearer token is required")
		}
		return handler(auth.WithPrincipal(ctx, p), req)
	}
}

type requestIDKey struct{}

// RequestIDInterceptor propagates x-request-id, minting one when the caller
// sent none, and echoes it in the response header.
func RequestIDInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		var id string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if values := md.Get("x-request-id"); len(values) > 0 {
				id = strings.TrimSpace(values[0])
			}
		}
		if id == "" {
			id = uuid.NewString()
		}
		_ = grpc.SetHeader(ctx, metadata.Pairs("x-request-id", id))
		return handler(context.WithValue(ctx, requestIDKey{}, id), req)
	}
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// TimeoutInterceptor bounds calls that arrive without a deadline.
func TimeoutInterceptor(timeout time.Duration) grpc.UnaryServerInterceptor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, ok := ctx.Deadline(); ok {
			return handler(ctx, req)
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return handler(ctx, req)
	}
}
