package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/oggyb/muzz-connect/internal/config"
	"github.com/oggyb/muzz-connect/internal/metrics"
)

// NewGRPCServer builds a gRPC server with the interceptor chain (metrics,
// logging, auth, rate limit) and registers all provided services.
func NewGRPCServer(cfg *config.Config, authn Authenticator, log *slog.Logger, registrars ...Registrar) (*grpc.Server, error) {
	limiter := NewRateLimiter(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst, 10*time.Minute)

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			metrics.UnaryInterceptor(),
			LoggingUnary(log),
			AuthUnary(authn),
			RateLimitUnary(limiter),
		),
		grpc.ChainStreamInterceptor(
			metrics.StreamInterceptor(),
			LoggingStream(log),
			AuthStream(authn),
			RateLimitStream(limiter),
		),
	)

	// register all services
	for _, r := range registrars {
		if err := r.Register(grpcServer); err != nil {
			return nil, fmt.Errorf("failed to register service: %w", err)
		}
	}

	// enable reflection for easier debugging with grpcurl
	reflection.Register(grpcServer)

	return grpcServer, nil
}

// shutdownGrace bounds GracefulStop; open watch streams are cut after it.
const shutdownGrace = 10 * time.Second

// ServeGRPC serves on the configured address until ctx is done, then stops
// gracefully.
func ServeGRPC(ctx context.Context, cfg *config.Config, grpcServer *grpc.Server) error {
	addr := fmt.Sprintf("%s:%s", cfg.GRPC.Host, cfg.GRPC.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- grpcServer.Serve(lis) }()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(shutdownGrace):
		grpcServer.Stop()
	}
	return <-serveErr
}
