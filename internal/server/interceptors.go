package server

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/oggyb/muzz-connect/internal/auth"
	svcErr "github.com/oggyb/muzz-connect/internal/errors"
	"github.com/oggyb/muzz-connect/internal/logger"
)

// Authenticator resolves bearer tokens; see auth.Authenticator.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (string, error)
}

// public reports methods served without a token: reflection and health.
func public(fullMethod string) bool {
	return strings.HasPrefix(fullMethod, "/grpc.")
}

func authenticate(ctx context.Context, authn Authenticator) (context.Context, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	for _, v := range md.Get("authorization") {
		token, ok := auth.ParseBearer(v)
		if !ok {
			continue
		}
		userID, err := authn.Authenticate(ctx, token)
		if err != nil {
			return nil, svcErr.Map(err)
		}
		ctx = logger.IntoContext(ctx, logger.FromContext(ctx, nil).With("user", userID))
		return auth.WithUser(ctx, userID), nil
	}
	return nil, status.Error(codes.Unauthenticated, "missing bearer token")
}

// AuthUnary puts the acting user into the context of every protected call.
func AuthUnary(authn Authenticator) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if public(info.FullMethod) {
			return handler(ctx, req)
		}
		ctx, err := authenticate(ctx, authn)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// contextStream overrides the context of a server stream.
type contextStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *contextStream) Context() context.Context { return s.ctx }

func AuthStream(authn Authenticator) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if public(info.FullMethod) {
			return handler(srv, ss)
		}
		ctx, err := authenticate(ss.Context(), authn)
		if err != nil {
			return err
		}
		return handler(srv, &contextStream{ServerStream: ss, ctx: ctx})
	}
}

func limited(ctx context.Context, rl *RateLimiter) error {
	userID, ok := auth.UserFrom(ctx)
	if !ok || rl.Allow(userID) {
		return nil
	}
	return status.Error(codes.ResourceExhausted, "rate limit exceeded")
}

// RateLimitUnary must run after AuthUnary; anonymous calls are not limited.
func RateLimitUnary(rl *RateLimiter) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if err := limited(ctx, rl); err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

func RateLimitStream(rl *RateLimiter) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, _ *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if err := limited(ss.Context(), rl); err != nil {
			return err
		}
		return handler(srv, ss)
	}
}

// LoggingUnary attaches a request logger to the context and logs failures.
func LoggingUnary(log *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		ctx = logger.IntoContext(ctx, log.With("method", info.FullMethod))
		resp, err := handler(ctx, req)
		logCall(ctx, start, err)
		return resp, err
	}
}

func LoggingStream(log *slog.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		ctx := logger.IntoContext(ss.Context(), log.With("method", info.FullMethod))
		err := handler(srv, &contextStream{ServerStream: ss, ctx: ctx})
		logCall(ctx, start, err)
		return err
	}
}

func logCall(ctx context.Context, start time.Time, err error) {
	code := status.Code(err)
	log := logger.FromContext(ctx, nil)
	switch code {
	case codes.OK, codes.Canceled:
		log.Debug("rpc done", "code", code.String(), logger.Since(start))
	case codes.Internal, codes.Unknown:
		log.Error("rpc failed", "code", code.String(), "err", err, logger.Since(start))
	default:
		log.Info("rpc rejected", "code", code.String(), "err", err, logger.Since(start))
	}
}
