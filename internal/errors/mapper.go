// internal/errors/mapper.go
package errors

import (
	"context"
	stderrors "errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"

	"github.com/oggyb/muzz-connect/internal/repository"
)

// Retryable wraps a transient failure of op.
func Retryable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrRetryable, err)
}

// Map converts domain/repo/infra errors into gRPC-friendly status errors.
// Keeps service layer clean by centralizing error mapping.
func Map(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case stderrors.Is(err, ErrInvalid):
		return status.Error(codes.InvalidArgument, err.Error())

	case stderrors.Is(err, ErrNotFound),
		stderrors.Is(err, repository.ErrNotFound),
		stderrors.Is(err, gorm.ErrRecordNotFound):
		return status.Error(codes.NotFound, err.Error())

	case stderrors.Is(err, ErrPermission):
		return status.Error(codes.PermissionDenied, err.Error())

	case stderrors.Is(err, ErrPrecondition):
		return status.Error(codes.FailedPrecondition, err.Error())

	case stderrors.Is(err, ErrUnauthenticated):
		return status.Error(codes.Unauthenticated, err.Error())

	case stderrors.Is(err, ErrExhausted):
		return status.Error(codes.ResourceExhausted, err.Error())

	case stderrors.Is(err, repository.ErrDuplicate):
		return status.Error(codes.AlreadyExists, err.Error())

	case stderrors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "request timed out")

	case stderrors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request was canceled")

	case stderrors.Is(err, ErrRetryable):
		return status.Error(codes.Unavailable, err.Error())

	default:
		// fatal: no recovery is guessed, details stay in the server log
		return status.Error(codes.Internal, "internal error")
	}
}

// InvalidArgument creates a gRPC InvalidArgument error.
// Use this in service layer for bad input validation.
func InvalidArgument(msg string) error {
	return status.Error(codes.InvalidArgument, msg)
}
