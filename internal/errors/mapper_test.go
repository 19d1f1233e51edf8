package errors_test

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	svcErr "github.com/oggyb/muzz-connect/internal/errors"
	"github.com/oggyb/muzz-connect/internal/repository"
)

func TestMap(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"nil", nil, codes.OK},
		{"invalid", fmt.Errorf("%w: cannot like yourself", svcErr.ErrInvalid), codes.InvalidArgument},
		{"repo not found", repository.ErrNotFound, codes.NotFound},
		{"premium", fmt.Errorf("%w: premium required", svcErr.ErrPermission), codes.PermissionDenied},
		{"ended", fmt.Errorf("%w: stream ended", svcErr.ErrPrecondition), codes.FailedPrecondition},
		{"retryable", svcErr.Retryable("insert like", stderrors.New("connection reset")), codes.Unavailable},
		{"deadline", context.DeadlineExceeded, codes.DeadlineExceeded},
		{"duplicate", repository.ErrDuplicate, codes.AlreadyExists},
		{"unknown", stderrors.New("schema mismatch"), codes.Internal},
		{"status passthrough", status.Error(codes.Aborted, "x"), codes.Aborted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, status.Code(svcErr.Map(tc.err)))
		})
	}
}

func TestRetryableKeepsCause(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := svcErr.Retryable("send message", cause)

	assert.ErrorIs(t, err, svcErr.ErrRetryable)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "send message")
}
