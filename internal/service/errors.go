package service

import (
	"errors"
	"fmt"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/splittat/internal/calculator"
	"github.com/mmynk/splittat/internal/storage"
)

// Errors returned by the services. Check them with errors.Is.
var (
	ErrNotFound           = storage.ErrNotFound
	ErrAlreadyExists      = storage.ErrAlreadyExists
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrFailedPrecondition = errors.New("failed precondition")
	ErrTooLarge           = errors.New("file too large")
)

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func permissionDenied(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPermissionDenied, fmt.Sprintf(format, args...))
}

func failedPrecondition(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrFailedPrecondition, fmt.Sprintf(format, args...))
}

func notFound(what string) error {
	return fmt.Errorf("%s %w", what, ErrNotFound)
}

// connectError maps a service error onto a Connect error. Unknown errors
// are logged and reported as a generic internal error.
func connectError(procedure string, err error) *connect.Error {
	var code connect.Code
	switch {
	case errors.Is(err, ErrNotFound):
		code = connect.CodeNotFound
	case errors.Is(err, ErrAlreadyExists):
		code = connect.CodeAlreadyExists
	case errors.Is(err, ErrInvalidArgument), errors.Is(err, calculator.ErrInvalidAllocation):
		code = connect.CodeInvalidArgument
	case errors.Is(err, ErrPermissionDenied):
		code = connect.CodePermissionDenied
	case errors.Is(err, ErrFailedPrecondition):
		code = connect.CodeFailedPrecondition
	default:
		slog.Error(procedure+" failed", "error", err)
		return connect.NewError(connect.CodeInternal, errors.New("internal error"))
	}
	slog.Warn(procedure+" rejected", "code", code.String(), "error", err)
	return connect.NewError(code, err)
}
