package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation    = errors.New("validation error")
	ErrNotFound      = errors.New("not found")
	ErrNetwork       = errors.New("network error")
	ErrTimeout       = errors.New("timeout error")
	ErrServer        = errors.New("server error")
	ErrSerialization = errors.New("serialization error")
	ErrRateLimited   = errors.New("rate limited")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// KindOf returns the wire code of the first error kind found in err's chain.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case IsKind(err, ErrValidation):
		return "validation_error"
	case IsKind(err, ErrNotFound):
		return "not_found"
	case IsKind(err, ErrTimeout):
		return "timeout_error"
	case IsKind(err, ErrNetwork):
		return "network_error"
	case IsKind(err, ErrSerialization):
		return "serialization_error"
	case IsKind(err, ErrRateLimited):
		return "rate_limited"
	default:
		return "server_error"
	}
}
