package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers for the client error taxonomy. Backends wrap failures
// with one of these so callers classify with errors.Is instead of matching
// on concrete transport types.
var (
	// ErrCredentials: authentication rejected or missing configuration.
	// Non-retryable; the caller should prompt for setup.
	ErrCredentials = errors.New("credentials error")

	// ErrConnectivity: transient network, transport, or throttling failure,
	// or an access-restricted resource. The caller may retry later.
	ErrConnectivity = errors.New("connectivity error")

	// ErrNotFound: the named resource does not exist. Non-retryable and
	// distinct from connectivity failures.
	ErrNotFound = errors.New("not found")

	// ErrBackend: any other backend failure, carrying the original message.
	ErrBackend = errors.New("backend error")
)

// WrapErr tags err (which may be nil) with a sentinel marker and a
// human-readable detail message.
func WrapErr(marker error, detail string, err error) error {
	if marker == nil {
		marker = ErrBackend
	}
	detail = strings.TrimSpace(detail)
	if err != nil {
		if detail == "" {
			return fmt.Errorf("%w: %w", marker, err)
		}
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsRetryable reports whether an error is worth retrying later.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConnectivity)
}
