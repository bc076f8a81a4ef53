package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrapErrTagsMarker(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := WrapErr(ErrConnectivity, "get posts", cause)

	if !errors.Is(err, ErrConnectivity) {
		t.Error("wrapped error lost its marker")
	}
	if !errors.Is(err, cause) {
		t.Error("wrapped error lost its cause")
	}
	if errors.Is(err, ErrCredentials) {
		t.Error("wrapped error matched the wrong marker")
	}
}

func TestWrapErrNilMarkerAndCause(t *testing.T) {
	err := WrapErr(nil, "something broke", nil)
	if !errors.Is(err, ErrBackend) {
		t.Errorf("nil marker should default to ErrBackend, got %v", err)
	}

	err = WrapErr(ErrNotFound, "subreddit gone", nil)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("marker lost without cause: %v", err)
	}
	if err.Error() != "not found: subreddit gone" {
		t.Errorf("message = %q", err.Error())
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(WrapErr(ErrConnectivity, "timeout", nil)) {
		t.Error("connectivity errors should be retryable")
	}
	for _, marker := range []error{ErrCredentials, ErrNotFound, ErrBackend} {
		if IsRetryable(WrapErr(marker, "x", nil)) {
			t.Errorf("%v should not be retryable", marker)
		}
	}
}
