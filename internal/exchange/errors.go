package exchange

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Two error classes flow out of this package: retryable (timeouts, rate
// limits, transient exchange errors) and fatal (bad requests, auth,
// malformed parameters). Callers retry the first class with bounded backoff
// and abort the current tick on the second.

type classified struct {
	err       error
	retryable bool
}

func (c *classified) Error() string { return c.err.Error() }
func (c *classified) Unwrap() error { return c.err }

// Retryable wraps err as transient.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &classified{err: err, retryable: true}
}

// Fatal wraps err as non-retryable.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &classified{err: err, retryable: false}
}

func Retryablef(format string, v ...any) error {
	return Retryable(fmt.Errorf(format, v...))
}

func Fatalf(format string, v ...any) error {
	return Fatal(fmt.Errorf(format, v...))
}

// IsRetryable reports whether err may succeed on retry. Unclassified errors
// default to retryable when they look like transport failures, fatal
// otherwise: a mistyped request will not heal by waiting.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var c *classified
	if errors.As(err, &c) {
		return c.retryable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, hint := range []string{"timeout", "rate limit", "too many requests", "connection re", "temporarily"} {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}
