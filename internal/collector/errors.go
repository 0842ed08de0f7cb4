package collector

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoData means the provider holds no bars for the requested window
// (e.g. a delisted symbol). It is permanent and never retried.
var ErrNoData = errors.New("no trading data available")

// ErrRejected means the provider refused the request itself (bad
// parameters, auth). Repeating it cannot help.
var ErrRejected = errors.New("request rejected by provider")

// TransientError is returned once a retryable provider failure has
// exhausted every attempt.
type TransientError struct {
	Symbol   string
	Attempts int
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: giving up after %d attempts: %v", e.Symbol, e.Attempts, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsRetryable reports whether err may succeed on another attempt.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNoData) || errors.Is(err, ErrRejected) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}
