package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Gateway sends a fully assembled prompt to an LLM and returns the raw
// text reply. Implementations must be safe for concurrent use.
type Gateway interface {
	Send(ctx context.Context, prompt string) (string, error)
}

// TransportError marks a delivery failure (network, subprocess, rate
// limit). Transport errors are retryable; everything else is not.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is (or wraps) a TransportError
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

type timeoutGateway struct {
	inner Gateway
	limit time.Duration
}

// WithTimeout bounds every Send with a per-request deadline. A zero or
// negative limit returns the gateway unchanged.
func WithTimeout(inner Gateway, limit time.Duration) Gateway {
	if limit <= 0 {
		return inner
	}
	return &timeoutGateway{inner: inner, limit: limit}
}

func (t *timeoutGateway) Send(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.limit)
	defer cancel()
	return t.inner.Send(ctx, prompt)
}
