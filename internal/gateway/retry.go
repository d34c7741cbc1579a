package gateway

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Retrying wraps a gateway with a bounded exponential backoff policy.
// Only transport errors are retried; anything else passes through
// immediately.
type Retrying struct {
	inner      Gateway
	maxRetries uint64
	baseDelay  time.Duration
	log        *zap.Logger
}

// WithRetry decorates a gateway with the retry policy
func WithRetry(inner Gateway, maxRetries int, baseDelay time.Duration, log *zap.Logger) *Retrying {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Retrying{
		inner:      inner,
		maxRetries: uint64(maxRetries),
		baseDelay:  baseDelay,
		log:        log,
	}
}

// Send delivers the prompt, retrying transport failures with
// exponential backoff up to the configured bound
func (r *Retrying) Send(ctx context.Context, prompt string) (string, error) {
	var reply string
	attempt := 0

	operation := func() error {
		attempt++
		var err error
		reply, err = r.inner.Send(ctx, prompt)
		if err == nil {
			return nil
		}
		if !IsTransport(err) {
			return backoff.Permanent(err)
		}
		r.log.Warn("transport failure, will retry",
			zap.Int("attempt", attempt),
			zap.Error(err))
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.baseDelay

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, r.maxRetries), ctx))
	if err != nil {
		return "", err
	}
	return reply, nil
}
