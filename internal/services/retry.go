package services

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/plantpal/plantpal/internal/metrics"
	"github.com/plantpal/plantpal/internal/model"
)

// RetryPolicy bounds retries of transient store errors.
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxInterval time.Duration
}

// DefaultRetryPolicy is used when no policy is configured.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 3,
	BaseBackoff: 50 * time.Millisecond,
	MaxInterval: time.Second,
}

type retrier struct {
	policy  RetryPolicy
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// do runs fn until it succeeds, fails with a non-transient error, runs out
// of attempts, or ctx ends.
func (r retrier) do(ctx context.Context, op string, fn func() error) error {
	maxAttempts := r.policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = r.policy.BaseBackoff
	exp.Multiplier = 2
	exp.MaxInterval = r.policy.MaxInterval
	exp.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(maxAttempts-1)), ctx)

	attempt := 0
	notify := func(err error, wait time.Duration) {
		attempt++
		r.log.Warn().Err(err).Str("op", op).Int("attempt", attempt).Dur("wait", wait).Msg("transient store error, retrying")
		if r.metrics != nil {
			r.metrics.StoreRetries.WithLabelValues(op).Inc()
		}
	}
	return backoff.RetryNotify(func() error {
		err := fn()
		if err != nil && !errors.Is(err, model.ErrTransient) {
			return backoff.Permanent(err)
		}
		return err
	}, b, notify)
}

// retryValue is do for calls returning a value.
func retryValue[T any](ctx context.Context, r retrier, op string, fn func() (T, error)) (T, error) {
	var out T
	err := r.do(ctx, op, func() error {
		v, err := fn()
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
