package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/klubi/relay/internal/apperrors"
)

// RetryPolicy decides how often a failed agent invocation is repeated. Only
// errors whose application view is retryable are retried.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// hintedBackOff stretches the next interval to at least the delay a
// RateLimitError asked for.
type hintedBackOff struct {
	backoff.BackOff
	hint time.Duration
}

func (b *hintedBackOff) NextBackOff() time.Duration {
	next := b.BackOff.NextBackOff()
	if next == backoff.Stop {
		return next
	}
	if b.hint > next {
		next = b.hint
	}
	b.hint = 0
	return next
}

// run calls op until it succeeds, fails permanently or attempts run out. It
// reports the number of attempts made.
func (p RetryPolicy) run(ctx context.Context, op func(context.Context) (interface{}, error), onRetry func(error, time.Duration)) (interface{}, int, error) {
	if p.MaxAttempts <= 1 {
		out, err := op(ctx)
		return out, 1, err
	}

	exp := backoff.NewExponentialBackOff()
	if p.InitialBackoff > 0 {
		exp.InitialInterval = p.InitialBackoff
	}
	if p.MaxBackoff > 0 {
		exp.MaxInterval = p.MaxBackoff
	}
	b := &hintedBackOff{BackOff: exp}

	attempts := 0
	out, err := backoff.Retry(ctx, func() (interface{}, error) {
		attempts++
		out, err := op(ctx)
		if err == nil {
			return out, nil
		}
		if !apperrors.IsRetryable(err) {
			return nil, backoff.Permanent(err)
		}
		var rl *apperrors.RateLimitError
		if errors.As(err, &rl) {
			b.hint = rl.RetryAfter
		}
		return nil, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(p.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(onRetry),
	)
	return out, attempts, unwrapPermanent(err)
}

func unwrapPermanent(err error) error {
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}
