package processor

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy bounds the exponential backoff around outbound vendor calls.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
}

// DefaultRetryPolicy is 3 attempts: 1s, then 2s, capped at 4s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		Multiplier:   2,
		MaxDelay:     4 * time.Second,
	}
}

// Retryer wraps idempotent adapter calls in bounded exponential backoff.
// Only transient errors (network, timeout, vendor API fault) are retried;
// declines, validation failures, and signature errors would not change on a
// second attempt and are propagated immediately. The wrapped closure must
// bind its idempotency key once so every attempt reuses it — a timed-out
// attempt is unknown-outcome and is reconciled by that key, never by a fresh
// non-idempotent request.
type Retryer struct {
	policy RetryPolicy
	logger *zap.Logger

	// sleep is swappable in tests to record delays without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryer creates a Retryer with the given policy.
func NewRetryer(policy RetryPolicy, logger *zap.Logger) *Retryer {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	if policy.Multiplier < 1 {
		policy.Multiplier = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retryer{policy: policy, logger: logger, sleep: sleepCtx}
}

// Do runs fn up to MaxAttempts times. op names the operation for logging.
func (r *Retryer) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	delay := r.policy.InitialDelay

	var err error
	for attempt := 1; ; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !IsTransient(err) || attempt >= r.policy.MaxAttempts {
			return err
		}

		r.logger.Warn("transient failure, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))

		if serr := r.sleep(ctx, delay); serr != nil {
			return err
		}

		delay = time.Duration(float64(delay) * r.policy.Multiplier)
		if r.policy.MaxDelay > 0 && delay > r.policy.MaxDelay {
			delay = r.policy.MaxDelay
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
