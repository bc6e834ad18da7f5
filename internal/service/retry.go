package service

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jovywahba/jovnumbergames/internal/repository"
	"github.com/rs/zerolog/log"
)

// RetryPolicy bounds how contended transactions are retried.
type RetryPolicy struct {
	Attempts int
	Base     time.Duration
	Jitter   time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 5, Base: 120 * time.Millisecond, Jitter: 80 * time.Millisecond}
}

// Retrier re-runs an operation while it fails with contention. Any other
// error stops it at once.
type Retrier struct {
	policy RetryPolicy
}

func NewRetrier(policy RetryPolicy) *Retrier {
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}
	return &Retrier{policy: policy}
}

// Do runs fn up to Attempts times, sleeping Base*2^n plus up to Jitter
// between contended attempts.
func (r *Retrier) Do(ctx context.Context, op string, fn func() error) error {
	b := backoff.WithContext(
		backoff.WithMaxRetries(newDoublingBackOff(r.policy.Base, r.policy.Jitter), uint64(r.policy.Attempts-1)),
		ctx,
	)

	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		err := fn()
		if err == nil || repository.IsContention(err) {
			return err
		}
		return backoff.Permanent(err)
	}, b, func(err error, wait time.Duration) {
		log.Debug().
			Err(err).
			Str("op", op).
			Int("attempt", attempt).
			Dur("wait", wait).
			Msg("Transaction contended, retrying")
	})
}

// doublingBackOff waits base, 2*base, 4*base ... each plus a random jitter.
type doublingBackOff struct {
	base    time.Duration
	jitter  time.Duration
	current time.Duration
}

func newDoublingBackOff(base, jitter time.Duration) *doublingBackOff {
	return &doublingBackOff{base: base, jitter: jitter, current: base}
}

func (b *doublingBackOff) NextBackOff() time.Duration {
	wait := b.current
	if b.jitter > 0 {
		wait += rand.N(b.jitter)
	}
	b.current *= 2
	return wait
}

func (b *doublingBackOff) Reset() {
	b.current = b.base
}
