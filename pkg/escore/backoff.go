package escore

import (
	"time"

	cenkaltibackoff "github.com/cenkalti/backoff/v4"
)

// Stop is returned by Next when no further retry should be attempted.
const Stop time.Duration = -1

// BackOff computes successive retry delays for one failing event, per the
// Event Handling Processor's retry loop (spec §4.8). Next returns Stop
// once the policy is exhausted; Reset starts a fresh sequence of attempts,
// called whenever a retry succeeds or an event is given up on.
type BackOff interface {
	Next() time.Duration
	Reset()
}

// noneBackOff never retries: the very first Next call returns Stop.
type noneBackOff struct{}

// NewNoneBackOff builds the NONE policy: zero delay, zero attempts.
func NewNoneBackOff() BackOff { return noneBackOff{} }

func (noneBackOff) Next() time.Duration { return Stop }
func (noneBackOff) Reset()              {}

// fixedBackOff retries at a constant interval up to maxAttempts times.
type fixedBackOff struct {
	interval    time.Duration
	maxAttempts int
	attempts    int
}

// NewFixedBackOff builds the FIXED(interval, maxAttempts) policy.
func NewFixedBackOff(interval time.Duration, maxAttempts int) BackOff {
	return &fixedBackOff{interval: interval, maxAttempts: maxAttempts}
}

func (b *fixedBackOff) Next() time.Duration {
	if b.attempts >= b.maxAttempts {
		return Stop
	}
	b.attempts++
	return b.interval
}

func (b *fixedBackOff) Reset() { b.attempts = 0 }

// exponentialBackOff layers a maxAttempts cap (spec §4.8's EXPONENTIAL
// policy names one explicitly, whereas cenkalti/backoff's ExponentialBackOff
// only bounds by MaxElapsedTime) on top of
// github.com/cenkalti/backoff/v4's ExponentialBackOff.
type exponentialBackOff struct {
	inner       *cenkaltibackoff.ExponentialBackOff
	maxAttempts int
	attempts    int
}

// NewExponentialBackOff builds the EXPONENTIAL(initial, max, maxElapsed,
// multiplier, maxAttempts) policy.
func NewExponentialBackOff(initial, max, maxElapsed time.Duration, multiplier float64, maxAttempts int) BackOff {
	inner := cenkaltibackoff.NewExponentialBackOff()
	inner.InitialInterval = initial
	inner.MaxInterval = max
	inner.MaxElapsedTime = maxElapsed
	inner.Multiplier = multiplier
	inner.Reset()
	return &exponentialBackOff{inner: inner, maxAttempts: maxAttempts}
}

func (b *exponentialBackOff) Next() time.Duration {
	if b.maxAttempts > 0 && b.attempts >= b.maxAttempts {
		return Stop
	}
	next := b.inner.NextBackOff()
	if next == cenkaltibackoff.Stop {
		return Stop
	}
	b.attempts++
	return next
}

func (b *exponentialBackOff) Reset() {
	b.attempts = 0
	b.inner.Reset()
}
