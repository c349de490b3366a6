// Package retry wraps flaky calls in a bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// Policy describes how a single call site retries.
// MaxAttempts counts the first call, so 3 means two retries.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
}

// Default is the market-data policy: 3 attempts, 1s then 2s.
var Default = Policy{MaxAttempts: 3, BaseDelay: time.Second, Multiplier: 2}

// None calls the operation exactly once
var None = Policy{MaxAttempts: 1}

// Permanent marks err as non-retryable
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// retryable is implemented by errors that know whether another attempt can
// succeed, such as provider status errors
type retryable interface {
	Retryable() bool
}

// classify stops the loop on errors that report they cannot be retried,
// however deeply they are wrapped
func classify(err error) error {
	var r retryable
	if errors.As(err, &r) && !r.Retryable() {
		return backoff.Permanent(err)
	}
	return err
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Millisecond
	}
	if p.Multiplier < 1 {
		p.Multiplier = 1
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = time.Hour
	}
	return p
}

func (p Policy) backOff() backoff.BackOff {
	p = p.normalized()

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.BaseDelay
	eb.Multiplier = p.Multiplier
	eb.RandomizationFactor = 0
	eb.MaxInterval = p.MaxDelay
	eb.MaxElapsedTime = 0
	eb.Reset()

	return backoff.WithMaxRetries(eb, uint64(p.MaxAttempts-1))
}

// Delays lists the waits the policy inserts between attempts
func (p Policy) Delays() []time.Duration {
	b := p.backOff()
	var out []time.Duration
	for {
		d := b.NextBackOff()
		if d == backoff.Stop {
			return out
		}
		out = append(out, d)
	}
}

// Do runs op until it succeeds, returns a permanent error, exhausts the
// policy or ctx is done.
func Do(ctx context.Context, p Policy, op func() error) error {
	_, err := Value(ctx, p, func() (struct{}, error) {
		return struct{}{}, op()
	})
	return err
}

// Value is Do for operations that produce a result
func Value[T any](ctx context.Context, p Policy, op func() (T, error)) (T, error) {
	b := backoff.WithContext(p.backOff(), ctx)
	notify := func(err error, next time.Duration) {
		log.Debug().Err(err).Dur("retry_in", next).Msg("retrying operation")
	}
	return backoff.RetryNotifyWithData(func() (T, error) {
		v, err := op()
		if err != nil {
			return v, classify(err)
		}
		return v, nil
	}, b, notify)
}
