// Package retry applies a uniform backoff policy to outbound calls: LLM
// invocations, judgment calls, and posting calls all go through Do.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// Config bounds the retry loop. Delay for attempt n (0-based) is
// InitialDelay * BackoffMultiplier^n, jittered, capped at MaxDelay.
type Config struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	BackoffMultiplier float64
	Jitter            float64 // +/- fraction of the delay, e.g. 0.1
	MaxDelay          time.Duration
}

// Default matches the shipped configuration: three attempts, one second
// initial delay, doubling, 10% jitter.
func Default() Config {
	return Config{
		MaxAttempts:       3,
		InitialDelay:      time.Second,
		BackoffMultiplier: 2,
		Jitter:            0.1,
		MaxDelay:          30 * time.Second,
	}
}

type transienter interface {
	Transient() bool
}

type timeouter interface {
	Timeout() bool
}

// Retryable reports whether an error is a transient failure: anything
// self-describing as transient (provider 429/5xx), or a network timeout.
// Context cancellation is never retryable.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var tr transienter
	if errors.As(err, &tr) {
		return tr.Transient()
	}
	var to timeouter
	if errors.As(err, &to) {
		return to.Timeout()
	}
	return false
}

// sleep is replaced in tests.
var sleep = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Do runs fn until it succeeds, fails terminally, or attempts run out.
// The terminal error of the last attempt is returned unchanged so callers
// can inspect it.
func Do[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	var zero T
	delay := cfg.InitialDelay
	var err error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			if serr := sleep(ctx, jittered(delay, cfg.Jitter)); serr != nil {
				return zero, serr
			}
			delay = time.Duration(float64(delay) * cfg.BackoffMultiplier)
			if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
		}

		var out T
		out, err = fn()
		if err == nil {
			return out, nil
		}
		if !Retryable(err) {
			return zero, err
		}
	}
	return zero, err
}

func jittered(d time.Duration, jitter float64) time.Duration {
	if jitter <= 0 || d <= 0 {
		return d
	}
	spread := (rand.Float64()*2 - 1) * jitter
	return time.Duration(float64(d) * (1 + spread))
}
