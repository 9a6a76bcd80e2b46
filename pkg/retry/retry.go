package retry

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"
)

// Config defines retry behavior with exponential backoff.
// MaxRetries counts retries, so fn runs at most MaxRetries+1 times.
type Config struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64 // 0.0-1.0; the jittered delay never exceeds MaxDelay

	// OnRetry, if set, is called before each wait with the 1-based attempt
	// that just failed.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultConfig returns the backoff used for model calls:
// 2 retries (3 attempts), 1s then 2s between attempts, capped at 4s.
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:   2,
		InitialDelay: time.Second,
		MaxDelay:     4 * time.Second,
		Multiplier:   2.0,
	}
}

// permanentError stops the retry loop immediately.
type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent wraps err so that Do and DoWithResult return it without retrying.
// The wrapper is removed before the error is returned to the caller.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// applyJitter adds random jitter of +/- delay*jitterFactor.
func applyJitter(delay time.Duration, jitterFactor float64) time.Duration {
	if jitterFactor <= 0 {
		return delay
	}
	jitter := float64(delay) * jitterFactor * (rand.Float64()*2 - 1)
	return time.Duration(float64(delay) + jitter)
}

// Do executes fn with exponential backoff retry logic.
// Returns nil on success, or the last error after all retries are exhausted.
// Respects context cancellation before the first attempt and during waits.
func Do(ctx context.Context, cfg *Config, fn func() error) error {
	_, err := DoWithResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoWithResult executes fn and returns both result and error.
// The last result is kept even when every attempt fails.
func DoWithResult[T any](ctx context.Context, cfg *Config, fn func() (T, error)) (T, error) {
	return run(ctx, cfg, func(error) bool { return true }, fn)
}

// DoIfRetryable only retries errors that IsRetryable reports as transient.
// Permanent failures (auth errors, bad requests) are returned immediately.
func DoIfRetryable[T any](ctx context.Context, cfg *Config, fn func() (T, error)) (T, error) {
	return run(ctx, cfg, IsRetryable, fn)
}

func run[T any](ctx context.Context, cfg *Config, shouldRetry func(error) bool, fn func() (T, error)) (T, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var result T
	if err := ctx.Err(); err != nil {
		return result, err
	}

	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		r, err := fn()
		if err == nil {
			return r, nil
		}
		result = r
		lastErr = err

		var perm *permanentError
		if errors.As(err, &perm) {
			return result, perm.err
		}
		if !shouldRetry(err) || attempt == cfg.MaxRetries {
			break
		}

		wait := applyJitter(delay, cfg.JitterFactor)
		if cfg.MaxDelay > 0 && wait > cfg.MaxDelay {
			wait = cfg.MaxDelay
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, err, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return result, ctx.Err()
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return result, lastErr
}

// RetryableError is an interface for errors that explicitly declare their retryability.
// LLM errors implement this interface to provide explicit retry behavior.
type RetryableError interface {
	error
	IsRetryable() bool
}

var retryablePatterns = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"timeout",
	"timed out",
	"temporary failure",
	"too many connections",
	"network is unreachable",
	"429",
	"502",
	"503",
	"504",
	"rate limit",
	"service unavailable",
	"too many requests",
}

// IsRetryable determines if an error is transient and worth retrying.
// Errors implementing RetryableError anywhere in the chain decide for
// themselves; otherwise the message is matched against known transient patterns.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var r RetryableError
	if errors.As(err, &r) {
		return r.IsRetryable()
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}
