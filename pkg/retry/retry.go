// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	melonerrors "github.com/jontk/melon/pkg/errors"
)

// Policy defines the interface for deciding whether a failed RPC attempt
// should be retried and how long to wait before the next one. Unlike an
// HTTP-specific retry policy, melon's policies classify failures through the
// structured *errors.Error kind returned by every RPC call (§7), since the
// RPC transport is a typed websocket protocol, not an HTTP client.
type Policy interface {
	// ShouldRetry determines if a call should be retried given the error
	// from the previous attempt (nil means success, so callers only invoke
	// this after a failure).
	ShouldRetry(ctx context.Context, err error, attempt int) bool

	// WaitTime returns the wait time before the next retry.
	WaitTime(attempt int) time.Duration

	// MaxRetries returns the maximum number of retries.
	MaxRetries() int
}

// ExponentialBackoffPolicy implements exponential backoff, retrying only
// errors the structured error type marks as retryable (Unavailable).
type ExponentialBackoffPolicy struct {
	maxRetries    int
	minWaitTime   time.Duration
	maxWaitTime   time.Duration
	backoffFactor float64
	jitter        bool
}

// NewExponentialBackoffPolicy creates a retry policy suited to the worker's
// outbound SendHeartbeat and SubmitJobResult calls (§5, recommended 5s RPC
// timeout).
func NewExponentialBackoffPolicy() *ExponentialBackoffPolicy {
	return &ExponentialBackoffPolicy{
		maxRetries:    3,
		minWaitTime:   1 * time.Second,
		maxWaitTime:   30 * time.Second,
		backoffFactor: 2.0,
		jitter:        true,
	}
}

func (e *ExponentialBackoffPolicy) WithMaxRetries(maxRetries int) *ExponentialBackoffPolicy {
	e.maxRetries = maxRetries
	return e
}

func (e *ExponentialBackoffPolicy) WithMinWaitTime(d time.Duration) *ExponentialBackoffPolicy {
	e.minWaitTime = d
	return e
}

func (e *ExponentialBackoffPolicy) WithMaxWaitTime(d time.Duration) *ExponentialBackoffPolicy {
	e.maxWaitTime = d
	return e
}

func (e *ExponentialBackoffPolicy) WithBackoffFactor(f float64) *ExponentialBackoffPolicy {
	e.backoffFactor = f
	return e
}

func (e *ExponentialBackoffPolicy) WithJitter(jitter bool) *ExponentialBackoffPolicy {
	e.jitter = jitter
	return e
}

// ShouldRetry retries network/timeout failures (Unavailable) up to
// maxRetries; it never retries InvalidArgument, PermissionDenied, NotFound,
// or ResourceExhausted, since those are not transient.
func (e *ExponentialBackoffPolicy) ShouldRetry(ctx context.Context, err error, attempt int) bool {
	if attempt >= e.maxRetries {
		return false
	}

	select {
	case <-ctx.Done():
		return false
	default:
	}

	if err == nil {
		return false
	}

	me := melonerrors.WrapError(err)
	return me.IsRetryable()
}

func (e *ExponentialBackoffPolicy) WaitTime(attempt int) time.Duration {
	if attempt <= 0 {
		return e.minWaitTime
	}

	waitTime := time.Duration(float64(e.minWaitTime) * math.Pow(e.backoffFactor, float64(attempt-1)))
	if waitTime > e.maxWaitTime {
		waitTime = e.maxWaitTime
	}

	if e.jitter {
		jitterAmount := time.Duration(rand.Float64() * float64(waitTime) * 0.1)
		waitTime += jitterAmount
	}

	return waitTime
}

func (e *ExponentialBackoffPolicy) MaxRetries() int {
	return e.maxRetries
}

// FixedDelay implements a fixed delay retry policy.
type FixedDelay struct {
	maxRetries int
	delay      time.Duration
}

// NewFixedDelay creates a new fixed delay retry policy.
func NewFixedDelay(maxRetries int, delay time.Duration) *FixedDelay {
	return &FixedDelay{maxRetries: maxRetries, delay: delay}
}

func (f *FixedDelay) ShouldRetry(ctx context.Context, err error, attempt int) bool {
	if attempt >= f.maxRetries {
		return false
	}

	select {
	case <-ctx.Done():
		return false
	default:
	}

	if err == nil {
		return false
	}

	return melonerrors.WrapError(err).IsRetryable()
}

func (f *FixedDelay) WaitTime(attempt int) time.Duration { return f.delay }
func (f *FixedDelay) MaxRetries() int                    { return f.maxRetries }

// NoRetry never retries.
type NoRetry struct{}

func NewNoRetry() *NoRetry { return &NoRetry{} }

func (n *NoRetry) ShouldRetry(ctx context.Context, err error, attempt int) bool { return false }
func (n *NoRetry) WaitTime(attempt int) time.Duration                          { return 0 }
func (n *NoRetry) MaxRetries() int                                             { return 0 }

// Do runs fn, retrying according to policy until it succeeds, the policy
// gives up, or ctx is done. The worker wraps its SendHeartbeat and
// SubmitJobResult calls in it; the initial dial to the master is not retried.
func Do(ctx context.Context, policy Policy, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !policy.ShouldRetry(ctx, err, attempt) {
			return lastErr
		}

		select {
		case <-time.After(policy.WaitTime(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
