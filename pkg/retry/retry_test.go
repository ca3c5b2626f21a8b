// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	melonerrors "github.com/jontk/melon/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestExponentialBackoffPolicy_Default(t *testing.T) {
	policy := NewExponentialBackoffPolicy()

	assert.Equal(t, 3, policy.MaxRetries())
	assert.Equal(t, 1*time.Second, policy.minWaitTime)
	assert.Equal(t, 30*time.Second, policy.maxWaitTime)
	assert.Equal(t, 2.0, policy.backoffFactor)
	assert.True(t, policy.jitter)
}

func TestExponentialBackoffPolicy_WithMethods(t *testing.T) {
	policy := NewExponentialBackoffPolicy().
		WithMaxRetries(5).
		WithMinWaitTime(2 * time.Second).
		WithMaxWaitTime(60 * time.Second).
		WithBackoffFactor(1.5).
		WithJitter(false)

	assert.Equal(t, 5, policy.MaxRetries())
	assert.Equal(t, 2*time.Second, policy.minWaitTime)
	assert.Equal(t, 60*time.Second, policy.maxWaitTime)
	assert.Equal(t, 1.5, policy.backoffFactor)
	assert.False(t, policy.jitter)
}

func TestExponentialBackoffPolicy_ShouldRetry(t *testing.T) {
	policy := NewExponentialBackoffPolicy().WithMaxRetries(3)
	ctx := context.Background()

	tests := []struct {
		name        string
		err         error
		attempt     int
		shouldRetry bool
	}{
		{"unavailable retries", melonerrors.New(melonerrors.Unavailable, "dial timeout"), 1, true},
		{"max retries exceeded", melonerrors.New(melonerrors.Unavailable, "dial timeout"), 3, false},
		{"invalid argument never retries", melonerrors.New(melonerrors.InvalidArgument, "bad request"), 1, false},
		{"permission denied never retries", melonerrors.New(melonerrors.PermissionDenied, "nope"), 1, false},
		{"not found never retries", melonerrors.New(melonerrors.NotFound, "no job"), 1, false},
		{"plain error is treated as internal and not retried", errors.New("connection refused"), 1, false},
		{"nil error does not retry", nil, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.shouldRetry, policy.ShouldRetry(ctx, tt.err, tt.attempt))
		})
	}
}

func TestExponentialBackoffPolicy_ShouldRetryWithCancelledContext(t *testing.T) {
	policy := NewExponentialBackoffPolicy()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := policy.ShouldRetry(ctx, melonerrors.New(melonerrors.Unavailable, "x"), 1)
	assert.False(t, result)
}

func TestExponentialBackoffPolicy_WaitTime(t *testing.T) {
	policy := NewExponentialBackoffPolicy().
		WithMinWaitTime(1 * time.Second).
		WithMaxWaitTime(10 * time.Second).
		WithBackoffFactor(2.0).
		WithJitter(false)

	tests := []struct {
		name        string
		attempt     int
		expectedMin time.Duration
		expectedMax time.Duration
	}{
		{"attempt 0", 0, 1 * time.Second, 1 * time.Second},
		{"attempt 1", 1, 1 * time.Second, 1 * time.Second},
		{"attempt 2", 2, 2 * time.Second, 2 * time.Second},
		{"attempt 3", 3, 4 * time.Second, 4 * time.Second},
		{"attempt 4 (hits max)", 4, 8 * time.Second, 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			waitTime := policy.WaitTime(tt.attempt)
			if tt.expectedMin == tt.expectedMax {
				assert.Equal(t, tt.expectedMin, waitTime)
			} else {
				assert.GreaterOrEqual(t, waitTime, tt.expectedMin)
				assert.LessOrEqual(t, waitTime, tt.expectedMax)
			}
		})
	}
}

func TestFixedDelay(t *testing.T) {
	maxRetries := 3
	delay := 5 * time.Second
	policy := NewFixedDelay(maxRetries, delay)

	assert.Equal(t, maxRetries, policy.MaxRetries())
	assert.Equal(t, delay, policy.WaitTime(1))
	assert.Equal(t, delay, policy.WaitTime(5))

	ctx := context.Background()
	assert.True(t, policy.ShouldRetry(ctx, melonerrors.New(melonerrors.Unavailable, "x"), 1))
	assert.False(t, policy.ShouldRetry(ctx, melonerrors.New(melonerrors.Unavailable, "x"), 3))
	assert.False(t, policy.ShouldRetry(ctx, nil, 1))
}

func TestNoRetry(t *testing.T) {
	policy := NewNoRetry()

	assert.Equal(t, 0, policy.MaxRetries())
	assert.Equal(t, time.Duration(0), policy.WaitTime(1))
	assert.False(t, policy.ShouldRetry(context.Background(), errors.New("x"), 0))
}

func TestPolicyInterface(t *testing.T) {
	var _ Policy = &ExponentialBackoffPolicy{}
	var _ Policy = &FixedDelay{}
	var _ Policy = &NoRetry{}
}

func TestDo(t *testing.T) {
	t.Run("succeeds first try", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), NewFixedDelay(3, time.Millisecond), func(ctx context.Context) error {
			calls++
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("retries retryable errors then succeeds", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), NewFixedDelay(3, time.Millisecond), func(ctx context.Context) error {
			calls++
			if calls < 2 {
				return melonerrors.New(melonerrors.Unavailable, "not yet")
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("gives up on non-retryable error immediately", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), NewFixedDelay(3, time.Millisecond), func(ctx context.Context) error {
			calls++
			return melonerrors.New(melonerrors.PermissionDenied, "no")
		})
		assert.Error(t, err)
		assert.Equal(t, 1, calls)
	})
}
