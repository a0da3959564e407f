package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fastConfig() RetryConfig {
	config := DefaultRetryConfig()
	config.InitialDelay = 5 * time.Millisecond
	config.MaxDelay = 20 * time.Millisecond
	config.JitterFactor = 0
	return config
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	assert.Equal(t, 3, config.MaxAttempts)
	assert.Equal(t, 1*time.Second, config.InitialDelay)
	assert.Equal(t, 30*time.Second, config.MaxDelay)
	assert.Equal(t, 2.0, config.BackoffFactor)
	assert.Equal(t, 0.1, config.JitterFactor)
	assert.Nil(t, config.RetryableErrors)
}

func TestBackoffDelay(t *testing.T) {
	config := RetryConfig{
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      time.Second,
		BackoffFactor: 2.0,
	}

	assert.Equal(t, 100*time.Millisecond, config.BackoffDelay(0))
	assert.Equal(t, 100*time.Millisecond, config.BackoffDelay(1))
	assert.Equal(t, 200*time.Millisecond, config.BackoffDelay(2))
	assert.Equal(t, 400*time.Millisecond, config.BackoffDelay(3))
	assert.Equal(t, time.Second, config.BackoffDelay(10))

	config.JitterFactor = 0.5
	for i := 0; i < 20; i++ {
		d := config.BackoffDelay(2)
		assert.GreaterOrEqual(t, d, 200*time.Millisecond)
		assert.Less(t, d, 300*time.Millisecond)
	}
}

func TestRetryWithBackoff_Success(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), fastConfig(), func(ctx context.Context) error {
		attempts++
		if attempts < 2 {
			return errors.New("temporary error")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestRetryWithBackoff_AllAttemptsFail(t *testing.T) {
	attempts := 0
	testError := errors.New("persistent error")

	err := RetryWithBackoff(context.Background(), fastConfig(), func(ctx context.Context) error {
		attempts++
		return testError
	})

	assert.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.Contains(t, err.Error(), "max retries exceeded")
	assert.ErrorIs(t, err, testError)
}

func TestRetryWithBackoff_NonRetryableError(t *testing.T) {
	config := fastConfig()
	nonRetryable := errors.New("non-retryable")
	config.RetryableErrors = func(err error) bool {
		return !errors.Is(err, nonRetryable)
	}

	attempts := 0
	err := RetryWithBackoff(context.Background(), config, func(ctx context.Context) error {
		attempts++
		return nonRetryable
	})

	assert.Equal(t, nonRetryable, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	config := fastConfig()
	config.InitialDelay = time.Second
	config.MaxDelay = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := RetryWithBackoff(ctx, config, func(ctx context.Context) error {
		attempts++
		cancel()
		return errors.New("fail")
	})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "retry cancelled")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestSleep(t *testing.T) {
	assert.NoError(t, Sleep(context.Background(), time.Millisecond))
	assert.NoError(t, Sleep(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
}
