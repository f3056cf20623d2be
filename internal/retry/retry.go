package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"strings"
	"time"

	"github.com/acnlabs/agentmigrate/internal/common"
)

// Config holds configuration for store operation retries
type Config struct {
	MaxRetries      int           // Maximum number of retry attempts
	InitialDelay    time.Duration // Initial delay before first retry
	MaxDelay        time.Duration // Maximum delay between retries
	BackoffFactor   float64       // Multiplier for exponential backoff
	RetryableErrors []string      // Error substrings (lowercase) that trigger retries
}

// DefaultRetryConfig returns the retry configuration used for per-record store calls
func DefaultRetryConfig() *Config {
	return &Config{
		MaxRetries:    3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		RetryableErrors: []string{
			"connection refused",
			"connection reset",
			"timeout",
			"broken pipe",
			"connection lost",
			"loading",  // LOADING Redis is loading the dataset in memory
			"busy",     // BUSY Redis is busy running a script
			"tryagain", // TRYAGAIN during cluster resharding
			"clusterdown",
		},
	}
}

// NoRetry returns a configuration that runs the operation exactly once.
func NoRetry() *Config {
	return &Config{MaxRetries: 0}
}

// IsRetryable reports whether err should trigger another attempt
func (rc *Config) IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Context cancellation is never retried
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, retryableErr := range rc.RetryableErrors {
		if strings.Contains(errStr, retryableErr) {
			return true
		}
	}
	return false
}

// Delay returns the wait before the given retry attempt using exponential backoff
func (rc *Config) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return rc.InitialDelay
	}

	delay := time.Duration(float64(rc.InitialDelay) * math.Pow(rc.BackoffFactor, float64(attempt-1)))
	if rc.MaxDelay > 0 && delay > rc.MaxDelay {
		delay = rc.MaxDelay
	}
	return delay
}

// Operation represents a store operation that can be retried
type Operation func() error

// WithRetry executes an operation with retry logic
func WithRetry(ctx context.Context, config *Config, operation Operation) error {
	if config == nil {
		config = DefaultRetryConfig()
	}

	logger := common.GetLogger().WithComponent("store-retry")

	var lastErr error
	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		err := operation()
		if err == nil {
			if attempt > 0 {
				logger.Info("store operation succeeded after retry",
					"attempt", attempt+1,
					"total_attempts", config.MaxRetries+1)
			}
			return nil
		}

		lastErr = err

		if attempt == config.MaxRetries {
			break
		}

		if !config.IsRetryable(err) {
			logger.Debug("store operation failed with non-retryable error",
				"error", err,
				"attempt", attempt+1)
			return err
		}

		delay := config.Delay(attempt)
		logger.Warn("store operation failed, retrying",
			"error", err,
			"attempt", attempt+1,
			"max_attempts", config.MaxRetries+1,
			"retry_delay", delay)

		select {
		case <-ctx.Done():
			return fmt.Errorf("operation cancelled during retry: %w", ctx.Err())
		case <-time.After(delay):
		}
	}

	if config.MaxRetries == 0 {
		return lastErr
	}

	logger.Error("store operation failed after all retry attempts",
		"error", lastErr,
		"attempts", config.MaxRetries+1)

	return fmt.Errorf("operation failed after %d attempts: %w", config.MaxRetries+1, lastErr)
}

// Value executes an operation returning a value with retry logic
func Value[T any](ctx context.Context, config *Config, operation func() (T, error)) (T, error) {
	var out T
	err := WithRetry(ctx, config, func() error {
		v, err := operation()
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
