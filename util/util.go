// Package util provides timing helpers for reconnect scheduling.
//
// Includes exponential backoff with jitter and context-aware sleeping.
package util

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"time"
)

// --------------------------------------------------------------------------------
// Constants

const (
	// DefaultMinWait is the minimum wait duration when invalid or zero.
	DefaultMinWait = time.Millisecond
	// DefaultMaxWait is the default maximum wait time if unspecified.
	DefaultMaxWait = 30 * time.Second
	// DefaultJitterFactor is the default fraction of wait time used for jitter.
	DefaultJitterFactor = 0.5
	// maxSafeShift prevents integer overflow in exponential backoff calculations.
	// It represents the maximum shift (2^62) before hitting int64 limits.
	maxSafeShift = 62
)

// --------------------------------------------------------------------------------
// Utility Functions

// Backoff computes the delay before a retry attempt.
//
// The delay is min(maxWait, base * 2^(attempt-1)) plus a random jitter in
// [0, delay*jitterFactor). When maxWait equals base the delay is fixed.
//
// Parameters:
//   - attempt: Retry attempt number (1-based; 0 treated as 1).
//   - base: Base wait time for the first attempt.
//   - maxWait: Maximum wait time cap (0 uses DefaultMaxWait).
//   - jitterFactor: Fraction of wait time for jitter (0 to 1; 0 disables jitter).
func Backoff(attempt uint, base, maxWait time.Duration, jitterFactor float64) (time.Duration, error) {
	// Normalize inputs.
	if base <= 0 {
		base = DefaultMinWait
	}

	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}

	if jitterFactor < 0 || jitterFactor > 1 {
		jitterFactor = DefaultJitterFactor
	}

	attempt = max(attempt, 1) // Treat 0 as 1.

	wait := calculateBackoff(attempt, base, maxWait)

	if jitterFactor == 0 {
		return wait, nil
	}

	maxJitter := int64(float64(wait) * jitterFactor)
	if maxJitter <= 0 {
		return wait, nil
	}

	j, err := rand.Int(rand.Reader, big.NewInt(maxJitter))
	if err != nil {
		return wait, fmt.Errorf("failed to generate jitter: %w", err)
	}

	return wait + time.Duration(j.Int64()), nil
}

// Sleep blocks for d or until ctx is done.
//
// Returns ctx.Err() if the context ends first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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

// Wait delays execution with exponential backoff and jitter.
//
// It is Backoff followed by Sleep.
//
// Example:
//
//	err := Wait(context.Background(), 3, time.Second, 10*time.Second, 0.5)
//	if err != nil {
//	    log.Println("Wait canceled:", err)
//	}
func Wait(ctx context.Context, attempt uint, base, maxWait time.Duration, jitterFactor float64) error {
	wait, err := Backoff(attempt, base, maxWait, jitterFactor)
	if err != nil {
		return err
	}

	return Sleep(ctx, wait)
}

// --------------------------------------------------------------------------------
// Helper Functions

// calculateBackoff computes the exponential backoff duration.
//
// It ensures the result does not exceed maxWait and handles potential overflows.
func calculateBackoff(attempt uint, base, maxWait time.Duration) time.Duration {
	shift := attempt - 1
	if shift > maxSafeShift { // Prevent overflow beyond 2^62.
		return maxWait
	}

	// Check for potential overflow before shifting.
	if maxShifted := math.MaxInt64 / base; maxShifted < 1<<shift {
		return maxWait
	}

	wait := base * (1 << shift)

	return min(wait, maxWait)
}
