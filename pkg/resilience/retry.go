// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package resilience

import (
	"math"
	"math/rand"
	"time"
)

// RetryPolicy configures exponential backoff for retries.
//
// # Description
//
// Controls how transport-level failures are retried with exponential
// backoff and optional jitter. Attempt n (1-based) waits
// InitialDelay * 2^(n-1) before running, capped at MaxDelay.
//
// # Defaults
//
// Default policy: 3 attempts, 1s initial delay, 30s max delay, no jitter.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps the exponential backoff.
	MaxDelay time.Duration

	// JitterFactor adds randomness (0.0 to 1.0).
	// 0.1 means +/- 10% variation.
	JitterFactor float64
}

// DefaultRetryPolicy returns the standard retry configuration.
//
// # Description
//
// Returns a policy with reasonable defaults for the transaction service:
// 3 attempts, exponential backoff from 1s to 30s.
//
// # Outputs
//
//   - *RetryPolicy: Default configuration
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
	}
}

// CalculateDelay computes the backoff delay before the given retry.
//
// # Description
//
// Uses exponential backoff with optional jitter:
// delay = min(initial * 2^attempt, max) * (1 +/- jitter).
//
// # Inputs
//
//   - attempt: Zero-based retry number (0 = first retry)
//
// # Outputs
//
//   - time.Duration: Delay before next attempt
//
// # Examples
//
//	policy := DefaultRetryPolicy()
//	delay := policy.CalculateDelay(0) // ~1s
//	delay = policy.CalculateDelay(2)  // ~4s
func (p *RetryPolicy) CalculateDelay(attempt int) time.Duration {
	if p == nil {
		return DefaultRetryPolicy().CalculateDelay(attempt)
	}

	baseDelay := float64(p.InitialDelay) * math.Pow(2, float64(attempt))

	maxDelay := float64(p.MaxDelay)
	if p.MaxDelay > 0 && baseDelay > maxDelay {
		baseDelay = maxDelay
	}

	return p.applyJitter(time.Duration(baseDelay))
}

// applyJitter multiplies delay by (1 +/- jitterFactor * random).
func (p *RetryPolicy) applyJitter(delay time.Duration) time.Duration {
	if p.JitterFactor <= 0 {
		return delay
	}

	jitter := float64(delay) * p.JitterFactor * (2*rand.Float64() - 1)
	return time.Duration(float64(delay) + jitter)
}

// attempts returns the effective attempt count for a possibly-nil policy.
func (p *RetryPolicy) attempts() int {
	if p == nil || p.MaxAttempts <= 0 {
		return DefaultRetryPolicy().MaxAttempts
	}
	return p.MaxAttempts
}
