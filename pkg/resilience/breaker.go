// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package resilience provides the outbound-call protection layer used for
// every request to the external transaction service: timeouts, bounded
// retry with exponential backoff, and a circuit breaker per logical
// endpoint.
package resilience

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// CircuitState represents the state of a circuit breaker.
//
// # States
//
//   - Closed: Normal operation, requests flow through
//   - Open: Circuit tripped, requests are rejected immediately
//   - HalfOpen: Testing if service recovered, one trial request allowed
//
// # State Diagram
//
//	   ┌─────────────────────────────────────┐
//	   │                                     │
//	   ▼                                     │
//	CLOSED ──[failure threshold]──► OPEN ───┘
//	   ▲                              │
//	   │                              │
//	   └───[success]◄── HALF_OPEN ◄──┘
//	                    [timeout]
type CircuitState int

const (
	// CircuitClosed is the normal operating state.
	CircuitClosed CircuitState = iota

	// CircuitOpen means the circuit has tripped and requests are rejected.
	CircuitOpen

	// CircuitHalfOpen means we're testing if the service has recovered.
	CircuitHalfOpen
)

// String returns a human-readable state name.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "CLOSED"
	case CircuitOpen:
		return "OPEN"
	case CircuitHalfOpen:
		return "HALF_OPEN"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// ErrCircuitOpen is returned when the circuit breaker is open and the call
// was rejected without any network I/O.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerConfig configures circuit breaker behavior.
//
// # Description
//
// Controls how the circuit breaker responds to failures and recovers.
// The breaker counts consecutive failures across all sessions calling the
// same endpoint; a single success in the closed state resets the count.
//
// # Example
//
//	config := BreakerConfig{
//	    FailureThreshold: 5,              // Open after 5 consecutive failures
//	    OpenTimeout:      60*time.Second, // Stay open for 60s, then half-open
//	}
type BreakerConfig struct {
	// FailureThreshold is consecutive failures before opening circuit.
	// Default: 5
	FailureThreshold int

	// OpenTimeout is how long to stay open before trying half-open.
	// Default: 60 seconds
	OpenTimeout time.Duration

	// OnStateChange is called when state transitions.
	// Called asynchronously to avoid blocking.
	OnStateChange func(from, to CircuitState)

	// now overrides the clock for tests. Nil means time.Now.
	now func() time.Time
}

// DefaultBreakerConfig returns sensible defaults for the transaction API.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		OpenTimeout:      60 * time.Second,
	}
}

// Breaker implements the circuit breaker pattern.
//
// # Description
//
// Prevents hammering a failing transaction service. After FailureThreshold
// consecutive failures the breaker opens and calls fail fast with
// ErrCircuitOpen. After OpenTimeout a single trial call is allowed
// (half-open); its success closes the circuit, its failure reopens it and
// restarts the timeout window.
//
// # Thread Safety
//
// Breaker is safe for concurrent use. It is the only cross-session shared
// mutable state in the system.
type Breaker struct {
	config      BreakerConfig
	state       CircuitState
	failures    int
	lastFailure time.Time
	mu          sync.RWMutex
}

// NewBreaker creates a new circuit breaker in the closed state.
func NewBreaker(config BreakerConfig) *Breaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.OpenTimeout <= 0 {
		config.OpenTimeout = 60 * time.Second
	}
	if config.now == nil {
		config.now = time.Now
	}

	return &Breaker{
		config: config,
		state:  CircuitClosed,
	}
}

// Allow reports whether a request may proceed right now.
//
// # Description
//
// In the open state, Allow transitions to half-open once OpenTimeout has
// elapsed since the last failure and permits the trial call. Callers must
// pair every true result with a Record call so the breaker sees the
// outcome.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case CircuitClosed:
		return true

	case CircuitOpen:
		if b.config.now().Sub(b.lastFailure) > b.config.OpenTimeout {
			b.transitionTo(CircuitHalfOpen)
			return true
		}
		return false

	case CircuitHalfOpen:
		return true

	default:
		return false
	}
}

// Record records the outcome of a call previously admitted by Allow.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.recordFailure()
	} else {
		b.recordSuccess()
	}
}

func (b *Breaker) recordFailure() {
	b.failures++
	b.lastFailure = b.config.now()

	switch b.state {
	case CircuitClosed:
		if b.failures >= b.config.FailureThreshold {
			b.transitionTo(CircuitOpen)
		}
	case CircuitHalfOpen:
		// Any failure in half-open goes back to open
		b.transitionTo(CircuitOpen)
	}
}

func (b *Breaker) recordSuccess() {
	switch b.state {
	case CircuitClosed:
		b.failures = 0
	case CircuitHalfOpen:
		b.failures = 0
		b.transitionTo(CircuitClosed)
	}
}

func (b *Breaker) transitionTo(state CircuitState) {
	if b.state == state {
		return
	}

	old := b.state
	b.state = state

	if b.config.OnStateChange != nil {
		// Call callback without holding lock to prevent deadlocks
		go b.config.OnStateChange(old, state)
	}
}

// State returns the current circuit state.
func (b *Breaker) State() CircuitState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Failures returns the current consecutive failure count.
func (b *Breaker) Failures() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.failures
}

// Reset forces the circuit to closed state.
//
// Use when you know the transaction service has been fixed externally.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	old := b.state
	b.state = CircuitClosed
	b.failures = 0

	if old != CircuitClosed && b.config.OnStateChange != nil {
		go b.config.OnStateChange(old, CircuitClosed)
	}
}

// BreakerRegistry manages circuit breakers for multiple logical endpoints.
//
// # Description
//
// Provides a centralized registry for circuit breakers, creating them on
// demand with consistent configuration. The transaction gateway uses one
// breaker per endpoint name ("transactions") so all sessions share failure
// counts for the same backend.
//
// # Thread Safety
//
// BreakerRegistry is safe for concurrent use.
type BreakerRegistry struct {
	defaultConfig BreakerConfig
	breakers      map[string]*Breaker
	mu            sync.RWMutex
}

// NewBreakerRegistry creates a new registry.
func NewBreakerRegistry(defaultConfig BreakerConfig) *BreakerRegistry {
	return &BreakerRegistry{
		defaultConfig: defaultConfig,
		breakers:      make(map[string]*Breaker),
	}
}

// Get returns the circuit breaker for an endpoint, creating if needed.
func (r *BreakerRegistry) Get(name string) *Breaker {
	r.mu.RLock()
	b, exists := r.breakers[name]
	r.mu.RUnlock()

	if exists {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if b, exists = r.breakers[name]; exists {
		return b
	}

	b = NewBreaker(r.defaultConfig)
	r.breakers[name] = b
	return b
}

// States returns the current state of all circuit breakers.
func (r *BreakerRegistry) States() map[string]CircuitState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]CircuitState, len(r.breakers))
	for name, b := range r.breakers {
		result[name] = b.State()
	}
	return result
}

// ResetAll resets all circuit breakers in the registry.
func (r *BreakerRegistry) ResetAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, b := range r.breakers {
		b.Reset()
	}
}
