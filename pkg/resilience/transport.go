// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package resilience

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// ErrRetriesExhausted is returned when every retry attempt failed with a
// transient error. The last underlying cause is wrapped.
var ErrRetriesExhausted = errors.New("retry attempts exhausted")

// StatusError is a well-formed error response from the remote service.
//
// # Description
//
// A StatusError means the service received and rejected the request; it is
// never retried (unless transient, see Transient) and never counts as a
// breaker failure for 4xx codes. The body is preserved so the gateway can
// surface the remote reason to the user.
type StatusError struct {
	StatusCode int
	Body       []byte
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("remote service returned status %d", e.StatusCode)
}

// Transient reports whether the status indicates a transient server-side
// condition that is safe to retry (503 and other 5xx).
func (e *StatusError) Transient() bool {
	return e.StatusCode >= 500
}

// Config configures the resilient transport.
//
// # Fields
//
//   - ConnectTimeout: TCP connect (and TLS handshake) budget per attempt
//   - ReadTimeout: response budget per attempt once connected
//   - Retry: backoff policy; nil uses DefaultRetryPolicy
//   - Breaker: circuit breaker configuration shared by all endpoints
//   - HTTPClient: overrides the built client (tests)
type Config struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	Retry          *RetryPolicy
	Breaker        BreakerConfig
	HTTPClient     *http.Client
}

// Request describes one outbound call to the external transaction service.
//
// # Fields
//
//   - Endpoint: logical endpoint name keying the circuit breaker
//   - Method: HTTP method (GET or POST)
//   - URL: absolute request URL
//   - Body: JSON-marshaled when non-nil
//   - Idempotent: true for GET-style calls, always retry-eligible
//   - IdempotencyKey: required for non-idempotent calls to be retried;
//     sent as the X-Idempotency-Key header so the remote service can
//     deduplicate replays
type Request struct {
	Endpoint       string
	Method         string
	URL            string
	Body           any
	Idempotent     bool
	IdempotencyKey string
}

// Transport wraps a single external call with timeout, bounded retry with
// exponential backoff, and a circuit breaker.
//
// # Description
//
// Transport is the only component that performs network I/O toward the
// transaction service. Outcomes are distinguishable to the caller:
//
//   - nil error: success, response decoded into out
//   - ErrCircuitOpen: rejected without I/O, breaker open
//   - ErrRetriesExhausted (wrapping the last cause): transient failures
//     on every attempt
//   - *StatusError: well-formed non-transient error response (4xx)
//   - context errors: the caller cancelled; no retry happens after
//     cancellation and no breaker state is recorded for that call
//
// # Thread Safety
//
// Transport is safe for concurrent use across sessions; breaker counters
// are the only shared mutable state and are updated atomically.
type Transport struct {
	client   *http.Client
	policy   *RetryPolicy
	breakers *BreakerRegistry

	// sleep waits for the backoff delay; injectable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewTransport builds a Transport from config.
//
// # Description
//
// Constructs the underlying http.Client with a separate connect timeout
// (dialer + TLS handshake) and read timeout (response headers), plus an
// overall per-attempt deadline of connect + read.
func NewTransport(cfg Config) *Transport {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Second
	}

	client := cfg.HTTPClient
	if client == nil {
		dialer := &net.Dialer{Timeout: cfg.ConnectTimeout}
		client = &http.Client{
			Transport: &http.Transport{
				DialContext:           dialer.DialContext,
				TLSHandshakeTimeout:   cfg.ConnectTimeout,
				ResponseHeaderTimeout: cfg.ReadTimeout,
			},
			Timeout: cfg.ConnectTimeout + cfg.ReadTimeout,
		}
	}

	return &Transport{
		client:   client,
		policy:   cfg.Retry,
		breakers: NewBreakerRegistry(cfg.Breaker),
	}
}

// Breakers exposes the registry for observability (state gauges, admin).
func (t *Transport) Breakers() *BreakerRegistry {
	return t.breakers
}

// Do executes the request with retry, backoff, and circuit breaking, and
// decodes the JSON response body into out (when out is non-nil).
//
// # Description
//
// Retries cover network errors, timeouts, 5xx responses, and malformed
// response bodies. Well-formed 4xx responses are returned immediately as
// *StatusError and do not count against the breaker. Non-idempotent
// requests are only replayed when an IdempotencyKey is present; without
// one, the first transient failure is terminal for this call.
//
// # Inputs
//
//   - ctx: cancellation; a cancelled context stops the retry loop at once
//   - req: the outbound request description
//   - out: optional JSON decode target
//
// # Outputs
//
//   - error: see Transport outcome taxonomy
func (t *Transport) Do(ctx context.Context, req Request, out any) error {
	breaker := t.breakers.Get(req.Endpoint)
	if !breaker.Allow() {
		slog.Warn("circuit open, rejecting call without I/O",
			"endpoint", req.Endpoint, "url", req.URL)
		return ErrCircuitOpen
	}

	attempts := t.policy.attempts()
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := t.policy.CalculateDelay(attempt - 1)
			slog.Warn("retrying transaction service call",
				"endpoint", req.Endpoint,
				"attempt", attempt+1,
				"max_attempts", attempts,
				"backoff", delay.String(),
				"error", lastErr.Error(),
			)
			if err := t.wait(ctx, delay); err != nil {
				// Cancelled mid-backoff: the service was never consulted
				// on this attempt, so no breaker outcome is recorded.
				return err
			}
		}

		err := t.doOnce(ctx, req, out)
		if err == nil {
			breaker.Record(nil)
			return nil
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		var statusErr *StatusError
		if errors.As(err, &statusErr) && !statusErr.Transient() {
			// The service is up and answered; a 4xx is a domain outcome,
			// not a breaker failure.
			breaker.Record(nil)
			return err
		}

		lastErr = err

		if !req.Idempotent && req.IdempotencyKey == "" {
			break
		}
	}

	breaker.Record(lastErr)
	return fmt.Errorf("%w: %w", ErrRetriesExhausted, lastErr)
}

// doOnce performs a single HTTP attempt.
func (t *Transport) doOnce(ctx context.Context, req Request, out any) error {
	var bodyReader io.Reader
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bodyReader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.IdempotencyKey != "" {
		httpReq.Header.Set("X-Idempotency-Key", req.IdempotencyKey)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode, Body: payload}
	}

	if out != nil {
		if err := json.Unmarshal(payload, out); err != nil {
			// Malformed body on a 2xx is treated like any other
			// transport failure and retried.
			return fmt.Errorf("malformed response body: %w", err)
		}
	}

	return nil
}

// wait blocks for d or until ctx is done.
func (t *Transport) wait(ctx context.Context, d time.Duration) error {
	if t.sleep != nil {
		return t.sleep(ctx, d)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
