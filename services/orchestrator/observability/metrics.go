// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides metrics and instrumentation for the
// transfer orchestrator.
//
// # Description
//
// This package implements Prometheus metrics for monitoring the transfer
// dialogue and the calls to the external transaction service. Metrics
// include:
//   - Turn counters (by outcome kind)
//   - External call counters and latency histograms (by endpoint, status)
//   - Circuit breaker state gauges
//   - Active session gauge
//
// # Integration
//
// Metrics are exposed via /metrics endpoint. Use with Prometheus + Grafana
// for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "aleutian"

// Subsystem for transfer dialogue metrics
const transferSubsystem = "transfer"

// TransferMetrics holds all Prometheus metrics for the transfer orchestrator.
//
// # Description
//
// Provides counters, histograms, and gauges for monitoring dialogue turns
// and external transaction service health. Initialize once at startup via
// InitMetrics().
//
// # Fields
//
//   - TurnsTotal: Counter of processed dialogue turns by outcome
//   - ExternalCallsTotal: Counter of transaction service calls by endpoint and status
//   - ExternalCallDurationSeconds: Histogram of transaction service call latency
//   - BreakerState: Gauge of circuit breaker state per endpoint (0=closed, 1=open, 2=half-open)
//   - ActiveSessions: Gauge of sessions currently held in the store
//   - ErrorsTotal: Counter of turn-level errors by type
//
// # Thread Safety
//
// All operations are thread-safe.
type TransferMetrics struct {
	// TurnsTotal counts processed dialogue turns.
	// Labels: outcome (awaiting_confirmation, executed, cancelled, etc.)
	TurnsTotal *prometheus.CounterVec

	// ExternalCallsTotal counts calls to the transaction service.
	// Labels: endpoint (validate, execute, status), status (success, rejected, error)
	ExternalCallsTotal *prometheus.CounterVec

	// ExternalCallDurationSeconds measures transaction service call latency,
	// including retries and backoff.
	// Labels: endpoint (validate, execute, status)
	ExternalCallDurationSeconds *prometheus.HistogramVec

	// BreakerState reports the circuit breaker state per logical endpoint.
	// Labels: endpoint. Values: 0=closed, 1=open, 2=half-open.
	BreakerState *prometheus.GaugeVec

	// ActiveSessions tracks sessions currently held in the store.
	ActiveSessions prometheus.Gauge

	// ErrorsTotal counts turn-level errors by type.
	// Labels: error_code (validation, service_unavailable, internal, etc.)
	ErrorsTotal *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance of TransferMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *TransferMetrics

// InitMetrics initializes the default metrics instance.
//
// # Description
//
// Creates and registers all Prometheus metrics. Should be called once
// at application startup, after Prometheus registry is available.
//
// # Outputs
//
//   - *TransferMetrics: The initialized metrics instance.
//
// # Limitations
//
//   - Panics if called twice (duplicate registration).
//
// # Assumptions
//
//   - Prometheus default registry is available.
func InitMetrics() *TransferMetrics {
	DefaultMetrics = &TransferMetrics{
		TurnsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: transferSubsystem,
				Name:      "turns_total",
				Help:      "Total number of processed dialogue turns by outcome",
			},
			[]string{"outcome"},
		),

		ExternalCallsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: transferSubsystem,
				Name:      "external_calls_total",
				Help:      "Total transaction service calls by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),

		ExternalCallDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: transferSubsystem,
				Name:      "external_call_duration_seconds",
				Help:      "Transaction service call latency in seconds, retries included",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 15.0, 45.0},
			},
			[]string{"endpoint"},
		),

		BreakerState: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: transferSubsystem,
				Name:      "breaker_state",
				Help:      "Circuit breaker state per endpoint (0=closed, 1=open, 2=half-open)",
			},
			[]string{"endpoint"},
		),

		ActiveSessions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: transferSubsystem,
				Name:      "active_sessions",
				Help:      "Number of sessions currently held in the store",
			},
		),

		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: transferSubsystem,
				Name:      "errors_total",
				Help:      "Total turn-level errors by type",
			},
			[]string{"error_code"},
		),
	}

	return DefaultMetrics
}

// =============================================================================
// Error Codes
// =============================================================================

// ErrorCode represents a categorized error type for metrics.
type ErrorCode string

const (
	// ErrorCodeValidation indicates request validation failure.
	ErrorCodeValidation ErrorCode = "validation"

	// ErrorCodeServiceUnavailable indicates the transaction service could
	// not be reached (retries exhausted or circuit open).
	ErrorCodeServiceUnavailable ErrorCode = "service_unavailable"

	// ErrorCodeTimeout indicates the turn was cancelled or timed out.
	ErrorCodeTimeout ErrorCode = "timeout"

	// ErrorCodeInternal indicates internal server error.
	ErrorCodeInternal ErrorCode = "internal"
)

// =============================================================================
// Endpoint Names
// =============================================================================

// Endpoint represents a transaction service endpoint for metrics labeling.
type Endpoint string

const (
	// EndpointValidate is the transaction validation endpoint.
	EndpointValidate Endpoint = "validate"

	// EndpointExecute is the transaction execution endpoint.
	EndpointExecute Endpoint = "execute"

	// EndpointStatus is the transaction status lookup endpoint.
	EndpointStatus Endpoint = "status"
)

// =============================================================================
// Helper Methods
// =============================================================================

// RecordTurn records one processed dialogue turn.
//
// # Inputs
//
//   - outcome: The outcome kind of the turn.
func (m *TransferMetrics) RecordTurn(outcome string) {
	m.TurnsTotal.WithLabelValues(outcome).Inc()
}

// RecordExternalCall records one logical transaction service call.
//
// # Inputs
//
//   - endpoint: The endpoint that was called.
//   - status: "success", "rejected", or "error".
//   - seconds: Wall time of the call, retries included.
func (m *TransferMetrics) RecordExternalCall(endpoint Endpoint, status string, seconds float64) {
	m.ExternalCallsTotal.WithLabelValues(string(endpoint), status).Inc()
	m.ExternalCallDurationSeconds.WithLabelValues(string(endpoint)).Observe(seconds)
}

// RecordError records a turn-level error.
//
// # Inputs
//
//   - code: The error type code.
func (m *TransferMetrics) RecordError(code ErrorCode) {
	m.ErrorsTotal.WithLabelValues(string(code)).Inc()
}

// SetBreakerState records the circuit breaker state for an endpoint.
//
// # Inputs
//
//   - endpoint: The logical endpoint name keying the breaker.
//   - state: 0=closed, 1=open, 2=half-open.
func (m *TransferMetrics) SetBreakerState(endpoint string, state int) {
	m.BreakerState.WithLabelValues(endpoint).Set(float64(state))
}

// SetActiveSessions records the current session count.
func (m *TransferMetrics) SetActiveSessions(count int) {
	m.ActiveSessions.Set(float64(count))
}
