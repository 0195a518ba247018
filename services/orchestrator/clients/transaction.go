// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package clients provides the gateway to the external transaction service.
//
// # Description
//
// TransactionClient is the single integration point with the transaction
// service's HTTP API. It owns the wire contract (request/response shapes,
// URL layout, idempotency keys) and translates transport-level outcomes
// into domain outcomes:
//
//   - a well-formed rejection (HTTP 4xx or is_valid=false) becomes a domain
//     outcome carrying the remote reason, never an error
//   - retries exhausted, circuit open, and cancellation surface as errors
//     from the gateway methods
//
// All network behavior (timeouts, retry, backoff, circuit breaking) lives
// in pkg/resilience; this package never touches net/http directly.
package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/AleutianTransfer/pkg/resilience"
	"github.com/AleutianAI/AleutianTransfer/services/orchestrator/datatypes"
	"github.com/AleutianAI/AleutianTransfer/services/orchestrator/observability"
)

var clientTracer = otel.Tracer("services/orchestrator/clients")

// Logical endpoint names. These key the circuit breakers, so validate and
// execute trip independently.
const (
	endpointValidate = "transactions.validate"
	endpointExecute  = "transactions.execute"
	endpointStatus   = "transactions.status"
)

// Config configures the TransactionClient.
//
// # Fields
//
//   - BaseURL: service root, e.g. "http://localhost:8001"
//   - Transport: the resilient transport; required
type Config struct {
	BaseURL   string
	Transport *resilience.Transport
}

// TransactionClient calls the external transaction service.
//
// # Thread Safety
//
// Safe for concurrent use across sessions; it holds no per-call state.
type TransactionClient struct {
	baseURL   string
	transport *resilience.Transport
}

// NewTransactionClient creates a client for the transaction service API.
func NewTransactionClient(cfg Config) *TransactionClient {
	return &TransactionClient{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		transport: cfg.Transport,
	}
}

// =============================================================================
// Wire Types
// =============================================================================

type validateRequest struct {
	RecipientPhone string  `json:"recipient_phone"`
	Amount         float64 `json:"amount"`
	Currency       string  `json:"currency"`
}

type validateResponse struct {
	IsValid      bool   `json:"is_valid"`
	ValidationID string `json:"validation_id"`
	Message      string `json:"message"`
}

type executeRequest struct {
	ValidationID   string  `json:"validation_id"`
	RecipientPhone string  `json:"recipient_phone"`
	Amount         float64 `json:"amount"`
	Currency       string  `json:"currency"`
}

type executeResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	Message       string `json:"message"`
}

// errorBody is the error envelope the service uses on 4xx responses.
type errorBody struct {
	Detail  string `json:"detail"`
	Message string `json:"message"`
}

// remoteReason extracts a human-readable reason from a 4xx response body,
// falling back to the raw body and finally the status text.
func remoteReason(statusErr *resilience.StatusError) string {
	var body errorBody
	if err := json.Unmarshal(statusErr.Body, &body); err == nil {
		if body.Detail != "" {
			return body.Detail
		}
		if body.Message != "" {
			return body.Message
		}
	}
	if len(statusErr.Body) > 0 {
		return string(statusErr.Body)
	}
	return statusErr.Error()
}

// =============================================================================
// Gateway Operations
// =============================================================================

// Validate asks the service whether the transfer is allowed.
//
// # Description
//
// POSTs to /api/v1/transactions/validate. A fresh idempotency key is
// generated per logical call so transient failures can be retried without
// the service double-counting; all retry attempts of one call share the
// key.
//
// Remote rejections (4xx or is_valid=false) return Valid=false with the
// service's reason verbatim and a nil error.
//
// # Outputs
//
//   - datatypes.ValidationOutcome: domain result when the service answered
//   - error: transport failure (retries exhausted, circuit open) or
//     context cancellation
func (c *TransactionClient) Validate(ctx context.Context, phone string, amount float64) (datatypes.ValidationOutcome, error) {
	ctx, span := clientTracer.Start(ctx, "transaction.validate")
	defer span.End()
	span.SetAttributes(attribute.Float64("transfer.amount", amount))

	var resp validateResponse
	err := c.post(ctx, observability.EndpointValidate, resilience.Request{
		Endpoint:       endpointValidate,
		Method:         "POST",
		URL:            c.baseURL + "/api/v1/transactions/validate",
		Body:           validateRequest{RecipientPhone: phone, Amount: amount, Currency: datatypes.DefaultCurrency},
		IdempotencyKey: uuid.NewString(),
	}, &resp)

	var statusErr *resilience.StatusError
	if errors.As(err, &statusErr) {
		// The service answered and refused: a domain rejection.
		return datatypes.ValidationOutcome{Valid: false, Reason: remoteReason(statusErr)}, nil
	}
	if err != nil {
		return datatypes.ValidationOutcome{}, err
	}

	if !resp.IsValid {
		slog.Warn("transaction validation rejected", "reason", resp.Message)
		return datatypes.ValidationOutcome{Valid: false, Reason: resp.Message}, nil
	}
	return datatypes.ValidationOutcome{Valid: true, Token: resp.ValidationID, Reason: resp.Message}, nil
}

// Execute performs the validated transfer.
//
// # Description
//
// POSTs to /api/v1/transactions/execute. The validation token itself is
// the idempotency key: the service accepts each token once, so a retried
// execute after an ambiguous failure cannot produce a second transfer.
//
// A 4xx (stale or unknown token, mismatched data) returns a failed
// ExecutionOutcome with the remote reason and a nil error; the caller
// discards the token and requires a fresh validation.
func (c *TransactionClient) Execute(ctx context.Context, validationID, phone string, amount float64) (datatypes.ExecutionOutcome, error) {
	ctx, span := clientTracer.Start(ctx, "transaction.execute")
	defer span.End()
	span.SetAttributes(attribute.Float64("transfer.amount", amount))

	var resp executeResponse
	err := c.post(ctx, observability.EndpointExecute, resilience.Request{
		Endpoint:       endpointExecute,
		Method:         "POST",
		URL:            c.baseURL + "/api/v1/transactions/execute",
		Body:           executeRequest{ValidationID: validationID, RecipientPhone: phone, Amount: amount, Currency: datatypes.DefaultCurrency},
		IdempotencyKey: validationID,
	}, &resp)

	var statusErr *resilience.StatusError
	if errors.As(err, &statusErr) {
		return datatypes.ExecutionOutcome{
			Status: datatypes.StatusFailed,
			Reason: remoteReason(statusErr),
		}, nil
	}
	if err != nil {
		return datatypes.ExecutionOutcome{}, err
	}

	return datatypes.ExecutionOutcome{
		TransactionID: resp.TransactionID,
		Status:        resp.Status,
		Reason:        resp.Message,
	}, nil
}

// GetStatus looks up a transaction by id.
//
// # Description
//
// GETs /api/v1/transactions/{id}. Reads are idempotent and always
// retry-eligible. An unknown id surfaces as a *StatusError so the handler
// can answer 404.
func (c *TransactionClient) GetStatus(ctx context.Context, transactionID string) (datatypes.TransactionDetail, error) {
	ctx, span := clientTracer.Start(ctx, "transaction.status")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", transactionID))

	var detail datatypes.TransactionDetail
	start := time.Now()
	err := c.transport.Do(ctx, resilience.Request{
		Endpoint:   endpointStatus,
		Method:     "GET",
		URL:        fmt.Sprintf("%s/api/v1/transactions/%s", c.baseURL, transactionID),
		Idempotent: true,
	}, &detail)
	c.record(observability.EndpointStatus, err, time.Since(start))
	if err != nil {
		return datatypes.TransactionDetail{}, err
	}
	return detail, nil
}

// post wraps transport.Do for the POST endpoints with call metrics.
func (c *TransactionClient) post(ctx context.Context, metricEndpoint observability.Endpoint, req resilience.Request, out any) error {
	start := time.Now()
	err := c.transport.Do(ctx, req, out)
	c.record(metricEndpoint, err, time.Since(start))
	return err
}

func (c *TransactionClient) record(endpoint observability.Endpoint, err error, elapsed time.Duration) {
	if observability.DefaultMetrics == nil {
		return
	}
	status := "success"
	var statusErr *resilience.StatusError
	switch {
	case errors.As(err, &statusErr):
		status = "rejected"
	case err != nil:
		status = "error"
	}
	observability.DefaultMetrics.RecordExternalCall(endpoint, status, elapsed.Seconds())
}
