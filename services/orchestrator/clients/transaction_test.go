// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianTransfer/pkg/resilience"
	"github.com/AleutianAI/AleutianTransfer/services/orchestrator/datatypes"
)

// newTestClient builds a client over a transport with millisecond backoff
// so retry paths run fast.
func newTestClient(baseURL string) *TransactionClient {
	transport := resilience.NewTransport(resilience.Config{
		ConnectTimeout: time.Second,
		ReadTimeout:    time.Second,
		Retry: &resilience.RetryPolicy{
			MaxAttempts:  3,
			InitialDelay: time.Millisecond,
			MaxDelay:     time.Millisecond,
		},
	})
	return NewTransactionClient(Config{BaseURL: baseURL, Transport: transport})
}

func TestValidate_Approved(t *testing.T) {
	var gotPath, gotKey string
	var gotBody validateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-Idempotency-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(validateResponse{
			IsValid:      true,
			ValidationID: "VAL-123",
			Message:      "Transaction validated successfully",
		})
	}))
	defer server.Close()

	outcome, err := newTestClient(server.URL).Validate(context.Background(), "3001234567", 50000)
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/transactions/validate", gotPath)
	assert.NotEmpty(t, gotKey, "validate must carry an idempotency key")
	assert.Equal(t, "3001234567", gotBody.RecipientPhone)
	assert.Equal(t, float64(50000), gotBody.Amount)
	assert.Equal(t, "COP", gotBody.Currency)
	assert.True(t, outcome.Valid)
	assert.Equal(t, "VAL-123", outcome.Token)
}

func TestValidate_RejectedInBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(validateResponse{
			IsValid: false,
			Message: "Amount exceeds maximum limit of 5,000,000 COP",
		})
	}))
	defer server.Close()

	outcome, err := newTestClient(server.URL).Validate(context.Background(), "3001234567", 5000001)
	require.NoError(t, err, "a remote rejection is a domain outcome, not an error")

	assert.False(t, outcome.Valid)
	assert.Equal(t, "Amount exceeds maximum limit of 5,000,000 COP", outcome.Reason)
}

func TestValidate_RejectedWith4xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"detail": "Invalid phone number format"})
	}))
	defer server.Close()

	outcome, err := newTestClient(server.URL).Validate(context.Background(), "3001234567", 50000)
	require.NoError(t, err)

	assert.False(t, outcome.Valid)
	assert.Equal(t, "Invalid phone number format", outcome.Reason)
}

func TestValidate_SharesIdempotencyKeyAcrossRetries(t *testing.T) {
	var keys []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keys = append(keys, r.Header.Get("X-Idempotency-Key"))
		if len(keys) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(validateResponse{IsValid: true, ValidationID: "VAL-9"})
	}))
	defer server.Close()

	outcome, err := newTestClient(server.URL).Validate(context.Background(), "3001234567", 50000)
	require.NoError(t, err)
	require.True(t, outcome.Valid)

	require.Len(t, keys, 2)
	assert.Equal(t, keys[0], keys[1], "every attempt of one call must share the key")
}

func TestValidate_TransportExhausted(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Validate(context.Background(), "3001234567", 50000)
	require.ErrorIs(t, err, resilience.ErrRetriesExhausted)
	assert.Equal(t, 3, hits)
}

func TestExecute_Completed(t *testing.T) {
	var gotKey string
	var gotBody executeRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Idempotency-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(executeResponse{
			TransactionID: "TXN-42",
			Status:        datatypes.StatusCompleted,
			Message:       "Transaction completed successfully",
		})
	}))
	defer server.Close()

	outcome, err := newTestClient(server.URL).Execute(context.Background(), "VAL-123", "3001234567", 50000)
	require.NoError(t, err)

	assert.Equal(t, "VAL-123", gotKey, "the validation token is the idempotency key")
	assert.Equal(t, "VAL-123", gotBody.ValidationID)
	assert.Equal(t, "TXN-42", outcome.TransactionID)
	assert.True(t, outcome.Succeeded())
}

func TestExecute_StaleToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"detail": "Validation ID not found or already used"})
	}))
	defer server.Close()

	outcome, err := newTestClient(server.URL).Execute(context.Background(), "VAL-stale", "3001234567", 50000)
	require.NoError(t, err)

	assert.False(t, outcome.Succeeded())
	assert.Equal(t, datatypes.StatusFailed, outcome.Status)
	assert.Equal(t, "Validation ID not found or already used", outcome.Reason)
	assert.Empty(t, outcome.TransactionID)
}

func TestExecute_TransportExhausted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Execute(context.Background(), "VAL-123", "3001234567", 50000)
	require.ErrorIs(t, err, resilience.ErrRetriesExhausted)
}

func TestGetStatus(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v1/transactions/TXN-42", r.URL.Path)
			assert.Equal(t, http.MethodGet, r.Method)
			json.NewEncoder(w).Encode(datatypes.TransactionDetail{
				TransactionID:  "TXN-42",
				Status:         datatypes.StatusCompleted,
				RecipientPhone: "3001234567",
				Amount:         50000,
				Currency:       "COP",
			})
		}))
		defer server.Close()

		detail, err := newTestClient(server.URL).GetStatus(context.Background(), "TXN-42")
		require.NoError(t, err)
		assert.Equal(t, "TXN-42", detail.TransactionID)
		assert.Equal(t, datatypes.StatusCompleted, detail.Status)
	})

	t.Run("unknown id", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"detail": "Transaction not found"})
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).GetStatus(context.Background(), "TXN-missing")
		var statusErr *resilience.StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	})
}
