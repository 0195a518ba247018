// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianTransfer/services/orchestrator/datatypes"
)

// apiClient is a thin HTTP client for the orchestrator API.
//
// The orchestrator already fronts the transaction service with its own
// retry and breaker layer, so this client stays deliberately simple:
// one attempt per call with a request timeout.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

// Chat sends one user turn and returns the orchestrator's reply.
func (c *apiClient) Chat(ctx context.Context, req datatypes.ChatRequest) (*datatypes.ChatResponse, error) {
	var resp datatypes.ChatResponse
	if err := c.do(ctx, http.MethodPost, "/v1/chat", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListSessions returns the IDs of all stored sessions.
func (c *apiClient) ListSessions(ctx context.Context) ([]string, error) {
	var out struct {
		Sessions []string `json:"sessions"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/sessions", nil, &out); err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

// SessionHistory returns the full conversation record of a session.
func (c *apiClient) SessionHistory(ctx context.Context, id string) (*datatypes.Session, error) {
	var sess datatypes.Session
	if err := c.do(ctx, http.MethodGet, "/v1/sessions/"+id+"/history", nil, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// DeleteSession removes a session and its conversation record.
func (c *apiClient) DeleteSession(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/sessions/"+id, nil, nil)
}

// TransactionStatus looks up a transaction by ID.
func (c *apiClient) TransactionStatus(ctx context.Context, id string) (*datatypes.TransactionDetail, error) {
	var detail datatypes.TransactionDetail
	if err := c.do(ctx, http.MethodGet, "/v1/transactions/"+id, nil, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// BreakerStates returns the circuit breaker state per endpoint.
func (c *apiClient) BreakerStates(ctx context.Context) (map[string]string, error) {
	var out struct {
		Breakers map[string]string `json:"breakers"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/admin/breakers", nil, &out); err != nil {
		return nil, err
	}
	return out.Breakers, nil
}

// do performs one request and decodes the JSON response into out.
func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("orchestrator unreachable: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s %s: %s", method, path, apiErrorMessage(resp.StatusCode, raw))
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// apiErrorMessage extracts a human-readable message from an error body.
func apiErrorMessage(status int, raw []byte) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		return fmt.Sprintf("%s (HTTP %d)", body.Error, status)
	}
	return fmt.Sprintf("HTTP %d", status)
}
