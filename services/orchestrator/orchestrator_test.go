// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package orchestrator

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianTransfer/services/orchestrator/config"
)

// =============================================================================
// Test Setup
// =============================================================================

func init() {
	// Set Gin to test mode to reduce noise in test output
	gin.SetMode(gin.TestMode)
}

// testSettings returns settings that require no external services:
// in-memory store, template replies, no OTLP export.
func testSettings() config.Settings {
	s := config.Defaults()
	s.SessionStorePath = ""
	s.UseLLMReplies = false
	s.OTLPEndpoint = ""
	return s
}

// =============================================================================
// Constructor Tests
// =============================================================================

// TestNew_DefaultSettings verifies the service assembles from defaults.
func TestNew_DefaultSettings(t *testing.T) {
	// Arrange
	settings := testSettings()

	// Act
	svc, err := New(settings)

	// Assert
	require.NoError(t, err)
	require.NotNil(t, svc)
	assert.NotNil(t, svc.Router(), "router should be configured")
}

// TestNew_HealthEndpoint verifies the assembled router serves /health.
func TestNew_HealthEndpoint(t *testing.T) {
	svc, err := New(testSettings())
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	svc.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

// TestNew_RoutesRegistered verifies the v1 API surface is wired.
func TestNew_RoutesRegistered(t *testing.T) {
	svc, err := New(testSettings())
	require.NoError(t, err)

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/v1/sessions", http.StatusOK},
		{http.MethodGet, "/v1/sessions/6f1e7c2a-9b4d-4e3f-8a1b-2c3d4e5f6a7b/history", http.StatusNotFound},
		{http.MethodGet, "/v1/sessions/not-a-uuid/history", http.StatusBadRequest},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/v1/admin/breakers", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(tt.method, tt.path, nil)
			svc.Router().ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

// TestNew_ChatValidation verifies request validation runs end to end
// through the assembled router.
func TestNew_ChatValidation(t *testing.T) {
	svc, err := New(testSettings())
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", nil)
	req.Header.Set("Content-Type", "application/json")
	svc.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// =============================================================================
// Interface Compliance Tests
// =============================================================================

func TestServiceImplementsInterface(t *testing.T) {
	// The compile-time check is: var _ Service = (*service)(nil)
	var svc Service
	_ = svc
}
