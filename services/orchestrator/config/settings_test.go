// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	s := Load()

	assert.Equal(t, ":8080", s.ListenAddr)
	assert.Equal(t, "http://localhost:8001", s.TransactionAPIURL)
	assert.Equal(t, 5*time.Second, s.ConnectTimeout)
	assert.Equal(t, 10*time.Second, s.ReadTimeout)
	assert.Equal(t, 3, s.MaxRetries)
	assert.Equal(t, 5, s.BreakerThreshold)
	assert.Equal(t, 60*time.Second, s.BreakerResetTimeout)
	assert.Equal(t, 24*time.Hour, s.SessionTTL)
	assert.Empty(t, s.SessionStorePath, "default store is in-memory")
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TRANSACTION_API_URL", "http://mock-api:9000")
	t.Setenv("MAX_RETRIES", "5")
	t.Setenv("CB_RESET_TIMEOUT", "90s")
	t.Setenv("HTTP_TIMEOUT_READ", "20")
	t.Setenv("USE_LLM_REPLIES", "true")

	s := Load()

	assert.Equal(t, "http://mock-api:9000", s.TransactionAPIURL)
	assert.Equal(t, 5, s.MaxRetries)
	assert.Equal(t, 90*time.Second, s.BreakerResetTimeout)
	assert.Equal(t, 20*time.Second, s.ReadTimeout, "bare seconds are accepted")
	assert.True(t, s.UseLLMReplies)
}

func TestLoad_MalformedEnvKeepsDefault(t *testing.T) {
	t.Setenv("MAX_RETRIES", "many")
	t.Setenv("CB_RESET_TIMEOUT", "soon")
	t.Setenv("USE_LLM_REPLIES", "yep")

	s := Load()

	assert.Equal(t, 3, s.MaxRetries)
	assert.Equal(t, 60*time.Second, s.BreakerResetTimeout)
	assert.False(t, s.UseLLMReplies)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transfer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"transaction_api_url: http://from-file:8001\nmax_retries: 4\nsession_ttl: 12h\n",
	), 0600))
	t.Setenv("TRANSFER_CONFIG_FILE", path)

	s := Load()

	assert.Equal(t, "http://from-file:8001", s.TransactionAPIURL)
	assert.Equal(t, 4, s.MaxRetries)
	assert.Equal(t, 12*time.Hour, s.SessionTTL)
}

func TestLoad_EnvWinsOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transfer.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_retries: 4\n"), 0600))
	t.Setenv("TRANSFER_CONFIG_FILE", path)
	t.Setenv("MAX_RETRIES", "7")

	s := Load()
	assert.Equal(t, 7, s.MaxRetries)
}

func TestLoad_MissingFileIgnored(t *testing.T) {
	t.Setenv("TRANSFER_CONFIG_FILE", "/nonexistent/transfer.yaml")
	s := Load()
	assert.Equal(t, 3, s.MaxRetries, "missing file falls back to defaults")
}
