// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config provides configuration loading for the transfer
// orchestrator.
//
// # Description
//
// Settings are resolved in three layers, later layers winning:
//
//  1. compiled-in defaults
//  2. an optional YAML file named by TRANSFER_CONFIG_FILE
//  3. individual environment variables
//
// Unset or malformed values fall back to the previous layer with a
// slog.Warn, never an error: a misconfigured orchestrator starts with
// safe defaults rather than refusing to boot.
//
// # Thread Safety
//
// Load returns a value; Settings is immutable after load.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// MaxYAMLFileSize is the maximum allowed config file size (1MB).
const MaxYAMLFileSize = 1024 * 1024

// Settings holds the full orchestrator configuration.
//
// # Fields
//
//   - ListenAddr: HTTP bind address for the orchestrator API
//   - TransactionAPIURL: base URL of the external transaction service
//   - ConnectTimeout: TCP connect budget per outbound attempt
//   - ReadTimeout: response budget per outbound attempt
//   - MaxRetries: total attempts per logical outbound call
//   - RetryInitialDelay: backoff before the first retry
//   - RetryMaxDelay: backoff cap
//   - BreakerThreshold: consecutive failures before the circuit opens
//   - BreakerResetTimeout: open window before a half-open trial
//   - SessionTTL: idle time before a session is swept
//   - SweepInterval: how often the sweeper runs
//   - SessionStorePath: BadgerDB directory; empty selects the in-memory store
//   - UseLLMReplies: route replies through the LLM rephraser
//   - OTLPEndpoint: OTLP gRPC collector address; empty disables trace export
type Settings struct {
	ListenAddr        string
	TransactionAPIURL string

	ConnectTimeout    time.Duration
	ReadTimeout       time.Duration
	MaxRetries        int
	RetryInitialDelay time.Duration
	RetryMaxDelay     time.Duration

	BreakerThreshold    int
	BreakerResetTimeout time.Duration

	SessionTTL       time.Duration
	SweepInterval    time.Duration
	SessionStorePath string

	UseLLMReplies bool
	OTLPEndpoint  string
}

// Defaults returns the compiled-in configuration.
func Defaults() Settings {
	return Settings{
		ListenAddr:          ":8080",
		TransactionAPIURL:   "http://localhost:8001",
		ConnectTimeout:      5 * time.Second,
		ReadTimeout:         10 * time.Second,
		MaxRetries:          3,
		RetryInitialDelay:   1 * time.Second,
		RetryMaxDelay:       30 * time.Second,
		BreakerThreshold:    5,
		BreakerResetTimeout: 60 * time.Second,
		SessionTTL:          24 * time.Hour,
		SweepInterval:       1 * time.Hour,
	}
}

// Load resolves settings from defaults, the optional YAML file, and the
// environment.
func Load() Settings {
	s := Defaults()

	if path := os.Getenv("TRANSFER_CONFIG_FILE"); path != "" {
		if err := s.applyFile(path); err != nil {
			slog.Warn("config file ignored", "path", path, "error", err)
		} else {
			slog.Info("config file applied", "path", path)
		}
	}

	s.applyEnv()
	return s
}

// fileSettings is the YAML shape. Durations are strings ("10s", "24h") so
// the file reads the same as the environment variables.
type fileSettings struct {
	ListenAddr        *string `yaml:"listen_addr"`
	TransactionAPIURL *string `yaml:"transaction_api_url"`

	ConnectTimeout    *string `yaml:"connect_timeout"`
	ReadTimeout       *string `yaml:"read_timeout"`
	MaxRetries        *int    `yaml:"max_retries"`
	RetryInitialDelay *string `yaml:"retry_initial_delay"`
	RetryMaxDelay     *string `yaml:"retry_max_delay"`

	BreakerThreshold    *int    `yaml:"breaker_threshold"`
	BreakerResetTimeout *string `yaml:"breaker_reset_timeout"`

	SessionTTL       *string `yaml:"session_ttl"`
	SweepInterval    *string `yaml:"sweep_interval"`
	SessionStorePath *string `yaml:"session_store_path"`

	UseLLMReplies *bool   `yaml:"use_llm_replies"`
	OTLPEndpoint  *string `yaml:"otlp_endpoint"`
}

// applyFile overlays values from a YAML file. Only keys present in the
// file are applied.
func (s *Settings) applyFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config file: %w", err)
	}
	if info.Size() > MaxYAMLFileSize {
		return fmt.Errorf("config file exceeds %d bytes", MaxYAMLFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var file fileSettings
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	setString(file.ListenAddr, &s.ListenAddr)
	setString(file.TransactionAPIURL, &s.TransactionAPIURL)
	setDuration(file.ConnectTimeout, &s.ConnectTimeout, "connect_timeout")
	setDuration(file.ReadTimeout, &s.ReadTimeout, "read_timeout")
	setInt(file.MaxRetries, &s.MaxRetries)
	setDuration(file.RetryInitialDelay, &s.RetryInitialDelay, "retry_initial_delay")
	setDuration(file.RetryMaxDelay, &s.RetryMaxDelay, "retry_max_delay")
	setInt(file.BreakerThreshold, &s.BreakerThreshold)
	setDuration(file.BreakerResetTimeout, &s.BreakerResetTimeout, "breaker_reset_timeout")
	setDuration(file.SessionTTL, &s.SessionTTL, "session_ttl")
	setDuration(file.SweepInterval, &s.SweepInterval, "sweep_interval")
	setString(file.SessionStorePath, &s.SessionStorePath)
	if file.UseLLMReplies != nil {
		s.UseLLMReplies = *file.UseLLMReplies
	}
	setString(file.OTLPEndpoint, &s.OTLPEndpoint)
	return nil
}

func setString(src *string, dst *string) {
	if src != nil && *src != "" {
		*dst = *src
	}
}

func setInt(src *int, dst *int) {
	if src != nil && *src >= 0 {
		*dst = *src
	}
}

func setDuration(src *string, dst *time.Duration, key string) {
	if src == nil || *src == "" {
		return
	}
	parsed, err := time.ParseDuration(*src)
	if err != nil || parsed < 0 {
		slog.Warn("invalid duration in config file, keeping previous value",
			"key", key, "value", *src)
		return
	}
	*dst = parsed
}

// applyEnv overlays individual environment variables.
func (s *Settings) applyEnv() {
	envString("LISTEN_ADDR", &s.ListenAddr)
	envString("TRANSACTION_API_URL", &s.TransactionAPIURL)

	envDuration("HTTP_TIMEOUT_CONNECT", &s.ConnectTimeout)
	envDuration("HTTP_TIMEOUT_READ", &s.ReadTimeout)
	envInt("MAX_RETRIES", &s.MaxRetries)
	envDuration("RETRY_INITIAL_DELAY", &s.RetryInitialDelay)
	envDuration("RETRY_MAX_DELAY", &s.RetryMaxDelay)

	envInt("CB_FAILURE_THRESHOLD", &s.BreakerThreshold)
	envDuration("CB_RESET_TIMEOUT", &s.BreakerResetTimeout)

	envDuration("SESSION_TTL", &s.SessionTTL)
	envDuration("SWEEP_INTERVAL", &s.SweepInterval)
	envString("SESSION_STORE_PATH", &s.SessionStorePath)

	envBool("USE_LLM_REPLIES", &s.UseLLMReplies)
	envString("OTEL_EXPORTER_OTLP_ENDPOINT", &s.OTLPEndpoint)
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed < 0 {
		slog.Warn("invalid integer in environment, keeping previous value",
			"key", key, "value", v)
		return
	}
	*dst = parsed
}

// envDuration accepts Go duration strings ("10s") and bare seconds ("10").
func envDuration(key string, dst *time.Duration) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if parsed, err := time.ParseDuration(v); err == nil && parsed >= 0 {
		*dst = parsed
		return
	}
	if seconds, err := strconv.Atoi(v); err == nil && seconds >= 0 {
		*dst = time.Duration(seconds) * time.Second
		return
	}
	slog.Warn("invalid duration in environment, keeping previous value",
		"key", key, "value", v)
}

func envBool(key string, dst *bool) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("invalid boolean in environment, keeping previous value",
			"key", key, "value", v)
		return
	}
	*dst = parsed
}
