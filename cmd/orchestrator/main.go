// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command orchestrator starts the transfer orchestrator HTTP server.
//
// This is the main entry point for the containerized orchestrator
// service. Configuration is resolved from compiled defaults, an
// optional YAML file, and environment variables (see the config
// package for the full list).
//
// # Environment Variables
//
//   - LISTEN_ADDR: HTTP bind address (default: ":8080")
//   - TRANSACTION_API_URL: external transaction service (default: http://localhost:8001)
//   - SESSION_STORE_PATH: BadgerDB directory; empty keeps sessions in memory
//   - USE_LLM_REPLIES: route replies through the LLM rephraser
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (optional)
//   - TRANSFER_CONFIG_FILE: path to a YAML settings file (optional)
//
// # Usage
//
//	# Build
//	go build -o orchestrator ./cmd/orchestrator
//
//	# Run
//	./orchestrator
package main

import (
	"log"
	"log/slog"

	"github.com/AleutianAI/AleutianTransfer/pkg/logging"
	"github.com/AleutianAI/AleutianTransfer/services/orchestrator"
	"github.com/AleutianAI/AleutianTransfer/services/orchestrator/config"
)

func main() {
	// Setup structured logging
	logger := logging.New(logging.Config{
		Level:   logging.LevelInfo,
		Service: "transfer-orchestrator",
		JSON:    true,
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	settings := config.Load()

	slog.Info("Starting transfer orchestrator",
		"addr", settings.ListenAddr,
		"transaction_api_url", settings.TransactionAPIURL,
		"session_store_path", settings.SessionStorePath,
		"llm_replies", settings.UseLLMReplies,
	)

	svc, err := orchestrator.New(settings)
	if err != nil {
		log.Fatalf("Failed to create orchestrator: %v", err)
	}

	// Run the server (blocks until shutdown)
	if err := svc.Run(); err != nil {
		log.Fatalf("Orchestrator error: %v", err)
	}
}
