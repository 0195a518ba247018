// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command transferctl is a terminal client for the transfer orchestrator.
//
// It drives the conversational transfer flow from the command line and
// exposes the administrative endpoints (sessions, transaction status,
// circuit breaker states).
//
// # Usage
//
//	# Interactive conversation
//	transferctl chat
//
//	# Resume a session
//	transferctl chat --session 6f1e...-uuid
//
//	# One-shot turn
//	transferctl send "Quiero enviar 50 mil al 3001234567"
//
//	# Administration
//	transferctl sessions list
//	transferctl sessions history <session-id>
//	transferctl sessions delete <session-id>
//	transferctl status <transaction-id>
//	transferctl breakers
//
// The server address comes from --server or the
// TRANSFER_ORCHESTRATOR_URL environment variable
// (default http://localhost:8080).
package main

import (
	"log"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}
