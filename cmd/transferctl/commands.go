// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	serverURL string
	userID    string
	sessionID string

	rootCmd = &cobra.Command{
		Use:   "transferctl",
		Short: "A cli for the conversational transfer orchestrator",
		Long: `transferctl talks to the transfer orchestrator service: it runs the
conversational transfer flow from your terminal and exposes the
administrative endpoints for sessions, transactions, and circuit
breaker states.`,
	}

	// --- Conversation ---
	chatCmd = &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive transfer conversation",
		Run:   runChatCommand, // Defined in cmd_chat.go
	}
	sendCmd = &cobra.Command{
		Use:   "send [message]",
		Short: "Send a single turn and print the reply",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSendCommand, // Defined in cmd_chat.go
	}

	// --- Session Administration ---
	sessionsCmd = &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and manage conversation sessions",
	}
	sessionsListCmd = &cobra.Command{
		Use:   "list",
		Short: "List active session IDs",
		Run:   runSessionsList, // Defined in cmd_sessions.go
	}
	sessionsHistoryCmd = &cobra.Command{
		Use:   "history [session-id]",
		Short: "Print the full conversation record of a session",
		Args:  cobra.ExactArgs(1),
		Run:   runSessionsHistory, // Defined in cmd_sessions.go
	}
	sessionsDeleteCmd = &cobra.Command{
		Use:   "delete [session-id]",
		Short: "Delete a session and its conversation record",
		Args:  cobra.ExactArgs(1),
		Run:   runSessionsDelete, // Defined in cmd_sessions.go
	}

	// --- Transactions / Service State ---
	statusCmd = &cobra.Command{
		Use:   "status [transaction-id]",
		Short: "Look up a transaction in the transaction service",
		Args:  cobra.ExactArgs(1),
		Run:   runStatusCommand, // Defined in cmd_status.go
	}
	breakersCmd = &cobra.Command{
		Use:   "breakers",
		Short: "Show circuit breaker states for the transaction endpoints",
		Run:   runBreakersCommand, // Defined in cmd_status.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "",
		"orchestrator base URL (default TRANSFER_ORCHESTRATOR_URL or http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&userID, "user", "",
		"user identity sent with each turn (default $USER)")

	chatCmd.Flags().StringVar(&sessionID, "session", "", "resume an existing session ID")
	sendCmd.Flags().StringVar(&sessionID, "session", "", "send the turn into an existing session")

	sessionsCmd.AddCommand(sessionsListCmd, sessionsHistoryCmd, sessionsDeleteCmd)
	rootCmd.AddCommand(chatCmd, sendCmd, sessionsCmd, statusCmd, breakersCmd)
}

// getServerBaseURL resolves the orchestrator address.
func getServerBaseURL() string {
	if serverURL != "" {
		return serverURL
	}
	if url := os.Getenv("TRANSFER_ORCHESTRATOR_URL"); url != "" {
		return url
	}
	return "http://localhost:8080"
}

// getUserID resolves the caller identity sent with each turn.
func getUserID() string {
	if userID != "" {
		return userID
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return fmt.Sprintf("transferctl-%d", os.Getpid())
}
