// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianTransfer/services/orchestrator/datatypes"
)

func runSessionsList(cmd *cobra.Command, args []string) {
	client := newAPIClient(getServerBaseURL())

	ids, err := client.ListSessions(context.Background())
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	if len(ids) == 0 {
		fmt.Println("No active sessions.")
		return
	}
	for _, id := range ids {
		fmt.Println(id)
	}
}

func runSessionsHistory(cmd *cobra.Command, args []string) {
	client := newAPIClient(getServerBaseURL())

	sess, err := client.SessionHistory(context.Background(), args[0])
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	fmt.Printf("Session %s (user %s)\n", sess.SessionID, sess.UserID)
	fmt.Printf("State: %s", sess.State)
	if sess.TransactionID != "" {
		fmt.Printf("  Transaction: %s", sess.TransactionID)
	}
	fmt.Println()
	if sess.Phone != nil || sess.Amount != nil {
		phone := "-"
		if sess.Phone != nil {
			phone = *sess.Phone
		}
		fmt.Printf("Recipient: %s  Amount: %s\n", phone, renderAmount(sess))
	}
	fmt.Println("---")
	for _, turn := range sess.Turns {
		stamp := time.UnixMilli(turn.Timestamp).Format("15:04:05")
		fmt.Printf("[%s] %s: %s\n", stamp, turn.Role, turn.Content)
	}
}

func runSessionsDelete(cmd *cobra.Command, args []string) {
	client := newAPIClient(getServerBaseURL())

	if err := client.DeleteSession(context.Background(), args[0]); err != nil {
		log.Fatalf("Error: %v", err)
	}
	fmt.Printf("Deleted session %s\n", args[0])
}

// renderAmount formats a session amount for display.
func renderAmount(sess *datatypes.Session) string {
	if sess.Amount == nil {
		return "-"
	}
	return fmt.Sprintf("%.0f COP", *sess.Amount)
}
