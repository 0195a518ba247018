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
	"sort"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianTransfer/pkg/validation"
)

func runStatusCommand(cmd *cobra.Command, args []string) {
	client := newAPIClient(getServerBaseURL())

	transactionID, err := validation.SanitizeTransactionID(args[0])
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	detail, err := client.TransactionStatus(context.Background(), transactionID)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	fmt.Printf("Transaction %s\n", detail.TransactionID)
	fmt.Printf("  Status:    %s\n", detail.Status)
	fmt.Printf("  Recipient: %s\n", detail.RecipientPhone)
	fmt.Printf("  Amount:    %.0f %s\n", detail.Amount, detail.Currency)
	if detail.CreatedAt != "" {
		fmt.Printf("  Created:   %s\n", detail.CreatedAt)
	}
	if detail.CompletedAt != "" {
		fmt.Printf("  Completed: %s\n", detail.CompletedAt)
	}
	if detail.ErrorMessage != "" {
		fmt.Printf("  Error:     %s\n", detail.ErrorMessage)
	}
}

func runBreakersCommand(cmd *cobra.Command, args []string) {
	client := newAPIClient(getServerBaseURL())

	states, err := client.BreakerStates(context.Background())
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	if len(states) == 0 {
		fmt.Println("No breakers registered yet (no outbound calls made).")
		return
	}

	endpoints := make([]string, 0, len(states))
	for endpoint := range states {
		endpoints = append(endpoints, endpoint)
	}
	sort.Strings(endpoints)

	for _, endpoint := range endpoints {
		fmt.Printf("%-24s %s\n", endpoint, states[endpoint])
	}
}
