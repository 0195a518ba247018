// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianTransfer/services/orchestrator/datatypes"
)

func runChatCommand(cmd *cobra.Command, args []string) {
	client := newAPIClient(getServerBaseURL())

	// Set up graceful shutdown with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := runChatLoop(ctx, client, sessionID); err != nil && err != context.Canceled {
		log.Fatalf("Chat error: %v", err)
	}
}

// runChatLoop reads turns from stdin until exit, EOF, or cancellation.
func runChatLoop(ctx context.Context, client *apiClient, resumeID string) error {
	current := resumeID
	if current != "" {
		fmt.Printf("Resuming session %s\n", current)
	} else {
		fmt.Println("Starting a new transfer conversation. Type 'exit' to quit.")
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			if current != "" {
				fmt.Printf("Session %s saved. Resume with: transferctl chat --session %s\n", current, current)
			}
			return nil
		}

		resp, err := client.Chat(ctx, datatypes.ChatRequest{
			SessionID: current,
			UserID:    getUserID(),
			Message:   line,
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Printf("error: %v\n", err)
			continue
		}

		current = resp.SessionID
		printChatResponse(resp)
	}
}

func runSendCommand(cmd *cobra.Command, args []string) {
	client := newAPIClient(getServerBaseURL())
	message := strings.Join(args, " ")

	resp, err := client.Chat(context.Background(), datatypes.ChatRequest{
		SessionID: sessionID,
		UserID:    getUserID(),
		Message:   message,
	})
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	printChatResponse(resp)
	fmt.Printf("session: %s\n", resp.SessionID)
}

// printChatResponse renders one orchestrator reply.
func printChatResponse(resp *datatypes.ChatResponse) {
	fmt.Println(resp.Reply)
	if resp.TransactionID != "" {
		fmt.Printf("  [transaction %s]\n", resp.TransactionID)
	}
}
