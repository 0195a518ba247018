// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for identifiers taken from URL paths
// and CLI arguments before they are used as storage keys or forwarded to
// the transaction service. Using these validators keeps injection
// attempts and path traversal out of store keys and outbound URLs.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// sessionIDPattern matches server-minted session IDs (UUID v4, lowercase
// or uppercase hex).
var sessionIDPattern = regexp.MustCompile(
	`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// transactionIDPattern matches transaction identifiers issued by the
// transaction service. Allows: letters, digits, hyphens, underscores.
// Max length: 64 characters.
var transactionIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_\-]{0,63}$`)

// ValidateSessionID validates a session identifier from a URL path.
//
// Session IDs are minted by the server as UUID v4, so anything else is
// rejected before it can reach the session store as a key.
//
// Example:
//
//	if err := validation.ValidateSessionID(sessionID); err != nil {
//	    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
//	    return
//	}
func ValidateSessionID(id string) error {
	if id == "" {
		return fmt.Errorf("session id cannot be empty")
	}
	if !sessionIDPattern.MatchString(id) {
		return fmt.Errorf("invalid session id format: %q (must be a UUID)", id)
	}
	return nil
}

// ValidateTransactionID validates a transaction identifier before it is
// interpolated into an outbound request path.
//
// Valid transaction IDs:
//   - 1-64 characters
//   - Letters, digits, underscores, hyphens
//   - Must start with a letter or digit
func ValidateTransactionID(id string) error {
	if id == "" {
		return fmt.Errorf("transaction id cannot be empty")
	}
	if !transactionIDPattern.MatchString(id) {
		return fmt.Errorf("invalid transaction id format: %q", id)
	}
	return nil
}

// SanitizeTransactionID normalizes and validates a transaction ID.
// Returns the trimmed ID if valid, or an error if invalid.
//
// Use this when accepting IDs from interactive input:
//
//	safeID, err := validation.SanitizeTransactionID(userInput)
//	if err != nil {
//	    return err
//	}
func SanitizeTransactionID(id string) (string, error) {
	trimmed := strings.TrimSpace(id)
	if err := ValidateTransactionID(trimmed); err != nil {
		return "", err
	}
	return trimmed, nil
}
