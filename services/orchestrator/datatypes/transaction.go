// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Transaction outcome types shared by the gateway and the state machine.
package datatypes

// TransactionStatus values reported by the external transaction service.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ValidationOutcome is the domain-level result of a validate call.
//
// Valid=false with a Reason is a remote rejection (surfaced verbatim to
// the user); a transport failure never produces a ValidationOutcome, it
// produces an error from the gateway instead.
type ValidationOutcome struct {
	Valid  bool   `json:"valid"`
	Token  string `json:"token,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// ExecutionOutcome is the domain-level result of an execute or getStatus
// call.
type ExecutionOutcome struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	Reason        string `json:"reason,omitempty"`
}

// Succeeded reports whether the execution reached a non-failed status.
func (o ExecutionOutcome) Succeeded() bool {
	return o.Status == StatusCompleted || o.Status == StatusPending
}

// TransactionDetail is the full record returned by the status endpoint.
type TransactionDetail struct {
	TransactionID  string  `json:"transaction_id"`
	Status         string  `json:"status"`
	RecipientPhone string  `json:"recipient_phone"`
	Amount         float64 `json:"amount"`
	Currency       string  `json:"currency"`
	CreatedAt      string  `json:"created_at"`
	CompletedAt    string  `json:"completed_at,omitempty"`
	ErrorMessage   string  `json:"error_message,omitempty"`
}
