// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agent

// Outcome kinds emitted by the state machine. The responder turns these
// into user-visible prose; clients may also branch on them directly.
const (
	// OutcomePrompt asks the user for whatever is still missing (phone,
	// amount, or a corrected value). Reason carries the specific ask.
	OutcomePrompt = "prompt_missing_data"

	// OutcomeValidationRejected surfaces a remote rejection verbatim.
	OutcomeValidationRejected = "validation_rejected"

	// OutcomeAwaitingConfirmation asks the user for an explicit yes/no.
	OutcomeAwaitingConfirmation = "awaiting_confirmation"

	// OutcomeCancelled acknowledges a decline; collected data is kept.
	OutcomeCancelled = "cancelled"

	// OutcomeExecuted reports a successful transfer.
	OutcomeExecuted = "executed"

	// OutcomeExecutionFailed reports a failed execute; the validation
	// token has been discarded and a fresh validation is required.
	OutcomeExecutionFailed = "execution_failed"

	// OutcomeServiceUnavailable reports transport exhaustion or an open
	// circuit; session state is unchanged so the turn can be retried.
	OutcomeServiceUnavailable = "service_unavailable"

	// OutcomeCompletedInfo answers a turn on an already-completed
	// transaction without starting a new transfer.
	OutcomeCompletedInfo = "completed_info"
)

// Outcome is the structured result of one turn. It is not prose; the
// reply layer renders it.
type Outcome struct {
	Kind          string  `json:"kind"`
	Phone         string  `json:"phone,omitempty"`
	Amount        float64 `json:"amount,omitempty"`
	Reason        string  `json:"reason,omitempty"`
	TransactionID string  `json:"transaction_id,omitempty"`
	Status        string  `json:"status,omitempty"`
}
