// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agent

import (
	"context"
	"errors"
	"log/slog"

	"github.com/AleutianAI/AleutianTransfer/services/orchestrator/datatypes"
)

// Gateway is the transaction service boundary the machine calls through.
// Implemented by clients.TransactionClient; faked in tests.
type Gateway interface {
	Validate(ctx context.Context, phone string, amount float64) (datatypes.ValidationOutcome, error)
	Execute(ctx context.Context, validationID, phone string, amount float64) (datatypes.ExecutionOutcome, error)
}

// Machine is the dialogue orchestrator: an explicit enumerated-state
// machine with a single transition function evaluated once per user turn.
//
// # Description
//
// On each turn the machine reads the session's stored state, runs the
// transition table, and mutates the session through its invariant-checked
// methods. At most one outbound call (validate or execute, never both)
// happens per turn. Gateway failures fall back to the conversation state
// and surface a reason; token and transaction fields are only committed
// after a confirmed successful outcome, so a failed call never leaves the
// session half-applied.
//
// # Thread Safety
//
// Machine itself is stateless and safe for concurrent use across
// sessions; per-session serialization is the store's job.
type Machine struct {
	gateway Gateway
}

// NewMachine constructs the orchestrator with its gateway dependency.
// The gateway is owned by the caller (opened once, closed on shutdown).
func NewMachine(gateway Gateway) *Machine {
	return &Machine{gateway: gateway}
}

// Step processes one user turn.
//
// # Description
//
// Appends the user turn to the session, runs the transition table, and
// returns the structured outcome. The session is mutated in place; the
// caller persists it after Step returns. A context error is returned
// unwrapped so the caller can abandon the turn without saving (the
// session snapshot then remains as it was before the call).
//
// # Inputs
//
//   - ctx: Cancellation for the at-most-one outbound call
//   - sess: The session snapshot, mutated in place
//   - userText: The raw user message for this turn
//
// # Outputs
//
//   - Outcome: Structured result for the reply layer
//   - error: Only context cancellation; everything else is an Outcome
func (m *Machine) Step(ctx context.Context, sess *datatypes.Session, userText string) (Outcome, error) {
	sess.AppendTurn(datatypes.RoleUser, userText)

	log := slog.With("session_id", sess.SessionID, "state", string(sess.State))
	log.Info("processing turn", "turn_count", len(sess.Turns))

	// A completed transaction is terminal. A later turn carrying new data
	// starts a fresh collection cycle with an independent token.
	if sess.State == datatypes.StateDone {
		if !ContainsDigits(userText) {
			return Outcome{
				Kind:          OutcomeCompletedInfo,
				TransactionID: sess.TransactionID,
				Status:        sess.TransactionStatus,
			}, nil
		}
		log.Info("starting new transfer cycle after completed transaction")
		sess.BeginNewTransfer()
	}

	// Rule 1: still collecting and this turn has no numeric data at all.
	if !sess.ReadyToValidate() && !ContainsDigits(userText) && sess.State != datatypes.StateAwaitingConfirmation {
		return Outcome{Kind: OutcomePrompt, Reason: m.missingField(sess)}, nil
	}

	// Rule 2: run extraction over the whole conversation and merge what is
	// new. Never overwrite an already-set field.
	if outcome, bad := m.mergeExtraction(sess, log); bad {
		return outcome, nil
	}

	// Rule 3: both fields present and no live token: validate.
	if sess.ReadyToValidate() && !sess.HasLiveValidation() && sess.State != datatypes.StateAwaitingConfirmation {
		return m.validate(ctx, sess, log)
	}

	// Rule 4: awaiting an explicit yes/no.
	if sess.State == datatypes.StateAwaitingConfirmation {
		return m.confirm(ctx, sess, userText, log)
	}

	// Still missing a field; the turn carried digits but nothing usable.
	return Outcome{Kind: OutcomePrompt, Reason: m.missingField(sess)}, nil
}

// mergeExtraction merges extraction results into the session. The second
// return is true when an extracted value violated a local invariant and
// the turn should end with the returned prompt outcome.
func (m *Machine) mergeExtraction(sess *datatypes.Session, log *slog.Logger) (Outcome, bool) {
	found := Extract(sess.AllText())

	if sess.Phone == nil && found.Phone != nil {
		if err := sess.SetPhone(*found.Phone); err != nil {
			// Unreachable by construction (the pattern guarantees the
			// format), but refuse to guess if it ever fires.
			log.Warn("extracted phone rejected", "error", err)
			return Outcome{Kind: OutcomePrompt, Reason: err.Error()}, true
		}
		log.Info("extracted phone", "phone", *found.Phone)
	}

	if sess.Amount == nil && found.Amount != nil {
		if err := sess.SetAmount(*found.Amount); err != nil {
			log.Warn("extracted amount out of bounds", "amount", *found.Amount)
			return Outcome{Kind: OutcomePrompt, Reason: err.Error()}, true
		}
		log.Info("extracted amount", "amount", *found.Amount)
	}

	return Outcome{}, false
}

// validate performs the one outbound validate call for this turn.
func (m *Machine) validate(ctx context.Context, sess *datatypes.Session, log *slog.Logger) (Outcome, error) {
	phone := *sess.Phone
	amount := *sess.Amount

	sess.State = datatypes.StateValidating
	result, err := m.gateway.Validate(ctx, phone, amount)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Outcome{}, err
		}
		// Transport exhausted or circuit open: leave the collected data in
		// place so the same request can be retried on a later turn.
		log.Error("validate call failed", "error", err)
		sess.State = datatypes.StateConversation
		return Outcome{Kind: OutcomeServiceUnavailable, Reason: err.Error()}, nil
	}

	if !result.Valid {
		log.Warn("validation rejected", "reason", result.Reason)
		sess.ClearValidation()
		return Outcome{
			Kind:   OutcomeValidationRejected,
			Phone:  phone,
			Amount: amount,
			Reason: result.Reason,
		}, nil
	}

	log.Info("validation succeeded", "validation_id", result.Token)
	sess.IssueValidation(result.Token)
	return Outcome{
		Kind:   OutcomeAwaitingConfirmation,
		Phone:  phone,
		Amount: amount,
	}, nil
}

// confirm handles the yes/no turn while a validation is pending.
func (m *Machine) confirm(ctx context.Context, sess *datatypes.Session, userText string, log *slog.Logger) (Outcome, error) {
	switch DetectConfirmation(userText) {
	case DecisionDeclined:
		log.Info("user declined transfer")
		sess.ClearValidation()
		return Outcome{Kind: OutcomeCancelled}, nil

	case DecisionConfirmed:
		return m.execute(ctx, sess, log)

	default:
		return Outcome{
			Kind:   OutcomeAwaitingConfirmation,
			Phone:  derefString(sess.Phone),
			Amount: derefFloat(sess.Amount),
		}, nil
	}
}

// execute performs the one outbound execute call for this turn. A failure
// discards the token: execute is never replayed with a stale validation.
func (m *Machine) execute(ctx context.Context, sess *datatypes.Session, log *slog.Logger) (Outcome, error) {
	if err := sess.MarkConfirmed(); err != nil {
		// Invariant violation: confirming with no live token. Refuse
		// execution; never guess.
		log.Error("refusing execution", "error", err)
		sess.ClearValidation()
		return Outcome{Kind: OutcomeExecutionFailed, Reason: err.Error()}, nil
	}

	validationID := sess.ValidationID
	phone := *sess.Phone
	amount := *sess.Amount

	sess.State = datatypes.StateExecuting
	result, err := m.gateway.Execute(ctx, validationID, phone, amount)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Outcome{}, err
		}
		log.Error("execute call failed", "error", err)
		sess.ClearValidation()
		return Outcome{Kind: OutcomeServiceUnavailable, Reason: err.Error()}, nil
	}

	if !result.Succeeded() {
		log.Error("execution failed", "status", result.Status, "reason", result.Reason)
		sess.ClearValidation()
		return Outcome{Kind: OutcomeExecutionFailed, Reason: result.Reason}, nil
	}

	if err := sess.MarkExecuted(result.TransactionID, result.Status); err != nil {
		log.Error("refusing to record execution twice", "error", err)
		sess.ClearValidation()
		return Outcome{Kind: OutcomeExecutionFailed, Reason: err.Error()}, nil
	}

	log.Info("transfer executed",
		"transaction_id", result.TransactionID, "status", result.Status)
	return Outcome{
		Kind:          OutcomeExecuted,
		Phone:         phone,
		Amount:        amount,
		TransactionID: result.TransactionID,
		Status:        result.Status,
	}, nil
}

// missingField names the next field to ask for.
func (m *Machine) missingField(sess *datatypes.Session) string {
	if sess.Phone == nil && sess.Amount == nil {
		return "phone and amount"
	}
	if sess.Phone == nil {
		return "phone"
	}
	return "amount"
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefFloat(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
