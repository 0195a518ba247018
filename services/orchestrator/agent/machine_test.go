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
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianTransfer/services/orchestrator/datatypes"
)

// fakeGateway scripts gateway responses and records calls.
type fakeGateway struct {
	validateResult datatypes.ValidationOutcome
	validateErr    error
	executeResult  datatypes.ExecutionOutcome
	executeErr     error

	validateCalls int
	executeCalls  int
	lastPhone     string
	lastAmount    float64
	lastToken     string
	tokenSeq      int
}

func (g *fakeGateway) Validate(ctx context.Context, phone string, amount float64) (datatypes.ValidationOutcome, error) {
	g.validateCalls++
	g.lastPhone = phone
	g.lastAmount = amount
	if g.validateErr != nil {
		return datatypes.ValidationOutcome{}, g.validateErr
	}
	result := g.validateResult
	if result.Valid && result.Token == "" {
		g.tokenSeq++
		result.Token = fmt.Sprintf("VAL-%d", g.tokenSeq)
	}
	return result, nil
}

func (g *fakeGateway) Execute(ctx context.Context, validationID, phone string, amount float64) (datatypes.ExecutionOutcome, error) {
	g.executeCalls++
	g.lastToken = validationID
	if g.executeErr != nil {
		return datatypes.ExecutionOutcome{}, g.executeErr
	}
	return g.executeResult, nil
}

func newValidatedSession(t *testing.T, gw *fakeGateway) (*Machine, *datatypes.Session) {
	t.Helper()
	gw.validateResult = datatypes.ValidationOutcome{Valid: true}
	machine := NewMachine(gw)
	sess := datatypes.NewSession("sess-1", "user-1")

	outcome, err := machine.Step(context.Background(), sess, "Enviar 50000 al 3001234567")
	require.NoError(t, err)
	require.Equal(t, OutcomeAwaitingConfirmation, outcome.Kind)
	require.Equal(t, datatypes.StateAwaitingConfirmation, sess.State)
	return machine, sess
}

func TestMachine_ExtractionThenValidate(t *testing.T) {
	// Scenario A: one turn with both fields goes straight to validate.
	gw := &fakeGateway{validateResult: datatypes.ValidationOutcome{Valid: true}}
	machine := NewMachine(gw)
	sess := datatypes.NewSession("sess-1", "user-1")

	outcome, err := machine.Step(context.Background(), sess, "Enviar 50000 al 3001234567")
	require.NoError(t, err)

	assert.Equal(t, 1, gw.validateCalls)
	assert.Equal(t, "3001234567", gw.lastPhone)
	assert.Equal(t, float64(50000), gw.lastAmount)
	assert.Equal(t, OutcomeAwaitingConfirmation, outcome.Kind)
	assert.True(t, sess.NeedsConfirmation)
	assert.NotEmpty(t, sess.ValidationID)
	assert.Equal(t, 0, gw.executeCalls, "validate and execute never share a turn")
}

func TestMachine_PromptWhenNoData(t *testing.T) {
	gw := &fakeGateway{}
	machine := NewMachine(gw)
	sess := datatypes.NewSession("sess-1", "user-1")

	outcome, err := machine.Step(context.Background(), sess, "hola, quiero enviar dinero")
	require.NoError(t, err)

	assert.Equal(t, OutcomePrompt, outcome.Kind)
	assert.Equal(t, "phone and amount", outcome.Reason)
	assert.Equal(t, 0, gw.validateCalls, "no outbound call without data")
	assert.Equal(t, datatypes.StateConversation, sess.State)
}

func TestMachine_AccumulatesAcrossTurns(t *testing.T) {
	gw := &fakeGateway{validateResult: datatypes.ValidationOutcome{Valid: true}}
	machine := NewMachine(gw)
	sess := datatypes.NewSession("sess-1", "user-1")

	outcome, err := machine.Step(context.Background(), sess, "quiero enviar $75.000")
	require.NoError(t, err)
	assert.Equal(t, OutcomePrompt, outcome.Kind)
	assert.Equal(t, "phone", outcome.Reason)
	require.NotNil(t, sess.Amount)

	// The phone arrives two turns later; the earlier amount is not lost.
	outcome, err = machine.Step(context.Background(), sess, "al 3009876543")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAwaitingConfirmation, outcome.Kind)
	assert.Equal(t, "3009876543", gw.lastPhone)
	assert.Equal(t, float64(75000), gw.lastAmount)
}

func TestMachine_ValidationRejected(t *testing.T) {
	// Scenario B: remote rejection is surfaced verbatim.
	gw := &fakeGateway{validateResult: datatypes.ValidationOutcome{Valid: false, Reason: "limit exceeded"}}
	machine := NewMachine(gw)
	sess := datatypes.NewSession("sess-1", "user-1")

	outcome, err := machine.Step(context.Background(), sess, "Enviar 50000 al 3001234567")
	require.NoError(t, err)

	assert.Equal(t, OutcomeValidationRejected, outcome.Kind)
	assert.Equal(t, "limit exceeded", outcome.Reason)
	assert.Equal(t, datatypes.StateConversation, sess.State)
	assert.False(t, sess.NeedsConfirmation)
	assert.Empty(t, sess.ValidationID)
}

func TestMachine_DeclineClearsToken(t *testing.T) {
	// Scenario C: "no, cancela" clears everything, no execute.
	gw := &fakeGateway{}
	machine, sess := newValidatedSession(t, gw)

	outcome, err := machine.Step(context.Background(), sess, "no, cancela")
	require.NoError(t, err)

	assert.Equal(t, OutcomeCancelled, outcome.Kind)
	assert.False(t, sess.Confirmed)
	assert.False(t, sess.NeedsConfirmation)
	assert.Empty(t, sess.ValidationID)
	assert.Equal(t, 0, gw.executeCalls)
	assert.Equal(t, datatypes.StateConversation, sess.State)
}

func TestMachine_ConfirmExecutes(t *testing.T) {
	// Scenario D: confirmation triggers execute with the live token.
	gw := &fakeGateway{
		executeResult: datatypes.ExecutionOutcome{TransactionID: "TXN-1", Status: datatypes.StatusCompleted},
	}
	machine, sess := newValidatedSession(t, gw)
	issuedToken := sess.ValidationID

	outcome, err := machine.Step(context.Background(), sess, "sí, confirmo")
	require.NoError(t, err)

	assert.Equal(t, OutcomeExecuted, outcome.Kind)
	assert.Equal(t, "TXN-1", outcome.TransactionID)
	assert.Equal(t, 1, gw.executeCalls)
	assert.Equal(t, issuedToken, gw.lastToken, "execute must use the live token")
	assert.Equal(t, "TXN-1", sess.TransactionID)
	assert.Equal(t, datatypes.StateDone, sess.State)
	assert.Empty(t, sess.ValidationID, "token consumed by execute")
}

func TestMachine_ExecuteFailureDiscardsToken(t *testing.T) {
	// Scenario E: transport exhaustion on execute leaves no transaction
	// and requires a fresh validation.
	gw := &fakeGateway{executeErr: errors.New("retry attempts exhausted: timeout")}
	machine, sess := newValidatedSession(t, gw)

	outcome, err := machine.Step(context.Background(), sess, "sí")
	require.NoError(t, err)

	assert.Equal(t, OutcomeServiceUnavailable, outcome.Kind)
	assert.Empty(t, sess.TransactionID)
	assert.Empty(t, sess.ValidationID, "stale token must not be replayable")
	assert.Equal(t, datatypes.StateConversation, sess.State)

	// Confirming again must not execute: no live token remains.
	outcome, err = machine.Step(context.Background(), sess, "sí, confirmo")
	require.NoError(t, err)
	assert.Equal(t, 1, gw.executeCalls, "execute never replayed with a stale token")
}

func TestMachine_RemoteExecutionFailure(t *testing.T) {
	gw := &fakeGateway{
		executeResult: datatypes.ExecutionOutcome{
			TransactionID: "TXN-9",
			Status:        datatypes.StatusFailed,
			Reason:        "Payment declined by recipient's bank",
		},
	}
	machine, sess := newValidatedSession(t, gw)

	outcome, err := machine.Step(context.Background(), sess, "confirmo")
	require.NoError(t, err)

	assert.Equal(t, OutcomeExecutionFailed, outcome.Kind)
	assert.Equal(t, "Payment declined by recipient's bank", outcome.Reason)
	assert.Empty(t, sess.TransactionID, "a failed transfer is never recorded as executed")
	assert.Equal(t, datatypes.StateConversation, sess.State)
}

func TestMachine_UnknownReplyKeepsWaiting(t *testing.T) {
	gw := &fakeGateway{}
	machine, sess := newValidatedSession(t, gw)

	outcome, err := machine.Step(context.Background(), sess, "¿me cobran comisión?")
	require.NoError(t, err)

	assert.Equal(t, OutcomeAwaitingConfirmation, outcome.Kind)
	assert.Equal(t, datatypes.StateAwaitingConfirmation, sess.State)
	assert.Equal(t, 0, gw.executeCalls)
}

func TestMachine_NewTokenSupersedesPrior(t *testing.T) {
	gw := &fakeGateway{}
	machine, sess := newValidatedSession(t, gw)
	firstToken := sess.ValidationID

	// Decline, then provide fresh data: a second validation issues a new
	// token and the first is gone for good.
	_, err := machine.Step(context.Background(), sess, "no")
	require.NoError(t, err)

	_, err = machine.Step(context.Background(), sess, "mejor sí, envía 50000 al 3001234567")
	require.NoError(t, err)

	require.NotEmpty(t, sess.ValidationID)
	assert.NotEqual(t, firstToken, sess.ValidationID)
	assert.Equal(t, 2, gw.validateCalls)
}

func TestMachine_DoneIsTerminalUntilNewTransfer(t *testing.T) {
	gw := &fakeGateway{
		executeResult: datatypes.ExecutionOutcome{TransactionID: "TXN-1", Status: datatypes.StatusCompleted},
	}
	machine, sess := newValidatedSession(t, gw)

	_, err := machine.Step(context.Background(), sess, "sí")
	require.NoError(t, err)
	require.Equal(t, datatypes.StateDone, sess.State)

	t.Run("chatter after completion stays terminal", func(t *testing.T) {
		outcome, err := machine.Step(context.Background(), sess, "gracias!")
		require.NoError(t, err)
		assert.Equal(t, OutcomeCompletedInfo, outcome.Kind)
		assert.Equal(t, "TXN-1", outcome.TransactionID)
		assert.Equal(t, datatypes.StateDone, sess.State)
	})

	t.Run("new transfer data starts a fresh cycle", func(t *testing.T) {
		outcome, err := machine.Step(context.Background(), sess, "ahora envía 80000 al 3112223344")
		require.NoError(t, err)
		assert.Equal(t, OutcomeAwaitingConfirmation, outcome.Kind)
		assert.Equal(t, "3112223344", gw.lastPhone)
		assert.Equal(t, float64(80000), gw.lastAmount)
		assert.Empty(t, sess.TransactionID, "fresh cycle, independent token")
	})
}

func TestMachine_OutOfBoundsAmountPromptsLocally(t *testing.T) {
	gw := &fakeGateway{}
	machine := NewMachine(gw)
	sess := datatypes.NewSession("sess-1", "user-1")

	outcome, err := machine.Step(context.Background(), sess, "envía 500 al 3001234567")
	require.NoError(t, err)

	assert.Equal(t, OutcomePrompt, outcome.Kind)
	assert.Contains(t, outcome.Reason, "amount must be between")
	assert.Equal(t, 0, gw.validateCalls, "local input errors never reach the service")
	assert.Nil(t, sess.Amount)
}

func TestMachine_ValidateUnavailableLeavesSessionRetryable(t *testing.T) {
	gw := &fakeGateway{validateErr: errors.New("circuit breaker is open")}
	machine := NewMachine(gw)
	sess := datatypes.NewSession("sess-1", "user-1")

	outcome, err := machine.Step(context.Background(), sess, "Enviar 50000 al 3001234567")
	require.NoError(t, err)

	assert.Equal(t, OutcomeServiceUnavailable, outcome.Kind)
	require.NotNil(t, sess.Phone)
	require.NotNil(t, sess.Amount)
	assert.Empty(t, sess.ValidationID)

	// A later turn retries the same request without re-collecting data.
	gw.validateErr = nil
	gw.validateResult = datatypes.ValidationOutcome{Valid: true}
	outcome, err = machine.Step(context.Background(), sess, "intenta de nuevo 1 vez")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAwaitingConfirmation, outcome.Kind)
}

func TestMachine_CancellationAbortsTurn(t *testing.T) {
	gw := &fakeGateway{validateErr: context.Canceled}
	machine := NewMachine(gw)
	sess := datatypes.NewSession("sess-1", "user-1")

	_, err := machine.Step(context.Background(), sess, "Enviar 50000 al 3001234567")
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sess.ValidationID, "no partial commit after cancellation")
}
