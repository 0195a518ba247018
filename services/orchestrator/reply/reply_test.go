// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package reply

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianTransfer/services/orchestrator/agent"
)

func TestTemplateResponder(t *testing.T) {
	responder := NewTemplateResponder()

	tests := []struct {
		name     string
		outcome  agent.Outcome
		contains []string
	}{
		{
			name:     "prompt for both fields",
			outcome:  agent.Outcome{Kind: agent.OutcomePrompt, Reason: "phone and amount"},
			contains: []string{"número de celular", "monto"},
		},
		{
			name:     "prompt for phone",
			outcome:  agent.Outcome{Kind: agent.OutcomePrompt, Reason: "phone"},
			contains: []string{"número de celular"},
		},
		{
			name:     "prompt for amount",
			outcome:  agent.Outcome{Kind: agent.OutcomePrompt, Reason: "amount"},
			contains: []string{"monto"},
		},
		{
			name:     "prompt with constraint",
			outcome:  agent.Outcome{Kind: agent.OutcomePrompt, Reason: "amount must be between 1000 and 5000000 COP"},
			contains: []string{"amount must be between"},
		},
		{
			name:     "rejection carries remote reason verbatim",
			outcome:  agent.Outcome{Kind: agent.OutcomeValidationRejected, Reason: "Amount exceeds maximum limit of 5,000,000 COP"},
			contains: []string{"Amount exceeds maximum limit of 5,000,000 COP"},
		},
		{
			name: "confirmation shows phone and formatted amount",
			outcome: agent.Outcome{
				Kind:   agent.OutcomeAwaitingConfirmation,
				Phone:  "3001234567",
				Amount: 50000,
			},
			contains: []string{"3001234567", "$50.000", "¿Confirmas"},
		},
		{
			name:     "cancellation",
			outcome:  agent.Outcome{Kind: agent.OutcomeCancelled},
			contains: []string{"cancelada"},
		},
		{
			name: "execution shows transaction id",
			outcome: agent.Outcome{
				Kind:          agent.OutcomeExecuted,
				Phone:         "3001234567",
				Amount:        50000,
				TransactionID: "TXN-42",
			},
			contains: []string{"TXN-42", "éxito"},
		},
		{
			name:     "execution failure requires revalidation",
			outcome:  agent.Outcome{Kind: agent.OutcomeExecutionFailed, Reason: "Payment declined"},
			contains: []string{"Payment declined", "nuevamente"},
		},
		{
			name:     "service unavailable keeps data",
			outcome:  agent.Outcome{Kind: agent.OutcomeServiceUnavailable, Reason: "retry attempts exhausted"},
			contains: []string{"no está disponible", "intenta de nuevo"},
		},
		{
			name: "completed info reports status",
			outcome: agent.Outcome{
				Kind:          agent.OutcomeCompletedInfo,
				TransactionID: "TXN-42",
				Status:        "completed",
			},
			contains: []string{"TXN-42", "completed"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, err := responder.Reply(context.Background(), tt.outcome)
			require.NoError(t, err)
			for _, want := range tt.contains {
				assert.Contains(t, text, want)
			}
		})
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		amount float64
		want   string
	}{
		{1000, "1.000"},
		{50000, "50.000"},
		{999, "999"},
		{5000000, "5.000.000"},
		{123456, "123.456"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatAmount(tt.amount))
	}
}

// fakeGenerator scripts LLM behavior.
type fakeGenerator struct {
	text string
	err  error
}

func (g *fakeGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	return g.text, g.err
}

func TestLLMResponder(t *testing.T) {
	outcome := agent.Outcome{
		Kind:   agent.OutcomeAwaitingConfirmation,
		Phone:  "3001234567",
		Amount: 50000,
	}

	t.Run("uses generated text when facts survive", func(t *testing.T) {
		responder := NewLLMResponder(&fakeGenerator{
			text: "Perfecto, enviaré $50.000 COP al 3001234567. ¿Lo confirmas?",
		})
		text, err := responder.Reply(context.Background(), outcome)
		require.NoError(t, err)
		assert.Contains(t, text, "¿Lo confirmas?")
	})

	t.Run("falls back on generation error", func(t *testing.T) {
		responder := NewLLMResponder(&fakeGenerator{err: errors.New("api down")})
		text, err := responder.Reply(context.Background(), outcome)
		require.NoError(t, err, "LLM failure must never block the dialogue")
		assert.Contains(t, text, "3001234567")
		assert.Contains(t, text, "$50.000")
	})

	t.Run("falls back when the phone is dropped", func(t *testing.T) {
		responder := NewLLMResponder(&fakeGenerator{text: "¿Confirmas la transferencia?"})
		text, err := responder.Reply(context.Background(), outcome)
		require.NoError(t, err)
		assert.Contains(t, text, "3001234567", "template fallback restores the dropped fact")
	})

	t.Run("falls back on empty response", func(t *testing.T) {
		responder := NewLLMResponder(&fakeGenerator{text: "  "})
		text, err := responder.Reply(context.Background(), outcome)
		require.NoError(t, err)
		assert.Contains(t, text, "3001234567")
	})
}
