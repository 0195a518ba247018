// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package reply renders user-facing messages from dialogue outcomes.
//
// # Description
//
// The state machine produces structured outcomes; this package turns them
// into Spanish text for the user. TemplateResponder is deterministic and
// always available. LLMResponder optionally rephrases the template through
// an LLM for a more natural tone and falls back to the template verbatim
// on any failure, so the reply path never depends on LLM availability.
//
// Amounts, phone numbers, transaction ids, and remote rejection reasons
// are facts; responders must carry them through unchanged.
package reply

import (
	"context"
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianTransfer/services/orchestrator/agent"
)

// Responder renders one outcome into a user-facing reply.
type Responder interface {
	Reply(ctx context.Context, outcome agent.Outcome) (string, error)
}

// TemplateResponder renders fixed Spanish templates per outcome kind.
//
// # Thread Safety
//
// Stateless; safe for concurrent use.
type TemplateResponder struct{}

// NewTemplateResponder creates the deterministic responder.
func NewTemplateResponder() *TemplateResponder {
	return &TemplateResponder{}
}

// Reply renders the outcome. Never returns an error.
func (r *TemplateResponder) Reply(_ context.Context, outcome agent.Outcome) (string, error) {
	switch outcome.Kind {
	case agent.OutcomePrompt:
		return promptFor(outcome.Reason), nil

	case agent.OutcomeValidationRejected:
		return fmt.Sprintf("La transferencia no fue aprobada: %s", outcome.Reason), nil

	case agent.OutcomeAwaitingConfirmation:
		return fmt.Sprintf(
			"Vas a transferir $%s COP al número %s. ¿Confirmas la operación?",
			FormatAmount(outcome.Amount), outcome.Phone,
		), nil

	case agent.OutcomeCancelled:
		return "Transferencia cancelada. ¿Puedo ayudarte con algo más?", nil

	case agent.OutcomeExecuted:
		return fmt.Sprintf(
			"¡Listo! Transferencia de $%s COP al número %s realizada con éxito. ID de transacción: %s.",
			FormatAmount(outcome.Amount), outcome.Phone, outcome.TransactionID,
		), nil

	case agent.OutcomeExecutionFailed:
		return fmt.Sprintf(
			"No fue posible completar la transferencia: %s. Deberás validar la operación nuevamente.",
			outcome.Reason,
		), nil

	case agent.OutcomeServiceUnavailable:
		return "El servicio de transacciones no está disponible en este momento. Tus datos quedaron guardados; por favor intenta de nuevo en unos minutos.", nil

	case agent.OutcomeCompletedInfo:
		return fmt.Sprintf(
			"Tu transferencia %s ya fue procesada (estado: %s). Si deseas hacer una nueva, indícame el número y el monto.",
			outcome.TransactionID, outcome.Status,
		), nil

	default:
		return "¿En qué puedo ayudarte con tu transferencia?", nil
	}
}

// promptFor maps the missing-data reason to a question.
func promptFor(reason string) string {
	switch reason {
	case "phone and amount":
		return "Con gusto te ayudo con la transferencia. ¿A qué número de celular deseas enviar dinero y qué monto?"
	case "phone":
		return "¿A qué número de celular deseas enviar el dinero?"
	case "amount":
		return "¿Qué monto deseas transferir?"
	default:
		// A locally rejected value; surface the constraint.
		return fmt.Sprintf("No puedo usar ese dato: %s. ¿Puedes indicarlo de nuevo?", reason)
	}
}

// FormatAmount renders an amount with Colombian thousands separators,
// e.g. 50000 -> "50.000".
func FormatAmount(amount float64) string {
	digits := fmt.Sprintf("%.0f", amount)

	var groups []string
	for len(digits) > 3 {
		groups = append([]string{digits[len(digits)-3:]}, groups...)
		digits = digits[:len(digits)-3]
	}
	groups = append([]string{digits}, groups...)
	return strings.Join(groups, ".")
}
