// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agent

import (
	"strings"
	"unicode"
)

// =============================================================================
// Confirmation Detector
// =============================================================================

// Decision is the tri-state outcome of confirmation detection.
type Decision int

const (
	// DecisionUnknown means the text contains neither a clear yes nor a
	// clear no. Treated as "not yet confirmed", never as an error.
	DecisionUnknown Decision = iota

	// DecisionConfirmed means the user explicitly approved the transfer.
	DecisionConfirmed

	// DecisionDeclined means the user cancelled or asked to wait.
	DecisionDeclined
)

// String returns a human-readable decision name.
func (d Decision) String() string {
	switch d {
	case DecisionConfirmed:
		return "CONFIRMED"
	case DecisionDeclined:
		return "DECLINED"
	default:
		return "UNKNOWN"
	}
}

// affirmativeWords approve the pending transfer.
var affirmativeWords = map[string]bool{
	"sí":       true,
	"si":       true,
	"confirmo": true,
	"confirmar": true,
	"ok":       true,
	"dale":     true,
	"adelante": true,
	"seguro":   true,
	"yes":      true,
}

// negativeWords cancel it. Declines always win over an affirmative match
// in the same message ("no, dale mejor no" must cancel).
var negativeWords = map[string]bool{
	"no":      true,
	"cancelar": true,
	"cancela": true,
	"detener": true,
	"parar":   true,
	"espera":  true,
	"cancel":  true,
}

// DetectConfirmation classifies a user turn as confirmed, declined, or
// undetermined.
//
// # Description
//
// Case-insensitive whole-word matching against fixed keyword sets. Words
// are compared after splitting on any non-letter rune, so "noviembre"
// does not register as a decline and "ok!" still registers as a
// confirmation. If both sets match, DECLINED takes precedence: an explicit
// cancellation always wins over an accidental affirmative.
//
// Pure function, deterministic.
func DetectConfirmation(text string) Decision {
	confirmed := false
	declined := false

	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})

	for _, word := range words {
		if negativeWords[word] {
			declined = true
		}
		if affirmativeWords[word] {
			confirmed = true
		}
	}

	if declined {
		return DecisionDeclined
	}
	if confirmed {
		return DecisionConfirmed
	}
	return DecisionUnknown
}
