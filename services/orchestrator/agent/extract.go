// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package agent implements the transfer dialogue: deterministic data
// extraction, confirmation detection, and the state machine that drives a
// session from free text to an executed transaction.
package agent

import (
	"regexp"
	"strconv"
	"strings"
)

// =============================================================================
// Extraction Engine
// =============================================================================

// ExtractedData holds the fields found in free text. A nil field means the
// text contained no match; it is never defaulted.
type ExtractedData struct {
	Phone  *string
	Amount *float64
}

// phonePattern matches a Colombian mobile number: 10 digits, first digit 3.
// Applied after separator stripping so "300-123-4567" still matches. The
// surrounding non-digit guards keep a 10-digit window inside a longer digit
// run from being claimed as a phone.
var phonePattern = regexp.MustCompile(`(?:^|\D)(3\d{9})(?:\D|$)`)

// phoneSeparators are stripped from the text before the phone search.
var phoneSeparators = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")

// amountNumber matches one written amount: either a digit-grouped number
// ("75,000", "5.000.000", "50 000") or a plain digit run. The grouped
// alternative is tried first so a separator-carrying number is consumed
// whole instead of stopping at its first group.
const amountNumber = `(\d{1,3}(?:[,.\s]\d{3})+|\d+)`

// amountPatterns are tried in priority order; the first match wins.
// Grouping separators in the captured number are stripped before parsing.
var amountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\$\s*` + amountNumber),
	regexp.MustCompile(`(?i)` + amountNumber + `\s*pesos`),
	regexp.MustCompile(`(?i)monto\s*:?\s*` + amountNumber),
	regexp.MustCompile(`(?i)env[ií]ar?\s*\$?\s*` + amountNumber),
	regexp.MustCompile(`(?i)transferir\s*\$?\s*` + amountNumber),
}

// amountSeparators are stripped from a matched amount before parsing.
var amountSeparators = strings.NewReplacer(",", "", ".", "", " ", "")

// Extract finds a recipient phone and a transfer amount in free text.
//
// # Description
//
// Pure function: no side effects, deterministic, first match wins per
// field. Callers pass the concatenation of all session turns so data given
// in earlier turns is not lost.
//
// Phone: first substring of 10 digits starting with 3, found after
// stripping spaces, dashes, parentheses, and dots. Amount: first match of
// the fixed pattern set ($N, N pesos, monto: N, envía/enviar N,
// transferir N).
//
// # Inputs
//
//   - text: Free text to search, any length
//
// # Outputs
//
//   - ExtractedData: Found fields; nil for fields with no match
func Extract(text string) ExtractedData {
	var result ExtractedData

	stripped := phoneSeparators.Replace(text)
	if groups := phonePattern.FindStringSubmatch(stripped); groups != nil {
		phone := groups[1]
		result.Phone = &phone
	}

	for _, pattern := range amountPatterns {
		groups := pattern.FindStringSubmatch(text)
		if groups == nil {
			continue
		}
		raw := amountSeparators.Replace(groups[1])
		amount, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		result.Amount = &amount
		break
	}

	return result
}

// digitPattern detects whether a turn carries any numeric data at all.
var digitPattern = regexp.MustCompile(`\d`)

// ContainsDigits reports whether text contains at least one digit. The
// state machine uses this to decide whether extraction is worth running on
// a turn that is still missing data.
func ContainsDigits(text string) bool {
	return digitPattern.MatchString(text)
}
