// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agent

import "testing"

func TestDetectConfirmation(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Decision
	}{
		{"accented yes", "sí", DecisionConfirmed},
		{"plain yes", "si, hazlo", DecisionConfirmed},
		{"confirmo", "Confirmo la transferencia", DecisionConfirmed},
		{"ok with punctuation", "ok!", DecisionConfirmed},
		{"dale", "dale pues", DecisionConfirmed},
		{"english yes", "YES", DecisionConfirmed},
		{"plain no", "no", DecisionDeclined},
		{"cancela", "no, cancela", DecisionDeclined},
		{"espera", "espera un momento", DecisionDeclined},
		{"decline wins over affirmative", "sí... no, mejor cancela", DecisionDeclined},
		{"unrelated text", "¿cuánto me queda?", DecisionUnknown},
		{"empty", "", DecisionUnknown},
		{"substring is not a decline", "nos vemos en noviembre", DecisionUnknown},
		{"substring is not a confirmation", "busco el confirmador", DecisionUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectConfirmation(tt.text)
			if got != tt.want {
				t.Errorf("DetectConfirmation(%q) = %s, want %s", tt.text, got, tt.want)
			}
		})
	}
}
