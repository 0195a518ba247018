// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes provides data structures for the transfer orchestrator.
//
// This file contains the per-conversation Session record and the mutation
// methods that enforce its invariants. Field writes that carry an invariant
// flow through these methods.
package datatypes

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Transfer amount limits in COP (base currency units).
const (
	MinTransferAmount = 1_000
	MaxTransferAmount = 5_000_000
)

// DefaultCurrency tags outbound requests; there is no multi-currency logic.
const DefaultCurrency = "COP"

// Turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DialogState is the stored position of a session in the transfer dialogue.
type DialogState string

const (
	// StateConversation is collecting phone/amount from the user.
	StateConversation DialogState = "CONVERSATION"

	// StateValidating means a validate call is in flight this turn.
	StateValidating DialogState = "VALIDATING"

	// StateAwaitingConfirmation means a validation succeeded and we are
	// waiting for an explicit yes/no.
	StateAwaitingConfirmation DialogState = "AWAITING_CONFIRMATION"

	// StateExecuting means an execute call is in flight this turn.
	StateExecuting DialogState = "EXECUTING"

	// StateDone is terminal for the current transaction.
	StateDone DialogState = "DONE"
)

// Mutation errors. These are input or invariant violations the
// orchestrator recovers from locally; they never reach the wire as 500s.
var (
	ErrInvalidPhone     = errors.New("phone must be exactly 10 digits starting with 3")
	ErrInvalidAmount    = fmt.Errorf("amount must be between %d and %d COP", MinTransferAmount, MaxTransferAmount)
	ErrAlreadyExecuted  = errors.New("transaction already executed for this validation")
	ErrNoLiveValidation = errors.New("no live validation token for this session")
)

// Turn is one message in a session, user or assistant. Insertion order is
// significant; the slice is append-only.
type Turn struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

// Session is one user's ongoing transfer dialogue and its accumulated state.
//
// # Invariants
//
//   - Phone, when set, is exactly 10 digits and starts with 3.
//   - Amount, when set, is within [MinTransferAmount, MaxTransferAmount].
//   - Confirmed implies Phone and Amount are present and ValidationID was
//     issued for that exact pair.
//   - At most one ValidationID is live at a time; issuing a new one
//     supersedes the previous.
//   - TransactionID is set at most once per validated request.
//
// Mutation is serialized per SessionID by the store; Session itself is not
// safe for concurrent use.
type Session struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`

	Phone  *string  `json:"phone,omitempty"`
	Amount *float64 `json:"amount,omitempty"`

	ValidationID      string `json:"validation_id,omitempty"`
	NeedsConfirmation bool   `json:"needs_confirmation"`
	Confirmed         bool   `json:"confirmed"`

	TransactionID     string `json:"transaction_id,omitempty"`
	TransactionStatus string `json:"transaction_status,omitempty"`

	State DialogState `json:"state"`
	Turns []Turn      `json:"turns"`

	// TransferStart is the index of the first turn belonging to the
	// current transfer cycle. Extraction never looks behind it, so a
	// second transfer in the same session cannot pick up the completed
	// one's phone or amount.
	TransferStart int `json:"transfer_start"`

	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// NewSession creates a fresh session in the conversation state.
func NewSession(sessionID, userID string) *Session {
	now := time.Now().UnixMilli()
	return &Session{
		SessionID: sessionID,
		UserID:    userID,
		State:     StateConversation,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AppendTurn records one message. Turns are append-only.
func (s *Session) AppendTurn(role, content string) {
	s.Turns = append(s.Turns, Turn{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UnixMilli(),
	})
	s.touch()
}

// AllText returns the concatenation of every turn's content in the current
// transfer cycle, oldest first. The extraction engine runs over this so
// information given in earlier turns is not lost.
func (s *Session) AllText() string {
	start := s.TransferStart
	if start > len(s.Turns) {
		start = len(s.Turns)
	}
	var out strings.Builder
	for _, turn := range s.Turns[start:] {
		out.WriteString(" ")
		out.WriteString(turn.Content)
	}
	return out.String()
}

// LastUserText returns the content of the most recent user turn, or "".
func (s *Session) LastUserText() string {
	for i := len(s.Turns) - 1; i >= 0; i-- {
		if s.Turns[i].Role == RoleUser {
			return s.Turns[i].Content
		}
	}
	return ""
}

// SetPhone validates and stores the recipient phone.
func (s *Session) SetPhone(phone string) error {
	if !ValidPhone(phone) {
		return ErrInvalidPhone
	}
	s.Phone = &phone
	s.touch()
	return nil
}

// SetAmount validates and stores the transfer amount.
func (s *Session) SetAmount(amount float64) error {
	if !ValidAmount(amount) {
		return ErrInvalidAmount
	}
	s.Amount = &amount
	s.touch()
	return nil
}

// ReadyToValidate reports whether both phone and amount are present.
func (s *Session) ReadyToValidate() bool {
	return s.Phone != nil && s.Amount != nil
}

// HasLiveValidation reports whether a validation token is live and unconsumed.
func (s *Session) HasLiveValidation() bool {
	return s.ValidationID != "" && s.TransactionID == ""
}

// IssueValidation installs a new validation token, superseding any prior
// one, and moves the session to the confirmation stage.
func (s *Session) IssueValidation(validationID string) {
	s.ValidationID = validationID
	s.NeedsConfirmation = true
	s.Confirmed = false
	s.State = StateAwaitingConfirmation
	s.touch()
}

// ClearValidation discards the live token and confirmation flags and
// returns the session to the conversation state. Used on decline, on
// validation rejection, and after a failed execute (a fresh validation is
// required before any retry).
func (s *Session) ClearValidation() {
	s.ValidationID = ""
	s.NeedsConfirmation = false
	s.Confirmed = false
	s.State = StateConversation
	s.touch()
}

// MarkConfirmed records a positive confirmation for the current pending
// validation. Fails if no token is live.
func (s *Session) MarkConfirmed() error {
	if !s.HasLiveValidation() {
		return ErrNoLiveValidation
	}
	s.Confirmed = true
	s.NeedsConfirmation = false
	s.touch()
	return nil
}

// MarkExecuted records the execute outcome. The token is consumed and the
// session becomes terminal for this transaction. At most one execution per
// validated request.
func (s *Session) MarkExecuted(transactionID, status string) error {
	if s.TransactionID != "" {
		return ErrAlreadyExecuted
	}
	if s.ValidationID == "" {
		return ErrNoLiveValidation
	}
	s.TransactionID = transactionID
	s.TransactionStatus = status
	s.ValidationID = ""
	s.NeedsConfirmation = false
	s.State = StateDone
	s.touch()
	return nil
}

// BeginNewTransfer resets transfer fields for a fresh collection cycle
// after a completed transaction. Turns and identity are kept.
func (s *Session) BeginNewTransfer() {
	s.Phone = nil
	s.Amount = nil
	s.ValidationID = ""
	s.NeedsConfirmation = false
	s.Confirmed = false
	s.TransactionID = ""
	s.TransactionStatus = ""
	s.State = StateConversation
	if start := len(s.Turns) - 1; start > 0 {
		s.TransferStart = start
	}
	s.touch()
}

// Clone returns a deep copy. Stores hand out clones so callers can never
// mutate persisted state outside a Mutate critical section.
func (s *Session) Clone() *Session {
	out := *s
	if s.Phone != nil {
		phone := *s.Phone
		out.Phone = &phone
	}
	if s.Amount != nil {
		amount := *s.Amount
		out.Amount = &amount
	}
	out.Turns = make([]Turn, len(s.Turns))
	copy(out.Turns, s.Turns)
	return &out
}

func (s *Session) touch() {
	s.UpdatedAt = time.Now().UnixMilli()
}

// ValidPhone reports whether p is exactly 10 digits starting with 3.
func ValidPhone(p string) bool {
	if len(p) != 10 || p[0] != '3' {
		return false
	}
	for i := 0; i < len(p); i++ {
		if p[i] < '0' || p[i] > '9' {
			return false
		}
	}
	return true
}

// ValidAmount reports whether a is within the transfer limits.
func ValidAmount(a float64) bool {
	return a >= MinTransferAmount && a <= MaxTransferAmount
}
