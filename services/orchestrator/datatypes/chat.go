// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes provides data structures for the transfer orchestrator.
//
// This file contains request and response types for the chat endpoint.
package datatypes

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// MaxMessageContentBytes is the maximum size of a single user message.
	// Checked in bytes (not runes) to bound memory per request.
	MaxMessageContentBytes = 32 * 1024 // 32KB
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// chatValidate is the validator instance for chat datatypes.
// Initialized in init() with custom validators.
var chatValidate *validator.Validate

func init() {
	chatValidate = validator.New()
	_ = chatValidate.RegisterValidation("maxbytes", validateMaxBytes)
}

// validateMaxBytes validates that a string field does not exceed
// MaxMessageContentBytes.
func validateMaxBytes(fl validator.FieldLevel) bool {
	content := fl.Field().String()
	return len(content) <= MaxMessageContentBytes
}

// =============================================================================
// Chat Request Types
// =============================================================================

// ChatRequest represents one user turn in a transfer conversation.
//
// # Description
//
// ChatRequest carries the user's free-text message plus the session it
// belongs to. A missing SessionID starts a brand-new session; the server
// generates one and returns it in the response so the client can keep the
// thread going.
//
// # Fields
//
//   - SessionID: Optional. UUID v4 of an existing session.
//   - UserID: Required. Opaque caller identity (no authn model here).
//   - Message: Required. The user's free-text turn, max 32KB.
//
// # Validation
//
// Uses go-playground/validator:
//   - SessionID: uuid4 when present
//   - UserID: required, max 128 chars
//   - Message: required, max 32768 bytes via custom maxbytes validator
//
// # Examples
//
//	req := ChatRequest{
//	    UserID:  "u-123",
//	    Message: "Enviar 50000 al 3001234567",
//	}
type ChatRequest struct {
	SessionID string `json:"session_id" validate:"omitempty,uuid4"`
	UserID    string `json:"user_id" validate:"required,max=128"`
	Message   string `json:"message" validate:"required,maxbytes"`
}

// Validate validates the ChatRequest fields.
func (r *ChatRequest) Validate() error {
	return chatValidate.Struct(r)
}

// EnsureDefaults populates a SessionID for brand-new sessions.
func (r *ChatRequest) EnsureDefaults() {
	if r.SessionID == "" {
		r.SessionID = uuid.NewString()
	}
}

// =============================================================================
// Chat Response Types
// =============================================================================

// ChatResponse is the reply to one turn.
//
// # Fields
//
//   - SessionID: The session this turn belongs to (echo or fresh).
//   - Reply: User-visible prose from the responder.
//   - Outcome: Machine-readable outcome kind for clients that render
//     their own UI (see agent.Outcome kinds).
//   - State: The session's dialog state after this turn.
//   - TransactionID: Set once a transfer executed.
//   - Timestamp: Unix milliseconds when the response was generated.
type ChatResponse struct {
	SessionID     string      `json:"session_id"`
	Reply         string      `json:"reply"`
	Outcome       string      `json:"outcome"`
	State         DialogState `json:"state"`
	TransactionID string      `json:"transaction_id,omitempty"`
	Timestamp     int64       `json:"timestamp"`
}

// NewChatResponse creates a ChatResponse with the timestamp set.
func NewChatResponse(sessionID, reply, outcome string, state DialogState) *ChatResponse {
	return &ChatResponse{
		SessionID: sessionID,
		Reply:     reply,
		Outcome:   outcome,
		State:     state,
		Timestamp: time.Now().UnixMilli(),
	}
}
