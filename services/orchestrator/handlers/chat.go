// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers provides the HTTP endpoints of the transfer orchestrator.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/AleutianTransfer/services/orchestrator/agent"
	"github.com/AleutianAI/AleutianTransfer/services/orchestrator/datatypes"
	"github.com/AleutianAI/AleutianTransfer/services/orchestrator/observability"
	"github.com/AleutianAI/AleutianTransfer/services/orchestrator/reply"
	"github.com/AleutianAI/AleutianTransfer/services/orchestrator/store"
)

var chatTracer = otel.Tracer("aleutian.transfer.handlers")

// HandleChat processes one user turn.
//
// # Description
//
// Binds and validates the request, then runs the state machine inside
// store.Mutate so concurrent turns for the same session are strictly
// serialized and the session is persisted only when the turn completes.
// A context error aborts the mutation: nothing is saved and the client
// gets a 503, so a cancelled turn can be replayed safely.
func HandleChat(sessions store.SessionStore, machine *agent.Machine, responder reply.Responder) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := chatTracer.Start(c.Request.Context(), "HandleChat")
		defer span.End()

		var req datatypes.ChatRequest
		if err := c.BindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Failed to parse the chat request", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			slog.Warn("Rejected invalid chat request", "error", err)
			if observability.DefaultMetrics != nil {
				observability.DefaultMetrics.RecordError(observability.ErrorCodeValidation)
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		req.EnsureDefaults()

		var outcome agent.Outcome
		var replyText string

		saved, err := sessions.Mutate(ctx, req.SessionID, req.UserID, func(sess *datatypes.Session) error {
			var stepErr error
			outcome, stepErr = machine.Step(ctx, sess, req.Message)
			if stepErr != nil {
				return stepErr
			}

			var replyErr error
			replyText, replyErr = responder.Reply(ctx, outcome)
			if replyErr != nil {
				// Responders are expected to fall back internally; a hard
				// failure here still must not lose the turn.
				slog.Error("responder failed, using outcome kind as reply", "error", replyErr)
				replyText = outcome.Kind
			}

			sess.AppendTurn(datatypes.RoleAssistant, replyText)
			return nil
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				slog.Warn("turn abandoned", "session_id", req.SessionID, "error", err)
				if observability.DefaultMetrics != nil {
					observability.DefaultMetrics.RecordError(observability.ErrorCodeTimeout)
				}
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "request cancelled, no changes were made"})
				return
			}
			slog.Error("turn processing failed", "session_id", req.SessionID, "error", err)
			if observability.DefaultMetrics != nil {
				observability.DefaultMetrics.RecordError(observability.ErrorCodeInternal)
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process turn"})
			return
		}

		if observability.DefaultMetrics != nil {
			observability.DefaultMetrics.RecordTurn(outcome.Kind)
		}

		resp := datatypes.NewChatResponse(req.SessionID, replyText, outcome.Kind, saved.State)
		resp.TransactionID = saved.TransactionID
		c.JSON(http.StatusOK, resp)
	}
}
