// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/AleutianTransfer/pkg/resilience"
	"github.com/AleutianAI/AleutianTransfer/pkg/validation"
	"github.com/AleutianAI/AleutianTransfer/services/orchestrator/datatypes"
)

// StatusLookup queries the external transaction service for one
// transaction. Implemented by clients.TransactionClient.
type StatusLookup interface {
	GetStatus(ctx context.Context, transactionID string) (datatypes.TransactionDetail, error)
}

// GetTransaction proxies a status lookup to the transaction service.
//
// # Description
//
// Maps gateway outcomes onto HTTP: a remote 404 stays a 404, a remote 4xx
// stays a 400-class answer with the remote reason, and transport failures
// (retries exhausted, circuit open) come back as 503 so clients know to
// retry later.
func GetTransaction(gateway StatusLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := chatTracer.Start(c.Request.Context(), "GetTransaction")
		defer span.End()

		transactionID := c.Param("transactionId")
		if err := validation.ValidateTransactionID(transactionID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction id"})
			return
		}

		detail, err := gateway.GetStatus(ctx, transactionID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())

			var statusErr *resilience.StatusError
			if errors.As(err, &statusErr) {
				if statusErr.StatusCode == http.StatusNotFound {
					c.JSON(http.StatusNotFound, gin.H{"error": "transaction not found"})
					return
				}
				c.JSON(statusErr.StatusCode, gin.H{"error": string(statusErr.Body)})
				return
			}

			slog.Error("transaction status lookup failed",
				"transaction_id", transactionID, "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "transaction service unavailable"})
			return
		}

		c.JSON(http.StatusOK, detail)
	}
}
