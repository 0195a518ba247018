// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianTransfer/pkg/resilience"
	"github.com/AleutianAI/AleutianTransfer/services/orchestrator/observability"
)

// HealthCheck reports liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// BreakerStates reports the circuit breaker state per endpoint and
// refreshes the corresponding gauges. Operators use this to see whether
// the transaction service is being short-circuited.
func BreakerStates(transport *resilience.Transport) gin.HandlerFunc {
	return func(c *gin.Context) {
		states := transport.Breakers().States()

		out := make(map[string]string, len(states))
		for endpoint, state := range states {
			out[endpoint] = state.String()
			if observability.DefaultMetrics != nil {
				observability.DefaultMetrics.SetBreakerState(endpoint, int(state))
			}
		}
		c.JSON(http.StatusOK, gin.H{"breakers": out})
	}
}
