// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/AleutianTransfer/pkg/resilience"
	"github.com/AleutianAI/AleutianTransfer/services/orchestrator/agent"
	"github.com/AleutianAI/AleutianTransfer/services/orchestrator/handlers"
	"github.com/AleutianAI/AleutianTransfer/services/orchestrator/reply"
	"github.com/AleutianAI/AleutianTransfer/services/orchestrator/store"
)

func SetupRoutes(router *gin.Engine, sessions store.SessionStore, machine *agent.Machine,
	responder reply.Responder, gateway handlers.StatusLookup, transport *resilience.Transport) {

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		v1.POST("/chat", handlers.HandleChat(sessions, machine, responder))
		v1.GET("/transactions/:transactionId", handlers.GetTransaction(gateway))

		// Session administration routes
		sessionRoutes := v1.Group("/sessions")
		{
			sessionRoutes.GET("", handlers.ListSessions(sessions))
			sessionRoutes.GET("/:sessionId/history", handlers.GetSessionHistory(sessions))
			sessionRoutes.DELETE("/:sessionId", handlers.DeleteSession(sessions))
		}

		// Operational routes
		admin := v1.Group("/admin")
		{
			admin.GET("/breakers", handlers.BreakerStates(transport))
		}
	}
}
