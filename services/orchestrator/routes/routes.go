// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package routes wires the plan API onto a gin engine.
package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/momentum/services/orchestrator/handlers"
	"github.com/AleutianAI/momentum/services/orchestrator/middleware"
)

// Options carries the optional pieces of the route table.
type Options struct {
	// CreateLimiter throttles POST /plans. Nil disables throttling.
	CreateLimiter *rate.Limiter

	// MetricsHandler serves GET /metrics. Nil leaves the route unregistered.
	MetricsHandler http.Handler
}

// SetupRoutes registers every endpoint on router.
func SetupRoutes(router *gin.Engine, h *handlers.Handlers, opts Options) {
	router.GET("/", h.HandleRoot)
	router.GET("/health", h.HandleHealth)
	if opts.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(opts.MetricsHandler))
	}

	limit := middleware.RateLimitMiddleware(opts.CreateLimiter)
	plans := router.Group("/plans")
	{
		// Both spellings are served directly, without a trailing-slash redirect.
		plans.POST("", limit, h.HandleCreatePlan)
		plans.POST("/", limit, h.HandleCreatePlan)
		plans.GET("", h.HandleListPlans)
		plans.GET("/", h.HandleListPlans)
		plans.GET("/:id", h.HandleGetPlan)
		plans.DELETE("/:id", h.HandleDeletePlan)
	}

	tasks := router.Group("/tasks")
	{
		tasks.PATCH("/:id", h.HandleUpdateTask)
	}
}
