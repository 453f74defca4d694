// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/momentum/services/orchestrator/datatypes"
	"github.com/AleutianAI/momentum/services/orchestrator/middleware"
)

// HandleCreatePlan handles POST /plans.
//
// Description:
//
//	Creates a plan and synthesizes its weekly tasks. Problems on the model
//	side never fail the request; they show up in synthesis_report.
//
// Request Body:
//
//	datatypes.CreatePlanRequest
//
// Response:
//
//	201 Created: datatypes.CreatePlanResult
//	400 Bad Request: Malformed body or invalid goal/duration
//	403 Forbidden: Goal rejected by screening
//	503 Service Unavailable: Plan store unreachable
func (h *Handlers) HandleCreatePlan(c *gin.Context) {
	logger := slog.With("request_id", middleware.RequestID(c), "handler", "HandleCreatePlan")

	var req datatypes.CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, logger, fmt.Errorf("%w: invalid request body: %v", datatypes.ErrInvalidRequest, err))
		return
	}

	result, err := h.svc.CreatePlanWithSynthesis(c.Request.Context(), req)
	if err != nil {
		writeError(c, logger, err)
		return
	}

	logger.Info("Plan created",
		"plan_id", result.ID,
		"outcome", result.Report.Outcome,
		"tasks", len(result.Tasks))
	c.JSON(http.StatusCreated, result)
}

// HandleGetPlan handles GET /plans/:id.
//
// Response:
//
//	200 OK: datatypes.Plan
//	400 Bad Request: Non-integer id
//	404 Not Found: No such plan
func (h *Handlers) HandleGetPlan(c *gin.Context) {
	logger := slog.With("request_id", middleware.RequestID(c), "handler", "HandleGetPlan")

	id, err := parseID(c, "id")
	if err != nil {
		writeError(c, logger, err)
		return
	}
	plan, err := h.svc.GetPlan(c.Request.Context(), id)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

// HandleListPlans handles GET /plans.
//
// Query Parameters:
//
//	skip: Plans to skip (optional, default 0)
//	limit: Page size (optional, default 100, max 1000)
//
// Response:
//
//	200 OK: []datatypes.Plan
//	400 Bad Request: Invalid paging parameters
func (h *Handlers) HandleListPlans(c *gin.Context) {
	logger := slog.With("request_id", middleware.RequestID(c), "handler", "HandleListPlans")

	var query datatypes.ListPlansQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		writeError(c, logger, fmt.Errorf("%w: invalid query: %v", datatypes.ErrInvalidRequest, err))
		return
	}
	plans, err := h.svc.ListPlans(c.Request.Context(), query)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, plans)
}

// HandleDeletePlan handles DELETE /plans/:id. The plan's tasks go with it.
//
// Response:
//
//	204 No Content
//	404 Not Found: No such plan
func (h *Handlers) HandleDeletePlan(c *gin.Context) {
	logger := slog.With("request_id", middleware.RequestID(c), "handler", "HandleDeletePlan")

	id, err := parseID(c, "id")
	if err != nil {
		writeError(c, logger, err)
		return
	}
	if err := h.svc.DeletePlan(c.Request.Context(), id); err != nil {
		writeError(c, logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
