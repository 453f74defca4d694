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

// HandleUpdateTask handles PATCH /tasks/:id.
//
// Description:
//
//	Sets a task's completion flag. Repeating the same value returns 200
//	with the unchanged task.
//
// Request Body:
//
//	datatypes.UpdateTaskRequest
//
// Response:
//
//	200 OK: datatypes.Task
//	400 Bad Request: Non-integer id or missing is_completed
//	404 Not Found: No such task
func (h *Handlers) HandleUpdateTask(c *gin.Context) {
	logger := slog.With("request_id", middleware.RequestID(c), "handler", "HandleUpdateTask")

	id, err := parseID(c, "id")
	if err != nil {
		writeError(c, logger, err)
		return
	}

	var req datatypes.UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, logger, fmt.Errorf("%w: invalid request body: %v", datatypes.ErrInvalidRequest, err))
		return
	}
	if err := req.Validate(); err != nil {
		writeError(c, logger, err)
		return
	}

	task, err := h.svc.SetTaskCompletion(c.Request.Context(), id, *req.IsCompleted)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, task)
}
