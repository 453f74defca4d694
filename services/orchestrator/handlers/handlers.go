// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers implements the plan and task HTTP endpoints.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/momentum/services/orchestrator/datatypes"
)

// WelcomeMessage is returned by GET /.
const WelcomeMessage = "Welcome to the Momentum Agent API. See /docs for more information."

// PlanService is the planner surface the handlers need.
type PlanService interface {
	CreatePlanWithSynthesis(ctx context.Context, req datatypes.CreatePlanRequest) (*datatypes.CreatePlanResult, error)
	GetPlan(ctx context.Context, id int64) (*datatypes.Plan, error)
	ListPlans(ctx context.Context, query datatypes.ListPlansQuery) ([]datatypes.Plan, error)
	DeletePlan(ctx context.Context, id int64) error
	SetTaskCompletion(ctx context.Context, id int64, completed bool) (*datatypes.Task, error)
	Ping(ctx context.Context) error
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Handlers holds the dependencies of the HTTP endpoints.
type Handlers struct {
	svc PlanService
}

// NewHandlers creates handlers backed by svc.
func NewHandlers(svc PlanService) *Handlers {
	return &Handlers{svc: svc}
}

// parseID reads a positive integer path parameter.
func parseID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", datatypes.ErrInvalidRequest, name)
	}
	return id, nil
}

// StatusFor maps a service error to its HTTP status and error code.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, datatypes.ErrInvalidRequest):
		return http.StatusBadRequest, "INVALID_REQUEST"
	case errors.Is(err, datatypes.ErrPolicyViolation):
		return http.StatusForbidden, "POLICY_VIOLATION"
	case errors.Is(err, datatypes.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, datatypes.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "STORE_UNAVAILABLE"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

// writeError logs err and writes the mapped response. Server-side failures
// get a generic message so store internals never reach the client.
func writeError(c *gin.Context, logger *slog.Logger, err error) {
	status, code := StatusFor(err)
	message := err.Error()
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("Request failed", "error", err, "status", status)
		message = http.StatusText(status)
	case status == http.StatusNotFound:
		logger.Info("Resource not found", "error", err)
	default:
		logger.Warn("Request rejected", "error", err, "status", status)
	}
	c.JSON(status, ErrorResponse{Error: message, Code: code})
}
