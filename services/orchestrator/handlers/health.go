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
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
}

// HandleRoot handles GET /.
func (h *Handlers) HandleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": WelcomeMessage})
}

// HandleHealth handles GET /health.
//
// Response:
//
//	200 OK: HealthResponse - store reachable
//	503 Service Unavailable: HealthResponse - store ping failed
func (h *Handlers) HandleHealth(c *gin.Context) {
	if err := h.svc.Ping(c.Request.Context()); err != nil {
		slog.Warn("Health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "unhealthy", Store: "unreachable"})
		return
	}
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Store: "ok"})
}
