// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/momentum/services/orchestrator/handlers"
	"github.com/AleutianAI/momentum/services/orchestrator/observability"
	"github.com/AleutianAI/momentum/services/orchestrator/planner"
	"github.com/AleutianAI/momentum/services/orchestrator/store/sqlite"
)

// ============================================================================
// Test Setup
// ============================================================================

func init() {
	gin.SetMode(gin.TestMode)
}

type mockSynthesizer struct{}

func (mockSynthesizer) Synthesize(_ context.Context, _ string, _ int) (string, error) {
	return `[{"week_number": 1, "title": "Start", "description": "Kickoff"}]`, nil
}

func newHandlers(t *testing.T) *handlers.Handlers {
	t.Helper()
	st, err := sqlite.Open(sqlite.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	p, err := planner.New(planner.Dependencies{Store: st, Synthesizer: mockSynthesizer{}}, planner.Config{})
	require.NoError(t, err)
	return handlers.NewHandlers(p)
}

func serve(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// ============================================================================
// SetupRoutes Tests
// ============================================================================

func TestSetupRoutes_RegistersPlanAPI(t *testing.T) {
	router := gin.New()
	SetupRoutes(router, newHandlers(t), Options{MetricsHandler: promhttp.Handler()})

	expected := []struct {
		method string
		path   string
	}{
		{"GET", "/"},
		{"GET", "/health"},
		{"GET", "/metrics"},
		{"POST", "/plans"},
		{"POST", "/plans/"},
		{"GET", "/plans"},
		{"GET", "/plans/"},
		{"GET", "/plans/:id"},
		{"DELETE", "/plans/:id"},
		{"PATCH", "/tasks/:id"},
	}

	registered := map[string]bool{}
	for _, r := range router.Routes() {
		registered[r.Method+" "+r.Path] = true
	}
	for _, e := range expected {
		assert.True(t, registered[e.method+" "+e.path], "expected route %s %s", e.method, e.path)
	}
}

func TestSetupRoutes_ListServesBothSpellings(t *testing.T) {
	router := gin.New()
	SetupRoutes(router, newHandlers(t), Options{})

	for _, path := range []string{"/plans?skip=0&limit=5", "/plans/?skip=0&limit=5"} {
		w := serve(router, "GET", path, "")
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Empty(t, w.Header().Get("Location"), path)
		assert.JSONEq(t, "[]", w.Body.String(), path)
	}
}

func TestSetupRoutes_MetricsOptional(t *testing.T) {
	router := gin.New()
	SetupRoutes(router, newHandlers(t), Options{})

	for _, r := range router.Routes() {
		assert.NotEqual(t, "/metrics", r.Path)
	}
	assert.Equal(t, http.StatusNotFound, serve(router, "GET", "/metrics", "").Code)
}

func TestSetupRoutes_MetricsExposeServiceCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	router := gin.New()
	SetupRoutes(router, newHandlers(t), Options{
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})
	metrics.RecordPlanCreated("complete")

	w := serve(router, "GET", "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "momentum_plans_created_total")
}

func TestSetupRoutes_CreateAndComplete(t *testing.T) {
	router := gin.New()
	SetupRoutes(router, newHandlers(t), Options{})

	w := serve(router, "POST", "/plans/", `{"goal": "Learn Go", "duration_weeks": 1}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"title":"Week 1: Start"`)

	w = serve(router, "PATCH", "/tasks/1", `{"is_completed": true}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"is_completed":true`)
}

func TestSetupRoutes_RateLimitOnlyOnCreate(t *testing.T) {
	router := gin.New()
	SetupRoutes(router, newHandlers(t), Options{CreateLimiter: rate.NewLimiter(rate.Every(time.Hour), 1)})

	assert.Equal(t, http.StatusCreated, serve(router, "POST", "/plans", `{"goal": "a", "duration_weeks": 1}`).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(router, "POST", "/plans", `{"goal": "b", "duration_weeks": 1}`).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(router, "POST", "/plans/", `{"goal": "c", "duration_weeks": 1}`).Code)

	assert.Equal(t, http.StatusOK, serve(router, "GET", "/plans", "").Code)
	assert.Equal(t, http.StatusOK, serve(router, "GET", "/health", "").Code)
}
