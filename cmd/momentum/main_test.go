// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/momentum/services/llm"
	"github.com/AleutianAI/momentum/services/orchestrator"
	"github.com/AleutianAI/momentum/services/orchestrator/datatypes"
	"github.com/AleutianAI/momentum/services/orchestrator/store"
)

type mockLLMClient struct{}

func (mockLLMClient) Generate(_ context.Context, _ string, _ llm.GenerationParams) (string, error) {
	return `[
		{"week_number": 1, "title": "Hello", "description": "Install the toolchain", "topics": ["install", "run"]},
		{"week_number": 2, "title": "Types", "description": "Structs and interfaces", "topics": ["structs"]}
	]`, nil
}

// setupStore points the CLI at a fresh sqlite file with no model
// credentials and returns the file path.
func setupStore(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "momentum.db")
	t.Setenv("MOMENTUM_STORE_DRIVER", "sqlite")
	t.Setenv("MOMENTUM_STORE_PATH", path)
	t.Setenv("MOMENTUM_PORT", "")
	t.Setenv("LLM_BACKEND_TYPE", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	return path
}

// setupCLI is setupStore plus a scripted model.
func setupCLI(t *testing.T) {
	t.Helper()
	setupStore(t)

	original := newService
	newService = func(ctx context.Context, cfg orchestrator.Config, opts ...orchestrator.Option) (orchestrator.Service, error) {
		opts = append(opts, orchestrator.WithLLMClient(mockLLMClient{}))
		return orchestrator.New(ctx, cfg, opts...)
	}
	t.Cleanup(func() { newService = original })
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestPlansCreate_Text(t *testing.T) {
	setupCLI(t)

	out, err := runCLI(t, "plans", "create", "--goal", "Learn Go", "--weeks", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Plan 1: Learn Go (2 weeks")
	assert.Contains(t, out, "[ ] task 1  Week 1: Hello")
	assert.Contains(t, out, "topics: install, run")
	assert.Contains(t, out, "Synthesis: complete")
}

func TestPlansLifecycle(t *testing.T) {
	setupCLI(t)

	out, err := runCLI(t, "-o", "json", "plans", "create", "-g", "Learn Go", "-w", "2")
	require.NoError(t, err)
	var created datatypes.CreatePlanResult
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	require.Len(t, created.Tasks, 2)

	out, err = runCLI(t, "plans", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "GOAL")
	assert.Contains(t, out, "Learn Go")
	assert.Contains(t, out, "0/2")

	out, err = runCLI(t, "tasks", "complete", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "[x] task 2  Week 2: Types")

	out, err = runCLI(t, "plans", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "1/2")

	out, err = runCLI(t, "tasks", "complete", "2", "--undo")
	require.NoError(t, err)
	assert.Contains(t, out, "[ ] task 2")

	out, err = runCLI(t, "--output", "json", "plans", "show", "1")
	require.NoError(t, err)
	var plan datatypes.Plan
	require.NoError(t, json.Unmarshal([]byte(out), &plan))
	assert.Equal(t, created.ID, plan.ID)
	assert.False(t, plan.Tasks[1].IsCompleted)

	out, err = runCLI(t, "plans", "delete", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted plan 1")

	_, err = runCLI(t, "plans", "show", "1")
	assert.ErrorIs(t, err, datatypes.ErrNotFound)
}

func TestCLI_Errors(t *testing.T) {
	setupCLI(t)

	_, err := runCLI(t, "plans", "create")
	assert.ErrorContains(t, err, "goal")

	_, err = runCLI(t, "plans", "create", "--goal", "x", "--weeks", "0")
	assert.ErrorIs(t, err, datatypes.ErrInvalidRequest)

	_, err = runCLI(t, "plans", "show", "abc")
	assert.ErrorContains(t, err, "positive integer")

	_, err = runCLI(t, "tasks", "complete", "99")
	assert.ErrorIs(t, err, datatypes.ErrNotFound)

	_, err = runCLI(t, "-o", "yaml", "plans", "list")
	assert.ErrorContains(t, err, "output format")

	_, err = runCLI(t, "plans", "list", "--limit", "5000")
	assert.ErrorIs(t, err, datatypes.ErrInvalidRequest)
}

func TestManagementCommands_WithoutModelCredentials(t *testing.T) {
	path := setupStore(t)

	seed, err := store.Open(store.Config{Driver: store.DriverSQLite, Path: path})
	require.NoError(t, err)
	plan, err := seed.CreatePlan(context.Background(), "Learn Go", 1)
	require.NoError(t, err)
	task, err := seed.CreateTask(context.Background(), plan.ID, datatypes.TaskSpec{WeekNumber: 1, Title: "Week 1: Hello"})
	require.NoError(t, err)
	require.NoError(t, seed.Close())

	out, err := runCLI(t, "plans", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Learn Go")

	out, err = runCLI(t, "tasks", "complete", strconv.FormatInt(task.ID, 10))
	require.NoError(t, err)
	assert.Contains(t, out, "[x] task")

	out, err = runCLI(t, "plans", "show", strconv.FormatInt(plan.ID, 10))
	require.NoError(t, err)
	assert.Contains(t, out, "[x] task")

	_, err = runCLI(t, "plans", "create", "--goal", "Learn Rust", "--weeks", "2")
	assert.ErrorIs(t, err, llm.ErrMissingAPIKey)

	out, err = runCLI(t, "plans", "delete", strconv.FormatInt(plan.ID, 10))
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted plan")
}
