// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePlanRequest_Validate(t *testing.T) {
	t.Run("valid request trims goal", func(t *testing.T) {
		req := CreatePlanRequest{Goal: "  Learn Rust  ", DurationWeeks: 4}
		require.NoError(t, req.Validate(52))
		assert.Equal(t, "Learn Rust", req.Goal)
	})

	tests := []struct {
		name string
		req  CreatePlanRequest
		max  int
	}{
		{"blank goal", CreatePlanRequest{Goal: "   ", DurationWeeks: 2}, 52},
		{"zero duration", CreatePlanRequest{Goal: "Go", DurationWeeks: 0}, 52},
		{"negative duration", CreatePlanRequest{Goal: "Go", DurationWeeks: -3}, 52},
		{"duration above max", CreatePlanRequest{Goal: "Go", DurationWeeks: 53}, 52},
		{"goal too long", CreatePlanRequest{Goal: strings.Repeat("a", MaxGoalLength+1), DurationWeeks: 1}, 52},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate(tt.max)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidRequest))
		})
	}

	t.Run("zero max disables upper bound", func(t *testing.T) {
		req := CreatePlanRequest{Goal: "Go", DurationWeeks: 500}
		assert.NoError(t, req.Validate(0))
	})
}

func TestUpdateTaskRequest_Validate(t *testing.T) {
	var missing UpdateTaskRequest
	require.NoError(t, json.Unmarshal([]byte(`{}`), &missing))
	assert.ErrorIs(t, missing.Validate(), ErrInvalidRequest)

	var falseValue UpdateTaskRequest
	require.NoError(t, json.Unmarshal([]byte(`{"is_completed": false}`), &falseValue))
	require.NoError(t, falseValue.Validate())
	assert.False(t, *falseValue.IsCompleted)
}

func TestListPlansQuery_Validate(t *testing.T) {
	q := ListPlansQuery{}
	require.NoError(t, q.Validate())
	assert.Equal(t, DefaultListLimit, q.Limit)

	assert.ErrorIs(t, (&ListPlansQuery{Skip: -1}).Validate(), ErrInvalidRequest)
	assert.ErrorIs(t, (&ListPlansQuery{Limit: MaxListLimit + 1}).Validate(), ErrInvalidRequest)
	assert.ErrorIs(t, (&ListPlansQuery{Limit: -5}).Validate(), ErrInvalidRequest)
}

func TestTaskSpec_Validate(t *testing.T) {
	t.Run("valid links", func(t *testing.T) {
		spec := TaskSpec{
			WeekNumber:    1,
			Title:         "Week 1: Basics",
			ResourceLinks: []string{"https://a.example/1", "http://a.example/2"},
		}
		assert.NoError(t, spec.Validate())
	})

	t.Run("rejects non-http link", func(t *testing.T) {
		spec := TaskSpec{WeekNumber: 1, Title: "t", ResourceLinks: []string{"ftp://a.example/1"}}
		assert.ErrorIs(t, spec.Validate(), ErrInvalidRequest)
	})

	t.Run("rejects relative link", func(t *testing.T) {
		spec := TaskSpec{WeekNumber: 1, Title: "t", ResourceLinks: []string{"/docs"}}
		assert.ErrorIs(t, spec.Validate(), ErrInvalidRequest)
	})

	t.Run("rejects empty title", func(t *testing.T) {
		spec := TaskSpec{WeekNumber: 1}
		assert.ErrorIs(t, spec.Validate(), ErrInvalidRequest)
	})
}

func TestCreatePlanResult_JSONFlattensPlan(t *testing.T) {
	result := CreatePlanResult{
		Plan: Plan{
			ID:            3,
			Goal:          "Learn Rust",
			DurationWeeks: 2,
			CreatedAt:     time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		},
		Report: SynthesisReport{Outcome: OutcomeSynthesisUnavailable, Warnings: []string{"model down"}},
	}
	result.Normalize()

	data, err := json.Marshal(result)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, float64(3), decoded["id"])
	assert.Equal(t, "Learn Rust", decoded["goal"])
	assert.Equal(t, []any{}, decoded["tasks"])

	report, ok := decoded["synthesis_report"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "synthesis_unavailable", report["outcome"])
}

func TestTask_NormalizeKeepsArrays(t *testing.T) {
	task := Task{ID: 1}
	task.Normalize()

	data, err := json.Marshal(task)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"resource_links":[]`)
	assert.Contains(t, string(data), `"topics":[]`)
	assert.Contains(t, string(data), `"description":null`)
}
