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
	"fmt"
	"strings"
)

const (
	// MaxGoalLength bounds the goal text that is embedded in the prompt.
	MaxGoalLength = 500

	// DefaultListLimit is used when GET /plans carries no limit.
	DefaultListLimit = 100

	// MaxListLimit bounds a single page of plans.
	MaxListLimit = 1000
)

// =============================================================================
// Plan Creation
// =============================================================================

// CreatePlanRequest is the body of POST /plans.
//
// # Validation
//
//   - Goal: required, at most MaxGoalLength characters, not only whitespace
//   - DurationWeeks: at least 1; the upper bound is configured on the planner
type CreatePlanRequest struct {
	Goal          string `json:"goal" validate:"required,max=500"`
	DurationWeeks int    `json:"duration_weeks" validate:"gte=1"`
}

// Validate checks the request shape. maxWeeks <= 0 disables the upper bound.
func (r *CreatePlanRequest) Validate(maxWeeks int) error {
	r.Goal = strings.TrimSpace(r.Goal)
	if err := planValidate.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if maxWeeks > 0 && r.DurationWeeks > maxWeeks {
		return fmt.Errorf("%w: duration_weeks must be at most %d", ErrInvalidRequest, maxWeeks)
	}
	return nil
}

// Outcome summarises how far plan synthesis got.
type Outcome string

const (
	// OutcomeComplete means every parsed task was persisted.
	OutcomeComplete Outcome = "complete"

	// OutcomePartial means some parsed tasks were skipped or failed to persist.
	OutcomePartial Outcome = "partial"

	// OutcomeSynthesisUnavailable means the model call failed; the plan has no tasks.
	OutcomeSynthesisUnavailable Outcome = "synthesis_unavailable"

	// OutcomeMalformedOutput means the model output was rejected; the plan has no tasks.
	OutcomeMalformedOutput Outcome = "malformed_output"
)

// TaskStatus is the fate of one parsed task during plan creation.
type TaskStatus string

const (
	TaskPersisted         TaskStatus = "persisted"
	TaskFailed            TaskStatus = "failed"
	TaskSkippedDuplicate  TaskStatus = "skipped_duplicate"
	TaskSkippedOutOfRange TaskStatus = "skipped_out_of_range"
)

// TaskResult records what happened to one parsed task.
type TaskResult struct {
	WeekNumber int        `json:"week_number"`
	Title      string     `json:"title"`
	Status     TaskStatus `json:"status"`
	TaskID     int64      `json:"task_id,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// SynthesisReport is attached to the plan returned by plan creation.
type SynthesisReport struct {
	Outcome     Outcome      `json:"outcome"`
	Warnings    []string     `json:"warnings"`
	TaskResults []TaskResult `json:"task_results"`
}

// CreatePlanResult is the hydrated plan plus the synthesis report.
//
// The embedded Plan flattens into the JSON body, so clients that only know
// the plan shape keep working and the report rides alongside.
type CreatePlanResult struct {
	Plan
	Report SynthesisReport `json:"synthesis_report"`
}

// =============================================================================
// Task Update
// =============================================================================

// UpdateTaskRequest is the body of PATCH /tasks/:id.
//
// IsCompleted is a pointer so a missing field is rejected instead of being
// read as false.
type UpdateTaskRequest struct {
	IsCompleted *bool `json:"is_completed" validate:"required"`
}

// Validate checks that is_completed was supplied.
func (r *UpdateTaskRequest) Validate() error {
	if err := planValidate.Struct(r); err != nil {
		return fmt.Errorf("%w: is_completed is required", ErrInvalidRequest)
	}
	return nil
}

// =============================================================================
// Listing
// =============================================================================

// ListPlansQuery is the query string of GET /plans.
type ListPlansQuery struct {
	Skip  int `form:"skip" validate:"gte=0"`
	Limit int `form:"limit" validate:"gte=1,lte=1000"`
}

// Validate applies the default limit and checks bounds.
func (q *ListPlansQuery) Validate() error {
	if q.Limit == 0 {
		q.Limit = DefaultListLimit
	}
	if err := planValidate.Struct(q); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}
