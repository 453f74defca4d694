// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes holds the plan and task records, request bodies, and the
// error taxonomy shared by the store, synthesis, parser and planner packages.
package datatypes

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// planValidate is the validator instance for plan datatypes.
var planValidate = validator.New()

// =============================================================================
// Records
// =============================================================================

// Plan is a learning plan and, when hydrated, its tasks ordered by week.
//
// ID and CreatedAt are assigned by the store and never change.
type Plan struct {
	ID            int64     `json:"id"`
	Goal          string    `json:"goal"`
	DurationWeeks int       `json:"duration_weeks"`
	CreatedAt     time.Time `json:"created_at"`
	Tasks         []Task    `json:"tasks"`
}

// Task is one week of a plan.
//
// IsCompleted is the only field that changes after creation.
type Task struct {
	ID            int64    `json:"id"`
	PlanID        int64    `json:"plan_id"`
	WeekNumber    int      `json:"week_number"`
	Title         string   `json:"title"`
	Description   *string  `json:"description"`
	ResourceLinks []string `json:"resource_links"`
	Topics        []string `json:"topics"`
	IsCompleted   bool     `json:"is_completed"`
}

// TaskSpec is a task to be created. The parser produces these from model
// output and the store consumes them.
type TaskSpec struct {
	WeekNumber    int      `json:"week_number" validate:"gte=1"`
	Title         string   `json:"title" validate:"required"`
	Description   *string  `json:"description,omitempty"`
	Topics        []string `json:"topics,omitempty"`
	ResourceLinks []string `json:"resource_links,omitempty" validate:"dive,url,startswith=http"`
}

// Validate checks the fields the store relies on. Week range against the
// plan duration is the planner's concern and is not checked here.
func (s *TaskSpec) Validate() error {
	if err := planValidate.Struct(s); err != nil {
		return fmt.Errorf("%w: task spec: %v", ErrInvalidRequest, err)
	}
	return nil
}

// Normalize makes nil slices empty so JSON always carries arrays.
func (t *Task) Normalize() {
	if t.ResourceLinks == nil {
		t.ResourceLinks = []string{}
	}
	if t.Topics == nil {
		t.Topics = []string{}
	}
}

// Normalize makes the task list non-nil and normalizes every task.
func (p *Plan) Normalize() {
	if p.Tasks == nil {
		p.Tasks = []Task{}
	}
	for i := range p.Tasks {
		p.Tasks[i].Normalize()
	}
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
