// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package storetest is a behavioural suite every Plan Store backend runs.
package storetest

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/momentum/services/orchestrator/datatypes"
	"github.com/AleutianAI/momentum/services/orchestrator/store"
)

// Factory opens a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) store.Store

// Run executes the suite against the backend produced by open.
func Run(t *testing.T, open Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"CreateAndGetPlan", testCreateAndGetPlan},
		{"GetPlanNotFound", testGetPlanNotFound},
		{"TaskRoundTrip", testTaskRoundTrip},
		{"TaskOrdering", testTaskOrdering},
		{"CreateTaskForeignKey", testCreateTaskForeignKey},
		{"CreateTaskRejectsInvalidSpec", testCreateTaskRejectsInvalidSpec},
		{"UpdateTaskCompletion", testUpdateTaskCompletion},
		{"UpdateTaskNotFound", testUpdateTaskNotFound},
		{"ListPlansPaging", testListPlansPaging},
		{"DeletePlanCascades", testDeletePlanCascades},
		{"ConcurrentCompletionUpdates", testConcurrentCompletionUpdates},
		{"Ping", testPing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := open(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

func mustPlan(t *testing.T, s store.Store, goal string, weeks int) *datatypes.Plan {
	t.Helper()
	plan, err := s.CreatePlan(context.Background(), goal, weeks)
	require.NoError(t, err)
	return plan
}

func mustTask(t *testing.T, s store.Store, planID int64, week int, title string) *datatypes.Task {
	t.Helper()
	task, err := s.CreateTask(context.Background(), planID, datatypes.TaskSpec{
		WeekNumber: week,
		Title:      title,
	})
	require.NoError(t, err)
	return task
}

func testCreateAndGetPlan(t *testing.T, s store.Store) {
	ctx := context.Background()
	created := mustPlan(t, s, "Learn Rust", 4)
	assert.Positive(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())
	assert.NotNil(t, created.Tasks)
	assert.Empty(t, created.Tasks)

	got, err := s.GetPlan(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "Learn Rust", got.Goal)
	assert.Equal(t, 4, got.DurationWeeks)
	assert.True(t, created.CreatedAt.Equal(got.CreatedAt))
	assert.Empty(t, got.Tasks)

	second := mustPlan(t, s, "Learn Go", 2)
	assert.Greater(t, second.ID, created.ID)
}

func testGetPlanNotFound(t *testing.T, s store.Store) {
	_, err := s.GetPlan(context.Background(), 9999)
	assert.ErrorIs(t, err, datatypes.ErrNotFound)
}

func testTaskRoundTrip(t *testing.T, s store.Store) {
	ctx := context.Background()
	plan := mustPlan(t, s, "Learn Rust", 2)

	links := []string{"https://a.example/1", "https://a.example/2"}
	task, err := s.CreateTask(ctx, plan.ID, datatypes.TaskSpec{
		WeekNumber:    1,
		Title:         "Week 1: Basics",
		Description:   datatypes.StringPtr("Ownership and borrowing"),
		Topics:        []string{"ownership", "borrowing"},
		ResourceLinks: links,
	})
	require.NoError(t, err)
	assert.Equal(t, plan.ID, task.PlanID)
	assert.False(t, task.IsCompleted)

	noDesc := mustTask(t, s, plan.ID, 2, "Week 2: Traits")
	assert.Nil(t, noDesc.Description)
	assert.Equal(t, []string{}, noDesc.ResourceLinks)

	got, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, links, got.ResourceLinks)
	assert.Equal(t, []string{"ownership", "borrowing"}, got.Topics)
	require.NotNil(t, got.Description)
	assert.Equal(t, "Ownership and borrowing", *got.Description)

	hydrated, err := s.GetPlan(ctx, plan.ID)
	require.NoError(t, err)
	require.Len(t, hydrated.Tasks, 2)
	assert.Equal(t, links, hydrated.Tasks[0].ResourceLinks)
	assert.Nil(t, hydrated.Tasks[1].Description)
	assert.Equal(t, []string{}, hydrated.Tasks[1].Topics)
}

func testTaskOrdering(t *testing.T, s store.Store) {
	ctx := context.Background()
	plan := mustPlan(t, s, "Learn Go", 3)
	third := mustTask(t, s, plan.ID, 3, "Week 3: c")
	firstA := mustTask(t, s, plan.ID, 1, "Week 1: a")
	firstB := mustTask(t, s, plan.ID, 1, "Week 1: b")
	second := mustTask(t, s, plan.ID, 2, "Week 2: b")

	got, err := s.GetPlan(ctx, plan.ID)
	require.NoError(t, err)
	ids := make([]int64, 0, len(got.Tasks))
	for _, task := range got.Tasks {
		ids = append(ids, task.ID)
	}
	assert.Equal(t, []int64{firstA.ID, firstB.ID, second.ID, third.ID}, ids)
}

func testCreateTaskForeignKey(t *testing.T, s store.Store) {
	_, err := s.CreateTask(context.Background(), 424242, datatypes.TaskSpec{WeekNumber: 1, Title: "Week 1: x"})
	assert.ErrorIs(t, err, datatypes.ErrForeignKeyViolation)
}

func testCreateTaskRejectsInvalidSpec(t *testing.T, s store.Store) {
	plan := mustPlan(t, s, "Learn Go", 1)
	_, err := s.CreateTask(context.Background(), plan.ID, datatypes.TaskSpec{
		WeekNumber:    1,
		Title:         "Week 1: x",
		ResourceLinks: []string{"not a url"},
	})
	assert.ErrorIs(t, err, datatypes.ErrInvalidRequest)

	got, err := s.GetPlan(context.Background(), plan.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Tasks)
}

func testUpdateTaskCompletion(t *testing.T, s store.Store) {
	ctx := context.Background()
	plan := mustPlan(t, s, "Learn Go", 1)
	task := mustTask(t, s, plan.ID, 1, "Week 1: x")

	updated, err := s.UpdateTaskCompletion(ctx, task.ID, true)
	require.NoError(t, err)
	assert.True(t, updated.IsCompleted)
	assert.Equal(t, task.Title, updated.Title)

	again, err := s.UpdateTaskCompletion(ctx, task.ID, true)
	require.NoError(t, err)
	assert.Equal(t, updated, again)

	undone, err := s.UpdateTaskCompletion(ctx, task.ID, false)
	require.NoError(t, err)
	assert.False(t, undone.IsCompleted)

	got, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.False(t, got.IsCompleted)
}

func testUpdateTaskNotFound(t *testing.T, s store.Store) {
	_, err := s.UpdateTaskCompletion(context.Background(), 31337, true)
	assert.ErrorIs(t, err, datatypes.ErrNotFound)

	_, err = s.GetTask(context.Background(), 31337)
	assert.ErrorIs(t, err, datatypes.ErrNotFound)
}

func testListPlansPaging(t *testing.T, s store.Store) {
	ctx := context.Background()
	var ids []int64
	for _, goal := range []string{"a", "b", "c", "d"} {
		plan := mustPlan(t, s, goal, 1)
		mustTask(t, s, plan.ID, 1, "Week 1: "+goal)
		ids = append(ids, plan.ID)
	}

	all, err := s.ListPlans(ctx, 0, 100)
	require.NoError(t, err)
	require.Len(t, all, 4)
	for i, plan := range all {
		assert.Equal(t, ids[i], plan.ID)
		assert.Len(t, plan.Tasks, 1)
	}

	page, err := s.ListPlans(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[1], page[0].ID)
	assert.Equal(t, ids[2], page[1].ID)

	past, err := s.ListPlans(ctx, 10, 5)
	require.NoError(t, err)
	assert.NotNil(t, past)
	assert.Empty(t, past)
}

func testDeletePlanCascades(t *testing.T, s store.Store) {
	ctx := context.Background()
	plan := mustPlan(t, s, "Learn Go", 2)
	t1 := mustTask(t, s, plan.ID, 1, "Week 1: a")
	t2 := mustTask(t, s, plan.ID, 2, "Week 2: b")
	other := mustPlan(t, s, "Learn Rust", 1)
	kept := mustTask(t, s, other.ID, 1, "Week 1: keep")

	require.NoError(t, s.DeletePlan(ctx, plan.ID))

	_, err := s.GetPlan(ctx, plan.ID)
	assert.ErrorIs(t, err, datatypes.ErrNotFound)
	for _, id := range []int64{t1.ID, t2.ID} {
		_, err := s.GetTask(ctx, id)
		assert.ErrorIs(t, err, datatypes.ErrNotFound)
	}

	got, err := s.GetTask(ctx, kept.ID)
	require.NoError(t, err)
	assert.Equal(t, other.ID, got.PlanID)

	assert.ErrorIs(t, s.DeletePlan(ctx, plan.ID), datatypes.ErrNotFound)
}

func testConcurrentCompletionUpdates(t *testing.T, s store.Store) {
	ctx := context.Background()
	plan := mustPlan(t, s, "Learn Go", 1)
	task, err := s.CreateTask(ctx, plan.ID, datatypes.TaskSpec{
		WeekNumber:    1,
		Title:         "Week 1: x",
		Topics:        []string{"syntax"},
		ResourceLinks: []string{"https://go.dev/tour"},
	})
	require.NoError(t, err)

	type update struct {
		want bool
		got  *datatypes.Task
		err  error
	}
	results := make(chan update, 20)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(completed bool) {
			defer wg.Done()
			got, err := s.UpdateTaskCompletion(ctx, task.ID, completed)
			results <- update{want: completed, got: got, err: err}
		}(i%2 == 0)
	}
	wg.Wait()
	close(results)

	for r := range results {
		require.NoError(t, r.err)
		assert.Equal(t, r.want, r.got.IsCompleted, "an update must return its own write")
		assert.Equal(t, task.Title, r.got.Title)
		assert.Equal(t, task.Topics, r.got.Topics)
		assert.Equal(t, task.ResourceLinks, r.got.ResourceLinks)
	}

	for _, completed := range []bool{true, false} {
		_, err := s.UpdateTaskCompletion(ctx, task.ID, completed)
		require.NoError(t, err)
		stored, err := s.GetTask(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, completed, stored.IsCompleted, "the last committed write wins")
		assert.Equal(t, task.ResourceLinks, stored.ResourceLinks)
	}
}

func testPing(t *testing.T, s store.Store) {
	assert.NoError(t, s.Ping(context.Background()))
}
