// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/momentum/services/orchestrator/datatypes"
	"github.com/AleutianAI/momentum/services/orchestrator/store"
	"github.com/AleutianAI/momentum/services/orchestrator/store/sqlite"
	"github.com/AleutianAI/momentum/services/orchestrator/store/storetest"
)

func TestPlanStore_Conformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := sqlite.Open(sqlite.Config{})
		require.NoError(t, err)
		return s
	})
}

func TestPlanStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "momentum.db")
	fixed := time.Date(2025, 3, 4, 5, 6, 7, 800, time.UTC)

	s, err := sqlite.Open(sqlite.Config{Path: path, Now: func() time.Time { return fixed }})
	require.NoError(t, err)
	plan, err := s.CreatePlan(ctx, "Learn Rust", 2)
	require.NoError(t, err)
	_, err = s.CreateTask(ctx, plan.ID, datatypes.TaskSpec{
		WeekNumber:    1,
		Title:         "Week 1: Basics",
		ResourceLinks: []string{"https://a.example/1", "https://a.example/2"},
	})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := sqlite.Open(sqlite.Config{Path: path})
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetPlan(ctx, plan.ID)
	require.NoError(t, err)
	assert.True(t, fixed.Equal(got.CreatedAt))
	require.Len(t, got.Tasks, 1)
	assert.Equal(t, []string{"https://a.example/1", "https://a.example/2"}, got.Tasks[0].ResourceLinks)
}

func TestPlanStore_ClosedStoreIsUnavailable(t *testing.T) {
	s, err := sqlite.Open(sqlite.Config{})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.CreatePlan(context.Background(), "Learn Go", 1)
	assert.ErrorIs(t, err, datatypes.ErrStoreUnavailable)
	assert.ErrorIs(t, s.Ping(context.Background()), datatypes.ErrStoreUnavailable)
}
