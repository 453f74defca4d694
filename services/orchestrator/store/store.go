// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store defines the Plan Store contract and selects a backend.
//
// Two backends implement Store:
//
//   - sqlite: relational tables with a cascading foreign key (default)
//   - badger: embedded key-value store with an explicit task index
//
// Every method runs in its own transaction and commits or rolls back before
// returning. There is no transaction shared across calls, so plan creation
// followed by several CreateTask calls is deliberately not atomic.
//
// # Errors
//
// Implementations wrap the sentinels from the datatypes package:
//
//   - datatypes.ErrNotFound: unknown plan or task identifier
//   - datatypes.ErrForeignKeyViolation: CreateTask for a missing plan
//   - datatypes.ErrInvalidRequest: a TaskSpec that fails validation
//   - datatypes.ErrStoreUnavailable: anything the backend itself failed at
package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/momentum/services/orchestrator/datatypes"
	"github.com/AleutianAI/momentum/services/orchestrator/store/badger"
	"github.com/AleutianAI/momentum/services/orchestrator/store/sqlite"
)

// Store is the transactional Plan/Task record store.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Concurrent updates of
// the same task resolve as last-committed-write-wins.
type Store interface {
	// CreatePlan inserts a plan with no tasks and returns it with its
	// assigned ID and creation time.
	CreatePlan(ctx context.Context, goal string, durationWeeks int) (*datatypes.Plan, error)

	// GetPlan returns the plan with its tasks ordered by week then ID.
	GetPlan(ctx context.Context, id int64) (*datatypes.Plan, error)

	// ListPlans returns up to limit plans after skipping offset, ordered by
	// ID, each with its tasks.
	ListPlans(ctx context.Context, offset, limit int) ([]datatypes.Plan, error)

	// DeletePlan removes the plan and every task it owns in one transaction.
	DeletePlan(ctx context.Context, id int64) error

	// CreateTask inserts one task owned by planID in its own transaction.
	CreateTask(ctx context.Context, planID int64, spec datatypes.TaskSpec) (*datatypes.Task, error)

	// GetTask returns one task.
	GetTask(ctx context.Context, id int64) (*datatypes.Task, error)

	// UpdateTaskCompletion sets the completion flag. Re-applying the same
	// value succeeds and changes nothing.
	UpdateTaskCompletion(ctx context.Context, id int64, completed bool) (*datatypes.Task, error)

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend.
	Close() error
}

// Driver names accepted by Open.
const (
	DriverSQLite = "sqlite"
	DriverBadger = "badger"
)

// Config selects and configures a backend.
type Config struct {
	// Driver is DriverSQLite (default) or DriverBadger.
	Driver string `yaml:"driver"`

	// Path is the database file (sqlite) or directory (badger).
	// Empty means in-memory, which is intended for tests and demos.
	Path string `yaml:"path"`
}

// Open creates the configured backend.
func Open(cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", DriverSQLite:
		slog.Info("Opening sqlite plan store", "path", displayPath(cfg.Path))
		return sqlite.Open(sqlite.Config{Path: cfg.Path})
	case DriverBadger:
		slog.Info("Opening badger plan store", "path", displayPath(cfg.Path))
		bcfg := badger.DefaultConfig()
		if cfg.Path == "" {
			bcfg = badger.InMemoryConfig()
		}
		bcfg.Path = cfg.Path
		return badger.OpenPlanStore(bcfg)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func displayPath(path string) string {
	if path == "" {
		return ":memory:"
	}
	return path
}

var (
	_ Store = (*sqlite.PlanStore)(nil)
	_ Store = (*badger.PlanStore)(nil)
)
