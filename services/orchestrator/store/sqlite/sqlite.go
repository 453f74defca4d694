// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sqlite implements the Plan Store on SQLite via the pure-Go
// modernc.org/sqlite driver.
//
// Plans and tasks live in two tables joined by a foreign key with
// ON DELETE CASCADE, so deleting a plan can never leave orphan tasks.
// Resource links and topics are stored as JSON arrays in TEXT columns.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/AleutianAI/momentum/services/orchestrator/datatypes"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Schema creates the plan and task tables.
const Schema = `
CREATE TABLE IF NOT EXISTS plans (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	goal           TEXT    NOT NULL,
	duration_weeks INTEGER NOT NULL CHECK (duration_weeks > 0),
	created_at     TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_plans_goal ON plans(goal);

CREATE TABLE IF NOT EXISTS tasks (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	plan_id        INTEGER NOT NULL REFERENCES plans(id) ON DELETE CASCADE,
	week_number    INTEGER NOT NULL,
	title          TEXT    NOT NULL,
	description    TEXT,
	resource_links TEXT    NOT NULL DEFAULT '[]',
	topics         TEXT    NOT NULL DEFAULT '[]',
	is_completed   INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_tasks_plan ON tasks(plan_id, week_number, id);
`

const timeLayout = time.RFC3339Nano

// Config configures the SQLite plan store.
type Config struct {
	// Path is the database file. Empty opens a private in-memory database.
	Path string

	// Now overrides the clock used for created_at. Default: time.Now.
	Now func() time.Time
}

// PlanStore implements the Plan Store on database/sql.
//
// # Thread Safety
//
// Safe for concurrent use. SQLite allows one writer, so the pool is capped
// at a single connection and writes serialize at commit granularity.
type PlanStore struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database and applies the schema.
func Open(cfg Config) (*PlanStore, error) {
	dsn := "file::memory:"
	if cfg.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0750); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		dsn = "file:" + cfg.Path
	}
	dsn += "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// One connection: SQLite has a single writer, and an in-memory database
	// only exists for the lifetime of its connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}
	if cfg.Path != "" {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &PlanStore{db: db, now: now}, nil
}

// CreatePlan inserts a plan shell.
func (s *PlanStore) CreatePlan(ctx context.Context, goal string, durationWeeks int) (*datatypes.Plan, error) {
	createdAt := s.now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO plans (goal, duration_weeks, created_at) VALUES (?, ?, ?)`,
		goal, durationWeeks, createdAt.Format(timeLayout))
	if err != nil {
		return nil, unavailable("insert plan", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, unavailable("read plan id", err)
	}
	return &datatypes.Plan{
		ID:            id,
		Goal:          goal,
		DurationWeeks: durationWeeks,
		CreatedAt:     createdAt,
		Tasks:         []datatypes.Task{},
	}, nil
}

// GetPlan returns one plan with its tasks.
func (s *PlanStore) GetPlan(ctx context.Context, id int64) (*datatypes.Plan, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, unavailable("begin read", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT id, goal, duration_weeks, created_at FROM plans WHERE id = ?`, id)
	plan, err := scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("plan %d: %w", id, datatypes.ErrNotFound)
	}
	if err != nil {
		return nil, unavailable("select plan", err)
	}

	tasks, err := queryTasks(ctx, tx, []int64{id})
	if err != nil {
		return nil, err
	}
	plan.Tasks = tasks[id]
	plan.Normalize()
	return plan, nil
}

// ListPlans returns a page of plans ordered by ID.
func (s *PlanStore) ListPlans(ctx context.Context, offset, limit int) ([]datatypes.Plan, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, unavailable("begin read", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT id, goal, duration_weeks, created_at FROM plans ORDER BY id LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, unavailable("list plans", err)
	}
	plans := []datatypes.Plan{}
	var ids []int64
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			rows.Close()
			return nil, unavailable("scan plan", err)
		}
		plans = append(plans, *plan)
		ids = append(ids, plan.ID)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, unavailable("iterate plans", err)
	}
	rows.Close()

	if len(ids) == 0 {
		return plans, nil
	}
	tasks, err := queryTasks(ctx, tx, ids)
	if err != nil {
		return nil, err
	}
	for i := range plans {
		plans[i].Tasks = tasks[plans[i].ID]
		plans[i].Normalize()
	}
	return plans, nil
}

// DeletePlan removes a plan; the foreign key cascades to its tasks.
func (s *PlanStore) DeletePlan(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM plans WHERE id = ?`, id)
	if err != nil {
		return unavailable("delete plan", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("delete plan", err)
	}
	if n == 0 {
		return fmt.Errorf("plan %d: %w", id, datatypes.ErrNotFound)
	}
	return nil
}

// CreateTask inserts one task in its own transaction.
func (s *PlanStore) CreateTask(ctx context.Context, planID int64, spec datatypes.TaskSpec) (*datatypes.Task, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	links, err := encodeList(spec.ResourceLinks)
	if err != nil {
		return nil, err
	}
	topics, err := encodeList(spec.Topics)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, unavailable("begin write", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM plans WHERE id = ?`, planID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task for plan %d: %w", planID, datatypes.ErrForeignKeyViolation)
	}
	if err != nil {
		return nil, unavailable("check plan", err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO tasks (plan_id, week_number, title, description, resource_links, topics, is_completed)
		 VALUES (?, ?, ?, ?, ?, ?, 0)`,
		planID, spec.WeekNumber, spec.Title, nullableString(spec.Description), links, topics)
	if err != nil {
		if isForeignKeyError(err) {
			return nil, fmt.Errorf("task for plan %d: %w", planID, datatypes.ErrForeignKeyViolation)
		}
		return nil, unavailable("insert task", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, unavailable("read task id", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, unavailable("commit task", err)
	}

	task := &datatypes.Task{
		ID:            id,
		PlanID:        planID,
		WeekNumber:    spec.WeekNumber,
		Title:         spec.Title,
		Description:   spec.Description,
		ResourceLinks: append([]string(nil), spec.ResourceLinks...),
		Topics:        append([]string(nil), spec.Topics...),
	}
	task.Normalize()
	return task, nil
}

// GetTask returns one task.
func (s *PlanStore) GetTask(ctx context.Context, id int64) (*datatypes.Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, plan_id, week_number, title, description, resource_links, topics, is_completed
		 FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %d: %w", id, datatypes.ErrNotFound)
	}
	if err != nil {
		return nil, unavailable("select task", err)
	}
	return task, nil
}

// UpdateTaskCompletion sets is_completed and returns the task as committed.
func (s *PlanStore) UpdateTaskCompletion(ctx context.Context, id int64, completed bool) (*datatypes.Task, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, unavailable("begin write", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE tasks SET is_completed = ? WHERE id = ?`, completed, id)
	if err != nil {
		return nil, unavailable("update task", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, unavailable("update task", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("task %d: %w", id, datatypes.ErrNotFound)
	}

	row := tx.QueryRowContext(ctx,
		`SELECT id, plan_id, week_number, title, description, resource_links, topics, is_completed
		 FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if err != nil {
		return nil, unavailable("reload task", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, unavailable("commit task update", err)
	}
	return task, nil
}

// Ping checks the connection.
func (s *PlanStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Close closes the database.
func (s *PlanStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// Helpers
// =============================================================================

type scanner interface {
	Scan(dest ...any) error
}

func scanPlan(row scanner) (*datatypes.Plan, error) {
	var (
		plan      datatypes.Plan
		createdAt string
	)
	if err := row.Scan(&plan.ID, &plan.Goal, &plan.DurationWeeks, &createdAt); err != nil {
		return nil, err
	}
	ts, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	plan.CreatedAt = ts.UTC()
	return &plan, nil
}

func scanTask(row scanner) (*datatypes.Task, error) {
	var (
		task        datatypes.Task
		description sql.NullString
		links       string
		topics      string
	)
	if err := row.Scan(&task.ID, &task.PlanID, &task.WeekNumber, &task.Title,
		&description, &links, &topics, &task.IsCompleted); err != nil {
		return nil, err
	}
	if description.Valid {
		task.Description = datatypes.StringPtr(description.String)
	}
	if err := json.Unmarshal([]byte(links), &task.ResourceLinks); err != nil {
		return nil, fmt.Errorf("decode resource_links of task %d: %w", task.ID, err)
	}
	if err := json.Unmarshal([]byte(topics), &task.Topics); err != nil {
		return nil, fmt.Errorf("decode topics of task %d: %w", task.ID, err)
	}
	task.Normalize()
	return &task, nil
}

// queryTasks loads the tasks of the given plans grouped by plan ID.
func queryTasks(ctx context.Context, tx *sql.Tx, planIDs []int64) (map[int64][]datatypes.Task, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(planIDs)), ",")
	args := make([]any, len(planIDs))
	for i, id := range planIDs {
		args[i] = id
	}
	rows, err := tx.QueryContext(ctx,
		`SELECT id, plan_id, week_number, title, description, resource_links, topics, is_completed
		 FROM tasks WHERE plan_id IN (`+placeholders+`)
		 ORDER BY plan_id, week_number, id`, args...)
	if err != nil {
		return nil, unavailable("select tasks", err)
	}
	defer rows.Close()

	out := make(map[int64][]datatypes.Task, len(planIDs))
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, unavailable("scan task", err)
		}
		out[task.PlanID] = append(out[task.PlanID], *task)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate tasks", err)
	}
	return out, nil
}

func encodeList(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("%w: encode list: %v", datatypes.ErrInvalidRequest, err)
	}
	return string(data), nil
}

func nullableString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func isForeignKeyError(err error) bool {
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, datatypes.ErrStoreUnavailable, err)
}
