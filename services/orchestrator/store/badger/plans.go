// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/momentum/services/orchestrator/datatypes"
)

const (
	planPrefix      = "plan/"
	taskPrefix      = "task/"
	planTaskPrefix  = "idx/plan_task/"
	planSeqKey      = "seq/plan"
	taskSeqKey      = "seq/task"
	sequenceLease   = 100
	idKeyWidth      = 20
	storeClosedText = "plan store is closed"
)

// planRecord is the stored form of a plan. Tasks live under their own keys.
type planRecord struct {
	ID            int64     `json:"id"`
	Goal          string    `json:"goal"`
	DurationWeeks int       `json:"duration_weeks"`
	CreatedAt     time.Time `json:"created_at"`
}

// PlanStore implements the Plan Store on BadgerDB.
//
// # Thread Safety
//
// Safe for concurrent use. Writes use optimistic transactions that are
// replayed on conflict, so concurrent completion updates of one task resolve
// as last-committed-write-wins.
type PlanStore struct {
	db      *DB
	planSeq *badger.Sequence
	taskSeq *badger.Sequence
	now     func() time.Time
}

// OpenPlanStore opens BadgerDB and leases the ID sequences.
func OpenPlanStore(cfg Config) (*PlanStore, error) {
	db, err := OpenDB(cfg)
	if err != nil {
		return nil, err
	}
	planSeq, err := db.GetSequence([]byte(planSeqKey), sequenceLease)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("lease plan sequence: %w", err)
	}
	taskSeq, err := db.GetSequence([]byte(taskSeqKey), sequenceLease)
	if err != nil {
		planSeq.Release()
		db.Close()
		return nil, fmt.Errorf("lease task sequence: %w", err)
	}
	return &PlanStore{db: db, planSeq: planSeq, taskSeq: taskSeq, now: time.Now}, nil
}

// CreatePlan inserts a plan shell.
func (s *PlanStore) CreatePlan(ctx context.Context, goal string, durationWeeks int) (*datatypes.Plan, error) {
	id, err := nextID(s.planSeq)
	if err != nil {
		return nil, unavailable("allocate plan id", err)
	}
	rec := planRecord{
		ID:            id,
		Goal:          goal,
		DurationWeeks: durationWeeks,
		CreatedAt:     s.now().UTC(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, unavailable("encode plan", err)
	}

	err = s.db.update(ctx, func(txn *badger.Txn) error {
		return txn.Set(planKey(id), data)
	})
	if err != nil {
		return nil, unavailable("insert plan", err)
	}
	return rec.toPlan(nil), nil
}

// GetPlan returns one plan with its tasks.
func (s *PlanStore) GetPlan(ctx context.Context, id int64) (*datatypes.Plan, error) {
	var plan *datatypes.Plan
	err := s.db.view(ctx, func(txn *badger.Txn) error {
		rec, err := getPlan(txn, id)
		if err != nil {
			return err
		}
		tasks, err := planTasks(txn, id)
		if err != nil {
			return err
		}
		plan = rec.toPlan(tasks)
		return nil
	})
	if err != nil {
		return nil, classify("get plan", err)
	}
	return plan, nil
}

// ListPlans returns a page of plans ordered by ID.
func (s *PlanStore) ListPlans(ctx context.Context, offset, limit int) ([]datatypes.Plan, error) {
	plans := []datatypes.Plan{}
	err := s.db.view(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(planPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		skipped := 0
		for it.Rewind(); it.Valid() && len(plans) < limit; it.Next() {
			if skipped < offset {
				skipped++
				continue
			}
			var rec planRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("decode plan %s: %w", it.Item().Key(), err)
			}
			tasks, err := planTasks(txn, rec.ID)
			if err != nil {
				return err
			}
			plans = append(plans, *rec.toPlan(tasks))
		}
		return nil
	})
	if err != nil {
		return nil, classify("list plans", err)
	}
	return plans, nil
}

// DeletePlan removes the plan, its tasks and their index entries in one
// transaction.
func (s *PlanStore) DeletePlan(ctx context.Context, id int64) error {
	err := s.db.update(ctx, func(txn *badger.Txn) error {
		if _, err := txn.Get(planKey(id)); err != nil {
			return err
		}
		taskIDs, err := planTaskIDs(txn, id)
		if err != nil {
			return err
		}
		for _, taskID := range taskIDs {
			if err := txn.Delete(taskKey(taskID)); err != nil {
				return err
			}
			if err := txn.Delete(planTaskKey(id, taskID)); err != nil {
				return err
			}
		}
		return txn.Delete(planKey(id))
	})
	if err != nil {
		return classify(fmt.Sprintf("delete plan %d", id), err)
	}
	return nil
}

// CreateTask inserts one task and its index entry in one transaction.
func (s *PlanStore) CreateTask(ctx context.Context, planID int64, spec datatypes.TaskSpec) (*datatypes.Task, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	id, err := nextID(s.taskSeq)
	if err != nil {
		return nil, unavailable("allocate task id", err)
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
	data, err := json.Marshal(task)
	if err != nil {
		return nil, unavailable("encode task", err)
	}

	err = s.db.update(ctx, func(txn *badger.Txn) error {
		if _, err := txn.Get(planKey(planID)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("task for plan %d: %w", planID, datatypes.ErrForeignKeyViolation)
			}
			return err
		}
		if err := txn.Set(taskKey(id), data); err != nil {
			return err
		}
		return txn.Set(planTaskKey(planID, id), nil)
	})
	if err != nil {
		return nil, classify("insert task", err)
	}
	return task, nil
}

// GetTask returns one task.
func (s *PlanStore) GetTask(ctx context.Context, id int64) (*datatypes.Task, error) {
	var task *datatypes.Task
	err := s.db.view(ctx, func(txn *badger.Txn) error {
		var err error
		task, err = getTask(txn, id)
		return err
	})
	if err != nil {
		return nil, classify(fmt.Sprintf("get task %d", id), err)
	}
	return task, nil
}

// UpdateTaskCompletion sets the completion flag and returns the committed task.
func (s *PlanStore) UpdateTaskCompletion(ctx context.Context, id int64, completed bool) (*datatypes.Task, error) {
	var task *datatypes.Task
	err := s.db.update(ctx, func(txn *badger.Txn) error {
		current, err := getTask(txn, id)
		if err != nil {
			return err
		}
		current.IsCompleted = completed
		data, err := json.Marshal(current)
		if err != nil {
			return err
		}
		if err := txn.Set(taskKey(id), data); err != nil {
			return err
		}
		task = current
		return nil
	})
	if err != nil {
		return nil, classify(fmt.Sprintf("update task %d", id), err)
	}
	return task, nil
}

// Ping reports whether the database is open.
func (s *PlanStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return unavailable("ping", err)
	}
	if s.db.IsClosed() {
		return unavailable("ping", errors.New(storeClosedText))
	}
	return nil
}

// Close releases the sequences and closes the database.
func (s *PlanStore) Close() error {
	var errs []error
	if err := s.planSeq.Release(); err != nil {
		errs = append(errs, fmt.Errorf("release plan sequence: %w", err))
	}
	if err := s.taskSeq.Release(); err != nil {
		errs = append(errs, fmt.Errorf("release task sequence: %w", err))
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// =============================================================================
// Helpers
// =============================================================================

func (r planRecord) toPlan(tasks []datatypes.Task) *datatypes.Plan {
	plan := &datatypes.Plan{
		ID:            r.ID,
		Goal:          r.Goal,
		DurationWeeks: r.DurationWeeks,
		CreatedAt:     r.CreatedAt,
		Tasks:         tasks,
	}
	plan.Normalize()
	return plan
}

func getPlan(txn *badger.Txn, id int64) (*planRecord, error) {
	item, err := txn.Get(planKey(id))
	if err != nil {
		return nil, err
	}
	var rec planRecord
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	}); err != nil {
		return nil, fmt.Errorf("decode plan %d: %w", id, err)
	}
	return &rec, nil
}

func getTask(txn *badger.Txn, id int64) (*datatypes.Task, error) {
	item, err := txn.Get(taskKey(id))
	if err != nil {
		return nil, err
	}
	var task datatypes.Task
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &task)
	}); err != nil {
		return nil, fmt.Errorf("decode task %d: %w", id, err)
	}
	task.Normalize()
	return &task, nil
}

// planTaskIDs walks the ownership index of one plan.
func planTaskIDs(txn *badger.Txn, planID int64) ([]int64, error) {
	prefix := []byte(planTaskPrefix + padID(planID) + "/")
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	var ids []int64
	for it.Rewind(); it.Valid(); it.Next() {
		raw := strings.TrimPrefix(string(it.Item().Key()), string(prefix))
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse index key %q: %w", it.Item().Key(), err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// planTasks loads a plan's tasks ordered by week number then ID.
func planTasks(txn *badger.Txn, planID int64) ([]datatypes.Task, error) {
	ids, err := planTaskIDs(txn, planID)
	if err != nil {
		return nil, err
	}
	tasks := make([]datatypes.Task, 0, len(ids))
	for _, id := range ids {
		task, err := getTask(txn, id)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	// Index order is already by ID, so a stable sort on week keeps ID as the
	// tiebreaker.
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].WeekNumber < tasks[j].WeekNumber
	})
	return tasks, nil
}

func nextID(seq *badger.Sequence) (int64, error) {
	n, err := seq.Next()
	if err != nil {
		return 0, err
	}
	// Sequences start at zero; record IDs start at one.
	return int64(n) + 1, nil
}

func padID(id int64) string {
	return fmt.Sprintf("%0*d", idKeyWidth, id)
}

func planKey(id int64) []byte {
	return []byte(planPrefix + padID(id))
}

func taskKey(id int64) []byte {
	return []byte(taskPrefix + padID(id))
}

func planTaskKey(planID, taskID int64) []byte {
	return []byte(planTaskPrefix + padID(planID) + "/" + padID(taskID))
}

// classify maps badger errors onto the store taxonomy. Errors that already
// carry a store sentinel pass through.
func classify(op string, err error) error {
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return fmt.Errorf("%s: %w", op, datatypes.ErrNotFound)
	case errors.Is(err, datatypes.ErrForeignKeyViolation),
		errors.Is(err, datatypes.ErrNotFound),
		errors.Is(err, datatypes.ErrInvalidRequest):
		return err
	default:
		return unavailable(op, err)
	}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, datatypes.ErrStoreUnavailable, err)
}
