// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package planner coordinates plan creation and task completion.
//
// # Description
//
// CreatePlanWithSynthesis runs a fixed sequence of steps:
//
//	validate -> screen -> create shell -> synthesize -> parse -> normalize -> persist -> hydrate
//
// Only request validation, screening, shell creation and the final hydrate
// can fail the call. Synthesis and parse failures leave the plan persisted
// with zero tasks and are reported in the result. Each task is persisted in
// its own store transaction; one task failing does not stop the others.
//
// # Thread Safety
//
// Planner is safe for concurrent use. Drain stops new creations and waits
// for those in flight so the store can be closed under no running create.
package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/momentum/services/orchestrator/datatypes"
	"github.com/AleutianAI/momentum/services/orchestrator/observability"
	"github.com/AleutianAI/momentum/services/orchestrator/parser"
	"github.com/AleutianAI/momentum/services/orchestrator/store"
	"github.com/AleutianAI/momentum/services/orchestrator/synthesis"
)

var tracer = otel.Tracer("momentum.planner")

// DefaultMaxDurationWeeks bounds duration_weeks when Config leaves it unset.
const DefaultMaxDurationWeeks = 52

// Screener rejects goals that must not leave the process.
type Screener interface {
	Check(text string) error
}

// Config holds planner policy.
type Config struct {
	// MaxDurationWeeks is the largest accepted duration. Default: 52.
	MaxDurationWeeks int `yaml:"max_duration_weeks"`

	// EnforceWeekRange skips parsed weeks outside [1, duration]. Default: true.
	EnforceWeekRange *bool `yaml:"enforce_week_range"`
}

func (c *Config) applyDefaults() {
	if c.MaxDurationWeeks <= 0 {
		c.MaxDurationWeeks = DefaultMaxDurationWeeks
	}
	if c.EnforceWeekRange == nil {
		enforce := true
		c.EnforceWeekRange = &enforce
	}
}

// Dependencies are the collaborators of a Planner.
type Dependencies struct {
	Store       store.Store
	Synthesizer synthesis.Synthesizer

	// Screener is optional. Nil disables goal screening.
	Screener Screener

	// Metrics is optional.
	Metrics *observability.Metrics
}

// Planner implements the plan workflows over a Store and a Synthesizer.
type Planner struct {
	store    store.Store
	synth    synthesis.Synthesizer
	screener Screener
	metrics  *observability.Metrics
	cfg      Config

	mu       sync.Mutex
	draining bool
	inflight sync.WaitGroup
}

// New validates deps and applies config defaults.
func New(deps Dependencies, cfg Config) (*Planner, error) {
	if deps.Store == nil {
		return nil, errors.New("planner: store is required")
	}
	if deps.Synthesizer == nil {
		return nil, errors.New("planner: synthesizer is required")
	}
	cfg.applyDefaults()
	return &Planner{
		store:    deps.Store,
		synth:    deps.Synthesizer,
		screener: deps.Screener,
		metrics:  deps.Metrics,
		cfg:      cfg,
	}, nil
}

// begin registers a plan creation. It reports false once Drain has started.
func (p *Planner) begin() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.draining {
		return false
	}
	p.inflight.Add(1)
	return true
}

// Drain rejects new plan creations and waits for running ones to finish.
//
// A creation keeps writing tasks after its caller is cancelled, so the
// store must outlive it. Drain returns ctx's error if creations are still
// running when ctx ends.
func (p *Planner) Drain(ctx context.Context) error {
	p.mu.Lock()
	p.draining = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("plan creations still running: %w", ctx.Err())
	}
}

// MaxDurationWeeks returns the configured duration bound.
func (p *Planner) MaxDurationWeeks() int {
	return p.cfg.MaxDurationWeeks
}

// =============================================================================
// Plan Creation
// =============================================================================

// CreatePlanWithSynthesis creates a plan and fills it with synthesized tasks.
//
// # Outputs
//
//   - *datatypes.CreatePlanResult: The hydrated plan with a report of what
//     happened to every parsed task. Returned for every synthesis outcome.
//   - error: ErrInvalidRequest, ErrPolicyViolation or ErrStoreUnavailable
//     (also after Drain). Model-side problems never produce an error.
func (p *Planner) CreatePlanWithSynthesis(ctx context.Context, req datatypes.CreatePlanRequest) (*datatypes.CreatePlanResult, error) {
	ctx, span := tracer.Start(ctx, "planner.CreatePlanWithSynthesis")
	defer span.End()

	if err := req.Validate(p.cfg.MaxDurationWeeks); err != nil {
		return nil, p.fail(span, "create_plan", err)
	}
	if p.screener != nil {
		if err := p.screener.Check(req.Goal); err != nil {
			slog.Warn("Plan goal rejected by screening", "error", err)
			return nil, p.fail(span, "create_plan", err)
		}
	}
	span.SetAttributes(attribute.Int("plan.duration_weeks", req.DurationWeeks))

	if !p.begin() {
		return nil, p.fail(span, "create_plan", fmt.Errorf("%w: planner is shutting down", datatypes.ErrStoreUnavailable))
	}
	defer p.inflight.Done()

	plan, err := p.store.CreatePlan(ctx, req.Goal, req.DurationWeeks)
	if err != nil {
		return nil, p.fail(span, "create_plan", fmt.Errorf("create plan shell: %w", err))
	}
	span.SetAttributes(attribute.Int64("plan.id", plan.ID))
	slog.Info("Plan shell created", "plan_id", plan.ID, "duration_weeks", req.DurationWeeks)

	// The shell is committed. From here on the plan is finished even if the
	// caller goes away, so a disconnect cannot strand a half-written plan.
	ctx = context.WithoutCancel(ctx)

	report := datatypes.SynthesisReport{Warnings: []string{}, TaskResults: []datatypes.TaskResult{}}

	start := time.Now()
	raw, err := p.synth.Synthesize(ctx, req.Goal, req.DurationWeeks)
	if err != nil {
		slog.Warn("Synthesis unavailable, keeping empty plan",
			"plan_id", plan.ID, "duration_ms", time.Since(start).Milliseconds(), "error", err)
		p.metrics.RecordError("synthesize", observability.ErrorCodeSynthesisUnavailable)
		report.Outcome = datatypes.OutcomeSynthesisUnavailable
		report.Warnings = append(report.Warnings, err.Error())
		return p.finish(ctx, span, plan.ID, report)
	}

	specs, err := parser.Parse(raw, req.DurationWeeks)
	if err != nil {
		slog.Warn("Synthesis output rejected, keeping empty plan",
			"plan_id", plan.ID, "error", err, "output_chars", len(raw))
		p.metrics.RecordError("parse", observability.ErrorCodeMalformedOutput)
		report.Outcome = datatypes.OutcomeMalformedOutput
		report.Warnings = append(report.Warnings, err.Error())
		return p.finish(ctx, span, plan.ID, report)
	}
	slog.Debug("Synthesis output parsed", "plan_id", plan.ID, "weeks", len(specs))

	results, kept := Normalize(specs, req.DurationWeeks, *p.cfg.EnforceWeekRange)
	persisted := 0
	for i := range results {
		spec, ok := kept[i]
		if !ok {
			continue
		}
		task, err := p.store.CreateTask(ctx, plan.ID, spec)
		if err != nil {
			if errors.Is(err, datatypes.ErrForeignKeyViolation) {
				slog.Error("Plan vanished while persisting tasks", "plan_id", plan.ID, "error", err)
			} else {
				slog.Warn("Task persistence failed, continuing",
					"plan_id", plan.ID, "week_number", spec.WeekNumber, "error", err)
			}
			results[i].Status = datatypes.TaskFailed
			results[i].Error = err.Error()
			continue
		}
		results[i].Status = datatypes.TaskPersisted
		results[i].TaskID = task.ID
		persisted++
	}

	report.TaskResults = results
	report.Outcome = datatypes.OutcomeComplete
	for _, r := range results {
		p.metrics.RecordTaskResult(string(r.Status))
		if r.Status != datatypes.TaskPersisted {
			report.Outcome = datatypes.OutcomePartial
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("week %d %q: %s", r.WeekNumber, r.Title, r.Status))
		}
	}
	if persisted != req.DurationWeeks {
		report.Outcome = datatypes.OutcomePartial
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("persisted %d of %d weeks", persisted, req.DurationWeeks))
	}

	return p.finish(ctx, span, plan.ID, report)
}

// finish re-reads the plan so the result reflects what actually committed.
func (p *Planner) finish(ctx context.Context, span trace.Span, planID int64, report datatypes.SynthesisReport) (*datatypes.CreatePlanResult, error) {
	plan, err := p.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, p.fail(span, "create_plan", fmt.Errorf("hydrate plan %d: %w", planID, err))
	}
	p.metrics.RecordPlanCreated(string(report.Outcome))
	span.SetAttributes(
		attribute.String("plan.outcome", string(report.Outcome)),
		attribute.Int("plan.tasks", len(plan.Tasks)),
	)
	slog.Info("Plan created",
		"plan_id", plan.ID, "outcome", report.Outcome, "tasks", len(plan.Tasks), "warnings", len(report.Warnings))
	return &datatypes.CreatePlanResult{Plan: *plan, Report: report}, nil
}

// Normalize orders specs by week and decides which to persist.
//
// # Description
//
// Specs are stable-sorted by week number. A spec outside [1, durationWeeks]
// is skipped when enforceRange is set. Of several specs with the same week
// the first in model order is kept. Every input spec gets one result; kept
// maps result index to the spec to persist.
func Normalize(specs []datatypes.TaskSpec, durationWeeks int, enforceRange bool) ([]datatypes.TaskResult, map[int]datatypes.TaskSpec) {
	sorted := make([]datatypes.TaskSpec, len(specs))
	copy(sorted, specs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].WeekNumber < sorted[j].WeekNumber
	})

	results := make([]datatypes.TaskResult, len(sorted))
	kept := make(map[int]datatypes.TaskSpec, len(sorted))
	seen := make(map[int]bool, len(sorted))
	for i, spec := range sorted {
		results[i] = datatypes.TaskResult{WeekNumber: spec.WeekNumber, Title: spec.Title}
		switch {
		case enforceRange && (spec.WeekNumber < 1 || spec.WeekNumber > durationWeeks):
			results[i].Status = datatypes.TaskSkippedOutOfRange
		case seen[spec.WeekNumber]:
			results[i].Status = datatypes.TaskSkippedDuplicate
		default:
			seen[spec.WeekNumber] = true
			kept[i] = spec
		}
	}
	return results, kept
}

// =============================================================================
// Reads and Mutations
// =============================================================================

// GetPlan returns a hydrated plan or ErrNotFound.
func (p *Planner) GetPlan(ctx context.Context, id int64) (*datatypes.Plan, error) {
	ctx, span := tracer.Start(ctx, "planner.GetPlan", trace.WithAttributes(attribute.Int64("plan.id", id)))
	defer span.End()

	plan, err := p.store.GetPlan(ctx, id)
	if err != nil {
		return nil, p.fail(span, "get_plan", err)
	}
	return plan, nil
}

// ListPlans returns one page of hydrated plans.
func (p *Planner) ListPlans(ctx context.Context, query datatypes.ListPlansQuery) ([]datatypes.Plan, error) {
	ctx, span := tracer.Start(ctx, "planner.ListPlans")
	defer span.End()

	if err := query.Validate(); err != nil {
		return nil, p.fail(span, "list_plans", err)
	}
	span.SetAttributes(attribute.Int("query.skip", query.Skip), attribute.Int("query.limit", query.Limit))

	plans, err := p.store.ListPlans(ctx, query.Skip, query.Limit)
	if err != nil {
		return nil, p.fail(span, "list_plans", err)
	}
	return plans, nil
}

// DeletePlan removes a plan and its tasks.
func (p *Planner) DeletePlan(ctx context.Context, id int64) error {
	ctx, span := tracer.Start(ctx, "planner.DeletePlan", trace.WithAttributes(attribute.Int64("plan.id", id)))
	defer span.End()

	if err := p.store.DeletePlan(ctx, id); err != nil {
		return p.fail(span, "delete_plan", err)
	}
	slog.Info("Plan deleted", "plan_id", id)
	return nil
}

// GetTask returns one task or ErrNotFound.
func (p *Planner) GetTask(ctx context.Context, id int64) (*datatypes.Task, error) {
	ctx, span := tracer.Start(ctx, "planner.GetTask", trace.WithAttributes(attribute.Int64("task.id", id)))
	defer span.End()

	task, err := p.store.GetTask(ctx, id)
	if err != nil {
		return nil, p.fail(span, "get_task", err)
	}
	return task, nil
}

// SetTaskCompletion sets a task's completion flag. Setting the value it
// already has succeeds and changes nothing.
func (p *Planner) SetTaskCompletion(ctx context.Context, id int64, completed bool) (*datatypes.Task, error) {
	ctx, span := tracer.Start(ctx, "planner.SetTaskCompletion", trace.WithAttributes(
		attribute.Int64("task.id", id),
		attribute.Bool("task.completed", completed),
	))
	defer span.End()

	task, err := p.store.UpdateTaskCompletion(ctx, id, completed)
	if err != nil {
		return nil, p.fail(span, "set_task_completion", err)
	}
	p.metrics.RecordTaskUpdate(completed)
	slog.Info("Task completion updated", "task_id", id, "plan_id", task.PlanID, "is_completed", completed)
	return task, nil
}

// Ping reports store health.
func (p *Planner) Ping(ctx context.Context) error {
	return p.store.Ping(ctx)
}

func (p *Planner) fail(span trace.Span, operation string, err error) error {
	code := ErrorCode(err)
	span.RecordError(err)
	span.SetStatus(codes.Error, string(code))
	p.metrics.RecordError(operation, code)
	return err
}

// ErrorCode classifies err for metrics and logs.
func ErrorCode(err error) observability.ErrorCode {
	switch {
	case errors.Is(err, datatypes.ErrInvalidRequest):
		return observability.ErrorCodeValidation
	case errors.Is(err, datatypes.ErrPolicyViolation):
		return observability.ErrorCodePolicyViolation
	case errors.Is(err, datatypes.ErrNotFound):
		return observability.ErrorCodeNotFound
	case errors.Is(err, datatypes.ErrStoreUnavailable):
		return observability.ErrorCodeStoreUnavailable
	case errors.Is(err, datatypes.ErrSynthesisUnavailable):
		return observability.ErrorCodeSynthesisUnavailable
	case errors.Is(err, datatypes.ErrMalformedSynthesisOutput):
		return observability.ErrorCodeMalformedOutput
	default:
		return observability.ErrorCodeInternal
	}
}
