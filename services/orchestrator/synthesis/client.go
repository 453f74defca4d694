// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package synthesis turns a plan request into raw model text.
//
// # Description
//
// The Client renders a fixed prompt and makes exactly one model call per
// Synthesize. It does not retry and does not stream. Every failure mode
// (transport, auth, timeout, open breaker, empty completion) surfaces as
// datatypes.ErrSynthesisUnavailable. The returned text is not validated
// here; that is the parser's job.
//
// # Thread Safety
//
// Client is safe for concurrent use.
package synthesis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/momentum/services/llm"
	"github.com/AleutianAI/momentum/services/orchestrator/datatypes"
	"github.com/AleutianAI/momentum/services/orchestrator/observability"
)

var tracer = otel.Tracer("momentum.synthesis")

var errEmptyCompletion = errors.New("model returned an empty completion")

// Synthesizer produces raw syllabus text for a goal.
type Synthesizer interface {
	Synthesize(ctx context.Context, goal string, durationWeeks int) (string, error)
}

// Config tunes the synthesis call.
type Config struct {
	// Timeout bounds a single model call. Default: 60s.
	Timeout time.Duration `yaml:"timeout"`

	// BreakerFailures is the number of consecutive failures that opens the
	// circuit. Default: 5.
	BreakerFailures uint32 `yaml:"breaker_failures"`

	// BreakerCooldown is how long the circuit stays open before a probe
	// call is let through. Default: 30s.
	BreakerCooldown time.Duration `yaml:"breaker_cooldown"`

	// Temperature is forwarded to the model when set.
	Temperature *float32 `yaml:"temperature"`
}

func (c *Config) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.BreakerFailures == 0 {
		c.BreakerFailures = 5
	}
	if c.BreakerCooldown <= 0 {
		c.BreakerCooldown = 30 * time.Second
	}
}

// Client calls the model behind a timeout and a circuit breaker.
type Client struct {
	model   llm.LLMClient
	timeout time.Duration
	params  llm.GenerationParams
	breaker *gobreaker.CircuitBreaker
	metrics *observability.Metrics
}

// NewClient wraps model. metrics may be nil.
func NewClient(model llm.LLMClient, cfg Config, metrics *observability.Metrics) *Client {
	cfg.applyDefaults()
	failures := cfg.BreakerFailures
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "synthesis",
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			// A caller that gave up says nothing about the model's health.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("Synthesis circuit breaker changed state",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return &Client{
		model:   model,
		timeout: cfg.Timeout,
		params:  llm.GenerationParams{Temperature: cfg.Temperature},
		breaker: breaker,
		metrics: metrics,
	}
}

// Synthesize renders the prompt and makes one model call.
//
// # Outputs
//
//   - string: Raw completion text, never empty on success.
//   - error: Wraps datatypes.ErrSynthesisUnavailable on any failure.
func (c *Client) Synthesize(ctx context.Context, goal string, durationWeeks int) (string, error) {
	ctx, span := tracer.Start(ctx, "synthesis.Synthesize")
	defer span.End()
	span.SetAttributes(attribute.Int("plan.duration_weeks", durationWeeks))

	prompt := BuildPrompt(goal, durationWeeks)

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	out, err := c.breaker.Execute(func() (interface{}, error) {
		text, err := c.model.Generate(callCtx, prompt, c.params)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(text) == "" {
			return nil, errEmptyCompletion
		}
		return text, nil
	})
	elapsed := time.Since(start)

	status := classify(callCtx, err)
	c.metrics.RecordSynthesis(status, elapsed.Seconds())
	span.SetAttributes(attribute.String("synthesis.status", status))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, status)
		slog.Warn("Synthesis failed",
			"status", status, "duration_ms", elapsed.Milliseconds(), "error", err)
		if status == observability.SynthesisTimeout {
			return "", fmt.Errorf("%w: timed out after %s", datatypes.ErrSynthesisUnavailable, c.timeout)
		}
		return "", fmt.Errorf("%w: %v", datatypes.ErrSynthesisUnavailable, err)
	}

	text := out.(string)
	slog.Debug("Synthesis completed", "duration_ms", elapsed.Milliseconds(), "chars", len(text))
	return text, nil
}

// State reports the breaker state, for health output.
func (c *Client) State() string {
	return c.breaker.State().String()
}

func classify(callCtx context.Context, err error) string {
	switch {
	case err == nil:
		return observability.SynthesisSuccess
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return observability.SynthesisCircuitOpen
	case errors.Is(err, errEmptyCompletion):
		return observability.SynthesisEmpty
	case errors.Is(callCtx.Err(), context.DeadlineExceeded):
		return observability.SynthesisTimeout
	default:
		return observability.SynthesisUnavailable
	}
}
