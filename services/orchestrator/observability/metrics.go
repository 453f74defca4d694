// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics and trace export setup
// for the plan service.
//
// # Description
//
// Metrics cover the synthesis call, plan creation outcomes, per-task
// persistence, task completion updates and the HTTP surface:
//   - Synthesis counters and latency histogram by status
//   - Plan outcome and task result counters
//   - HTTP request counter and latency histogram by route
//   - Error counter by operation and error code
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint. Every method is safe to call
// on a nil *Metrics, which records nothing, so components can run without
// a registry in tests and from the CLI.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "momentum"

// Metrics holds all Prometheus collectors of the plan service.
type Metrics struct {
	// SynthesisTotal counts model calls.
	// Labels: status (success, unavailable, timeout, circuit_open, empty)
	SynthesisTotal *prometheus.CounterVec

	// SynthesisDurationSeconds measures model call latency.
	// Labels: status
	SynthesisDurationSeconds *prometheus.HistogramVec

	// PlansCreatedTotal counts created plans by synthesis outcome.
	// Labels: outcome (complete, partial, synthesis_unavailable, malformed_output)
	PlansCreatedTotal *prometheus.CounterVec

	// TaskResultsTotal counts the fate of parsed tasks.
	// Labels: status (persisted, failed, skipped_duplicate, skipped_out_of_range)
	TaskResultsTotal *prometheus.CounterVec

	// TaskUpdatesTotal counts completion flag updates.
	// Labels: completed (true, false)
	TaskUpdatesTotal *prometheus.CounterVec

	// HTTPRequestsTotal counts handled requests.
	// Labels: method, route, code
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPRequestDurationSeconds measures handler latency.
	// Labels: method, route
	HTTPRequestDurationSeconds *prometheus.HistogramVec

	// ErrorsTotal counts failed operations.
	// Labels: operation, error_code
	ErrorsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors on reg.
//
// # Inputs
//
//   - reg: Registry to register on. Use prometheus.DefaultRegisterer in
//     production and prometheus.NewRegistry() in tests.
//
// # Limitations
//
//   - Panics if the collectors are already registered on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SynthesisTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "synthesis",
				Name:      "requests_total",
				Help:      "Total number of model calls by status",
			},
			[]string{"status"},
		),

		SynthesisDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "synthesis",
				Name:      "duration_seconds",
				Help:      "Model call duration in seconds",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
			},
			[]string{"status"},
		),

		PlansCreatedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "plans",
				Name:      "created_total",
				Help:      "Total plans created by synthesis outcome",
			},
			[]string{"outcome"},
		),

		TaskResultsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "tasks",
				Name:      "results_total",
				Help:      "Total parsed tasks by persistence status",
			},
			[]string{"status"},
		),

		TaskUpdatesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "tasks",
				Name:      "updates_total",
				Help:      "Total task completion updates",
			},
			[]string{"completed"},
		),

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total HTTP requests by method, route and status code",
			},
			[]string{"method", "route", "code"},
		),

		HTTPRequestDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "errors_total",
				Help:      "Total failed operations by operation and error code",
			},
			[]string{"operation", "error_code"},
		),
	}
}

// =============================================================================
// Error Codes
// =============================================================================

// ErrorCode represents a categorized error type for metrics.
type ErrorCode string

const (
	ErrorCodeValidation           ErrorCode = "validation"
	ErrorCodePolicyViolation      ErrorCode = "policy_violation"
	ErrorCodeNotFound             ErrorCode = "not_found"
	ErrorCodeStoreUnavailable     ErrorCode = "store_unavailable"
	ErrorCodeSynthesisUnavailable ErrorCode = "synthesis_unavailable"
	ErrorCodeMalformedOutput      ErrorCode = "malformed_output"
	ErrorCodeInternal             ErrorCode = "internal"
)

// Synthesis call statuses.
const (
	SynthesisSuccess     = "success"
	SynthesisUnavailable = "unavailable"
	SynthesisTimeout     = "timeout"
	SynthesisCircuitOpen = "circuit_open"
	SynthesisEmpty       = "empty"
)

// =============================================================================
// Helper Methods
// =============================================================================

// RecordSynthesis records one model call.
func (m *Metrics) RecordSynthesis(status string, seconds float64) {
	if m == nil {
		return
	}
	m.SynthesisTotal.WithLabelValues(status).Inc()
	m.SynthesisDurationSeconds.WithLabelValues(status).Observe(seconds)
}

// RecordPlanCreated records a plan creation outcome.
func (m *Metrics) RecordPlanCreated(outcome string) {
	if m == nil {
		return
	}
	m.PlansCreatedTotal.WithLabelValues(outcome).Inc()
}

// RecordTaskResult records the fate of one parsed task.
func (m *Metrics) RecordTaskResult(status string) {
	if m == nil {
		return
	}
	m.TaskResultsTotal.WithLabelValues(status).Inc()
}

// RecordTaskUpdate records a completion update.
func (m *Metrics) RecordTaskUpdate(completed bool) {
	if m == nil {
		return
	}
	m.TaskUpdatesTotal.WithLabelValues(strconv.FormatBool(completed)).Inc()
}

// RecordHTTPRequest records one handled request.
//
// # Inputs
//
//   - method: HTTP method.
//   - route: Route template (e.g. /plans/:id), never the raw path.
//   - code: Response status code.
//   - seconds: Handler duration.
func (m *Metrics) RecordHTTPRequest(method, route string, code int, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.HTTPRequestDurationSeconds.WithLabelValues(method, route).Observe(seconds)
}

// RecordError records a failed operation.
func (m *Metrics) RecordError(operation string, code ErrorCode) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(operation, string(code)).Inc()
}
