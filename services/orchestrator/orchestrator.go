// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package orchestrator assembles the Momentum plan service.
//
// It wires the plan store, the model client, synthesis, screening and the
// planner behind the gin HTTP surface, and owns their lifecycle.
//
// # Usage
//
//	cfg, err := orchestrator.LoadConfig("momentum.yaml")
//	if err != nil {
//	    return err
//	}
//	svc, err := orchestrator.New(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer svc.Close()
//	return svc.Run(ctx)
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/momentum/services/llm"
	"github.com/AleutianAI/momentum/services/orchestrator/handlers"
	"github.com/AleutianAI/momentum/services/orchestrator/middleware"
	"github.com/AleutianAI/momentum/services/orchestrator/observability"
	"github.com/AleutianAI/momentum/services/orchestrator/planner"
	"github.com/AleutianAI/momentum/services/orchestrator/routes"
	"github.com/AleutianAI/momentum/services/orchestrator/screening"
	"github.com/AleutianAI/momentum/services/orchestrator/store"
	"github.com/AleutianAI/momentum/services/orchestrator/synthesis"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service is the assembled plan service.
//
// # Thread Safety
//
// Safe for concurrent use. Run should be called at most once.
type Service interface {
	// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
	// It returns nil after a clean shutdown.
	Run(ctx context.Context) error

	// Router returns the configured gin engine, for tests.
	Router() *gin.Engine

	// Planner returns the plan workflows, for in-process callers such as
	// the CLI.
	Planner() *planner.Planner

	// Close waits up to ShutdownTimeout for running plan creations, then
	// releases the store and flushes traces. Safe to call twice.
	Close() error
}

// Option customises New.
type Option func(*service)

// WithLLMClient uses client instead of building one from Config.LLM.
func WithLLMClient(client llm.LLMClient) Option {
	return func(s *service) { s.llmClient = client }
}

// WithDeferredLLMClient postpones building the model client until the first
// synthesis. Callers that only read or update plans use it so they start
// without model credentials.
func WithDeferredLLMClient() Option {
	return func(s *service) { s.deferLLM = true }
}

// WithRegistry registers metrics on reg instead of a private registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *service) { s.registry = reg }
}

// =============================================================================
// Implementation
// =============================================================================

type service struct {
	config         Config
	router         *gin.Engine
	store          store.Store
	llmClient      llm.LLMClient
	deferLLM       bool
	planner        *planner.Planner
	registry       *prometheus.Registry
	metrics        *observability.Metrics
	tracerShutdown func(context.Context) error

	closeOnce sync.Once
	closeErr  error
}

// New creates the service.
//
// # Description
//
// New initializes, in order: tracing, metrics, the plan store, the model
// client, synthesis, screening, the planner and the router. On failure
// everything already opened is released.
//
// # Inputs
//
//   - ctx: Used while constructing exporters and the model client.
//   - cfg: Service configuration. Zero values use defaults.
//   - opts: Optional overrides.
//
// # Outputs
//
//   - Service: Ready to Run. Caller must Close it.
//   - error: Non-nil if any component fails to initialize.
func New(ctx context.Context, cfg Config, opts ...Option) (Service, error) {
	s := &service{config: applyConfigDefaults(cfg)}
	for _, opt := range opts {
		opt(s)
	}

	shutdown, err := observability.InitTracing(ctx, s.config.Tracing)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	s.tracerShutdown = shutdown

	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
		s.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	s.metrics = observability.NewMetrics(s.registry)

	if err := s.initPlanner(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	s.initRouter()

	slog.Info("Momentum service initialized",
		"port", s.config.Port,
		"store_driver", s.config.Store.Driver,
		"llm_backend", s.config.LLM.Backend,
		"screening", s.config.Screening.IsEnabled())
	return s, nil
}

func (s *service) initPlanner(ctx context.Context) error {
	st, err := store.Open(s.config.Store)
	if err != nil {
		return fmt.Errorf("failed to open plan store: %w", err)
	}
	s.store = st

	switch {
	case s.llmClient != nil:
	case s.deferLLM:
		s.llmClient = llm.NewDeferredClient(s.config.LLM)
	default:
		s.llmClient, err = llm.NewClient(ctx, s.config.LLM)
		if err != nil {
			return fmt.Errorf("failed to initialize LLM client: %w", err)
		}
	}
	synth := synthesis.NewClient(s.llmClient, s.config.Synthesis, s.metrics)

	deps := planner.Dependencies{Store: st, Synthesizer: synth, Metrics: s.metrics}
	if s.config.Screening.IsEnabled() {
		screener, err := newScreener(s.config.Screening)
		if err != nil {
			return fmt.Errorf("failed to initialize screening: %w", err)
		}
		deps.Screener = screener
	}

	s.planner, err = planner.New(deps, s.config.Planner)
	if err != nil {
		return fmt.Errorf("failed to initialize planner: %w", err)
	}
	return nil
}

func newScreener(cfg ScreeningConfig) (*screening.Screener, error) {
	if cfg.RulesPath != "" {
		return screening.NewFromFile(cfg.RulesPath, cfg.MinConfidence)
	}
	return screening.New(cfg.MinConfidence)
}

func (s *service) initRouter() {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}
	s.router = gin.New()
	s.router.Use(
		gin.Recovery(),
		middleware.RequestIDMiddleware(),
		middleware.AccessLogMiddleware(s.metrics),
		otelgin.Middleware(s.config.Tracing.ServiceName),
	)

	routes.SetupRoutes(s.router, handlers.NewHandlers(s.planner), routes.Options{
		CreateLimiter:  middleware.NewLimiter(s.config.RateLimit),
		MetricsHandler: promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry}),
	})
}

// =============================================================================
// Service Interface Methods
// =============================================================================

// Run serves HTTP until ctx is cancelled.
//
// # Description
//
// The server and a shutdown watcher run in one errgroup. When ctx ends the
// server stops accepting connections and in-flight requests get
// ShutdownTimeout to finish. A plan whose shell is already committed keeps
// persisting its tasks past that point because the planner detaches from
// request cancellation; Close waits for it before closing the store.
func (s *service) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Starting momentum server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down momentum server", "timeout", s.config.ShutdownTimeout.String())
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// Router returns the underlying gin engine.
func (s *service) Router() *gin.Engine {
	return s.router
}

// Planner returns the plan workflows.
func (s *service) Planner() *planner.Planner {
	return s.planner
}

// Close releases all resources held by the service.
func (s *service) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if s.planner != nil {
			ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
			if err := s.planner.Drain(ctx); err != nil {
				slog.Warn("Closing plan store with creations in flight", "error", err)
			}
			cancel()
		}
		if s.store != nil {
			if err := s.store.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close plan store: %w", err))
			}
		}
		if s.tracerShutdown != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.tracerShutdown(ctx); err != nil {
				slog.Warn("Tracer shutdown error", "error", err)
			}
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}

// =============================================================================
// Compile-time Interface Compliance
// =============================================================================

var _ Service = (*service)(nil)
