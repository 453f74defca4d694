// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command orchestrator starts the Momentum plan HTTP server.
//
// This is the entry point for the container image. It takes its whole
// configuration from the environment (and a mounted YAML file when
// MOMENTUM_CONFIG is set) and has no subcommands. The momentum command
// offers the same server as "momentum serve" plus local plan management.
//
// # Environment Variables
//
//   - MOMENTUM_CONFIG: YAML config file (optional)
//   - MOMENTUM_PORT: HTTP server port (default: 8000)
//   - MOMENTUM_STORE_DRIVER, MOMENTUM_STORE_PATH: plan store (default: in-memory sqlite)
//   - LLM_BACKEND_TYPE: gemini, openai, anthropic or ollama (default: gemini)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (optional)
//
// # Usage
//
//	go build -o orchestrator ./cmd/orchestrator
//	MOMENTUM_STORE_PATH=/data/momentum.db ./orchestrator
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/AleutianAI/momentum/pkg/logging"
	"github.com/AleutianAI/momentum/services/orchestrator"
)

func main() {
	cfg, err := orchestrator.LoadConfig(os.Getenv("MOMENTUM_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	level, levelErr := logging.ParseLevel(cfg.Log.Level)
	logger := logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Log.Dir,
		Service: "momentum",
		JSON:    true,
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())
	if levelErr != nil {
		slog.Warn("Invalid log level, using info", "error", levelErr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := orchestrator.New(ctx, cfg)
	if err != nil {
		slog.Error("Failed to create momentum service", "error", err)
		os.Exit(1)
	}
	defer svc.Close()

	if err := svc.Run(ctx); err != nil {
		slog.Error("Momentum server error", "error", err)
		stop()
		_ = svc.Close()
		os.Exit(1)
	}
}
