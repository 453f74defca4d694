// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/momentum/pkg/logging"
	"github.com/AleutianAI/momentum/services/orchestrator"
	"github.com/AleutianAI/momentum/services/orchestrator/planner"
)

// newService builds the service for a command. Tests replace it.
var newService = func(ctx context.Context, cfg orchestrator.Config, opts ...orchestrator.Option) (orchestrator.Service, error) {
	return orchestrator.New(ctx, cfg, opts...)
}

// cliState is shared by the commands of one invocation.
type cliState struct {
	configPath string
	verbose    bool
	output     string

	cfg    orchestrator.Config
	logger *logging.Logger
}

// Output formats for plan and task commands.
const (
	outputText = "text"
	outputJSON = "json"
)

func newRootCmd() *cobra.Command {
	state := &cliState{}

	rootCmd := &cobra.Command{
		Use:   "momentum",
		Short: "Generate and track multi-week learning plans",
		Long: `Momentum turns a learning goal and a duration into a week-by-week plan
using a generative model, stores it, and tracks completion of each week.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return state.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if state.logger != nil {
				_ = state.logger.Close()
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&state.configPath, "config", "c", "", "path to a YAML config file")
	flags.BoolVarP(&state.verbose, "verbose", "v", false, "log at debug level")
	flags.StringVarP(&state.output, "output", "o", outputText, "output format: text or json")

	rootCmd.AddCommand(
		newServeCmd(state),
		newPlansCmd(state),
		newTasksCmd(state),
	)
	return rootCmd
}

// setup loads configuration and installs the process logger.
func (s *cliState) setup(cmd *cobra.Command) error {
	if s.output != outputText && s.output != outputJSON {
		return fmt.Errorf("unknown output format %q", s.output)
	}

	cfg, err := orchestrator.LoadConfig(s.configPath)
	if err != nil {
		return err
	}
	s.cfg = cfg

	level, levelErr := logging.ParseLevel(cfg.Log.Level)
	// Management commands only surface warnings unless asked.
	if cmd.Name() != "serve" && level < slog.LevelWarn {
		level = slog.LevelWarn
	}
	if s.verbose {
		level = slog.LevelDebug
	}
	s.logger = logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Log.Dir,
		Service: "momentum",
		JSON:    cfg.Log.JSON,
		Output:  cmd.ErrOrStderr(),
	})
	slog.SetDefault(s.logger.Slog())
	if levelErr != nil {
		slog.Warn("Invalid log level, using info", "error", levelErr)
	}
	return nil
}

// withService runs fn against a freshly built service and closes it.
func (s *cliState) withService(cmd *cobra.Command, fn func(svc orchestrator.Service) error) error {
	return s.runService(cmd, fn)
}

// withPlanner runs fn against the plan workflows of a service whose model
// client is only built if synthesis runs, so commands that read or update
// stored plans work without model credentials.
func (s *cliState) withPlanner(cmd *cobra.Command, fn func(p *planner.Planner) error) error {
	return s.runService(cmd, func(svc orchestrator.Service) error {
		return fn(svc.Planner())
	}, orchestrator.WithDeferredLLMClient())
}

func (s *cliState) runService(cmd *cobra.Command, fn func(svc orchestrator.Service) error, opts ...orchestrator.Option) error {
	svc, err := newService(cmd.Context(), s.cfg, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := svc.Close(); cerr != nil {
			slog.Warn("Service close failed", "error", cerr)
		}
	}()
	return fn(svc)
}

func (s *cliState) printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseIDArg(arg, what string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s id must be a positive integer, got %q", what, arg)
	}
	return id, nil
}
