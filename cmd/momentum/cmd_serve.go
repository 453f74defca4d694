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
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/momentum/services/orchestrator"
)

func newServeCmd(state *cliState) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the plan HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") {
				state.cfg.Port = port
			}
			return state.withService(cmd, func(svc orchestrator.Service) error {
				err := svc.Run(cmd.Context())
				slog.Info("Momentum server stopped", "error", err)
				return err
			})
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", orchestrator.DefaultPort, "HTTP port, overrides config")
	return cmd
}
