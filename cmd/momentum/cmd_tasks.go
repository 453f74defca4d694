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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/momentum/services/orchestrator/planner"
)

func newTasksCmd(state *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tasks",
		Short:   "Track completion of plan weeks",
		Aliases: []string{"task"},
	}
	cmd.AddCommand(newTasksCompleteCmd(state))
	return cmd
}

func newTasksCompleteCmd(state *cliState) *cobra.Command {
	var undo bool
	cmd := &cobra.Command{
		Use:   "complete <task-id>",
		Short: "Mark a week as completed, or not completed with --undo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0], "task")
			if err != nil {
				return err
			}
			return state.withPlanner(cmd, func(p *planner.Planner) error {
				task, err := p.SetTaskCompletion(cmd.Context(), id, !undo)
				if err != nil {
					return err
				}
				if state.output == outputJSON {
					return state.printJSON(cmd.OutOrStdout(), task)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s task %d  %s\n", checkbox(task.IsCompleted), task.ID, task.Title)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&undo, "undo", false, "mark the week as not completed")
	return cmd
}
