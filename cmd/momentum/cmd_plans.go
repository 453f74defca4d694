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
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/momentum/services/orchestrator"
	"github.com/AleutianAI/momentum/services/orchestrator/datatypes"
	"github.com/AleutianAI/momentum/services/orchestrator/planner"
)

func newPlansCmd(state *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "plans",
		Short:   "Create, list, show and delete learning plans",
		Aliases: []string{"plan"},
	}
	cmd.AddCommand(
		newPlansCreateCmd(state),
		newPlansListCmd(state),
		newPlansShowCmd(state),
		newPlansDeleteCmd(state),
	)
	return cmd
}

func newPlansCreateCmd(state *cliState) *cobra.Command {
	var (
		goal  string
		weeks int
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a plan and synthesize its weeks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := datatypes.CreatePlanRequest{Goal: goal, DurationWeeks: weeks}
			return state.withService(cmd, func(svc orchestrator.Service) error {
				result, err := svc.Planner().CreatePlanWithSynthesis(cmd.Context(), req)
				if err != nil {
					return err
				}
				if state.output == outputJSON {
					return state.printJSON(cmd.OutOrStdout(), result)
				}
				printPlan(cmd.OutOrStdout(), &result.Plan)
				printReport(cmd.OutOrStdout(), result.Report)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&goal, "goal", "g", "", "what to learn")
	cmd.Flags().IntVarP(&weeks, "weeks", "w", 4, "plan duration in weeks")
	_ = cmd.MarkFlagRequired("goal")
	return cmd
}

func newPlansListCmd(state *cliState) *cobra.Command {
	var query datatypes.ListPlansQuery
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List plans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return state.withPlanner(cmd, func(p *planner.Planner) error {
				plans, err := p.ListPlans(cmd.Context(), query)
				if err != nil {
					return err
				}
				if state.output == outputJSON {
					return state.printJSON(cmd.OutOrStdout(), plans)
				}
				return printPlanTable(cmd.OutOrStdout(), plans)
			})
		},
	}
	cmd.Flags().IntVar(&query.Skip, "skip", 0, "plans to skip")
	cmd.Flags().IntVar(&query.Limit, "limit", datatypes.DefaultListLimit, "maximum plans to list")
	return cmd
}

func newPlansShowCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "show <plan-id>",
		Short: "Show a plan and its weeks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0], "plan")
			if err != nil {
				return err
			}
			return state.withPlanner(cmd, func(p *planner.Planner) error {
				plan, err := p.GetPlan(cmd.Context(), id)
				if err != nil {
					return err
				}
				if state.output == outputJSON {
					return state.printJSON(cmd.OutOrStdout(), plan)
				}
				printPlan(cmd.OutOrStdout(), plan)
				return nil
			})
		},
	}
}

func newPlansDeleteCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <plan-id>",
		Short: "Delete a plan and all of its weeks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0], "plan")
			if err != nil {
				return err
			}
			return state.withPlanner(cmd, func(p *planner.Planner) error {
				if err := p.DeletePlan(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted plan %d\n", id)
				return nil
			})
		},
	}
}

// =============================================================================
// Text Output
// =============================================================================

func printPlan(w io.Writer, plan *datatypes.Plan) {
	fmt.Fprintf(w, "Plan %d: %s (%d weeks, created %s)\n",
		plan.ID, plan.Goal, plan.DurationWeeks, plan.CreatedAt.Local().Format(time.DateTime))
	if len(plan.Tasks) == 0 {
		fmt.Fprintln(w, "  (no weeks)")
		return
	}
	for _, task := range plan.Tasks {
		fmt.Fprintf(w, "  %s task %d  %s\n", checkbox(task.IsCompleted), task.ID, task.Title)
		if task.Description != nil && *task.Description != "" {
			fmt.Fprintf(w, "        %s\n", *task.Description)
		}
		if len(task.Topics) > 0 {
			fmt.Fprintf(w, "        topics: %s\n", strings.Join(task.Topics, ", "))
		}
	}
}

func printReport(w io.Writer, report datatypes.SynthesisReport) {
	fmt.Fprintf(w, "Synthesis: %s\n", report.Outcome)
	for _, warning := range report.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warning)
	}
}

func printPlanTable(w io.Writer, plans []datatypes.Plan) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tGOAL\tWEEKS\tDONE\tCREATED")
	for _, plan := range plans {
		done := 0
		for _, task := range plan.Tasks {
			if task.IsCompleted {
				done++
			}
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d/%d\t%s\n",
			plan.ID, plan.Goal, plan.DurationWeeks, done, len(plan.Tasks),
			plan.CreatedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

func checkbox(done bool) string {
	if done {
		return "[x]"
	}
	return "[ ]"
}
