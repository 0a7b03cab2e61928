package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"dashvault/internal/api"
	"dashvault/internal/catalog"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var stateFlag string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "jobs [id]",
		Short: "List queued jobs or inspect one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				id, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
				if err != nil || id <= 0 {
					return fmt.Errorf("invalid job id %q", args[0])
				}
				return ctx.withStore(cmd.Context(), func(runCtx context.Context, _ *catalog.Store, svc *api.CatalogService) error {
					job, err := svc.DescribeJob(runCtx, id)
					if err != nil {
						return err
					}
					if job == nil {
						return fmt.Errorf("job %d not found", id)
					}
					if jsonOutput {
						return writeJSON(cmd, api.JobResponse{Job: *job})
					}
					printJobDetail(cmd, job)
					return nil
				})
			}

			var states []catalog.JobState
			if strings.TrimSpace(stateFlag) != "" {
				state, ok := catalog.ParseJobState(stateFlag)
				if !ok {
					return fmt.Errorf("unknown job state %q", stateFlag)
				}
				states = append(states, state)
			}

			return ctx.withStore(cmd.Context(), func(runCtx context.Context, _ *catalog.Store, svc *api.CatalogService) error {
				jobs, err := svc.ListJobs(runCtx, states...)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, api.JobListResponse{Jobs: jobs})
				}
				out := cmd.OutOrStdout()
				if len(jobs) == 0 {
					fmt.Fprintln(out, "No jobs found")
					return nil
				}
				rows := make([][]string, 0, len(jobs))
				for _, job := range jobs {
					rows = append(rows, []string{
						strconv.FormatInt(job.ID, 10),
						job.Type,
						job.State,
						job.Lane,
						formatProgress(job.Progress),
						job.UpdatedAt,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Type", "State", "Lane", "Progress", "Updated"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&stateFlag, "state", "", "Filter by job state (queued, running, completed, failed, canceled)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit jobs as JSON")
	return cmd
}

func printJobDetail(cmd *cobra.Command, job *api.Job) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job %d\n", job.ID)
	fmt.Fprintf(out, "  Type:     %s\n", job.Type)
	fmt.Fprintf(out, "  State:    %s\n", job.State)
	fmt.Fprintf(out, "  Lane:     %s\n", job.Lane)
	fmt.Fprintf(out, "  Progress: %s\n", formatProgress(job.Progress))
	if job.ErrorMessage != "" {
		fmt.Fprintf(out, "  Error:    %s\n", job.ErrorMessage)
	}
	fmt.Fprintf(out, "  Created:  %s\n", job.CreatedAt)
	if job.StartedAt != "" {
		fmt.Fprintf(out, "  Started:  %s\n", job.StartedAt)
	}
	if job.FinishedAt != "" {
		fmt.Fprintf(out, "  Finished: %s\n", job.FinishedAt)
	}
	if len(job.Payload) > 0 {
		fmt.Fprintf(out, "  Payload:  %s\n", string(job.Payload))
	}
	if len(job.Result) > 0 {
		fmt.Fprintf(out, "  Result:   %s\n", string(job.Result))
	}
}

func formatProgress(progress api.JobProgress) string {
	text := fmt.Sprintf("%.0f%%", progress.Percent)
	if progress.Message != "" {
		text += " " + progress.Message
	}
	return text
}
