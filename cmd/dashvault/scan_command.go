package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"dashvault/internal/api"
	"dashvault/internal/catalog"
	"dashvault/internal/config"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "scan [mountpoint]",
		Short: "Queue a card scan",
		Long:  "Queue a scan of one mounted dashcam card, or of every mounted card when no mountpoint is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mountpoint := ""
			if len(args) == 1 {
				expanded, err := config.ExpandPath(strings.TrimSpace(args[0]))
				if err != nil {
					return fmt.Errorf("resolve mountpoint: %w", err)
				}
				info, err := os.Stat(expanded)
				if err != nil {
					return fmt.Errorf("inspect mountpoint %q: %w", expanded, err)
				}
				if !info.IsDir() {
					return fmt.Errorf("mountpoint %q is not a directory", expanded)
				}
				mountpoint = expanded
			}

			return ctx.withStore(cmd.Context(), func(runCtx context.Context, store *catalog.Store, _ *api.CatalogService) error {
				var payload any
				if mountpoint != "" {
					payload = catalog.ScanPayload{Mountpoint: mountpoint}
				}
				job, err := store.Enqueue(runCtx, catalog.JobCardScan, payload)
				if err != nil {
					return fmt.Errorf("enqueue scan: %w", err)
				}
				if jsonOutput {
					return writeJSON(cmd, api.JobResponse{Job: api.FromJob(job)})
				}
				out := cmd.OutOrStdout()
				if mountpoint == "" {
					fmt.Fprintf(out, "Queued scan of all mounted cards as job %d\n", job.ID)
				} else {
					fmt.Fprintf(out, "Queued scan of %s as job %d\n", mountpoint, job.ID)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the queued job as JSON")
	return cmd
}
