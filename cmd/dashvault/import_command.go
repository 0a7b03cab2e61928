package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"dashvault/internal/api"
	"dashvault/internal/catalog"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "import <device> [file-id...]",
		Short: "Queue an import batch for a card",
		Long: "Queue an import of recordings from a known card into the archive. " +
			"The device may be given as a numeric ID, a card identity token, or a volume UID. " +
			"Without explicit file IDs every pending or previously failed file is imported.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fileIDs, err := parsePositiveIDs(args[1:])
			if err != nil {
				return err
			}

			return ctx.withStore(cmd.Context(), func(runCtx context.Context, store *catalog.Store, svc *api.CatalogService) error {
				device, err := svc.ResolveDevice(runCtx, args[0])
				if err != nil {
					return err
				}
				if device == nil {
					return fmt.Errorf("device %q not found", args[0])
				}

				if len(fileIDs) == 0 {
					files, err := store.ListDeviceFiles(runCtx, device.ID, catalog.ImportPending, catalog.ImportFailed)
					if err != nil {
						return err
					}
					for _, file := range files {
						fileIDs = append(fileIDs, file.ID)
					}
				}
				if len(fileIDs) == 0 {
					return fmt.Errorf("device %d has no files awaiting import", device.ID)
				}

				job, err := store.CreateImportBatch(runCtx, device.ID, fileIDs)
				if err != nil {
					return fmt.Errorf("enqueue import: %w", err)
				}
				if jsonOutput {
					return writeJSON(cmd, api.JobResponse{Job: api.FromJob(job)})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued import of %d file(s) from device %d as job %d\n",
					len(fileIDs), device.ID, job.ID)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the queued job as JSON")
	return cmd
}
